// Package config loads application configuration via Viper.
//
// Precedence, highest first: environment variables (PAYFLOW_ prefix),
// config file, defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Funding   FundingConfig   `mapstructure:"funding"`
	Log       LogConfig       `mapstructure:"log"`
}

// AppConfig identifies the running service.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
}

// IsProduction reports whether the environment is production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the PostgreSQL connection URL.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// AdminConfig guards the back-office partner endpoints.
type AdminConfig struct {
	// Token is the shared secret presented in X-Admin-Token.
	Token string `mapstructure:"token"`
}

// GatewayConfig selects and configures card processors.
type GatewayConfig struct {
	// Default names the gateway used when a request does not specify one.
	Default string `mapstructure:"default"`
	Stripe  StripeConfig `mapstructure:"stripe"`
	Mock    MockConfig   `mapstructure:"mock"`
}

// StripeConfig holds the live processor credentials.
type StripeConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// MockConfig holds the deterministic sandbox processor settings.
type MockConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// WebhooksConfig covers outbound partner deliveries.
type WebhooksConfig struct {
	// SigningSecret signs outbound bodies when a partner has no secret of
	// its own.
	SigningSecret string        `mapstructure:"signing_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// NATSConfig holds the event bus settings.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	// SubjectPrefix prefixes every published subject.
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// RedisConfig holds the shared rate limit store settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig bounds per-key request rates.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerWindow int           `mapstructure:"requests_per_window"`
	Window            time.Duration `mapstructure:"window"`
}

// FundingConfig covers the session expiry sweep.
type FundingConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads configuration from an optional file plus PAYFLOW_ environment
// variables.
func Load(configPath, configName string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("PAYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PAYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "PayFlow")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "payflow")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("admin.token", "change-me-in-production")

	v.SetDefault("gateway.default", "mock")
	v.SetDefault("gateway.stripe.enabled", false)
	v.SetDefault("gateway.stripe.base_url", "https://api.stripe.com")
	v.SetDefault("gateway.stripe.timeout", "10s")
	v.SetDefault("gateway.mock.enabled", true)
	v.SetDefault("gateway.mock.webhook_secret", "whsec_mock")

	v.SetDefault("webhooks.signing_secret", "change-me-in-production")
	v.SetDefault("webhooks.timeout", "10s")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "payflow.events")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_window", 1000)
	v.SetDefault("rate_limit.window", "60s")

	v.SetDefault("funding.sweep_interval", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects configurations that must not reach production.
func (c *Config) Validate() error {
	if c.App.IsProduction() {
		if c.Admin.Token == "change-me-in-production" {
			return fmt.Errorf("admin token must be changed in production")
		}
		if c.Webhooks.SigningSecret == "change-me-in-production" {
			return fmt.Errorf("webhook signing secret must be changed in production")
		}
		if c.Gateway.Default == "mock" {
			return fmt.Errorf("mock gateway cannot be the default in production")
		}
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("rate limit requests per window must be positive")
	}
	return nil
}

// Test returns a configuration suitable for tests.
func Test() *Config {
	return &Config{
		App:    AppConfig{Name: "PayFlow", Version: "test", Environment: "test"},
		Server: ServerConfig{Host: "localhost", Port: 8080, ShutdownTimeout: time.Second},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres", Password: "postgres",
			Database: "payflow_test", SSLMode: "disable",
			MaxConnections: 5, MinConnections: 1,
			MaxConnLifetime: time.Hour, MaxConnIdleTime: 30 * time.Minute,
		},
		Admin:     AdminConfig{Token: "test-admin-token"},
		Gateway:   GatewayConfig{Default: "mock", Mock: MockConfig{Enabled: true, WebhookSecret: "whsec_test"}},
		Webhooks:  WebhooksConfig{SigningSecret: "test-signing-secret", Timeout: time.Second},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerWindow: 1000, Window: time.Minute},
		Funding:   FundingConfig{SweepInterval: time.Minute},
		Log:       LogConfig{Level: "error", Format: "text"},
	}
}
