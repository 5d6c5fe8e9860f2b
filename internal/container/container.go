// Package container is the composition root: it builds the repository set,
// services, gateways and event bus from configuration and hands the router a
// ready wiring.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpadapter "github.com/payflow/payflow/internal/adapters/http"
	"github.com/payflow/payflow/internal/adapters/http/middleware"
	"github.com/payflow/payflow/internal/application/ledger"
	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/application/usecases/funding"
	"github.com/payflow/payflow/internal/application/usecases/partner"
	"github.com/payflow/payflow/internal/application/usecases/payout"
	"github.com/payflow/payflow/internal/application/usecases/transactionops"
	"github.com/payflow/payflow/internal/application/usecases/wallet"
	"github.com/payflow/payflow/internal/application/usecases/webhook"
	"github.com/payflow/payflow/internal/config"
	domainEvents "github.com/payflow/payflow/internal/domain/events"
	"github.com/payflow/payflow/internal/infrastructure/events"
	"github.com/payflow/payflow/internal/infrastructure/gateway"
	"github.com/payflow/payflow/internal/infrastructure/persistence/postgres"
)

// Container holds every wired component plus the handles that need closing.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Pool  *pgxpool.Pool
	Repos ports.Repositories

	Engine       *ledger.Engine
	Orchestrator *transactionops.PostTransactionUseCase
	Wallets      *wallet.Service
	Funding      *funding.Manager
	Payouts      *payout.Service
	Partners     *partner.Service
	Webhooks     *webhook.Processor
	Notifier     *webhook.Notifier

	Gateways *gateway.Registry
	Bus      ports.EventPublisher

	Server *httpadapter.Server

	natsBus     *events.NATSBus
	redisClient *redis.Client
	sweepCancel context.CancelFunc
}

// New builds the full object graph. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	pool, err := postgres.NewConnectionPool(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConnections,
		MinConns:        cfg.Database.MinConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		ConnectTimeout:  5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	c.Pool = pool

	c.Repos = ports.Repositories{
		Partners:            postgres.NewPartnerRepository(pool),
		APIKeys:             postgres.NewAPIKeyRepository(pool),
		Wallets:             postgres.NewWalletRepository(pool),
		Transactions:        postgres.NewTransactionRepository(pool),
		Ledger:              postgres.NewLedgerRepository(pool),
		GatewayTransactions: postgres.NewGatewayTransactionRepository(pool),
		FundingSessions:     postgres.NewFundingSessionRepository(pool),
	}
	uow := postgres.NewUnitOfWork(pool)

	// Event bus: NATS when configured, otherwise in-process.
	var bus interface {
		ports.EventPublisher
		ports.EventSubscriber
	}
	if cfg.NATS.Enabled {
		natsBus, err := events.NewNATSBus(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("event bus connection failed: %w", err)
		}
		c.natsBus = natsBus
		bus = natsBus
	} else {
		bus = events.NewMemoryBus(logger)
	}
	c.Bus = bus

	// Gateways.
	c.Gateways = gateway.NewRegistry(cfg.Gateway.Default)
	if cfg.Gateway.Mock.Enabled {
		c.Gateways.Register(gateway.NewMock(cfg.Gateway.Mock.WebhookSecret))
	}
	if cfg.Gateway.Stripe.Enabled {
		c.Gateways.Register(gateway.NewStripe(gateway.StripeOptions{
			APIKey:        cfg.Gateway.Stripe.APIKey,
			WebhookSecret: cfg.Gateway.Stripe.WebhookSecret,
			BaseURL:       cfg.Gateway.Stripe.BaseURL,
			Timeout:       cfg.Gateway.Stripe.Timeout,
		}))
	}

	// Application services.
	c.Engine = ledger.NewEngine(c.Repos.Wallets, c.Repos.Ledger)
	c.Orchestrator = transactionops.NewPostTransactionUseCase(
		c.Repos.Partners, c.Repos.Wallets, c.Repos.Transactions, c.Engine, uow, bus, logger)
	c.Wallets = wallet.NewService(c.Repos.Wallets, c.Repos.Transactions, c.Engine)
	c.Funding = funding.NewManager(
		c.Repos.FundingSessions, c.Repos.Wallets, c.Gateways, c.Orchestrator, bus, logger)
	c.Payouts = payout.NewService(c.Orchestrator, c.Repos.Transactions, c.Gateways, bus, logger)
	c.Partners = partner.NewService(c.Repos.Partners, c.Repos.APIKeys, uow, logger)
	c.Webhooks = webhook.NewProcessor(
		c.Gateways, c.Repos.GatewayTransactions, c.Repos.Transactions, c.Funding, uow, bus, logger)

	// Outbound partner notifications ride the same bus the services publish
	// to, so they work identically in-process and over NATS.
	c.Notifier = webhook.NewNotifier(
		c.Repos.Partners,
		&http.Client{Timeout: cfg.Webhooks.Timeout},
		cfg.Webhooks.SigningSecret,
		logger,
	)
	for _, eventType := range []string{
		domainEvents.EventTypeTransactionCompleted,
		domainEvents.EventTypeTransactionFailed,
		domainEvents.EventTypeFundingSessionComplete,
		domainEvents.EventTypeFundingSessionFailed,
		domainEvents.EventTypePayoutInitiated,
	} {
		if err := bus.Subscribe(eventType, c.Notifier.Handle); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to subscribe notifier to %s: %w", eventType, err)
		}
	}

	// Rate limit store: Redis when configured, else per-instance memory.
	var limitStore middleware.CounterStore
	if cfg.RateLimit.Enabled {
		if cfg.Redis.Enabled {
			c.redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			limitStore = middleware.NewRedisCounterStore(c.redisClient)
		} else {
			limitStore = middleware.NewMemoryCounterStore()
		}
	}

	router := httpadapter.NewRouter(httpadapter.RouterConfig{
		Logger:           logger,
		Pool:             pool,
		Version:          cfg.App.Version,
		Environment:      cfg.App.Environment,
		AdminToken:       cfg.Admin.Token,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitStore:   limitStore,
		RateLimit:        cfg.RateLimit.RequestsPerWindow,
		RateLimitWindow:  cfg.RateLimit.Window,
		Repos:            c.Repos,
		Wallets:          c.Wallets,
		Orchestrator:     c.Orchestrator,
		Funding:          c.Funding,
		Payouts:          c.Payouts,
		Partners:         c.Partners,
		Webhooks:         c.Webhooks,
	})
	c.Server = httpadapter.NewServer(router, httpadapter.ServerOptions{
		Address:         cfg.Server.Address(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	return c, nil
}

// StartFundingSweep runs the periodic expiry of stale funding sessions until
// Close is called.
func (c *Container) StartFundingSweep() {
	interval := c.Config.Funding.SweepInterval
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.sweepCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := c.Funding.ExpireStale(ctx)
				if err != nil {
					c.Logger.Warn("funding session sweep failed", "error", err)
					continue
				}
				if n > 0 {
					c.Logger.Info("expired stale funding sessions", "count", n)
				}
			}
		}
	}()
}

// Close releases every external handle.
func (c *Container) Close() {
	if c.sweepCancel != nil {
		c.sweepCancel()
	}
	if c.natsBus != nil {
		c.natsBus.Close()
	}
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
