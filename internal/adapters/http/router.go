// Package http wires middleware and handlers into the service's route table.
package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payflow/payflow/internal/adapters/http/common"
	"github.com/payflow/payflow/internal/adapters/http/handlers"
	"github.com/payflow/payflow/internal/adapters/http/middleware"
	"github.com/payflow/payflow/internal/application/ports"
	"github.com/payflow/payflow/internal/application/usecases/funding"
	"github.com/payflow/payflow/internal/application/usecases/partner"
	"github.com/payflow/payflow/internal/application/usecases/payout"
	"github.com/payflow/payflow/internal/application/usecases/transactionops"
	"github.com/payflow/payflow/internal/application/usecases/wallet"
	"github.com/payflow/payflow/internal/application/usecases/webhook"
	"github.com/payflow/payflow/internal/domain/entities"
)

// RouterConfig carries everything the route table needs.
type RouterConfig struct {
	Logger         *slog.Logger
	Pool           *pgxpool.Pool // nil when running without a database
	Version        string
	Environment    string
	AllowedOrigins []string

	AdminToken string

	RateLimitEnabled bool
	RateLimitStore   middleware.CounterStore
	RateLimit        int
	RateLimitWindow  time.Duration

	Repos ports.Repositories

	Wallets      *wallet.Service
	Orchestrator *transactionops.PostTransactionUseCase
	Funding      *funding.Manager
	Payouts      *payout.Service
	Partners     *partner.Service
	Webhooks     *webhook.Processor
}

// NewRouter builds the gin engine with the full route table.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers.SetupValidator()

	router := gin.New()
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.Logging(cfg.Logger, "/health", "/live", "/ready", "/metrics"))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version)
	healthHandler.RegisterRoutes(router)

	walletHandler := handlers.NewWalletHandler(cfg.Wallets, cfg.Orchestrator)
	txHandler := handlers.NewTransactionHandler(cfg.Wallets, cfg.Orchestrator)
	fundingHandler := handlers.NewFundingHandler(cfg.Funding)
	payoutHandler := handlers.NewPayoutHandler(cfg.Payouts)
	webhookHandler := handlers.NewWebhookHandler(cfg.Webhooks)
	adminHandler := handlers.NewAdminHandler(cfg.Partners)

	// Inbound processor webhooks: no partner auth, the HMAC signature is
	// the credential.
	router.POST("/api/v1/webhooks/:gateway", webhookHandler.Receive)

	// Public payment-page data: the session id is the capability.
	router.GET("/api/public/funding/sessions/:id", fundingHandler.GetPublic)

	// Partner API.
	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(cfg.Repos.APIKeys, cfg.Repos.Partners, cfg.Logger))
	if cfg.RateLimitEnabled && cfg.RateLimitStore != nil {
		v1.Use(middleware.RateLimit(cfg.RateLimitStore, cfg.RateLimit, cfg.RateLimitWindow))
	}
	{
		wallets := v1.Group("/wallets")
		{
			wallets.POST("", middleware.RequirePermission(entities.PermissionWalletsWrite), walletHandler.Create)
			wallets.GET("", middleware.RequirePermission(entities.PermissionWalletsRead), walletHandler.List)
			wallets.GET("/external/:externalId", middleware.RequirePermission(entities.PermissionWalletsRead), walletHandler.GetByExternalID)
			wallets.GET("/:id", middleware.RequirePermission(entities.PermissionWalletsRead), walletHandler.Get)
			wallets.GET("/:id/balance", middleware.RequirePermission(entities.PermissionWalletsRead), walletHandler.Balance)
			wallets.POST("/:id/credit", middleware.RequirePermission(entities.PermissionTransactionsWrite), walletHandler.Credit)
			wallets.POST("/:id/debit", middleware.RequirePermission(entities.PermissionTransactionsWrite), walletHandler.Debit)
			wallets.POST("/:id/fund", middleware.RequirePermission(entities.PermissionWalletsWrite), fundingHandler.Create)
			wallets.GET("/:id/transactions", middleware.RequirePermission(entities.PermissionTransactionsRead), walletHandler.Transactions)
		}

		v1.POST("/transfers", middleware.RequirePermission(entities.PermissionTransactionsWrite), txHandler.Transfer)
		v1.GET("/transactions/:id", middleware.RequirePermission(entities.PermissionTransactionsRead), txHandler.Get)
		v1.GET("/funding/sessions/:id", middleware.RequirePermission(entities.PermissionWalletsRead), fundingHandler.Get)
		v1.POST("/payouts", middleware.RequirePermission(entities.PermissionPayoutsWrite), payoutHandler.Create)
	}

	// Back office.
	admin := router.Group("/api/admin")
	admin.Use(middleware.AdminAuth(cfg.AdminToken))
	{
		admin.POST("/partners", adminHandler.CreatePartner)
		admin.GET("/partners", adminHandler.ListPartners)
		admin.GET("/partners/:id", adminHandler.GetPartner)
		admin.POST("/partners/:id/approve", adminHandler.ApprovePartner)
		admin.POST("/partners/:id/reject", adminHandler.RejectPartner)
		admin.POST("/partners/:id/suspend", adminHandler.SuspendPartner)
		admin.POST("/partners/:id/reactivate", adminHandler.ReactivatePartner)
		admin.PATCH("/partners/:id/webhook", adminHandler.SetWebhookURL)
		admin.POST("/partners/:id/keys", adminHandler.IssueKey)
		admin.GET("/partners/:id/keys", adminHandler.ListKeys)
		admin.DELETE("/partners/:id/keys/:keyId", adminHandler.RevokeKey)
		admin.POST("/partners/:id/keys/:keyId/rotate", adminHandler.RotateKey)
	}

	router.NoRoute(func(c *gin.Context) {
		common.RespondError(c, 404, common.KindNotFound, nil)
	})

	return router
}

