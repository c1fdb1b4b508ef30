package handler

import (
	"affiliate-ledger/internal/adapter/http/middleware"
	redisStore "affiliate-ledger/internal/adapter/storage/redis"
	"affiliate-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	CommissionSvc  ports.CommissionService
	PayoutSvc      ports.PayoutService
	ReconSvc       ports.ReconciliationService
	TxRepo         ports.TransactionRepository
	EndpointRepo   ports.WebhookEndpointRepository
	EncSvc         ports.EncryptionService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	v1 := r.Group("/api/v1")

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.ReconSvc, deps.TxRepo)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", rl("wallet_read"), walletHandler.GetBalance)
		wallet.GET("/transactions", rl("wallet_read"), walletHandler.ListTransactions)
		wallet.GET("/statement", rl("wallet_read"), walletHandler.Statement)
		wallet.GET("/fees/summary", rl("wallet_read"), walletHandler.FeeSummary)
		wallet.GET("/fees/pending", rl("wallet_read"), walletHandler.PendingFees)
		wallet.POST("/deposit", rl("wallet_mutate"), walletHandler.Deposit)
		wallet.POST("/fees/:id/waive", rl("wallet_mutate"), walletHandler.WaiveFee)
		wallet.POST("/reconcile", rl("reconciliation"), walletHandler.Reconcile)
	}

	commissionHandler := NewCommissionHandler(deps.CommissionSvc)
	commissions := v1.Group("/commissions", jwtAuth)
	{
		commissions.POST("", rl("commissions"), commissionHandler.Create)
		commissions.GET("/:id", rl("commissions"), commissionHandler.Get)
		commissions.POST("/:id/approve", rl("commissions"), commissionHandler.Approve)
		commissions.POST("/:id/cancel", rl("commissions"), commissionHandler.Cancel)
	}

	payoutHandler := NewPayoutHandler(deps.PayoutSvc)
	payouts := v1.Group("/payouts", jwtAuth)
	{
		payouts.POST("", rl("payouts"), payoutHandler.Create)
		payouts.GET("/:id", rl("payouts"), payoutHandler.Get)
		payouts.POST("/:id/process", rl("payouts"), payoutHandler.Process)
	}

	webhookHandler := NewWebhookHandler(deps.EndpointRepo, deps.EncSvc)
	webhooks := v1.Group("/webhooks", jwtAuth)
	{
		webhooks.POST("", rl("webhooks"), webhookHandler.Register)
	}

	return r
}
