package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"affiliate-ledger/config"
	"affiliate-ledger/internal/adapter/gateway"
	httpHandler "affiliate-ledger/internal/adapter/http/handler"
	pgStorage "affiliate-ledger/internal/adapter/storage/postgres"
	redisStorage "affiliate-ledger/internal/adapter/storage/redis"
	"affiliate-ledger/internal/core/ports"
	"affiliate-ledger/internal/service"
	"affiliate-ledger/pkg/logger"
	"affiliate-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Affiliate Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	commissionRepo := pgStorage.NewCommissionRepo(pool)
	payoutRepo := pgStorage.NewPayoutRepo(pool)
	endpointRepo := pgStorage.NewWebhookEndpointRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	balanceCache := redisStorage.NewBalanceCache(rdb)
	alertDeduper := redisStorage.NewAlertDeduper(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Metrics
	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)

	// Fee schedule
	feeSchedule, err := cfg.FeeSchedule()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse fee schedule")
	}
	feeCalc := service.NewFeeCalculator(feeSchedule)

	// Webhook notifier (async, at-most-once delivery)
	notifier := service.NewChannelWebhookNotifier(
		endpointRepo,
		encSvc,
		sigSvc,
		&http.Client{Timeout: cfg.Webhook.Timeout},
		cfg.Webhook.QueueSize,
		ledgerMetrics,
		log,
	)
	defer notifier.Close()

	// Payout gateway
	transferGateway := gateway.NewStripeGateway(cfg.Gateway, log)

	// Initialize business services
	walletSvc := service.NewWalletService(
		walletRepo,
		txRepo,
		transactor,
		balanceCache,
		alertDeduper,
		notifier,
		ledgerMetrics,
		cfg.Wallet.Currency,
		log,
	)
	commissionSvc := service.NewCommissionService(commissionRepo, walletSvc, walletRepo, txRepo, transactor, feeCalc, log)
	payoutSvc := service.NewPayoutService(payoutRepo, walletSvc, walletRepo, txRepo, transactor, transferGateway, feeCalc, log)
	reconSvc := service.NewReconciliationService(txRepo, walletRepo, ledgerMetrics, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		CommissionSvc:  commissionSvc,
		PayoutSvc:      payoutSvc,
		ReconSvc:       reconSvc,
		TxRepo:         txRepo,
		EndpointRepo:   endpointRepo,
		EncSvc:         encSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
