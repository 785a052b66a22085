package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paydibs/internal/bootstrap"
	"paydibs/internal/config"
	cronpkg "paydibs/internal/cron"
	"paydibs/internal/gateway"
	"paydibs/internal/handler"
	"paydibs/internal/mailer"
	"paydibs/internal/reconcile"
	"paydibs/internal/repository"
	"paydibs/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// --- Order Lock (Redis with in-memory fallback) ---
	locker, lockErr := reconcile.NewOrderLocker(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		30*time.Second,
	)
	if lockErr != nil {
		logger.Warn("Redis unavailable for order locking, using in-memory fallback", zap.Error(lockErr))
	}

	// --- Gateway ---
	signer := gateway.NewSigner(cfg.Paydibs.MerchantPassword)
	client := gateway.NewClient(gateway.ClientConfig{
		APIURL:       cfg.Paydibs.APIURL(),
		MerchantID:   cfg.Paydibs.MerchantID,
		PageTimeout:  cfg.Paydibs.PageTimeout,
		QueryTimeout: cfg.Paydibs.QueryTimeout,
	}, signer, logger)

	// --- Repositories ---
	orders := repository.NewOrderRepository(db)
	quotes := repository.NewQuoteRepository(db)
	invoices := repository.NewInvoiceRepository(db)

	// --- Reconciliation Engine ---
	engine := reconcile.NewEngine(
		orders,
		quotes,
		invoices,
		mailer.NewLogSender(logger),
		locker,
		signer,
		reconcile.Config{
			RestoreCart:      cfg.Paydibs.RestoreCart,
			RequireSignature: cfg.Paydibs.RequireSignature,
		},
		logger,
	)

	// --- Poller ---
	poller := cronpkg.NewPoller(orders, engine, client, cfg.Paydibs.PollWindow, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	callbacks := handler.NewPaymentCallbackHandler(
		engine,
		orders,
		client,
		poller,
		handler.NewCookieSession(),
		cfg.Checkout,
		logger,
	)
	router.Setup(e, callbacks)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(poller, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting Paydibs reconciliation server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
