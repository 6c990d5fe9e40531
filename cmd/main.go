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

	"topupstore/internal/bootstrap"
	"topupstore/internal/config"
	"topupstore/internal/gateway"
	"topupstore/internal/middleware"
	"topupstore/internal/orderflow"
	"topupstore/internal/pkg/telegram"
	"topupstore/internal/provider"
	"topupstore/internal/repository"
	"topupstore/internal/router"
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

	loc, err := cfg.App.Location()
	if err != nil {
		logger.Fatal("Failed to load business timezone", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// --- Notification deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := middleware.NewNotificationDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		10*time.Minute,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for notification dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Adapters ---
	gw := gateway.NewMidtransGateway(
		gateway.Credentials{
			ServerKey: cfg.Midtrans.ServerKeyFor(),
			ClientKey: cfg.Midtrans.ClientKeyFor(),
			Sandbox:   cfg.Midtrans.Sandbox,
		},
		loc,
		cfg.App.HTTPTimeout,
		logger,
	)
	prov := provider.NewMedanpediaProvider(
		cfg.Medanpedia.APIID,
		cfg.Medanpedia.APIKey,
		cfg.App.HTTPTimeout,
		logger,
	)
	notifier := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ReportChannel)

	// --- Order flow service ---
	svc := orderflow.New(
		repository.NewOrderRepository(db),
		repository.NewPaymentRepository(db),
		gw,
		prov,
		notifier,
		loc,
		cfg.Midtrans.Sandbox,
		logger,
	)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, svc, cfg.App.BaseURL, deduper, logger)

	// --- Start server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting storefront server", zap.String("addr", addr), zap.Bool("sandbox", cfg.Midtrans.Sandbox))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
