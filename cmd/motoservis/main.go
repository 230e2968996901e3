package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/motoservis-erp/motoservis-erp/internal/app"
	"github.com/motoservis-erp/motoservis-erp/internal/invoicing"
	"github.com/motoservis-erp/motoservis-erp/internal/numbering"
	"github.com/motoservis-erp/motoservis-erp/internal/observability"
	"github.com/motoservis-erp/motoservis-erp/internal/payments"
	"github.com/motoservis-erp/motoservis-erp/internal/platform/cache"
	"github.com/motoservis-erp/motoservis-erp/internal/platform/db"
	"github.com/motoservis-erp/motoservis-erp/internal/recompute"
	"github.com/motoservis-erp/motoservis-erp/internal/reporting"
	"github.com/motoservis-erp/motoservis-erp/internal/settings"
	"github.com/motoservis-erp/motoservis-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	settingsRepo := settings.NewRepository(pool)
	settingsService := settings.NewService(settingsRepo)
	settingsHandler := settings.NewHandler(logger, settingsService)

	numberingRepo := numbering.NewRepository(pool)
	numberingService := numbering.NewService(pool, numberingRepo, settingsService)
	numberingHandler := numbering.NewHandler(logger, numberingService)

	invoiceRepo := invoicing.NewRepository(pool, numberingService)
	invoiceService := invoicing.NewService(logger, invoiceRepo, settingsService)
	invoiceHandler := invoicing.NewHandler(logger, invoiceService)

	paymentRepo := payments.NewRepository(pool)
	paymentService := payments.NewService(logger, paymentRepo)
	paymentHandler := payments.NewHandler(logger, paymentService)

	reportingRepo := reporting.NewRepository(pool)
	reportingCache := reporting.NewCache(redisClient, cfg.CacheTTL)
	reportingService := reporting.NewService(logger, reportingRepo, reportingCache, settingsService)
	reportingHandler := reporting.NewHandler(logger, reportingService)
	if err := reportingCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	settingsService.Subscribe(func(key string) {
		if err := reportingService.InvalidateCache(context.Background()); err != nil {
			logger.Warn("settings change cache bump", slog.String("key", key), slog.Any("error", err))
		}
	})
	invoiceService.WithNotifier(reportingService)
	paymentService.WithNotifier(reportingService)

	recomputeService := recompute.NewService(logger, invoiceRepo, paymentService)
	recomputeHandler := recompute.NewHandler(logger, recomputeService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SettingsHandler:  settingsHandler,
		InvoicingHandler: invoiceHandler,
		PaymentsHandler:  paymentHandler,
		ReportingHandler: reportingHandler,
		NumberingHandler: numberingHandler,
		RecomputeHandler: recomputeHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
