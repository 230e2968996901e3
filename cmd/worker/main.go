package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/motoservis-erp/motoservis-erp/internal/app"
	"github.com/motoservis-erp/motoservis-erp/internal/invoicing"
	"github.com/motoservis-erp/motoservis-erp/internal/payments"
	"github.com/motoservis-erp/motoservis-erp/internal/platform/db"
	"github.com/motoservis-erp/motoservis-erp/internal/recompute"
	"github.com/motoservis-erp/motoservis-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	invoiceRepo := invoicing.NewRepository(pool, nil)
	paymentRepo := payments.NewRepository(pool)
	paymentService := payments.NewService(logger, paymentRepo)
	recomputeService := recompute.NewService(logger, invoiceRepo, paymentService)

	overdueJob := jobs.NewOverdueRefreshJob(pool, logger)
	recomputeJob := jobs.NewLedgerRecomputeJob(recomputeService, logger)

	overdueTask, err := jobs.NewOverdueRefreshTask(jobs.OverdueRefreshPayload{})
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	recomputeTask, err := jobs.NewLedgerRecomputeTask(jobs.LedgerRecomputePayload{})
	if err != nil {
		logger.Error("build recompute task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverdueRefresh, Handler: overdueJob.Handle},
			{Type: jobs.TaskLedgerRecompute, Handler: recomputeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "10 0 * * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * 0", Task: recomputeTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
