package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stitchline-erp/stitchline-erp/internal/app"
	"github.com/stitchline-erp/stitchline-erp/internal/approvals"
	jobmetrics "github.com/stitchline-erp/stitchline-erp/internal/jobs"
	"github.com/stitchline-erp/stitchline-erp/internal/manufacturing"
	"github.com/stitchline-erp/stitchline-erp/internal/platform/db"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
	"github.com/stitchline-erp/stitchline-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	manufacturingRepo := manufacturing.NewRepository(pool)
	manufacturingService := manufacturing.NewService(manufacturingRepo, auditLogger, logger)

	approvalRepo := approvals.NewRepository(pool)
	approvalService := approvals.NewService(approvalRepo, logger)

	jobMetrics := jobmetrics.NewMetrics(nil)
	reconciler := jobs.NewReconciler(manufacturingService, approvalService, logger, jobMetrics)
	overdueScanner := jobs.NewOverdueScanner(manufacturingService, logger, jobMetrics)
	idempotencyCleaner := jobs.NewIdempotencyCleaner(idempotencyStore, logger, jobMetrics)

	overdueTask, err := jobs.NewOverdueScanTask(time.Time{})
	if err != nil {
		logger.Error("build overdue scan task", slog.Any("error", err))
		os.Exit(1)
	}

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(time.Time{})
	if err != nil {
		logger.Error("build idempotency cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskProductionReconcile, Handler: reconciler.Handle},
			{Type: jobs.TaskOverdueScan, Handler: overdueScanner.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: idempotencyCleaner.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
