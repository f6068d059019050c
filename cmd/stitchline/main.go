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

	"github.com/stitchline-erp/stitchline-erp/internal/app"
	"github.com/stitchline-erp/stitchline-erp/internal/approvals"
	"github.com/stitchline-erp/stitchline-erp/internal/manufacturing"
	"github.com/stitchline-erp/stitchline-erp/internal/masterdata/products"
	"github.com/stitchline-erp/stitchline-erp/internal/masterdata/vendors"
	"github.com/stitchline-erp/stitchline-erp/internal/observability"
	"github.com/stitchline-erp/stitchline-erp/internal/platform/cache"
	"github.com/stitchline-erp/stitchline-erp/internal/platform/db"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
	"github.com/stitchline-erp/stitchline-erp/internal/wizard"
	"github.com/stitchline-erp/stitchline-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "stitchline_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	productRepo := products.NewRepository(dbpool)
	productService := products.NewService(productRepo)
	productHandler := products.NewHandler(logger, productService)

	vendorRepo := vendors.NewRepository(dbpool)
	vendorService := vendors.NewService(vendorRepo)
	vendorHandler := vendors.NewHandler(logger, vendorService)

	approvalRepo := approvals.NewRepository(dbpool)
	approvalService := approvals.NewService(approvalRepo, logger)
	approvalHandler := approvals.NewHandler(logger, approvalService)

	manufacturingRepo := manufacturing.NewRepository(dbpool)
	manufacturingService := manufacturing.NewService(manufacturingRepo, auditLogger, logger)
	manufacturingHandler := manufacturing.NewHandler(logger, manufacturingService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	registry := wizard.NewRegistry()
	draftStore := wizard.NewRedisSessionStore(redisClient, registry, cfg.DraftTTL)
	resolver := wizard.NewResolver(approvalService, productService, logger)
	orchestrator := wizard.NewOrchestrator(manufacturingService, approvalService, registry, idempotencyStore, jobClient, metrics, logger)
	wizardHandler := wizard.NewHandler(logger, draftStore, registry, resolver, orchestrator)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		WizardHandler:        wizardHandler,
		ManufacturingHandler: manufacturingHandler,
		ApprovalsHandler:     approvalHandler,
		ProductsHandler:      productHandler,
		VendorsHandler:       vendorHandler,
		Pool:                 dbpool,
		JobHandler:           jobHandler,
		Metrics:              metrics,
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
