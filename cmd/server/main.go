package main

import (
	"context"
	"errors"
	"issue-map/internal/config"
	"issue-map/internal/handler"
	"issue-map/internal/images"
	"issue-map/internal/logging"
	"issue-map/internal/metrics"
	"issue-map/internal/repository"
	"issue-map/internal/service"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(config.EnvLocal, "info").WithError(err).Fatal("failed to load config")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is empty")
	}
	if cfg.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := repository.NewStorage(ctx, cfg.DatabaseURL, cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize storage")
	}

	if err := storage.CreateTables(ctx); err != nil {
		logger.WithError(err).Fatal("failed to create tables")
	}

	store, err := images.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		logger.WithError(err).Fatal("failed to prepare upload directory")
	}

	registry := metrics.New()
	issueService := service.NewIssueService(storage, store, registry, logger)
	h := handler.NewHandler(logger, issueService, cfg.Uploads.MaxBytes)

	router := handler.NewRouter(h, handler.RouterOptions{
		UploadDir:  store.Dir(),
		AuthSecret: cfg.Auth.Secret,
		Metrics:    registry,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server ListenAndServe error")
		}
	}()

	logger.WithField("addr", cfg.HTTP.Addr).Info("server started")

	switch {
	case cfg.Webhook.URL == "":
		logger.Info("WEBHOOK_URL is empty, webhook delivery disabled")
	case storage.Events() == nil:
		logger.Warn("webhook delivery needs REDIS_ADDR, events will not be delivered")
	default:
		worker := service.NewWebhookWorker(storage.Events(), logger, cfg.Webhook.URL, cfg.Webhook.Timeout, registry)
		go worker.Run(ctx)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server forced to shutdown")
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := storage.Close(); err != nil {
		logger.WithError(err).Warn("storage close error")
	} else {
		logger.Info("storage closed")
	}
}
