package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/mriview/dicom-api/internal/config"
	"github.com/mriview/dicom-api/internal/handler"
	auditHandler "github.com/mriview/dicom-api/internal/handler/audit"
	imagingHandler "github.com/mriview/dicom-api/internal/handler/imaging"
	interpretHandler "github.com/mriview/dicom-api/internal/handler/interpret"
	"github.com/mriview/dicom-api/internal/middleware"
	"github.com/mriview/dicom-api/internal/repository"
	"github.com/mriview/dicom-api/internal/repository/memory"
	"github.com/mriview/dicom-api/internal/repository/postgres"
	"github.com/mriview/dicom-api/internal/router"
	auditService "github.com/mriview/dicom-api/internal/service/audit"
	imagingService "github.com/mriview/dicom-api/internal/service/imaging"
	interpretService "github.com/mriview/dicom-api/internal/service/interpret"
	"github.com/mriview/dicom-api/internal/storage"
	"github.com/mriview/dicom-api/pkg/logger"
	"github.com/mriview/dicom-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Durable blob store for uploaded files
	store, err := storage.NewDiskStore(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create upload directory")
	}

	// Access log database is optional; without it auditing stays log-only
	var auditRepo repository.AuditRepository
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		auditRepo = postgres.NewAccessLogRepository(db)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	// Services
	auditor := auditService.NewService(auditRepo, logger.NewLogger(nil))
	index := memory.NewIndex()
	imagingSvc := imagingService.NewService(index, store, auditor, m)
	interpretSvc := interpretService.NewService(cfg.Interpret, imagingSvc, m)

	// Handlers
	h := handler.NewHandler(nil)
	handlers := []router.Handler{
		imagingHandler.NewHandler(imagingSvc),
		interpretHandler.NewHandler(interpretSvc),
	}
	if auditRepo != nil {
		handlers = append(handlers, auditHandler.NewHandler(auditor))
	}

	r := router.NewRouter(h, router.Config{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitRPS:     cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:   cfg.RateLimit.Burst,
		CORSConfig:       middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
		MaxUploadBytes:   cfg.Server.MaxUploadBytes,
		MetricsPrefix:    cfg.Metrics.Namespace + "_http",
	}, handlers...)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
