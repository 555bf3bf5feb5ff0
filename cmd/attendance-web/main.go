package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/attendance-sheet/api/swagger"
	"github.com/noah-isme/attendance-sheet/internal/form"
	"github.com/noah-isme/attendance-sheet/internal/handler"
	internalmiddleware "github.com/noah-isme/attendance-sheet/internal/middleware"
	"github.com/noah-isme/attendance-sheet/internal/repository"
	"github.com/noah-isme/attendance-sheet/internal/service"
	"github.com/noah-isme/attendance-sheet/internal/view"
	"github.com/noah-isme/attendance-sheet/pkg/config"
	"github.com/noah-isme/attendance-sheet/pkg/logger"
	corsmiddleware "github.com/noah-isme/attendance-sheet/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/attendance-sheet/pkg/middleware/requestid"
	"github.com/noah-isme/attendance-sheet/pkg/sheetclient"
)

// @title Attendance Sheet API
// @version 1.0.0
// @description Attendance entries stored in a spreadsheet behind a web app endpoint
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	var metricsSvc *service.MetricsService
	if cfg.Features.Metrics {
		metricsSvc = service.NewMetricsService()
	}

	bindings, closeBindings, err := openBindingStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeBindings()

	base := sheetclient.New("", sheetclient.Options{
		Timeout:  cfg.Remote.Timeout,
		Logger:   logr.Named("sheetclient"),
		Observer: metricsSvc,
	})
	gateways := func(endpoint string) service.SheetGateway {
		return repository.NewSheetRepository(base.WithEndpoint(endpoint))
	}

	validate := form.NewValidator()
	attendanceSvc := service.NewAttendanceService(bindings, gateways, repository.NewEntryStore(), metricsSvc, validate, logr.Named("attendance"))
	if err := attendanceSvc.Start(ctx); err != nil {
		return fmt.Errorf("start attendance service: %w", err)
	}

	var exports handler.Exporter
	if cfg.Features.Exports {
		exports = service.NewExportService(attendanceSvc, logr.Named("export"), nil, nil, nil)
	}

	tmpl, err := view.Templates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.SetHTMLTemplate(tmpl)

	metricsHandler := handler.NewMetricsHandler(metricsSvc, attendanceSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Features.Metrics {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	handler.NewWebHandler(attendanceSvc, exports, validate).Register(r)

	api := r.Group(cfg.APIPrefix)
	api.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	handler.NewEntryHandler(attendanceSvc, exports).Register(api)

	if cfg.Features.Docs || cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
