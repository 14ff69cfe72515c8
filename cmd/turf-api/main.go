package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/turf-booking/internal/di"
	"github.com/prohmpiriya/turf-booking/internal/handler"
	"github.com/prohmpiriya/turf-booking/internal/metrics"
	"github.com/prohmpiriya/turf-booking/pkg/config"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: "turf-api",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Turf Booking API...")

	ctx := context.Background()

	// Initialize telemetry
	if cfg.OTel.Enabled {
		telemetryCfg := &telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.OTel.ServiceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			CollectorAddr:  cfg.OTel.CollectorAddr,
			SampleRatio:    cfg.OTel.SampleRatio,
		}
		if _, err := telemetry.Init(ctx, telemetryCfg); err != nil {
			appLog.Warn(fmt.Sprintf("Failed to initialize telemetry: %v", err))
		} else {
			appLog.Info(fmt.Sprintf("Telemetry exporting to %s", cfg.OTel.CollectorAddr))
		}
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to register metrics: %v", err))
	}

	infra, err := di.NewInfrastructure(ctx, cfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to initialize infrastructure: %v", err))
	}
	defer infra.Close()

	container, err := di.NewContainer(&di.ContainerConfig{Infra: infra, Config: cfg})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to build container: %v", err))
	}

	// The API runs the workers too unless a dedicated worker process is used
	if cfg.Worker.Embedded {
		if err := container.HoldReaper.Start(ctx); err != nil {
			appLog.Error(fmt.Sprintf("Failed to start hold reaper: %v", err))
		}
		defer container.HoldReaper.Stop()
		if err := container.PaymentReconciler.Start(ctx); err != nil {
			appLog.Error(fmt.Sprintf("Failed to start payment reconciler: %v", err))
		}
		defer container.PaymentReconciler.Stop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := container.RouterConfig(cfg)
	routerCfg.Logger = appLog
	router := handler.NewRouter(container.Handlers, routerCfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Turf Booking API listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
