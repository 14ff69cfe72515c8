package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prohmpiriya/turf-booking/internal/di"
	"github.com/prohmpiriya/turf-booking/internal/metrics"
	"github.com/prohmpiriya/turf-booking/pkg/config"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

// turf-worker runs the hold reaper and payment reconciler without the
// HTTP API, for deployments that scale the two separately.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: "turf-worker",
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Turf Booking workers...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTel.Enabled {
		if _, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.OTel.ServiceName + "-worker",
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			CollectorAddr:  cfg.OTel.CollectorAddr,
			SampleRatio:    cfg.OTel.SampleRatio,
		}); err != nil {
			appLog.Warn(fmt.Sprintf("Failed to initialize telemetry: %v", err))
		}
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to register metrics: %v", err))
	}

	if cfg.Storage.Driver == "memory" {
		appLog.Fatal("turf-worker cannot share in-memory storage with the API; use postgres or redis")
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

	if err := container.HoldReaper.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start hold reaper: %v", err))
	}
	if err := container.PaymentReconciler.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start payment reconciler: %v", err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down workers...")

	container.HoldReaper.Stop()
	container.PaymentReconciler.Stop()
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry shutdown: %v", err))
	}

	appLog.Info("Workers exited gracefully")
}
