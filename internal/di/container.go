package di

import (
	"fmt"
	"time"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/gateway"
	"github.com/prohmpiriya/turf-booking/internal/handler"
	"github.com/prohmpiriya/turf-booking/internal/repository"
	"github.com/prohmpiriya/turf-booking/internal/service"
	"github.com/prohmpiriya/turf-booking/internal/worker"
	"github.com/prohmpiriya/turf-booking/pkg/config"
	"github.com/prohmpiriya/turf-booking/pkg/database"
	"github.com/prohmpiriya/turf-booking/pkg/redis"
)

// Container holds all dependencies for the turf booking service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	BookingRepo repository.BookingRepository
	PricingRepo repository.PricingRepository

	// Publishers
	EventPublisher service.EventPublisher
	Gateway        gateway.PaymentGateway

	// Services
	PricingService service.PricingService
	BookingService service.BookingService
	PaymentService service.PaymentService

	// Handlers
	Handlers *handler.Handlers

	// Workers
	HoldReaper        *worker.HoldReaper
	PaymentReconciler *worker.PaymentReconciler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Infra  *Infrastructure
	Config *config.Config
	// Clock overrides time.Now in every service
	Clock func() time.Time
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	app := cfg.Config
	loc, err := app.Booking.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid booking timezone: %w", err)
	}
	window := domain.OperatingWindow{OpenHour: app.Booking.OpenHour, CloseHour: app.Booking.CloseHour}

	c := &Container{
		DB:             cfg.Infra.DB,
		Redis:          cfg.Infra.Redis,
		BookingRepo:    cfg.Infra.BookingRepo,
		PricingRepo:    cfg.Infra.PricingRepo,
		EventPublisher: cfg.Infra.EventPublisher,
		Gateway:        cfg.Infra.Gateway,
	}

	// Initialize services
	c.PricingService = service.NewPricingService(c.PricingRepo, &service.PricingServiceConfig{
		Defaults: domain.PricingConfig{
			WeekdayRate: app.Pricing.WeekdayRate,
			WeekendRate: app.Pricing.WeekendRate,
		},
		Currency: app.Payment.Currency,
		CacheTTL: app.Booking.PricingCacheTTL,
		Window:   window,
		Clock:    cfg.Clock,
	})

	c.BookingService = service.NewBookingService(
		c.BookingRepo,
		c.PricingService,
		c.EventPublisher,
		&service.BookingServiceConfig{
			TurfID:           app.Booking.TurfID,
			Location:         loc,
			Window:           window,
			HoldTTL:          app.Booking.HoldTTL,
			AllowLateConfirm: app.Booking.AllowLateConfirm,
			Currency:         app.Payment.Currency,
			Clock:            cfg.Clock,
		},
	)

	c.PaymentService = service.NewPaymentService(
		c.BookingRepo,
		c.BookingService,
		c.Gateway,
		&service.PaymentServiceConfig{
			KeyID:               app.Payment.KeyID,
			KeySecret:           app.Payment.KeySecret,
			Currency:            app.Payment.Currency,
			StatusFallback:      app.Payment.StatusFallback,
			StripeWebhookSecret: app.Payment.StripeWebhook,
			ReconcileMinAge:     app.Worker.ReconcileMinAge,
			HoldTTL:             app.Booking.HoldTTL,
			Clock:               cfg.Clock,
		},
	)

	// Initialize handlers
	c.Handlers = &handler.Handlers{
		Health:  handler.NewHealthHandler(c.healthChecks()),
		Slot:    handler.NewSlotHandler(c.BookingService, c.PricingService),
		Booking: handler.NewBookingHandler(c.BookingService, c.PaymentService),
		Webhook: handler.NewWebhookHandler(c.PaymentService),
		Admin:   handler.NewAdminHandler(c.BookingService, c.PricingService, c.PaymentService, app.Admin.Secret),
	}

	// Initialize workers
	c.HoldReaper = worker.NewHoldReaper(c.BookingService, &worker.HoldReaperConfig{
		ScanInterval: app.Worker.ReaperInterval,
		BatchSize:    app.Worker.ReaperBatchSize,
	})
	c.PaymentReconciler = worker.NewPaymentReconciler(c.PaymentService, &worker.PaymentReconcilerConfig{
		ScanInterval: app.Worker.ReconcileInterval,
		BatchSize:    app.Worker.ReconcileBatchSize,
	})

	return c, nil
}

// healthChecks lists readiness dependencies. Typed nil pointers are kept
// out of the map so they report as not configured.
func (c *Container) healthChecks() map[string]handler.HealthChecker {
	checks := map[string]handler.HealthChecker{
		"postgres": nil,
		"redis":    nil,
	}
	if c.DB != nil {
		checks["postgres"] = c.DB
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	return checks
}

// RouterConfig returns router settings derived from the application config
func (c *Container) RouterConfig(app *config.Config) *handler.RouterConfig {
	rc := &handler.RouterConfig{
		ServiceName:    app.OTel.ServiceName,
		AdminSecret:    app.Admin.Secret,
		RequestTimeout: app.Server.RequestTimeout,
		Tracing:        app.OTel.Enabled,
	}
	if c.Redis != nil && app.Server.Idempotency {
		rc.Idempotency = c.Redis
	}
	return rc
}
