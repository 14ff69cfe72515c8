package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/middleware"
	"github.com/prohmpiriya/turf-booking/pkg/response"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

// Handlers groups every HTTP handler the API exposes
type Handlers struct {
	Health  *HealthHandler
	Slot    *SlotHandler
	Booking *BookingHandler
	Webhook *WebhookHandler
	Admin   *AdminHandler
}

// RouterConfig contains configuration for the HTTP router
type RouterConfig struct {
	ServiceName    string
	AdminSecret    string
	RequestTimeout time.Duration
	// Idempotency enables X-Idempotency-Key replay on writes when set
	Idempotency middleware.RedisClient
	Tracing     bool
	Logger      *logger.Logger
}

// NewRouter builds the gin engine with all routes registered
func NewRouter(h *Handlers, cfg *RouterConfig) *gin.Engine {
	if cfg == nil {
		cfg = &RouterConfig{}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracing {
		router.Use(telemetry.TracingMiddleware(cfg.ServiceName))
	}
	if cfg.Logger != nil {
		router.Use(middleware.RequestLogger(cfg.Logger))
	}

	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)

	api := router.Group("/api/v1")
	if cfg.RequestTimeout > 0 {
		api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	var idempotent gin.HandlerFunc
	if cfg.Idempotency != nil {
		idempotent = middleware.IdempotencyMiddleware(middleware.DefaultIdempotencyConfig(cfg.Idempotency))
	}
	write := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		if idempotent == nil {
			return []gin.HandlerFunc{hf}
		}
		return []gin.HandlerFunc{idempotent, hf}
	}

	api.GET("/slots", h.Slot.GetAvailability)
	api.GET("/pricing", h.Slot.GetPricing)
	api.GET("/pricing/quote", h.Slot.GetQuote)

	bookings := api.Group("/bookings")
	{
		bookings.POST("", write(h.Booking.Reserve)...)
		bookings.GET("", h.Booking.ListByPhone)
		bookings.GET("/:id", h.Booking.GetBooking)
		bookings.POST("/:id/order", write(h.Booking.CreateOrder)...)
		bookings.POST("/:id/confirm", write(h.Booking.ConfirmPayment)...)
	}

	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/payment", h.Webhook.HandlePaymentCallback)
		webhooks.POST("/stripe", h.Webhook.HandleStripeWebhook)
	}

	api.POST("/admin/login", h.Admin.Login)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg.AdminSecret))
	{
		admin.POST("/slots/lock", h.Admin.LockSlot)
		admin.POST("/slots/unlock", h.Admin.UnlockSlot)
		admin.GET("/slots/state", h.Admin.SlotState)
		admin.PUT("/pricing", h.Admin.UpdatePricing)
		admin.GET("/bookings", h.Admin.ListBookings)
		admin.POST("/bookings/:id/release", h.Admin.ReleaseBooking)
		admin.POST("/bookings/:id/reconcile", h.Admin.ReconcileBooking)
	}

	router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})

	return router
}
