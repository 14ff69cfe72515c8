package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/internal/service"
	"github.com/prohmpiriya/turf-booking/pkg/middleware"
	"github.com/prohmpiriya/turf-booking/pkg/response"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

// AdminHandler handles operator requests. Every route except Login sits
// behind middleware.AdminAuth.
type AdminHandler struct {
	bookingService service.BookingService
	pricingService service.PricingService
	paymentService service.PaymentService
	adminSecret    string
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	bookingService service.BookingService,
	pricingService service.PricingService,
	paymentService service.PaymentService,
	adminSecret string,
) *AdminHandler {
	return &AdminHandler{
		bookingService: bookingService,
		pricingService: pricingService,
		paymentService: paymentService,
		adminSecret:    adminSecret,
	}
}

// Login handles POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if !middleware.CheckAdminSecret(req.Secret, h.adminSecret) {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	response.Success(c, dto.AdminLoginResponse{Authenticated: true})
}

// LockSlot handles POST /admin/slots/lock
func (h *AdminHandler) LockSlot(c *gin.Context) {
	h.slotAction(c, "handler.admin.lock_slot", h.bookingService.LockSlot)
}

// UnlockSlot handles POST /admin/slots/unlock
func (h *AdminHandler) UnlockSlot(c *gin.Context) {
	h.slotAction(c, "handler.admin.unlock_slot", h.bookingService.UnlockSlot)
}

type slotActionFunc func(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error)

func (h *AdminHandler) slotAction(c *gin.Context, spanName string, action slotActionFunc) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), spanName)
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.SlotActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		bindError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("date", req.Date),
		attribute.String("slot_id", req.SlotID),
	)

	result, err := action(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// SlotState handles GET /admin/slots/state?date=YYYY-MM-DD
func (h *AdminHandler) SlotState(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.slot_state")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	result, err := h.bookingService.SlotState(ctx, c.Query("date"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// UpdatePricing handles PUT /admin/pricing
func (h *AdminHandler) UpdatePricing(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.update_pricing")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.UpdatePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		bindError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int64("weekday_rate", req.WeekdayRate),
		attribute.Int64("weekend_rate", req.WeekendRate),
	)

	result, err := h.pricingService.UpdatePricing(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// ListBookings handles GET /admin/bookings?date=&phone=&status=&limit=
func (h *AdminHandler) ListBookings(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.list_bookings")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var q dto.BookingListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.bookingService.ListBookings(ctx, &q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(result)))
	span.SetStatus(codes.Ok, "")
	response.SuccessWithMeta(c, result, gin.H{"count": len(result)})
}

// ReleaseBooking handles POST /admin/bookings/:id/release
func (h *AdminHandler) ReleaseBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.release")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	span.SetAttributes(attribute.String("booking_id", bookingID))

	result, err := h.bookingService.Release(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// ReconcileBooking handles POST /admin/bookings/:id/reconcile
func (h *AdminHandler) ReconcileBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.admin.reconcile")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	span.SetAttributes(attribute.String("booking_id", bookingID))

	result, err := h.paymentService.Reconcile(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("outcome", result.Outcome))
	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}
