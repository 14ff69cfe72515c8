package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/internal/service"
	"github.com/prohmpiriya/turf-booking/pkg/response"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

// BookingHandler handles customer booking requests.
// Reserve places a pending hold; payment confirmation goes through the
// payment service so a booking is never confirmed without verification.
type BookingHandler struct {
	bookingService service.BookingService
	paymentService service.PaymentService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService service.BookingService, paymentService service.PaymentService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		paymentService: paymentService,
	}
}

// Reserve handles POST /bookings
func (h *BookingHandler) Reserve(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.reserve")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		bindError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("date", req.Date),
		attribute.StringSlice("slot_ids", req.SlotIDs),
	)

	result, err := h.bookingService.Reserve(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("booking_id", result.BookingID),
		attribute.String("reference", result.Reference),
	)
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// GetBooking handles GET /bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	span.SetAttributes(attribute.String("booking_id", bookingID))

	result, err := h.bookingService.GetBooking(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// ListByPhone handles GET /bookings?phone=...
// Customers may only list their own bookings, so phone is required here.
func (h *BookingHandler) ListByPhone(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	phone := c.Query("phone")
	if phone == "" {
		handleError(c, domain.NewValidationError("phone", "is required"))
		return
	}

	result, err := h.bookingService.ListBookings(ctx, &dto.BookingListQuery{Phone: phone})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	public := make([]*dto.PublicBookingResponse, 0, len(result))
	for _, b := range result {
		public = append(public, b.Public())
	}

	span.SetAttributes(attribute.Int("count", len(public)))
	span.SetStatus(codes.Ok, "")
	response.SuccessWithMeta(c, public, gin.H{"count": len(public)})
}

// CreateOrder handles POST /bookings/:id/order
func (h *BookingHandler) CreateOrder(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.create_order")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	span.SetAttributes(attribute.String("booking_id", bookingID))

	result, err := h.paymentService.CreateOrder(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("order_id", result.OrderID),
		attribute.String("gateway", result.Gateway),
	)
	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// ConfirmPayment handles POST /bookings/:id/confirm with the gateway
// callback fields relayed by the client
func (h *BookingHandler) ConfirmPayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.confirm")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	span.SetAttributes(attribute.String("booking_id", bookingID))

	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		bindError(c, err)
		return
	}

	result, err := h.paymentService.ConfirmPayment(ctx, bookingID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("status", result.Status))
	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}
