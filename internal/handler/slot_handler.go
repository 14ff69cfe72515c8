package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/turf-booking/internal/service"
	"github.com/prohmpiriya/turf-booking/pkg/response"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

// SlotHandler serves the public slot grid and price list
type SlotHandler struct {
	bookingService service.BookingService
	pricingService service.PricingService
}

// NewSlotHandler creates a new slot handler
func NewSlotHandler(bookingService service.BookingService, pricingService service.PricingService) *SlotHandler {
	return &SlotHandler{
		bookingService: bookingService,
		pricingService: pricingService,
	}
}

// GetAvailability handles GET /slots?date=YYYY-MM-DD
func (h *SlotHandler) GetAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.slots.availability")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	date := c.Query("date")
	span.SetAttributes(attribute.String("date", date))

	result, err := h.bookingService.Availability(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("unavailable", len(result.UnavailableSlots)))
	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetPricing handles GET /pricing
func (h *SlotHandler) GetPricing(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.pricing.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	result, err := h.pricingService.GetPricing(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("source", result.Source))
	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetQuote handles GET /pricing/quote?date=YYYY-MM-DD&slot_ids=slot-6,slot-7
func (h *SlotHandler) GetQuote(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.pricing.quote")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	date := c.Query("date")
	slotIDs := splitSlotIDs(c.QueryArray("slot_ids"))
	span.SetAttributes(
		attribute.String("date", date),
		attribute.StringSlice("slot_ids", slotIDs),
	)

	result, err := h.pricingService.Quote(ctx, date, slotIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// splitSlotIDs accepts both repeated and comma separated query values
func splitSlotIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
