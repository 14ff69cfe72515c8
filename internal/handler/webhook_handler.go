package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/internal/service"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/response"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

// StripeSignatureHeader is the header Stripe signs webhook payloads with
const StripeSignatureHeader = "Stripe-Signature"

// maxWebhookBody bounds the payload read from a webhook request
const maxWebhookBody = 64 << 10

// WebhookHandler handles server-to-server payment notifications
type WebhookHandler struct {
	paymentService service.PaymentService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(paymentService service.PaymentService) *WebhookHandler {
	return &WebhookHandler{paymentService: paymentService}
}

// HandlePaymentCallback handles POST /webhooks/payment. The body carries the
// same order id, payment id and signature a client callback does.
func (h *WebhookHandler) HandlePaymentCallback(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.payment")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		bindError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("payment_id", req.PaymentID),
	)

	result, err := h.paymentService.HandleCallback(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// HandleStripeWebhook handles POST /webhooks/stripe.
// Only retryable failures produce a 5xx; anything else is acknowledged so
// Stripe stops redelivering an event that can never apply.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.webhook.stripe")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	log := logger.Get()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Error(fmt.Sprintf("Failed to read webhook body: %v", err))
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body", nil)
		return
	}

	sigHeader := c.GetHeader(StripeSignatureHeader)
	if sigHeader == "" {
		log.Warn("Missing Stripe-Signature header")
		response.Error(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Missing Stripe-Signature header", nil)
		return
	}

	result, err := h.paymentService.HandleStripeEvent(ctx, payload, sigHeader)
	switch {
	case err == nil:
	case domain.IsRetryableError(err):
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	case domain.IsValidationError(err) || errors.Is(err, domain.ErrPaymentVerificationFailed):
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid signature")
		response.Error(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Invalid signature", nil)
		return
	default:
		span.RecordError(err)
		log.Warn(fmt.Sprintf("stripe event not applied: %v", err))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	span.SetAttributes(
		attribute.String("event_type", result.EventType),
		attribute.String("outcome", result.Outcome),
	)
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{
		"received":   true,
		"event_id":   result.EventID,
		"booking_id": result.BookingID,
		"outcome":    result.Outcome,
	})
}
