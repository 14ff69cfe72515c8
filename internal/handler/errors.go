package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/response"
)

const supportMessage = "Payment could not be verified. Please contact support with your booking reference."

// handleError maps service errors to HTTP responses
func handleError(c *gin.Context, err error) {
	reference := domain.ReferenceOf(err)

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", ve.Error(), gin.H{
			"field":  ve.Field,
			"reason": ve.Reason,
		})
	case domain.IsConflictError(err):
		slots, _ := domain.ConflictingSlots(err)
		response.Error(c, http.StatusConflict, "SLOT_CONFLICT", "One or more selected slots are no longer available", gin.H{
			"slot_ids": slots,
		})
	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		response.Error(c, http.StatusPaymentRequired, "PAYMENT_VERIFICATION_FAILED", supportMessage, gin.H{
			"reference": reference,
		})
	case errors.Is(err, context.DeadlineExceeded):
		response.RetryableError(c, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out, please retry")
	case errors.Is(err, domain.ErrStorageUnavailable):
		logger.Get().Error(fmt.Sprintf("storage unavailable: %v", err))
		response.RetryableError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Booking storage is temporarily unavailable, please retry")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		logger.Get().Error(fmt.Sprintf("payment gateway unavailable: %v", err))
		response.RetryableError(c, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "Payment provider is temporarily unavailable, please retry")
	case errors.Is(err, domain.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	case domain.IsNotFoundError(err):
		response.NotFound(c, "Booking not found")
	case errors.Is(err, domain.ErrHoldExpired):
		response.Error(c, http.StatusConflict, "HOLD_EXPIRED", "The slot hold expired before payment completed", gin.H{
			"reference": reference,
		})
	case domain.IsTransitionError(err):
		response.Error(c, http.StatusConflict, "INVALID_TRANSITION", err.Error(), gin.H{
			"reference": reference,
		})
	case errors.Is(err, context.Canceled):
		response.Error(c, 499, "CANCELED", "Request canceled", nil)
	default:
		logger.Get().Error(fmt.Sprintf("unhandled error: %v", err))
		response.InternalError(c)
	}
}

// bindError reports a malformed request body
func bindError(c *gin.Context, err error) {
	response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", gin.H{
		"reason": err.Error(),
	})
}
