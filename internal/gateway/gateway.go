package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prohmpiriya/turf-booking/internal/domain"
)

// PaymentStatus is a gateway-neutral payment state
type PaymentStatus string

const (
	StatusCreated    PaymentStatus = "created"
	StatusAuthorized PaymentStatus = "authorized"
	StatusCaptured   PaymentStatus = "captured"
	StatusFailed     PaymentStatus = "failed"
	StatusRefunded   PaymentStatus = "refunded"
)

// ErrPaymentNotFound is returned when the gateway has no such payment or order
var ErrPaymentNotFound = errors.New("payment not found")

// CreateOrderRequest asks the gateway to open an order. Amount is in whole
// currency units; gateways convert to their minor unit.
type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Metadata map[string]string
}

// Order is a gateway order the customer pays against
type Order struct {
	OrderID      string `json:"order_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Receipt      string `json:"receipt"`
	ClientSecret string `json:"client_secret,omitempty"`
	CheckoutURL  string `json:"checkout_url,omitempty"`
}

// Payment is what the gateway reports about a payment attempt
type Payment struct {
	ID       string
	OrderID  string
	Status   PaymentStatus
	Amount   int64
	Currency string
}

// Captured reports whether the money has been taken
func (p *Payment) Captured() bool {
	return p != nil && p.Status == StatusCaptured
}

// PaymentGateway is the payment provider boundary
type PaymentGateway interface {
	// CreateOrder opens an order for the given amount
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error)

	// FetchPayment looks up a payment by its gateway id
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)

	// FetchOrderPayment returns the most relevant payment made against an order
	FetchOrderPayment(ctx context.Context, orderID string) (*Payment, error)

	// Name returns the gateway name
	Name() string
}

// MinorUnits converts whole currency units to the gateway's smallest unit
func MinorUnits(amount int64, currency string) int64 {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "VND":
		return amount
	}
	return amount * 100
}

// MajorUnits reverses MinorUnits
func MajorUnits(amount int64, currency string) int64 {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "VND":
		return amount
	}
	return amount / 100
}

// unavailable wraps a transport or provider failure
func unavailable(op string, err error) error {
	if err == nil || errors.Is(err, ErrPaymentNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrGatewayUnavailable, err)
}

func validateOrder(req *CreateOrderRequest) error {
	if req == nil {
		return fmt.Errorf("create order request is required")
	}
	if req.Amount <= 0 {
		return domain.NewValidationError("amount", "must be positive")
	}
	if req.Currency == "" {
		return domain.NewValidationError("currency", "is required")
	}
	return nil
}
