package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeGateway implements PaymentGateway with Stripe PaymentIntents. The
// intent id doubles as order id and payment id.
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for Stripe gateway
type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripeGateway{config: config}, nil
}

// CreateOrder creates a PaymentIntent and returns its client secret
func (g *StripeGateway) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount, req.Currency)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: make(map[string]string),
	}
	params.Context = ctx
	params.Metadata["receipt"] = req.Receipt
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.Receipt != "" {
		params.Description = stripe.String(req.Receipt)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, unavailable("create payment intent", err)
	}

	return &Order{
		OrderID:      pi.ID,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Receipt:      req.Receipt,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// FetchPayment retrieves a PaymentIntent
func (g *StripeGateway) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: empty payment id", ErrPaymentNotFound)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(paymentID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return nil, unavailable("get payment intent", err)
	}
	return paymentFromIntent(pi), nil
}

// FetchOrderPayment is FetchPayment: the order is the intent
func (g *StripeGateway) FetchOrderPayment(ctx context.Context, orderID string) (*Payment, error) {
	return g.FetchPayment(ctx, orderID)
}

// WebhookSecret returns the endpoint secret for signed events
func (g *StripeGateway) WebhookSecret() string {
	return g.config.WebhookSecret
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

func paymentFromIntent(pi *stripe.PaymentIntent) *Payment {
	return &Payment{
		ID:       pi.ID,
		OrderID:  pi.ID,
		Status:   intentStatus(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
	}
}

// PaymentFromIntent converts a PaymentIntent delivered by a webhook
func PaymentFromIntent(pi *stripe.PaymentIntent) *Payment {
	return paymentFromIntent(pi)
}

func intentStatus(s stripe.PaymentIntentStatus) PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCaptured
	case stripe.PaymentIntentStatusRequiresCapture:
		return StatusAuthorized
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusCreated
	}
}
