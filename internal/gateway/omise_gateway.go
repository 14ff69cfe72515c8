package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

// OmiseGateway implements PaymentGateway with Omise PromptPay charges. The
// charge id is both the order id and the payment id.
type OmiseGateway struct {
	client *omise.Client
}

// OmiseGatewayConfig holds Omise credentials
type OmiseGatewayConfig struct {
	PublicKey string
	SecretKey string
}

// NewOmiseGateway creates a new Omise gateway
func NewOmiseGateway(config *OmiseGatewayConfig) (*OmiseGateway, error) {
	if config == nil || config.SecretKey == "" {
		return nil, fmt.Errorf("omise secret key is required")
	}
	c, err := omise.NewClient(config.PublicKey, config.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create omise client: %w", err)
	}
	c.SetDebug(false)
	return &OmiseGateway{client: c}, nil
}

// do runs an omise call, giving up when ctx ends first. The client has no
// context support of its own.
func (g *OmiseGateway) do(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- call() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// CreateOrder creates a PromptPay source and a charge against it
func (g *OmiseGateway) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}
	amount := MinorUnits(req.Amount, req.Currency)
	currency := strings.ToLower(req.Currency)

	src := &omise.Source{}
	if err := g.do(ctx, func() error {
		return g.client.Do(src, &operations.CreateSource{
			Type:     "promptpay",
			Amount:   amount,
			Currency: currency,
		})
	}); err != nil {
		return nil, unavailable("create source", err)
	}

	metadata := map[string]any{"receipt": req.Receipt}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	ch := &omise.Charge{}
	if err := g.do(ctx, func() error {
		return g.client.Do(ch, &operations.CreateCharge{
			Amount:      amount,
			Currency:    currency,
			Source:      src.ID,
			Description: req.Receipt,
			Metadata:    metadata,
		})
	}); err != nil {
		return nil, unavailable("create charge", err)
	}

	return &Order{
		OrderID:     ch.ID,
		Amount:      ch.Amount,
		Currency:    ch.Currency,
		Receipt:     req.Receipt,
		CheckoutURL: ch.AuthorizeURI,
	}, nil
}

// FetchPayment retrieves a charge
func (g *OmiseGateway) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: empty payment id", ErrPaymentNotFound)
	}

	ch := &omise.Charge{}
	if err := g.do(ctx, func() error {
		return g.client.Do(ch, &operations.RetrieveCharge{ChargeID: paymentID})
	}); err != nil {
		var oe *omise.Error
		if errors.As(err, &oe) && oe.Code == "not_found" {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return nil, unavailable("retrieve charge", err)
	}

	return &Payment{
		ID:       ch.ID,
		OrderID:  ch.ID,
		Status:   chargeStatus(ch),
		Amount:   ch.Amount,
		Currency: ch.Currency,
	}, nil
}

// FetchOrderPayment is FetchPayment: the order is the charge
func (g *OmiseGateway) FetchOrderPayment(ctx context.Context, orderID string) (*Payment, error) {
	return g.FetchPayment(ctx, orderID)
}

// Name returns the gateway name
func (g *OmiseGateway) Name() string {
	return "omise"
}

// chargeStatus maps pending / successful / failed / reversed / expired
func chargeStatus(ch *omise.Charge) PaymentStatus {
	switch string(ch.Status) {
	case "successful":
		if ch.Refunded > 0 && ch.Refunded >= ch.Amount {
			return StatusRefunded
		}
		return StatusCaptured
	case "failed", "reversed", "expired":
		return StatusFailed
	}
	if ch.Authorized && !ch.Paid {
		return StatusAuthorized
	}
	return StatusCreated
}
