package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// alphanumericChars for generating provider-like IDs
const alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomAlphanumeric generates a random alphanumeric string of given length
func randomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumericChars[rand.Intn(len(alphanumericChars))]
	}
	return string(b)
}

// MockGateway implements PaymentGateway in memory for development and tests.
// Payments are created by calling Capture or Fail on an order.
type MockGateway struct {
	config   *MockGatewayConfig
	orders   sync.Map // orderID -> *Order
	payments sync.Map // paymentID -> *Payment
	byOrder  sync.Map // orderID -> paymentID
}

// MockGatewayConfig holds configuration for the mock gateway
type MockGatewayConfig struct {
	// DelayMs is the simulated processing delay in milliseconds
	DelayMs int
}

// DefaultMockGatewayConfig returns default configuration
func DefaultMockGatewayConfig() *MockGatewayConfig {
	return &MockGatewayConfig{DelayMs: 0}
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	if config == nil {
		config = DefaultMockGatewayConfig()
	}
	return &MockGateway{config: config}
}

func (g *MockGateway) delay(ctx context.Context) error {
	if g.config.DelayMs <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(g.config.DelayMs) * time.Millisecond):
		return nil
	}
}

// CreateOrder opens a mock order
func (g *MockGateway) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}
	if err := g.delay(ctx); err != nil {
		return nil, unavailable("create order", err)
	}

	order := &Order{
		OrderID:  "order_mock_" + randomAlphanumeric(14),
		Amount:   MinorUnits(req.Amount, req.Currency),
		Currency: req.Currency,
		Receipt:  req.Receipt,
	}
	g.orders.Store(order.OrderID, order)
	return order, nil
}

// FetchPayment returns a payment recorded by Capture or Fail
func (g *MockGateway) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := g.delay(ctx); err != nil {
		return nil, unavailable("fetch payment", err)
	}
	v, ok := g.payments.Load(paymentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	p := *v.(*Payment)
	return &p, nil
}

// FetchOrderPayment returns the latest payment against orderID
func (g *MockGateway) FetchOrderPayment(ctx context.Context, orderID string) (*Payment, error) {
	v, ok := g.byOrder.Load(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrPaymentNotFound, orderID)
	}
	return g.FetchPayment(ctx, v.(string))
}

// Capture records a successful payment against orderID
func (g *MockGateway) Capture(orderID string) (*Payment, error) {
	return g.record(orderID, StatusCaptured)
}

// Fail records a failed payment against orderID
func (g *MockGateway) Fail(orderID string) (*Payment, error) {
	return g.record(orderID, StatusFailed)
}

func (g *MockGateway) record(orderID string, status PaymentStatus) (*Payment, error) {
	v, ok := g.orders.Load(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrPaymentNotFound, orderID)
	}
	order := v.(*Order)

	p := &Payment{
		ID:       "pay_mock_" + randomAlphanumeric(14),
		OrderID:  orderID,
		Status:   status,
		Amount:   order.Amount,
		Currency: order.Currency,
	}
	g.payments.Store(p.ID, p)
	g.byOrder.Store(orderID, p.ID)
	out := *p
	return &out, nil
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}
