package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/gateway"
	"github.com/prohmpiriya/turf-booking/internal/repository"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// testClock is a settable clock shared by the services under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingPublisher records published event types
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.BookingEventType
}

func (p *recordingPublisher) record(t domain.BookingEventType) error {
	p.mu.Lock()
	p.events = append(p.events, t)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Events() []domain.BookingEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.BookingEventType(nil), p.events...)
}

func (p *recordingPublisher) Count(t domain.BookingEventType) int {
	n := 0
	for _, e := range p.Events() {
		if e == t {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) PublishBookingReserved(ctx context.Context, b *domain.Booking) error {
	return p.record(domain.BookingEventReserved)
}

func (p *recordingPublisher) PublishBookingConfirmed(ctx context.Context, b *domain.Booking) error {
	return p.record(domain.BookingEventConfirmed)
}

func (p *recordingPublisher) PublishBookingReleased(ctx context.Context, b *domain.Booking) error {
	return p.record(domain.BookingEventReleased)
}

func (p *recordingPublisher) PublishBookingExpired(ctx context.Context, b *domain.Booking) error {
	return p.record(domain.BookingEventExpired)
}

func (p *recordingPublisher) PublishBookingFlagged(ctx context.Context, b *domain.Booking) error {
	return p.record(domain.BookingEventFlagged)
}

func (p *recordingPublisher) Close() error { return nil }

// MockPricingRepository is a testify mock of PricingRepository
type MockPricingRepository struct {
	mock.Mock
}

func (m *MockPricingRepository) Get(ctx context.Context) (*domain.PricingConfig, error) {
	args := m.Called(ctx)
	if cfg, ok := args.Get(0).(*domain.PricingConfig); ok {
		return cfg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPricingRepository) Set(ctx context.Context, cfg domain.PricingConfig, now time.Time) (*domain.PricingConfig, error) {
	args := m.Called(ctx, cfg, now)
	if saved, ok := args.Get(0).(*domain.PricingConfig); ok {
		return saved, args.Error(1)
	}
	return nil, args.Error(1)
}

// fixture wires the services over the in-memory store and mock gateway
type fixture struct {
	clock    *testClock
	repo     *repository.MemoryRepository
	events   *recordingPublisher
	gateway  *gateway.MockGateway
	pricing  PricingService
	bookings BookingService
	payments PaymentService
}

const testKeySecret = "test_key_secret"

type fixtureOption func(*BookingServiceConfig, *PaymentServiceConfig)

func withLateConfirm() fixtureOption {
	return func(b *BookingServiceConfig, _ *PaymentServiceConfig) { b.AllowLateConfirm = true }
}

func withoutStatusFallback() fixtureOption {
	return func(_ *BookingServiceConfig, p *PaymentServiceConfig) { p.StatusFallback = false }
}

func newFixture(now time.Time, opts ...fixtureOption) *fixture {
	f := &fixture{
		clock:   newTestClock(now),
		repo:    repository.NewMemoryRepository(),
		events:  &recordingPublisher{},
		gateway: gateway.NewMockGateway(nil),
	}

	bcfg := &BookingServiceConfig{
		TurfID:   "turf-1",
		Location: ist,
		Window:   domain.DefaultOperatingWindow(),
		HoldTTL:  domain.HoldTTL,
		Currency: "INR",
		Clock:    f.clock.Now,
	}
	pcfg := &PaymentServiceConfig{
		KeyID:               "key_test",
		KeySecret:           testKeySecret,
		Currency:            "INR",
		StatusFallback:      true,
		StripeWebhookSecret: "whsec_test",
		ReconcileMinAge:     2 * time.Minute,
		HoldTTL:             domain.HoldTTL,
		Clock:               f.clock.Now,
	}
	for _, opt := range opts {
		opt(bcfg, pcfg)
	}

	f.pricing = NewPricingService(f.repo, &PricingServiceConfig{
		Defaults: domain.DefaultPricing(),
		Currency: "INR",
		CacheTTL: time.Minute,
		Clock:    f.clock.Now,
	})
	f.bookings = NewBookingService(f.repo, f.pricing, f.events, bcfg)
	f.payments = NewPaymentService(f.repo, f.bookings, f.gateway, pcfg)
	return f
}
