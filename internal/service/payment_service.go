package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/internal/gateway"
	"github.com/prohmpiriya/turf-booking/internal/metrics"
	"github.com/prohmpiriya/turf-booking/internal/repository"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

// Verification methods
const (
	VerifyMethodSignature = "signature"
	VerifyMethodStatus    = "status"
	VerifyMethodStripe    = "stripe_webhook"
)

// Reconciliation outcomes
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeAlreadyConfirmed = "already_confirmed"
	OutcomeNoOrder          = "no_order"
	OutcomeNotPaid          = "not_paid"
	OutcomeAmountMismatch   = "amount_mismatch"
	OutcomeRejected         = "rejected"
	OutcomeIgnored          = "ignored"
)

const reasonAmountMismatch = "captured amount does not match booking amount"

// PaymentService is the payment confirmation gate. A booking only becomes
// confirmed after its payment has been proven.
type PaymentService interface {
	// CreateOrder opens a gateway order for a pending booking's amount
	CreateOrder(ctx context.Context, bookingID string) (*dto.CreateOrderResponse, error)

	// ConfirmPayment verifies a client-relayed callback and confirms the booking
	ConfirmPayment(ctx context.Context, bookingID string, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error)

	// HandleCallback verifies a gateway server callback keyed by order id
	HandleCallback(ctx context.Context, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error)

	// HandleStripeEvent verifies and applies a Stripe-signed webhook event
	HandleStripeEvent(ctx context.Context, payload []byte, sigHeader string) (*StripeEventResult, error)

	// Reconcile asks the gateway whether a booking's order was paid
	Reconcile(ctx context.Context, bookingID string) (*dto.ReconcileResponse, error)

	// ReconcilePending reconciles bookings whose order is older than the
	// configured minimum age
	ReconcilePending(ctx context.Context, limit int) (int, error)
}

// StripeEventResult describes what a webhook event did
type StripeEventResult struct {
	EventID   string
	EventType string
	BookingID string
	Outcome   string
}

// PaymentServiceConfig contains configuration for payment service
type PaymentServiceConfig struct {
	KeyID               string
	KeySecret           string
	Currency            string
	StatusFallback      bool
	StripeWebhookSecret string
	ReconcileMinAge     time.Duration
	HoldTTL             time.Duration
	Clock               func() time.Time
}

// paymentService implements PaymentService
type paymentService struct {
	repo     repository.BookingRepository
	bookings BookingService
	gateway  gateway.PaymentGateway
	cfg      PaymentServiceConfig
	now      func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	repo repository.BookingRepository,
	bookings BookingService,
	gw gateway.PaymentGateway,
	cfg *PaymentServiceConfig,
) PaymentService {
	s := &paymentService{
		repo:     repo,
		bookings: bookings,
		gateway:  gw,
		cfg: PaymentServiceConfig{
			Currency:        "INR",
			ReconcileMinAge: 2 * time.Minute,
			HoldTTL:         domain.HoldTTL,
		},
		now: time.Now,
	}
	if cfg != nil {
		c := *cfg
		if c.Currency == "" {
			c.Currency = s.cfg.Currency
		}
		if c.ReconcileMinAge <= 0 {
			c.ReconcileMinAge = s.cfg.ReconcileMinAge
		}
		if c.HoldTTL <= 0 {
			c.HoldTTL = s.cfg.HoldTTL
		}
		s.cfg = c
		if cfg.Clock != nil {
			s.now = cfg.Clock
		}
	}
	return s
}

// CreateOrder opens a gateway order for the amount computed at reserve time
func (s *paymentService) CreateOrder(ctx context.Context, bookingID string) (*dto.CreateOrderResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.create_order")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.now()
	switch {
	case b.Status == domain.BookingStatusConfirmed:
		return nil, domain.WithReference(fmt.Errorf("%w: booking already paid", domain.ErrInvalidTransition), b.Reference)
	case b.Status != domain.BookingStatusPending:
		return nil, domain.WithReference(fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, b.Status), b.Reference)
	case !b.HoldActive(now, s.cfg.HoldTTL):
		return nil, domain.WithReference(domain.ErrHoldExpired, b.Reference)
	}

	order, err := s.gateway.CreateOrder(ctx, &gateway.CreateOrderRequest{
		Amount:   b.Amount,
		Currency: s.cfg.Currency,
		Receipt:  "rcpt_" + b.Reference,
		Metadata: map[string]string{
			"booking_id": b.ID,
			"reference":  b.Reference,
		},
	})
	if err != nil {
		metrics.RecordError(ctx, "payment.create_order", "gateway")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if _, err := s.repo.AttachOrder(ctx, b.ID, order.OrderID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordOrderCreated(ctx, s.gateway.Name())
	span.SetAttributes(attribute.String("order_id", order.OrderID))
	span.SetStatus(codes.Ok, "")
	return &dto.CreateOrderResponse{
		BookingID:    b.ID,
		Reference:    b.Reference,
		Gateway:      s.gateway.Name(),
		KeyID:        s.cfg.KeyID,
		OrderID:      order.OrderID,
		Amount:       order.Amount,
		Currency:     order.Currency,
		ClientSecret: order.ClientSecret,
		CheckoutURL:  order.CheckoutURL,
	}, nil
}

// ConfirmPayment confirms the booking named in the URL
func (s *paymentService) ConfirmPayment(ctx context.Context, bookingID string, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.confirm")
	defer span.End()

	if req == nil || req.PaymentID == "" {
		return nil, domain.NewValidationError("payment_id", "is required")
	}

	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s.verifyAndConfirm(ctx, b, req)
}

// HandleCallback confirms the booking that owns the callback's order
func (s *paymentService) HandleCallback(ctx context.Context, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.callback")
	defer span.End()

	if req == nil || req.PaymentID == "" {
		return nil, domain.NewValidationError("payment_id", "is required")
	}
	if req.OrderID == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}

	b, err := s.repo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s.verifyAndConfirm(ctx, b, req)
}

func (s *paymentService) verifyAndConfirm(ctx context.Context, b *domain.Booking, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("booking_id", b.ID),
		attribute.String("payment_id", req.PaymentID),
	)

	method, err := s.verify(ctx, b, req)
	metrics.RecordPaymentVerification(ctx, method, err == nil)
	if err != nil {
		logger.Get().Warn("payment verification failed",
			zap.String("booking_id", b.ID),
			zap.String("reference", b.Reference),
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", req.PaymentID),
			zap.String("method", method),
			zap.Error(err),
		)
		span.SetStatus(codes.Error, "verification failed")
		return nil, domain.WithReference(err, b.Reference)
	}

	confirmed, err := s.bookings.Confirm(ctx, b.ID, req.PaymentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return confirmResponse(confirmed), nil
}

// verify proves the payment against the order opened for this booking. A
// valid HMAC signature is sufficient; without one the gateway must report
// the payment captured on that order.
func (s *paymentService) verify(ctx context.Context, b *domain.Booking, req *dto.ConfirmRequest) (string, error) {
	if b.OrderID == "" {
		return VerifyMethodSignature, fmt.Errorf("%w: no payment order opened for booking", domain.ErrPaymentVerificationFailed)
	}
	if req.OrderID != "" && req.OrderID != b.OrderID {
		return VerifyMethodSignature, fmt.Errorf("%w: order does not belong to booking", domain.ErrPaymentVerificationFailed)
	}

	if req.Signature != "" && s.cfg.KeySecret != "" {
		if gateway.VerifySignature(s.cfg.KeySecret, b.OrderID, req.PaymentID, req.Signature) {
			return VerifyMethodSignature, nil
		}
		if !s.cfg.StatusFallback {
			return VerifyMethodSignature, fmt.Errorf("%w: signature mismatch", domain.ErrPaymentVerificationFailed)
		}
	}

	if !s.cfg.StatusFallback {
		return VerifyMethodSignature, fmt.Errorf("%w: no verifiable signature", domain.ErrPaymentVerificationFailed)
	}

	p, err := s.gateway.FetchPayment(ctx, req.PaymentID)
	if errors.Is(err, gateway.ErrPaymentNotFound) {
		return VerifyMethodStatus, fmt.Errorf("%w: payment not found", domain.ErrPaymentVerificationFailed)
	}
	if err != nil {
		return VerifyMethodStatus, err
	}
	if err := s.checkPayment(b, p); err != nil {
		return VerifyMethodStatus, err
	}
	return VerifyMethodStatus, nil
}

func (s *paymentService) checkPayment(b *domain.Booking, p *gateway.Payment) error {
	if p.OrderID != b.OrderID {
		return fmt.Errorf("%w: payment belongs to another order", domain.ErrPaymentVerificationFailed)
	}
	return s.checkCaptured(b, p)
}

// checkCaptured requires a captured payment for the booking's full amount
func (s *paymentService) checkCaptured(b *domain.Booking, p *gateway.Payment) error {
	if !p.Captured() {
		return fmt.Errorf("%w: payment is %s", domain.ErrPaymentVerificationFailed, p.Status)
	}
	if p.Amount > 0 && p.Amount != gateway.MinorUnits(b.Amount, s.cfg.Currency) {
		return fmt.Errorf("%w: %s", domain.ErrPaymentVerificationFailed, reasonAmountMismatch)
	}
	return nil
}

// HandleStripeEvent verifies the Stripe-Signature header and confirms the
// booking named in a succeeded intent's metadata
func (s *paymentService) HandleStripeEvent(ctx context.Context, payload []byte, sigHeader string) (*StripeEventResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.stripe_event")
	defer span.End()

	log := logger.Get()

	if s.cfg.StripeWebhookSecret == "" || sigHeader == "" {
		metrics.RecordPaymentVerification(ctx, VerifyMethodStripe, false)
		return nil, fmt.Errorf("%w: missing stripe signature", domain.ErrPaymentVerificationFailed)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		metrics.RecordPaymentVerification(ctx, VerifyMethodStripe, false)
		log.Error(fmt.Sprintf("Failed to verify webhook signature: %v", err))
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentVerificationFailed, err)
	}
	metrics.RecordPaymentVerification(ctx, VerifyMethodStripe, true)

	result := &StripeEventResult{EventID: event.ID, EventType: string(event.Type), Outcome: OutcomeIgnored}
	span.SetAttributes(attribute.String("event_type", result.EventType))

	if event.Type != "payment_intent.succeeded" {
		log.Info(fmt.Sprintf("Unhandled event type: %s", event.Type))
		return result, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, domain.NewValidationError("payload", "malformed payment intent")
	}

	result.BookingID = pi.Metadata["booking_id"]
	if result.BookingID == "" {
		log.Warn(fmt.Sprintf("payment intent %s carries no booking_id", pi.ID))
		return result, nil
	}

	b, err := s.repo.GetByID(ctx, result.BookingID)
	if err != nil {
		return nil, err
	}
	// the intent metadata was written by CreateOrder; an opened order must still match
	paid := gateway.PaymentFromIntent(&pi)
	if b.OrderID != "" && b.OrderID != paid.OrderID {
		err = fmt.Errorf("%w: payment belongs to another order", domain.ErrPaymentVerificationFailed)
	} else {
		err = s.checkCaptured(b, paid)
	}
	if err != nil {
		log.Warn(fmt.Sprintf("stripe payment %s rejected for booking %s: %v", pi.ID, b.ID, err))
		result.Outcome = OutcomeRejected
		return result, nil
	}

	if _, err := s.bookings.Confirm(ctx, b.ID, pi.ID); err != nil {
		if domain.IsRetryableError(err) {
			return nil, err
		}
		log.Warn(fmt.Sprintf("stripe payment %s not applied to booking %s: %v", pi.ID, b.ID, err))
		result.Outcome = OutcomeRejected
		return result, nil
	}

	result.Outcome = OutcomeConfirmed
	return result, nil
}

// Reconcile asks the gateway for the payment of a booking's order
func (s *paymentService) Reconcile(ctx context.Context, bookingID string) (*dto.ReconcileResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.reconcile")
	defer span.End()

	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s.reconcile(ctx, b)
}

func (s *paymentService) reconcile(ctx context.Context, b *domain.Booking) (*dto.ReconcileResponse, error) {
	resp := &dto.ReconcileResponse{BookingID: b.ID, Status: string(b.EffectiveStatus(s.now(), s.cfg.HoldTTL))}

	switch {
	case b.Status == domain.BookingStatusConfirmed:
		resp.Outcome = OutcomeAlreadyConfirmed
		return resp, nil
	case b.OrderID == "":
		resp.Outcome = OutcomeNoOrder
		return resp, nil
	}

	p, err := s.gateway.FetchOrderPayment(ctx, b.OrderID)
	if errors.Is(err, gateway.ErrPaymentNotFound) || (err == nil && !p.Captured()) {
		resp.Outcome = OutcomeNotPaid
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	if p.Amount > 0 && p.Amount != gateway.MinorUnits(b.Amount, s.cfg.Currency) {
		metrics.RecordPaymentVerification(ctx, VerifyMethodStatus, false)
		flagged, err := s.repo.Flag(ctx, b.ID, reasonAmountMismatch, p.ID, s.now())
		if err != nil {
			return nil, err
		}
		metrics.RecordFlagged(ctx, reasonAmountMismatch)
		resp.Status = string(flagged.Status)
		resp.Outcome = OutcomeAmountMismatch
		return resp, nil
	}
	metrics.RecordPaymentVerification(ctx, VerifyMethodStatus, true)

	confirmed, err := s.bookings.Confirm(ctx, b.ID, p.ID)
	if err != nil {
		if domain.IsRetryableError(err) {
			return nil, err
		}
		resp.Outcome = OutcomeRejected
		return resp, nil
	}
	resp.Status = string(confirmed.Status)
	resp.Outcome = OutcomeConfirmed
	return resp, nil
}

// ReconcilePending sweeps unconfirmed bookings that have a gateway order
func (s *paymentService) ReconcilePending(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.reconcile_pending")
	defer span.End()

	candidates, err := s.repo.ListReconciliationCandidates(ctx, s.now().Add(-s.cfg.ReconcileMinAge), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	log := logger.Get()
	confirmed := 0
	for _, b := range candidates {
		if ctx.Err() != nil {
			return confirmed, ctx.Err()
		}
		resp, err := s.reconcile(ctx, b)
		if err != nil {
			log.Warn("reconcile failed", zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		if resp.Outcome == OutcomeConfirmed {
			confirmed++
		}
	}

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("confirmed", confirmed),
	)
	return confirmed, nil
}

func confirmResponse(b *domain.Booking) *dto.ConfirmResponse {
	return &dto.ConfirmResponse{
		BookingID:   b.ID,
		Reference:   b.Reference,
		Status:      string(b.Status),
		PaymentRef:  b.PaymentRef,
		ConfirmedAt: b.ConfirmedAt,
	}
}
