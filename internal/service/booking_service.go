package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/internal/metrics"
	"github.com/prohmpiriya/turf-booking/internal/repository"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

// ReleaseWarning accompanies every admin release
const ReleaseWarning = "releasing a booking whose payment completed externally can cause a double booking"

// BookingService defines the interface for booking business logic
type BookingService interface {
	// Availability returns the slot grid of a date
	Availability(ctx context.Context, date string) (*dto.AvailabilityResponse, error)

	// Reserve places a pending hold on free slots
	Reserve(ctx context.Context, req *dto.ReserveRequest) (*dto.ReserveResponse, error)

	// Confirm applies a verified payment to a booking
	Confirm(ctx context.Context, bookingID, paymentRef string) (*domain.Booking, error)

	// Release frees a booking's slots (admin)
	Release(ctx context.Context, bookingID string) (*dto.ReleaseResponse, error)

	// GetBooking retrieves a booking by ID
	GetBooking(ctx context.Context, bookingID string) (*dto.BookingResponse, error)

	// ListBookings lists bookings by date, phone or status
	ListBookings(ctx context.Context, q *dto.BookingListQuery) ([]*dto.BookingResponse, error)

	// LockSlot blocks a slot for maintenance (admin)
	LockSlot(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error)

	// UnlockSlot removes an admin lock (admin)
	UnlockSlot(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error)

	// SlotState returns the raw day ledger for operators
	SlotState(ctx context.Context, date string) (*dto.SlotStateResponse, error)

	// ExpireStaleHolds materializes lapsed holds as expired
	ExpireStaleHolds(ctx context.Context, limit int) (int, error)
}

// BookingServiceConfig contains configuration for booking service
type BookingServiceConfig struct {
	TurfID           string
	Location         *time.Location
	Window           domain.OperatingWindow
	HoldTTL          time.Duration
	AllowLateConfirm bool
	Currency         string
	Clock            func() time.Time
}

// bookingService implements BookingService
type bookingService struct {
	repo           repository.BookingRepository
	pricing        PricingService
	eventPublisher EventPublisher
	turfID         string
	loc            *time.Location
	window         domain.OperatingWindow
	holdTTL        time.Duration
	policy         domain.ConfirmPolicy
	currency       string
	now            func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(
	repo repository.BookingRepository,
	pricing PricingService,
	eventPublisher EventPublisher,
	cfg *BookingServiceConfig,
) BookingService {
	s := &bookingService{
		repo:     repo,
		pricing:  pricing,
		turfID:   "main",
		loc:      time.UTC,
		window:   domain.DefaultOperatingWindow(),
		holdTTL:  domain.HoldTTL,
		currency: "INR",
		now:      time.Now,
	}
	if cfg != nil {
		if cfg.TurfID != "" {
			s.turfID = cfg.TurfID
		}
		if cfg.Location != nil {
			s.loc = cfg.Location
		}
		if cfg.Window.CloseHour > cfg.Window.OpenHour {
			s.window = cfg.Window
		}
		if cfg.HoldTTL > 0 {
			s.holdTTL = cfg.HoldTTL
		}
		if cfg.Currency != "" {
			s.currency = cfg.Currency
		}
		if cfg.Clock != nil {
			s.now = cfg.Clock
		}
		s.policy.AllowLateConfirm = cfg.AllowLateConfirm
	}
	s.policy.HoldTTL = s.holdTTL
	// Use NoOpEventPublisher if none provided
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	s.eventPublisher = eventPublisher
	return s
}

// Availability returns every catalog slot of date with its availability
func (s *bookingService) Availability(ctx context.Context, date string) (*dto.AvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.availability")
	defer span.End()

	d, err := domain.ParseDate(date)
	if err != nil {
		span.SetStatus(codes.Error, "invalid date")
		return nil, err
	}
	span.SetAttributes(attribute.String("date", d.String()))

	ledger, err := s.repo.GetSlotState(ctx, s.turfID, d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.now()
	unavailable := ledger.Unavailable(now, s.holdTTL)
	for id := range domain.PastSlots(d, s.window, now, s.loc) {
		unavailable.Add(id)
	}

	pricing, _ := s.pricing.Current(ctx)
	rate := pricing.RateFor(d)

	catalog := domain.SlotsForDay(s.window)
	slots := make([]dto.SlotAvailability, 0, len(catalog))
	for _, slot := range catalog {
		slots = append(slots, dto.SlotAvailability{
			ID:        slot.ID,
			StartHour: slot.StartHour,
			Label:     slot.Label,
			Period:    string(slot.Period),
			Price:     rate,
			Available: !unavailable.Has(slot.ID),
		})
	}

	span.SetStatus(codes.Ok, "")
	return &dto.AvailabilityResponse{
		Date:             d.String(),
		IsWeekend:        d.IsWeekend(),
		Rate:             rate,
		Currency:         s.currency,
		Slots:            slots,
		UnavailableSlots: unavailable.Sorted(),
	}, nil
}

// Reserve validates the request, prices it server-side and records the hold
// in one atomic ledger update
func (s *bookingService) Reserve(ctx context.Context, req *dto.ReserveRequest) (*dto.ReserveResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.reserve")
	defer span.End()

	start := time.Now()
	now := s.now()

	b, err := s.newBooking(ctx, req, now)
	if err != nil {
		outcome := "error"
		if domain.IsValidationError(err) {
			outcome = "validation"
		}
		metrics.RecordReservation(ctx, outcome, 0, 0, time.Since(start).Seconds())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking_id", b.ID),
		attribute.String("date", b.Date.String()),
		attribute.StringSlice("slot_ids", b.SlotIDs),
		attribute.Int64("amount", b.Amount),
	)

	if err := s.repo.Reserve(ctx, b, now, s.holdTTL); err != nil {
		outcome := "error"
		if domain.IsConflictError(err) {
			outcome = "conflict"
		}
		metrics.RecordReservation(ctx, outcome, len(b.SlotIDs), b.Amount, time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordReservation(ctx, "success", len(b.SlotIDs), b.Amount, time.Since(start).Seconds())
	s.publish(ctx, domain.BookingEventReserved, b)

	span.AddEvent("hold_created", trace.WithAttributes(
		attribute.String("booking_id", b.ID),
		attribute.String("reference", b.Reference),
	))
	span.SetStatus(codes.Ok, "")
	return &dto.ReserveResponse{
		BookingID: b.ID,
		Reference: b.Reference,
		Status:    string(b.Status),
		Date:      b.Date.String(),
		SlotIDs:   append([]string(nil), b.SlotIDs...),
		Amount:    b.Amount,
		Currency:  s.currency,
		ExpiresAt: b.HoldExpiresAt(s.holdTTL),
	}, nil
}

func (s *bookingService) newBooking(ctx context.Context, req *dto.ReserveRequest, now time.Time) (*domain.Booking, error) {
	if req == nil {
		return nil, domain.NewValidationError("request", "is required")
	}

	d, err := domain.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if d.Before(domain.Today(now, s.loc)) {
		return nil, domain.NewValidationError("date", "must not be in the past")
	}
	if err := domain.ValidateSlotIDs(req.SlotIDs, s.window); err != nil {
		return nil, err
	}
	if past := domain.PastSlots(d, s.window, now, s.loc).Intersect(req.SlotIDs); len(past) > 0 {
		return nil, domain.NewValidationError("slot_ids", "already ended: "+strings.Join(past, ", "))
	}
	name := strings.TrimSpace(req.CustomerName)
	if err := domain.ValidateCustomerName(name); err != nil {
		return nil, err
	}
	if err := domain.ValidateCustomerPhone(req.CustomerPhone); err != nil {
		return nil, err
	}

	pricing, err := s.pricing.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	reference, err := domain.NewReference()
	if err != nil {
		return nil, err
	}

	return &domain.Booking{
		ID:            uuid.New().String(),
		Reference:     reference,
		TurfID:        s.turfID,
		Date:          d,
		SlotIDs:       append([]string(nil), req.SlotIDs...),
		Status:        domain.BookingStatusPending,
		Amount:        pricing.Amount(req.SlotIDs, d),
		CustomerName:  name,
		CustomerPhone: req.CustomerPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Confirm moves a booking to confirmed. A repeated confirmation with the
// same payment reference returns the booking unchanged and emits nothing.
func (s *bookingService) Confirm(ctx context.Context, bookingID, paymentRef string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.confirm")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("payment_ref", paymentRef),
	)

	if bookingID == "" {
		return nil, domain.NewValidationError("booking_id", "is required")
	}
	if paymentRef == "" {
		return nil, domain.NewValidationError("payment_id", "is required")
	}

	b, tr, err := s.repo.Confirm(ctx, bookingID, paymentRef, s.now(), s.policy)
	switch tr {
	case domain.TransitionApplied:
		metrics.RecordConfirmation(ctx, "confirmed")
		s.publish(ctx, domain.BookingEventConfirmed, b)
	case domain.TransitionFlagged:
		metrics.RecordConfirmation(ctx, "flagged")
		metrics.RecordFlagged(ctx, b.ReconcileReason)
		logger.Get().Warn("booking flagged for reconciliation",
			zap.String("booking_id", b.ID),
			zap.String("reference", b.Reference),
			zap.String("payment_ref", paymentRef),
			zap.String("reason", b.ReconcileReason),
		)
		s.publish(ctx, domain.BookingEventFlagged, b)
	default:
		if err == nil {
			metrics.RecordConfirmation(ctx, "duplicate")
		}
	}

	if err != nil {
		if tr != domain.TransitionFlagged {
			metrics.RecordConfirmation(ctx, "rejected")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if b != nil {
			return nil, domain.WithReference(err, b.Reference)
		}
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return b, nil
}

// Release frees a booking's slots. Releasing twice is a no-op.
func (s *bookingService) Release(ctx context.Context, bookingID string) (*dto.ReleaseResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.release")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	now := s.now()
	b, tr, err := s.repo.Release(ctx, bookingID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if tr == domain.TransitionApplied {
		metrics.RecordRelease(ctx, b.ConfirmedAt == nil)
		s.publish(ctx, domain.BookingEventReleased, b)
		logger.Get().Info("booking released",
			zap.String("booking_id", b.ID),
			zap.String("reference", b.Reference),
			zap.Strings("slot_ids", b.SlotIDs),
		)
	}

	span.SetStatus(codes.Ok, "")
	return &dto.ReleaseResponse{
		Booking: dto.FromDomain(b, now, s.holdTTL),
		Warning: ReleaseWarning,
	}, nil
}

// GetBooking retrieves a booking by ID
func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.get")
	defer span.End()

	if bookingID == "" {
		return nil, domain.NewValidationError("booking_id", "is required")
	}

	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return dto.FromDomain(b, s.now(), s.holdTTL), nil
}

// ListBookings lists bookings. A phone filter orders by date desc, then
// created desc; otherwise created desc.
func (s *bookingService) ListBookings(ctx context.Context, q *dto.BookingListQuery) ([]*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.list")
	defer span.End()

	filter := repository.BookingFilter{TurfID: s.turfID}
	if q != nil {
		if q.Date != "" {
			d, err := domain.ParseDate(q.Date)
			if err != nil {
				return nil, err
			}
			filter.Date = d
		}
		if q.Phone != "" {
			if err := domain.ValidateCustomerPhone(q.Phone); err != nil {
				return nil, err
			}
			filter.Phone = q.Phone
		}
		if q.Status != "" {
			status := domain.BookingStatus(q.Status)
			if !status.IsValid() {
				return nil, domain.NewValidationError("status", "unknown status "+q.Status)
			}
			filter.Status = status
		}
		if q.Limit < 0 {
			return nil, domain.NewValidationError("limit", "must not be negative")
		}
		filter.Limit = q.Limit
	}

	bookings, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(bookings)))
	return dto.FromDomainList(bookings, s.now(), s.holdTTL), nil
}

// LockSlot blocks a slot. Locking an already locked slot is a no-op.
func (s *bookingService) LockSlot(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error) {
	return s.changeLock(ctx, "lock", req, s.repo.LockSlot)
}

// UnlockSlot removes an admin lock. Bookings are never touched.
func (s *bookingService) UnlockSlot(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error) {
	return s.changeLock(ctx, "unlock", req, s.repo.UnlockSlot)
}

type lockFunc func(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error)

func (s *bookingService) changeLock(ctx context.Context, action string, req *dto.SlotActionRequest, fn lockFunc) (*dto.LockedSlotsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking."+action+"_slot")
	defer span.End()

	if req == nil {
		return nil, domain.NewValidationError("request", "is required")
	}
	d, err := domain.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if !s.window.Contains(req.SlotID) {
		return nil, domain.NewValidationError("slot_id", "unknown slot "+req.SlotID)
	}
	span.SetAttributes(attribute.String("date", d.String()), attribute.String("slot_id", req.SlotID))

	ledger, err := fn(ctx, s.turfID, d, req.SlotID, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordSlotLock(ctx, action)
	logger.Get().Info("slot "+action+"ed",
		zap.String("date", d.String()),
		zap.String("slot_id", req.SlotID),
	)
	return &dto.LockedSlotsResponse{Date: d.String(), LockedSlots: ledger.LockedSlots()}, nil
}

// SlotState returns the raw day ledger
func (s *bookingService) SlotState(ctx context.Context, date string) (*dto.SlotStateResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.slot_state")
	defer span.End()

	d, err := domain.ParseDate(date)
	if err != nil {
		return nil, err
	}
	ledger, err := s.repo.GetSlotState(ctx, s.turfID, d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.now()
	held := domain.SlotSet{}
	for _, h := range ledger.Holds {
		if domain.HoldExpired(h.CreatedAt, now, s.holdTTL) {
			continue
		}
		for _, id := range h.SlotIDs {
			held.Add(id)
		}
	}
	return &dto.SlotStateResponse{
		Date:        d.String(),
		Locked:      ledger.LockedSlots(),
		Confirmed:   ledger.Confirmed,
		Held:        held.Sorted(),
		Unavailable: ledger.Unavailable(now, s.holdTTL).Sorted(),
		Version:     ledger.Version,
		UpdatedAt:   ledger.UpdatedAt,
	}, nil
}

// ExpireStaleHolds marks up to limit lapsed holds expired and prunes them
// from their ledgers
func (s *bookingService) ExpireStaleHolds(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.expire_stale_holds")
	defer span.End()

	expired, err := s.repo.ExpireStaleHolds(ctx, s.now(), s.holdTTL, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	for _, b := range expired {
		s.publish(ctx, domain.BookingEventExpired, b)
	}
	metrics.RecordHoldsExpired(ctx, len(expired))
	span.SetAttributes(attribute.Int("expired", len(expired)))
	return len(expired), nil
}

// publish emits a lifecycle event; delivery failures never fail the booking
func (s *bookingService) publish(ctx context.Context, eventType domain.BookingEventType, b *domain.Booking) {
	var err error
	switch eventType {
	case domain.BookingEventReserved:
		err = s.eventPublisher.PublishBookingReserved(ctx, b)
	case domain.BookingEventConfirmed:
		err = s.eventPublisher.PublishBookingConfirmed(ctx, b)
	case domain.BookingEventReleased:
		err = s.eventPublisher.PublishBookingReleased(ctx, b)
	case domain.BookingEventExpired:
		err = s.eventPublisher.PublishBookingExpired(ctx, b)
	case domain.BookingEventFlagged:
		err = s.eventPublisher.PublishBookingFlagged(ctx, b)
	}
	if err != nil {
		logger.Get().Warn("failed to publish booking event",
			zap.String("event_type", string(eventType)),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}
