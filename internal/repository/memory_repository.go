package repository

import (
	"context"
	"sync"
	"time"

	"github.com/prohmpiriya/turf-booking/internal/domain"
)

type dayKey struct {
	turfID string
	date   domain.Date
}

// MemoryRepository is an in-process store for tests and single-node demos.
// One mutex serializes every write, which makes each ledger change atomic.
type MemoryRepository struct {
	mu       sync.RWMutex
	days     map[dayKey]*domain.DayLedger
	bookings map[string]*domain.Booking
	orders   map[string]string
	pricing  *domain.PricingConfig
}

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		days:     make(map[dayKey]*domain.DayLedger),
		bookings: make(map[string]*domain.Booking),
		orders:   make(map[string]string),
	}
}

// day returns the stored ledger, creating it on first use. Caller holds mu.
func (r *MemoryRepository) day(turfID string, date domain.Date) *domain.DayLedger {
	k := dayKey{turfID, date}
	l, ok := r.days[k]
	if !ok {
		l = domain.NewDayLedger(turfID, date)
		r.days[k] = l
	}
	return l
}

func (r *MemoryRepository) GetSlotState(ctx context.Context, turfID string, date domain.Date) (*domain.DayLedger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if l, ok := r.days[dayKey{turfID, date}]; ok {
		return l.Clone(), nil
	}
	return domain.NewDayLedger(turfID, date), nil
}

func (r *MemoryRepository) Reserve(ctx context.Context, b *domain.Booking, now time.Time, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.day(b.TurfID, b.Date).Clone()
	if err := domain.ApplyReserve(l, b, now, ttl); err != nil {
		return err
	}
	l.Version++
	r.days[dayKey{b.TurfID, b.Date}] = l
	r.bookings[b.ID] = b.Clone()
	return nil
}

// transition runs apply against a copy of the booking and its ledger and
// stores whatever the transition says changed
func (r *MemoryRepository) transition(id string, apply func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error)) (*domain.Booking, domain.Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[id]
	if !ok {
		return nil, domain.TransitionNone, domain.ErrBookingNotFound
	}
	b := stored.Clone()
	l := r.day(b.TurfID, b.Date).Clone()

	tr, err := apply(l, b)
	switch tr {
	case domain.TransitionApplied:
		l.Version++
		r.days[dayKey{b.TurfID, b.Date}] = l
		r.bookings[id] = b.Clone()
	case domain.TransitionFlagged:
		r.bookings[id] = b.Clone()
	}
	return b, tr, err
}

func (r *MemoryRepository) Confirm(ctx context.Context, id, paymentRef string, now time.Time, policy domain.ConfirmPolicy) (*domain.Booking, domain.Transition, error) {
	return r.transition(id, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
		return domain.ApplyConfirm(l, b, paymentRef, now, policy)
	})
}

func (r *MemoryRepository) Release(ctx context.Context, id string, now time.Time) (*domain.Booking, domain.Transition, error) {
	return r.transition(id, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
		return domain.ApplyRelease(l, b, now), nil
	})
}

func (r *MemoryRepository) AttachOrder(ctx context.Context, id, orderID string, now time.Time) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	if b.OrderID != "" {
		delete(r.orders, b.OrderID)
	}
	b.OrderID = orderID
	b.UpdatedAt = now
	r.orders[orderID] = id
	return b.Clone(), nil
}

func (r *MemoryRepository) Flag(ctx context.Context, id, reason, paymentRef string, now time.Time) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	b.MarkForReconciliation(reason, paymentRef, now)
	return b.Clone(), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *MemoryRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return r.bookings[id].Clone(), nil
}

func (r *MemoryRepository) List(ctx context.Context, filter BookingFilter) ([]*domain.Booking, error) {
	r.mu.RLock()
	out := make([]*domain.Booking, 0)
	for _, b := range r.bookings {
		if filter.matches(b) {
			out = append(out, b.Clone())
		}
	}
	r.mu.RUnlock()

	sortBookings(out, filter.Phone != "")
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (r *MemoryRepository) LockSlot(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error) {
	return r.updateDay(turfID, date, now, func(l *domain.DayLedger) bool { return l.Lock(slotID) })
}

func (r *MemoryRepository) UnlockSlot(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error) {
	return r.updateDay(turfID, date, now, func(l *domain.DayLedger) bool { return l.Unlock(slotID) })
}

func (r *MemoryRepository) updateDay(turfID string, date domain.Date, now time.Time, fn func(l *domain.DayLedger) bool) (*domain.DayLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.day(turfID, date)
	if fn(l) {
		l.Version++
		l.UpdatedAt = now
	}
	return l.Clone(), nil
}

func (r *MemoryRepository) ExpireStaleHolds(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]*domain.Booking, error) {
	r.mu.RLock()
	var ids []string
	for id, b := range r.bookings {
		if b.Status == domain.BookingStatusPending && domain.HoldExpired(b.CreatedAt, now, ttl) {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	var expired []*domain.Booking
	for _, id := range ids {
		if len(expired) >= batchLimit(limit) {
			break
		}
		b, tr, _ := r.transition(id, func(l *domain.DayLedger, b *domain.Booking) (domain.Transition, error) {
			return domain.ApplyExpire(l, b, now, ttl), nil
		})
		if tr == domain.TransitionApplied {
			expired = append(expired, b)
		}
	}
	return expired, nil
}

func (r *MemoryRepository) ListReconciliationCandidates(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Booking, error) {
	r.mu.RLock()
	out := make([]*domain.Booking, 0)
	for _, b := range r.bookings {
		if isReconcileCandidate(b, olderThan) {
			out = append(out, b.Clone())
		}
	}
	r.mu.RUnlock()

	sortBookings(out, false)
	if n := batchLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Get implements PricingRepository
func (r *MemoryRepository) Get(ctx context.Context) (*domain.PricingConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.pricing == nil {
		return nil, domain.ErrPricingNotConfigured
	}
	p := *r.pricing
	return &p, nil
}

// Set implements PricingRepository
func (r *MemoryRepository) Set(ctx context.Context, cfg domain.PricingConfig, now time.Time) (*domain.PricingConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var version int64
	if r.pricing != nil {
		version = r.pricing.Version
	}
	cfg.Version = version + 1
	cfg.UpdatedAt = now
	r.pricing = &cfg
	p := cfg
	return &p, nil
}
