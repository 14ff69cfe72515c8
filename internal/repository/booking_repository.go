package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/prohmpiriya/turf-booking/internal/domain"
)

// reconcileLookback bounds how far back the reconciler looks for unpaid orders
const reconcileLookback = 24 * time.Hour

// defaultListLimit caps list queries that do not set a limit
const defaultListLimit = 200

// defaultBatchSize bounds housekeeping sweeps called without a limit
const defaultBatchSize = 100

func batchLimit(limit int) int {
	if limit <= 0 {
		return defaultBatchSize
	}
	return limit
}

// BookingFilter selects bookings for listing
type BookingFilter struct {
	TurfID string
	Date   domain.Date
	Phone  string
	Status domain.BookingStatus
	Limit  int
}

func (f BookingFilter) limit() int {
	if f.Limit <= 0 || f.Limit > defaultListLimit {
		return defaultListLimit
	}
	return f.Limit
}

// matches reports whether b passes the filter
func (f BookingFilter) matches(b *domain.Booking) bool {
	if f.TurfID != "" && b.TurfID != f.TurfID {
		return false
	}
	if !f.Date.IsZero() && b.Date != f.Date {
		return false
	}
	if f.Phone != "" && b.CustomerPhone != f.Phone {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}

// BookingRepository is the booking store. Every operation that changes slot
// availability is a single atomic read-modify-write of the date's DayLedger.
type BookingRepository interface {
	// GetSlotState returns the ledger for a date, empty when none exists yet
	GetSlotState(ctx context.Context, turfID string, date domain.Date) (*domain.DayLedger, error)

	// Reserve records b as a pending hold, or fails with a SlotConflictError
	Reserve(ctx context.Context, b *domain.Booking, now time.Time, ttl time.Duration) error

	// Confirm applies a verified payment. A flagged booking is persisted even
	// though the returned error is non-nil.
	Confirm(ctx context.Context, id, paymentRef string, now time.Time, policy domain.ConfirmPolicy) (*domain.Booking, domain.Transition, error)

	// Release frees a booking's slots
	Release(ctx context.Context, id string, now time.Time) (*domain.Booking, domain.Transition, error)

	// AttachOrder stores the gateway order created for a booking
	AttachOrder(ctx context.Context, id, orderID string, now time.Time) (*domain.Booking, error)

	// Flag marks a booking for manual reconciliation
	Flag(ctx context.Context, id, reason, paymentRef string, now time.Time) (*domain.Booking, error)

	// GetByID retrieves a booking by its ID
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByOrderID retrieves the booking a gateway order was created for
	GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error)

	// List returns bookings matching filter. Phone queries are ordered by date
	// then creation, newest first; everything else by creation, newest first.
	List(ctx context.Context, filter BookingFilter) ([]*domain.Booking, error)

	// LockSlot adds an admin lock and returns the updated ledger
	LockSlot(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error)

	// UnlockSlot removes an admin lock and returns the updated ledger
	UnlockSlot(ctx context.Context, turfID string, date domain.Date, slotID string, now time.Time) (*domain.DayLedger, error)

	// ExpireStaleHolds writes the expired status for up to limit pending
	// bookings whose hold lapsed, and returns them
	ExpireStaleHolds(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]*domain.Booking, error)

	// ListReconciliationCandidates returns unconfirmed bookings with a gateway
	// order created before olderThan
	ListReconciliationCandidates(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Booking, error)
}

// PricingRepository stores the single pricing record
type PricingRepository interface {
	// Get returns domain.ErrPricingNotConfigured when nothing has been stored
	Get(ctx context.Context) (*domain.PricingConfig, error)

	// Set overwrites the record and bumps its version
	Set(ctx context.Context, cfg domain.PricingConfig, now time.Time) (*domain.PricingConfig, error)
}

// classified reports whether err already carries a domain meaning and must
// reach the caller unchanged
func classified(err error) bool {
	return domain.IsValidationError(err) ||
		domain.IsConflictError(err) ||
		domain.IsTransitionError(err) ||
		domain.IsNotFoundError(err) ||
		errors.Is(err, domain.ErrStorageUnavailable) ||
		errors.Is(err, domain.ErrPricingNotConfigured)
}

// storageErr wraps unclassified failures as ErrStorageUnavailable
func storageErr(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	return domain.StorageError(op, err)
}

func sortBookings(bookings []*domain.Booking, byPhone bool) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if byPhone && a.Date != b.Date {
			return b.Date.Before(a.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func isReconcileCandidate(b *domain.Booking, olderThan time.Time) bool {
	if b.OrderID == "" || b.NeedsReconciliation {
		return false
	}
	if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusExpired {
		return false
	}
	return b.CreatedAt.Before(olderThan) && b.CreatedAt.After(olderThan.Add(-reconcileLookback))
}
