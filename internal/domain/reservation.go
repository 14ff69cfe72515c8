package domain

import (
	"fmt"
	"time"
)

// Transition tells a store what to persist after applying a state change
type Transition int

const (
	// TransitionNone means nothing changed (idempotent repeat)
	TransitionNone Transition = iota
	// TransitionApplied means the booking and its ledger changed
	TransitionApplied
	// TransitionFlagged means only the booking changed: it was marked for
	// manual reconciliation and the ledger is untouched
	TransitionFlagged
)

// ConfirmPolicy governs confirmation of payments that arrive late
type ConfirmPolicy struct {
	HoldTTL time.Duration
	// AllowLateConfirm confirms an expired hold when its slots are still
	// free. When false such payments are rejected and flagged.
	AllowLateConfirm bool
}

const (
	ReasonLatePayment     = "payment received after hold expired"
	ReasonLateSlotTaken   = "payment received after hold expired and slots were re-booked"
	ReasonReleasedPayment = "payment received for a released booking"
)

// ApplyReserve records a pending hold for b on l, or fails with a
// SlotConflictError naming exactly the unavailable requested slots.
func ApplyReserve(l *DayLedger, b *Booking, now time.Time, ttl time.Duration) error {
	if b.Status != BookingStatusPending {
		return fmt.Errorf("%w: new booking must be pending, got %s", ErrInvalidTransition, b.Status)
	}
	if conflicts := l.Conflicts(b.ID, b.SlotIDs, now, ttl); len(conflicts) > 0 {
		return &SlotConflictError{SlotIDs: conflicts}
	}
	l.addHold(b)
	l.UpdatedAt = now
	return nil
}

// ApplyConfirm moves b to confirmed with paymentRef. Repeating a confirmation
// with the same reference is a no-op.
func ApplyConfirm(l *DayLedger, b *Booking, paymentRef string, now time.Time, policy ConfirmPolicy) (Transition, error) {
	switch b.Status {
	case BookingStatusConfirmed:
		if b.PaymentRef == paymentRef {
			return TransitionNone, nil
		}
		return TransitionNone, fmt.Errorf("%w: booking %s already confirmed with a different payment", ErrInvalidTransition, b.Reference)
	case BookingStatusReleased:
		return flag(b, ReasonReleasedPayment, paymentRef, now,
			fmt.Errorf("%w: booking %s was released", ErrInvalidTransition, b.Reference))
	case BookingStatusPending, BookingStatusExpired:
	default:
		return TransitionNone, fmt.Errorf("%w: unknown status %s", ErrInvalidTransition, b.Status)
	}

	late := b.Status == BookingStatusExpired || HoldExpired(b.CreatedAt, now, policy.HoldTTL)
	if late && !policy.AllowLateConfirm {
		return flag(b, ReasonLatePayment, paymentRef, now, ErrHoldExpired)
	}

	if conflicts := l.Conflicts(b.ID, b.SlotIDs, now, policy.HoldTTL); len(conflicts) > 0 {
		return flag(b, ReasonLateSlotTaken, paymentRef, now, &SlotConflictError{SlotIDs: conflicts})
	}

	l.removeHold(b.ID)
	for _, id := range b.SlotIDs {
		l.Confirmed[id] = b.ID
	}
	l.UpdatedAt = now

	b.Status = BookingStatusConfirmed
	b.PaymentRef = paymentRef
	b.ConfirmedAt = &now
	b.NeedsReconciliation = false
	b.ReconcileReason = ""
	b.ReconcilePaymentRef = ""
	b.UpdatedAt = now
	return TransitionApplied, nil
}

// flag marks b for reconciliation unless the same payment was already flagged
func flag(b *Booking, reason, paymentRef string, now time.Time, err error) (Transition, error) {
	if b.NeedsReconciliation && b.ReconcileReason == reason && b.ReconcilePaymentRef == paymentRef {
		return TransitionNone, err
	}
	b.MarkForReconciliation(reason, paymentRef, now)
	return TransitionFlagged, err
}

// ApplyRelease frees b's slots. Releasing twice is a no-op.
func ApplyRelease(l *DayLedger, b *Booking, now time.Time) Transition {
	if b.Status == BookingStatusReleased {
		return TransitionNone
	}
	l.removeHold(b.ID)
	l.removeConfirmed(b.ID)
	l.UpdatedAt = now

	b.Status = BookingStatusReleased
	b.ReleasedAt = &now
	b.UpdatedAt = now
	return TransitionApplied
}

// ApplyExpire writes the expired status for a pending booking whose hold has
// lapsed and drops the hold from the ledger.
func ApplyExpire(l *DayLedger, b *Booking, now time.Time, ttl time.Duration) Transition {
	if b.Status != BookingStatusPending || !HoldExpired(b.CreatedAt, now, ttl) {
		return TransitionNone
	}
	l.removeHold(b.ID)
	l.UpdatedAt = now

	b.Status = BookingStatusExpired
	b.UpdatedAt = now
	return TransitionApplied
}
