package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

var (
	testDate = MustParseDate("2025-06-07")
	t0       = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func newPending(id string, createdAt time.Time, slots ...string) *Booking {
	return &Booking{
		ID:        id,
		Reference: "TB-" + id,
		TurfID:    "main",
		Date:      testDate,
		SlotIDs:   slots,
		Status:    BookingStatusPending,
		CreatedAt: createdAt,
	}
}

func TestApplyReserve_Conflicts(t *testing.T) {
	l := NewDayLedger("main", testDate)

	first := newPending("a", t0, "slot-18", "slot-19")
	if err := ApplyReserve(l, first, t0, HoldTTL); err != nil {
		t.Fatalf("first reserve error = %v", err)
	}

	second := newPending("b", t0.Add(time.Minute), "slot-19", "slot-20")
	err := ApplyReserve(l, second, t0.Add(time.Minute), HoldTTL)
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("second reserve error = %v, want slot conflict", err)
	}
	if slots, _ := ConflictingSlots(err); !reflect.DeepEqual(slots, []string{"slot-19"}) {
		t.Errorf("conflicting slots = %v, want [slot-19]", slots)
	}
	if len(l.Holds) != 1 {
		t.Errorf("failed reserve changed ledger: %d holds", len(l.Holds))
	}

	later := t0.Add(HoldTTL + time.Second)
	third := newPending("c", later, "slot-19", "slot-20")
	if err := ApplyReserve(l, third, later, HoldTTL); err != nil {
		t.Errorf("reserve after hold lapsed error = %v", err)
	}
}

func TestApplyReserve_LockedAndConfirmed(t *testing.T) {
	l := NewDayLedger("main", testDate)
	l.Lock("slot-6")
	l.Confirmed["slot-7"] = "old"

	err := ApplyReserve(l, newPending("a", t0, "slot-6", "slot-7", "slot-8"), t0, HoldTTL)
	slots, ok := ConflictingSlots(err)
	if !ok || !reflect.DeepEqual(slots, []string{"slot-6", "slot-7"}) {
		t.Errorf("ApplyReserve() err = %v, want conflict on slot-6 and slot-7", err)
	}
}

func TestApplyConfirm(t *testing.T) {
	strict := ConfirmPolicy{HoldTTL: HoldTTL}
	lenient := ConfirmPolicy{HoldTTL: HoldTTL, AllowLateConfirm: true}

	t.Run("confirms live hold", func(t *testing.T) {
		l := NewDayLedger("main", testDate)
		b := newPending("a", t0, "slot-18", "slot-19")
		_ = ApplyReserve(l, b, t0, HoldTTL)

		tr, err := ApplyConfirm(l, b, "pay_1", t0.Add(5*time.Minute), strict)
		if err != nil || tr != TransitionApplied {
			t.Fatalf("ApplyConfirm() = %v, %v, want applied", tr, err)
		}
		if b.Status != BookingStatusConfirmed || b.PaymentRef != "pay_1" || b.ConfirmedAt == nil {
			t.Errorf("booking not confirmed: %+v", b)
		}
		if len(l.Holds) != 0 || l.Confirmed["slot-18"] != "a" || l.Confirmed["slot-19"] != "a" {
			t.Errorf("ledger not updated: %+v", l)
		}
		if !l.Unavailable(t0.Add(48*time.Hour), HoldTTL).Has("slot-18") {
			t.Error("confirmed slot should stay unavailable")
		}
	})

	t.Run("repeat with same ref is a no-op", func(t *testing.T) {
		l := NewDayLedger("main", testDate)
		b := newPending("a", t0, "slot-18")
		_ = ApplyReserve(l, b, t0, HoldTTL)
		_, _ = ApplyConfirm(l, b, "pay_1", t0, strict)

		tr, err := ApplyConfirm(l, b, "pay_1", t0.Add(time.Hour), strict)
		if err != nil || tr != TransitionNone {
			t.Errorf("ApplyConfirm() repeat = %v, %v, want none", tr, err)
		}
	})

	t.Run("different ref is rejected", func(t *testing.T) {
		l := NewDayLedger("main", testDate)
		b := newPending("a", t0, "slot-18")
		_ = ApplyReserve(l, b, t0, HoldTTL)
		_, _ = ApplyConfirm(l, b, "pay_1", t0, strict)

		_, err := ApplyConfirm(l, b, "pay_2", t0, strict)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("ApplyConfirm() err = %v, want invalid transition", err)
		}
		if b.PaymentRef != "pay_1" {
			t.Errorf("PaymentRef = %q, want pay_1", b.PaymentRef)
		}
	})

	t.Run("late payment rejected and flagged", func(t *testing.T) {
		l := NewDayLedger("main", testDate)
		b := newPending("a", t0, "slot-18")
		_ = ApplyReserve(l, b, t0, HoldTTL)

		tr, err := ApplyConfirm(l, b, "pay_1", t0.Add(11*time.Minute), strict)
		if !errors.Is(err, ErrHoldExpired) || !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("ApplyConfirm() err = %v, want hold expired", err)
		}
		if tr != TransitionFlagged || !b.NeedsReconciliation || b.ReconcileReason != ReasonLatePayment {
			t.Errorf("booking not flagged: %v %+v", tr, b)
		}
		if b.Status != BookingStatusPending {
			t.Errorf("Status = %v, want pending", b.Status)
		}

		tr, _ = ApplyConfirm(l, b, "pay_1", t0.Add(12*time.Minute), strict)
		if tr != TransitionNone {
			t.Errorf("second flag = %v, want none", tr)
		}
	})

	t.Run("late payment allowed when slots free", func(t *testing.T) {
		l := NewDayLedger("main", testDate)
		b := newPending("a", t0, "slot-18")
		_ = ApplyReserve(l, b, t0, HoldTTL)

		tr, err := ApplyConfirm(l, b, "pay_1", t0.Add(30*time.Minute), lenient)
		if err != nil || tr != TransitionApplied {
			t.Errorf("ApplyConfirm() = %v, %v, want applied", tr, err)
		}
	})

	t.Run("late payment allowed but slot re-booked", func(t *testing.T) {
		l := NewDayLedger("main", testDate)
		b := newPending("a", t0, "slot-18")
		_ = ApplyReserve(l, b, t0, HoldTTL)

		later := t0.Add(20 * time.Minute)
		other := newPending("b", later, "slot-18")
		if err := ApplyReserve(l, other, later, HoldTTL); err != nil {
			t.Fatalf("re-book error = %v", err)
		}

		tr, err := ApplyConfirm(l, b, "pay_1", later.Add(time.Minute), lenient)
		if !errors.Is(err, ErrSlotConflict) || tr != TransitionFlagged {
			t.Errorf("ApplyConfirm() = %v, %v, want flagged conflict", tr, err)
		}
		if b.ReconcileReason != ReasonLateSlotTaken {
			t.Errorf("ReconcileReason = %q", b.ReconcileReason)
		}
	})

	t.Run("released booking is flagged", func(t *testing.T) {
		l := NewDayLedger("main", testDate)
		b := newPending("a", t0, "slot-18")
		_ = ApplyReserve(l, b, t0, HoldTTL)
		ApplyRelease(l, b, t0)

		tr, err := ApplyConfirm(l, b, "pay_1", t0, strict)
		if !errors.Is(err, ErrInvalidTransition) || tr != TransitionFlagged {
			t.Errorf("ApplyConfirm() = %v, %v", tr, err)
		}
		if b.Status != BookingStatusReleased {
			t.Errorf("Status = %v, want released", b.Status)
		}
	})
}

func TestApplyRelease(t *testing.T) {
	l := NewDayLedger("main", testDate)
	b := newPending("a", t0, "slot-18", "slot-19")
	_ = ApplyReserve(l, b, t0, HoldTTL)
	_, _ = ApplyConfirm(l, b, "pay_1", t0, ConfirmPolicy{HoldTTL: HoldTTL})

	if tr := ApplyRelease(l, b, t0.Add(time.Hour)); tr != TransitionApplied {
		t.Fatalf("ApplyRelease() = %v, want applied", tr)
	}
	if len(l.Confirmed) != 0 {
		t.Errorf("confirmed slots left: %v", l.Confirmed)
	}
	if b.Status != BookingStatusReleased || b.ReleasedAt == nil {
		t.Errorf("booking = %+v", b)
	}
	if tr := ApplyRelease(l, b, t0.Add(2*time.Hour)); tr != TransitionNone {
		t.Errorf("second release = %v, want none", tr)
	}

	next := newPending("b", t0.Add(time.Hour), "slot-18")
	if err := ApplyReserve(l, next, t0.Add(time.Hour), HoldTTL); err != nil {
		t.Errorf("reserve after release error = %v", err)
	}
}

func TestApplyExpire(t *testing.T) {
	l := NewDayLedger("main", testDate)
	b := newPending("a", t0, "slot-18")
	_ = ApplyReserve(l, b, t0, HoldTTL)

	if tr := ApplyExpire(l, b, t0.Add(5*time.Minute), HoldTTL); tr != TransitionNone {
		t.Errorf("expire of live hold = %v, want none", tr)
	}
	if tr := ApplyExpire(l, b, t0.Add(11*time.Minute), HoldTTL); tr != TransitionApplied {
		t.Errorf("expire of lapsed hold = %v, want applied", tr)
	}
	if b.Status != BookingStatusExpired || len(l.Holds) != 0 {
		t.Errorf("booking = %v, holds = %d", b.Status, len(l.Holds))
	}
}

func TestDayLedger_LockUnlock(t *testing.T) {
	l := NewDayLedger("main", testDate)

	if !l.Lock("slot-20") || l.Lock("slot-20") {
		t.Error("Lock should change the ledger once")
	}
	l.Confirmed["slot-21"] = "b"
	if !l.Unlock("slot-20") || l.Unlock("slot-21") {
		t.Error("Unlock should only remove locks")
	}
	if l.Confirmed["slot-21"] != "b" {
		t.Error("Unlock touched a booking")
	}
}

func TestDayLedger_PruneExpired(t *testing.T) {
	l := NewDayLedger("main", testDate)
	_ = ApplyReserve(l, newPending("old", t0, "slot-6"), t0, HoldTTL)
	_ = ApplyReserve(l, newPending("new", t0.Add(5*time.Minute), "slot-7"), t0.Add(5*time.Minute), HoldTTL)

	pruned := l.PruneExpired(t0.Add(11*time.Minute), HoldTTL)
	if !reflect.DeepEqual(pruned, []string{"old"}) {
		t.Errorf("PruneExpired() = %v, want [old]", pruned)
	}
	if len(l.Holds) != 1 || l.Holds[0].BookingID != "new" {
		t.Errorf("remaining holds = %+v", l.Holds)
	}
}
