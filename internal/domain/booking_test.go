package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewReference(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		ref, err := NewReference()
		if err != nil {
			t.Fatalf("NewReference() error = %v", err)
		}
		if !strings.HasPrefix(ref, "TB-") || len(ref) != 11 {
			t.Fatalf("NewReference() = %q, want TB- plus 8 characters", ref)
		}
		if strings.ContainsAny(ref[3:], "01OIL") {
			t.Errorf("NewReference() = %q contains an ambiguous character", ref)
		}
		if seen[ref] {
			t.Errorf("NewReference() repeated %q", ref)
		}
		seen[ref] = true
	}
}

func TestValidateCustomerPhone(t *testing.T) {
	tests := []struct {
		phone   string
		wantErr bool
	}{
		{"9876543210", false},
		{"987654321", true},
		{"98765432100", true},
		{"98765abc10", true},
		{"+919876543", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateCustomerPhone(tt.phone)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateCustomerPhone(%q) error = %v, wantErr %v", tt.phone, err, tt.wantErr)
		}
	}
}

func TestValidateCustomerName(t *testing.T) {
	if err := ValidateCustomerName("Asha"); err != nil {
		t.Errorf("ValidateCustomerName(Asha) error = %v", err)
	}
	if err := ValidateCustomerName("   "); !IsValidationError(err) {
		t.Errorf("blank name error = %v, want validation error", err)
	}
	if err := ValidateCustomerName(strings.Repeat("a", 101)); !IsValidationError(err) {
		t.Errorf("long name error = %v, want validation error", err)
	}
}

func TestValidateSlotIDs(t *testing.T) {
	w := DefaultOperatingWindow()
	tests := []struct {
		name    string
		ids     []string
		wantErr bool
	}{
		{"valid pair", []string{"slot-18", "slot-19"}, false},
		{"empty", nil, true},
		{"unknown slot", []string{"slot-99"}, true},
		{"before opening", []string{"slot-5"}, true},
		{"duplicate", []string{"slot-18", "slot-18"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlotIDs(tt.ids, w)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSlotIDs() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBooking_EffectiveStatus(t *testing.T) {
	created := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status BookingStatus
		now    time.Time
		want   BookingStatus
	}{
		{"live hold", BookingStatusPending, created.Add(9 * time.Minute), BookingStatusPending},
		{"lapsed hold", BookingStatusPending, created.Add(11 * time.Minute), BookingStatusExpired},
		{"confirmed never expires", BookingStatusConfirmed, created.Add(24 * time.Hour), BookingStatusConfirmed},
		{"released", BookingStatusReleased, created, BookingStatusReleased},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Status: tt.status, CreatedAt: created}
			if got := b.EffectiveStatus(tt.now, HoldTTL); got != tt.want {
				t.Errorf("EffectiveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBooking_Clone(t *testing.T) {
	now := time.Now()
	b := &Booking{SlotIDs: []string{"slot-6"}, ConfirmedAt: &now}
	c := b.Clone()

	c.SlotIDs[0] = "slot-7"
	*c.ConfirmedAt = now.Add(time.Hour)

	if b.SlotIDs[0] != "slot-6" {
		t.Error("Clone shares SlotIDs")
	}
	if !b.ConfirmedAt.Equal(now) {
		t.Error("Clone shares ConfirmedAt")
	}
}

func TestBookingEvent_Key(t *testing.T) {
	b := &Booking{ID: "b1", TurfID: "main", Date: MustParseDate("2025-06-07"), ReconcilePaymentRef: "pay_1"}
	e := NewBookingEvent(BookingEventFlagged, b, "evt-1", time.Now())

	if e.Key() != "main:2025-06-07" {
		t.Errorf("Key() = %q", e.Key())
	}
	if e.PaymentRef != "pay_1" {
		t.Errorf("PaymentRef = %q, want reconcile ref", e.PaymentRef)
	}
}
