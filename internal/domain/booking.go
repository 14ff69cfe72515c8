package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusReleased  BookingStatus = "released"
	BookingStatusExpired   BookingStatus = "expired"
)

// IsValid checks if the status is a valid BookingStatus
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusReleased, BookingStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of BookingStatus
func (s BookingStatus) String() string {
	return string(s)
}

const (
	maxCustomerNameLen = 100
	phoneDigits        = 10
	referenceAlphabet  = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	referenceLen       = 8
)

// Booking is a customer's claim on one or more slots of a single date
type Booking struct {
	ID                  string        `json:"id"`
	Reference           string        `json:"reference"`
	TurfID              string        `json:"turf_id"`
	Date                Date          `json:"date"`
	SlotIDs             []string      `json:"slot_ids"`
	Status              BookingStatus `json:"status"`
	Amount              int64         `json:"amount"`
	CustomerName        string        `json:"customer_name"`
	CustomerPhone       string        `json:"customer_phone"`
	OrderID             string        `json:"order_id,omitempty"`
	PaymentRef          string        `json:"payment_ref,omitempty"`
	NeedsReconciliation bool          `json:"needs_reconciliation,omitempty"`
	ReconcileReason     string        `json:"reconcile_reason,omitempty"`
	ReconcilePaymentRef string        `json:"reconcile_payment_ref,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	ConfirmedAt         *time.Time    `json:"confirmed_at,omitempty"`
	ReleasedAt          *time.Time    `json:"released_at,omitempty"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// NewReference returns a short, unambiguous code customers quote to support
func NewReference() (string, error) {
	code, err := gonanoid.Generate(referenceAlphabet, referenceLen)
	if err != nil {
		return "", err
	}
	return "TB-" + code, nil
}

// ValidateCustomerName requires a non-blank name of bounded length
func ValidateCustomerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError("customer_name", "is required")
	}
	if utf8.RuneCountInString(name) > maxCustomerNameLen {
		return NewValidationError("customer_name", "must be at most 100 characters")
	}
	return nil
}

// ValidateCustomerPhone requires exactly ten digits
func ValidateCustomerPhone(phone string) error {
	if len(phone) != phoneDigits {
		return NewValidationError("customer_phone", "must be exactly 10 digits")
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return NewValidationError("customer_phone", "must contain digits only")
		}
	}
	return nil
}

// ValidateSlotIDs requires a non-empty list of distinct slots inside w
func ValidateSlotIDs(slotIDs []string, w OperatingWindow) error {
	if len(slotIDs) == 0 {
		return NewValidationError("slot_ids", "at least one slot is required")
	}
	seen := make(map[string]struct{}, len(slotIDs))
	for _, id := range slotIDs {
		if !w.Contains(id) {
			return NewValidationError("slot_ids", "unknown slot "+id)
		}
		if _, dup := seen[id]; dup {
			return NewValidationError("slot_ids", "duplicate slot "+id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// HoldExpiresAt is when a pending hold stops blocking its slots
func (b *Booking) HoldExpiresAt(ttl time.Duration) time.Time {
	return b.CreatedAt.Add(ttl)
}

// HoldActive reports whether a pending booking still blocks its slots at now
func (b *Booking) HoldActive(now time.Time, ttl time.Duration) bool {
	return b.Status == BookingStatusPending && !HoldExpired(b.CreatedAt, now, ttl)
}

// Occupies reports whether the booking makes its slots unavailable at now
func (b *Booking) Occupies(now time.Time, ttl time.Duration) bool {
	return b.Status == BookingStatusConfirmed || b.HoldActive(now, ttl)
}

// EffectiveStatus reports expired for pending bookings whose hold lapsed,
// whether or not housekeeping has written that yet
func (b *Booking) EffectiveStatus(now time.Time, ttl time.Duration) BookingStatus {
	if b.Status == BookingStatusPending && HoldExpired(b.CreatedAt, now, ttl) {
		return BookingStatusExpired
	}
	return b.Status
}

// MarkForReconciliation records a payment that could not be applied
func (b *Booking) MarkForReconciliation(reason, paymentRef string, now time.Time) {
	b.NeedsReconciliation = true
	b.ReconcileReason = reason
	b.ReconcilePaymentRef = paymentRef
	b.UpdatedAt = now
}

// Clone returns a deep copy
func (b *Booking) Clone() *Booking {
	c := *b
	c.SlotIDs = append([]string(nil), b.SlotIDs...)
	if b.ConfirmedAt != nil {
		t := *b.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if b.ReleasedAt != nil {
		t := *b.ReleasedAt
		c.ReleasedAt = &t
	}
	return &c
}
