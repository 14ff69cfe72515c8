package domain

import "time"

// BookingEventType names a booking lifecycle event
type BookingEventType string

const (
	BookingEventReserved  BookingEventType = "booking.reserved"
	BookingEventConfirmed BookingEventType = "booking.confirmed"
	BookingEventReleased  BookingEventType = "booking.released"
	BookingEventExpired   BookingEventType = "booking.expired"
	BookingEventFlagged   BookingEventType = "booking.flagged"
)

// BookingEvent is the payload published for booking lifecycle changes
type BookingEvent struct {
	EventID    string           `json:"event_id"`
	Type       BookingEventType `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	BookingID  string           `json:"booking_id"`
	Reference  string           `json:"reference"`
	TurfID     string           `json:"turf_id"`
	Date       Date             `json:"date"`
	SlotIDs    []string         `json:"slot_ids"`
	Amount     int64            `json:"amount"`
	Status     BookingStatus    `json:"status"`
	PaymentRef string           `json:"payment_ref,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// NewBookingEvent snapshots b into an event
func NewBookingEvent(eventType BookingEventType, b *Booking, eventID string, now time.Time) *BookingEvent {
	paymentRef := b.PaymentRef
	if paymentRef == "" {
		paymentRef = b.ReconcilePaymentRef
	}
	return &BookingEvent{
		EventID:    eventID,
		Type:       eventType,
		OccurredAt: now,
		BookingID:  b.ID,
		Reference:  b.Reference,
		TurfID:     b.TurfID,
		Date:       b.Date,
		SlotIDs:    append([]string(nil), b.SlotIDs...),
		Amount:     b.Amount,
		Status:     b.Status,
		PaymentRef: paymentRef,
		Reason:     b.ReconcileReason,
	}
}

// Key partitions events by turf and date so a day's events stay ordered
func (e *BookingEvent) Key() string {
	return e.TurfID + ":" + e.Date.String()
}
