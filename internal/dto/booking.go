package dto

import (
	"time"

	"github.com/prohmpiriya/turf-booking/internal/domain"
)

// ReserveRequest represents a request to hold slots. Any client-side amount
// is ignored; the server prices the booking.
type ReserveRequest struct {
	Date          string   `json:"date" binding:"required"`
	SlotIDs       []string `json:"slot_ids" binding:"required"`
	CustomerName  string   `json:"customer_name" binding:"required"`
	CustomerPhone string   `json:"customer_phone" binding:"required"`
}

// ReserveResponse represents a pending hold
type ReserveResponse struct {
	BookingID string    `json:"booking_id"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	Date      string    `json:"date"`
	SlotIDs   []string  `json:"slot_ids"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfirmRequest carries a gateway payment callback
type ConfirmRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature"`
}

// ConfirmResponse represents a confirmed booking
type ConfirmResponse struct {
	BookingID   string     `json:"booking_id"`
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	PaymentRef  string     `json:"payment_ref"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// CreateOrderResponse is what the client needs to open the gateway checkout
type CreateOrderResponse struct {
	BookingID    string `json:"booking_id"`
	Reference    string `json:"reference"`
	Gateway      string `json:"gateway"`
	KeyID        string `json:"key_id,omitempty"`
	OrderID      string `json:"order_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"client_secret,omitempty"`
	CheckoutURL  string `json:"checkout_url,omitempty"`
}

// ReleaseResponse carries the released booking and the double-booking warning
type ReleaseResponse struct {
	Booking *BookingResponse `json:"booking"`
	Warning string           `json:"warning"`
}

// ReconcileResponse reports the outcome of a status-fetch check
type ReconcileResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Outcome   string `json:"outcome"`
}

// BookingResponse represents a booking in API responses
type BookingResponse struct {
	ID                  string     `json:"id"`
	Reference           string     `json:"reference"`
	Date                string     `json:"date"`
	SlotIDs             []string   `json:"slot_ids"`
	Status              string     `json:"status"`
	Amount              int64      `json:"amount"`
	CustomerName        string     `json:"customer_name"`
	CustomerPhone       string     `json:"customer_phone"`
	OrderID             string     `json:"order_id,omitempty"`
	PaymentRef          string     `json:"payment_ref,omitempty"`
	NeedsReconciliation bool       `json:"needs_reconciliation,omitempty"`
	ReconcileReason     string     `json:"reconcile_reason,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	ConfirmedAt         *time.Time `json:"confirmed_at,omitempty"`
	ReleasedAt          *time.Time `json:"released_at,omitempty"`
}

// PublicBookingResponse is what an unauthenticated phone lookup may see.
// Names and payment details stay behind the admin routes.
type PublicBookingResponse struct {
	ID          string     `json:"id"`
	Reference   string     `json:"reference"`
	Date        string     `json:"date"`
	SlotIDs     []string   `json:"slot_ids"`
	Status      string     `json:"status"`
	Amount      int64      `json:"amount"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Public strips the customer and payment fields
func (r *BookingResponse) Public() *PublicBookingResponse {
	return &PublicBookingResponse{
		ID:          r.ID,
		Reference:   r.Reference,
		Date:        r.Date,
		SlotIDs:     r.SlotIDs,
		Status:      r.Status,
		Amount:      r.Amount,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		ConfirmedAt: r.ConfirmedAt,
	}
}

// FromDomain converts a domain Booking to BookingResponse. Pending holds
// that lapsed are reported as expired.
func FromDomain(b *domain.Booking, now time.Time, ttl time.Duration) *BookingResponse {
	resp := &BookingResponse{
		ID:                  b.ID,
		Reference:           b.Reference,
		Date:                b.Date.String(),
		SlotIDs:             append([]string(nil), b.SlotIDs...),
		Status:              string(b.EffectiveStatus(now, ttl)),
		Amount:              b.Amount,
		CustomerName:        b.CustomerName,
		CustomerPhone:       b.CustomerPhone,
		OrderID:             b.OrderID,
		PaymentRef:          b.PaymentRef,
		NeedsReconciliation: b.NeedsReconciliation,
		ReconcileReason:     b.ReconcileReason,
		CreatedAt:           b.CreatedAt,
		ConfirmedAt:         b.ConfirmedAt,
		ReleasedAt:          b.ReleasedAt,
	}
	if b.Status == domain.BookingStatusPending {
		exp := b.HoldExpiresAt(ttl)
		resp.ExpiresAt = &exp
	}
	return resp
}

// FromDomainList converts a list of bookings
func FromDomainList(bookings []*domain.Booking, now time.Time, ttl time.Duration) []*BookingResponse {
	out := make([]*BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, FromDomain(b, now, ttl))
	}
	return out
}
