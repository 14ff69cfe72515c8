package dto

import (
	"time"

	"github.com/prohmpiriya/turf-booking/internal/domain"
)

// Pricing sources
const (
	PricingSourceStored   = "stored"
	PricingSourceDefaults = "defaults"
)

// PricingResponse represents the current pricing record
type PricingResponse struct {
	WeekdayRate int64      `json:"weekday_rate"`
	WeekendRate int64      `json:"weekend_rate"`
	Currency    string     `json:"currency"`
	Version     int64      `json:"version"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Source      string     `json:"source"`
}

// UpdatePricingRequest replaces both rates
type UpdatePricingRequest struct {
	WeekdayRate int64 `json:"weekday_rate" binding:"required"`
	WeekendRate int64 `json:"weekend_rate" binding:"required"`
}

// QuoteResponse is the server-computed amount for a selection
type QuoteResponse struct {
	Date      string   `json:"date"`
	SlotIDs   []string `json:"slot_ids"`
	IsWeekend bool     `json:"is_weekend"`
	Rate      int64    `json:"rate"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
}

// PricingFromDomain converts a pricing record
func PricingFromDomain(p *domain.PricingConfig, currency, source string) *PricingResponse {
	resp := &PricingResponse{
		WeekdayRate: p.WeekdayRate,
		WeekendRate: p.WeekendRate,
		Currency:    currency,
		Version:     p.Version,
		Source:      source,
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}
