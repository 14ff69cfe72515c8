package domain

import "time"

// Seed rates in whole currency units
const (
	DefaultWeekdayRate int64 = 1200
	DefaultWeekendRate int64 = 1600
)

// PricingConfig is the single versioned pricing record. Admin writes
// replace it wholesale.
type PricingConfig struct {
	WeekdayRate int64     `json:"weekday_rate"`
	WeekendRate int64     `json:"weekend_rate"`
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultPricing returns the seed record
func DefaultPricing() PricingConfig {
	return PricingConfig{
		WeekdayRate: DefaultWeekdayRate,
		WeekendRate: DefaultWeekendRate,
	}
}

// Validate checks both rates are positive
func (p PricingConfig) Validate() error {
	if p.WeekdayRate <= 0 {
		return NewValidationError("weekday_rate", "must be a positive amount")
	}
	if p.WeekendRate <= 0 {
		return NewValidationError("weekend_rate", "must be a positive amount")
	}
	return nil
}

// RateFor returns the per-slot rate for d
func (p PricingConfig) RateFor(d Date) int64 {
	if d.IsWeekend() {
		return p.WeekendRate
	}
	return p.WeekdayRate
}

// Amount is the total for booking slotIDs on d
func (p PricingConfig) Amount(slotIDs []string, d Date) int64 {
	return int64(len(slotIDs)) * p.RateFor(d)
}
