package dto

import "time"

// SlotAvailability is one catalog slot with its current availability
type SlotAvailability struct {
	ID        string `json:"id"`
	StartHour int    `json:"start_hour"`
	Label     string `json:"label"`
	Period    string `json:"period"`
	Price     int64  `json:"price"`
	Available bool   `json:"available"`
}

// AvailabilityResponse is the slot grid for one date
type AvailabilityResponse struct {
	Date             string             `json:"date"`
	IsWeekend        bool               `json:"is_weekend"`
	Rate             int64              `json:"rate"`
	Currency         string             `json:"currency"`
	Slots            []SlotAvailability `json:"slots"`
	UnavailableSlots []string           `json:"unavailable_slot_ids"`
}

// SlotActionRequest names one slot of one date for an admin lock or unlock
type SlotActionRequest struct {
	Date   string `json:"date" binding:"required"`
	SlotID string `json:"slot_id" binding:"required"`
}

// LockedSlotsResponse lists the admin locks of a date after a change
type LockedSlotsResponse struct {
	Date        string   `json:"date"`
	LockedSlots []string `json:"locked_slot_ids"`
}

// SlotStateResponse is the raw ledger view used by operators
type SlotStateResponse struct {
	Date        string            `json:"date"`
	Locked      []string          `json:"locked_slot_ids"`
	Confirmed   map[string]string `json:"confirmed"`
	Held        []string          `json:"held_slot_ids"`
	Unavailable []string          `json:"unavailable_slot_ids"`
	Version     int64             `json:"version"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
