package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Period groups slots for display
type Period string

const (
	PeriodMorning   Period = "Morning"
	PeriodAfternoon Period = "Afternoon"
	PeriodEvening   Period = "Evening"
)

const slotIDPrefix = "slot-"

// TimeSlot is a one-hour bookable unit. Slots are generated, never stored.
type TimeSlot struct {
	ID        string `json:"id"`
	StartHour int    `json:"start_hour"`
	Label     string `json:"label"`
	Period    Period `json:"period"`
}

// OperatingWindow is the range of bookable start hours [OpenHour, CloseHour)
type OperatingWindow struct {
	OpenHour  int
	CloseHour int
}

// DefaultOperatingWindow is 06:00 to midnight
func DefaultOperatingWindow() OperatingWindow {
	return OperatingWindow{OpenHour: 6, CloseHour: 24}
}

// Slots returns the day's slots in chronological order
func (w OperatingWindow) Slots() []TimeSlot {
	slots := make([]TimeSlot, 0, w.CloseHour-w.OpenHour)
	for h := w.OpenHour; h < w.CloseHour; h++ {
		slots = append(slots, NewTimeSlot(h))
	}
	return slots
}

// SlotsForDay returns the catalog for any date inside w
func SlotsForDay(w OperatingWindow) []TimeSlot {
	return w.Slots()
}

// Contains reports whether id names a slot inside the window
func (w OperatingWindow) Contains(id string) bool {
	h, ok := ParseSlotID(id)
	return ok && h >= w.OpenHour && h < w.CloseHour
}

// NewTimeSlot builds the slot starting at hour
func NewTimeSlot(hour int) TimeSlot {
	return TimeSlot{
		ID:        SlotID(hour),
		StartHour: hour,
		Label:     fmt.Sprintf("%s - %s", formatHour(hour), formatHour(hour+1)),
		Period:    PeriodOf(hour),
	}
}

// SlotID returns the id of the slot starting at hour
func SlotID(hour int) string {
	return slotIDPrefix + strconv.Itoa(hour)
}

// ParseSlotID returns the start hour encoded in id
func ParseSlotID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, slotIDPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	h, err := strconv.Atoi(rest)
	if err != nil || h < 0 || h > 23 || strconv.Itoa(h) != rest {
		return 0, false
	}
	return h, true
}

// PeriodOf classifies a start hour
func PeriodOf(hour int) Period {
	switch {
	case hour < 12:
		return PeriodMorning
	case hour < 17:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// formatHour renders a 12-hour clock label; 0 and 24 are both "12 AM"
func formatHour(h int) string {
	h %= 24
	switch {
	case h == 0:
		return "12 AM"
	case h < 12:
		return fmt.Sprintf("%d AM", h)
	case h == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", h-12)
	}
}
