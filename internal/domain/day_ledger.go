package domain

import (
	"slices"
	"time"
)

// SlotHold is a pending booking's temporary claim recorded on the ledger
type SlotHold struct {
	BookingID string    `json:"booking_id"`
	SlotIDs   []string  `json:"slot_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// DayLedger is the per-(turf, date) slot document. Every change to a date's
// availability is one atomic read-modify-write of its ledger.
type DayLedger struct {
	TurfID    string            `json:"turf_id"`
	Date      Date              `json:"date"`
	Locked    []string          `json:"locked"`
	Confirmed map[string]string `json:"confirmed"`
	Holds     []SlotHold        `json:"holds"`
	Version   int64             `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewDayLedger returns an empty ledger
func NewDayLedger(turfID string, date Date) *DayLedger {
	return &DayLedger{
		TurfID:    turfID,
		Date:      date,
		Locked:    []string{},
		Confirmed: map[string]string{},
		Holds:     []SlotHold{},
	}
}

// Normalize fills nil collections after decoding
func (l *DayLedger) Normalize() {
	if l.Locked == nil {
		l.Locked = []string{}
	}
	if l.Confirmed == nil {
		l.Confirmed = map[string]string{}
	}
	if l.Holds == nil {
		l.Holds = []SlotHold{}
	}
}

// Unavailable returns the locked, confirmed and actively held slots at now
func (l *DayLedger) Unavailable(now time.Time, ttl time.Duration) SlotSet {
	return l.unavailableExcept("", now, ttl)
}

func (l *DayLedger) unavailableExcept(bookingID string, now time.Time, ttl time.Duration) SlotSet {
	out := NewSlotSet(l.Locked...)
	for id, owner := range l.Confirmed {
		if owner != bookingID {
			out.Add(id)
		}
	}
	for _, h := range l.Holds {
		if h.BookingID == bookingID || HoldExpired(h.CreatedAt, now, ttl) {
			continue
		}
		for _, id := range h.SlotIDs {
			out.Add(id)
		}
	}
	return out
}

// Conflicts returns the members of slotIDs that are unavailable to bookingID
func (l *DayLedger) Conflicts(bookingID string, slotIDs []string, now time.Time, ttl time.Duration) []string {
	return l.unavailableExcept(bookingID, now, ttl).Intersect(slotIDs)
}

// LockedSlots returns the admin-locked slots in slot order
func (l *DayLedger) LockedSlots() []string {
	return NewSlotSet(l.Locked...).Sorted()
}

// Lock adds an admin lock. It reports whether the ledger changed.
func (l *DayLedger) Lock(slotID string) bool {
	if slices.Contains(l.Locked, slotID) {
		return false
	}
	l.Locked = append(l.Locked, slotID)
	return true
}

// Unlock removes an admin lock. Bookings are untouched.
func (l *DayLedger) Unlock(slotID string) bool {
	i := slices.Index(l.Locked, slotID)
	if i < 0 {
		return false
	}
	l.Locked = slices.Delete(l.Locked, i, i+1)
	return true
}

func (l *DayLedger) addHold(b *Booking) {
	l.Holds = append(l.Holds, SlotHold{
		BookingID: b.ID,
		SlotIDs:   append([]string(nil), b.SlotIDs...),
		CreatedAt: b.CreatedAt,
	})
}

func (l *DayLedger) removeHold(bookingID string) bool {
	n := len(l.Holds)
	l.Holds = slices.DeleteFunc(l.Holds, func(h SlotHold) bool { return h.BookingID == bookingID })
	return len(l.Holds) != n
}

func (l *DayLedger) removeConfirmed(bookingID string) bool {
	changed := false
	for id, owner := range l.Confirmed {
		if owner == bookingID {
			delete(l.Confirmed, id)
			changed = true
		}
	}
	return changed
}

// PruneExpired drops lapsed holds and returns their booking ids
func (l *DayLedger) PruneExpired(now time.Time, ttl time.Duration) []string {
	var pruned []string
	l.Holds = slices.DeleteFunc(l.Holds, func(h SlotHold) bool {
		if HoldExpired(h.CreatedAt, now, ttl) {
			pruned = append(pruned, h.BookingID)
			return true
		}
		return false
	})
	return pruned
}

// Clone returns a deep copy
func (l *DayLedger) Clone() *DayLedger {
	c := *l
	c.Locked = append([]string{}, l.Locked...)
	c.Confirmed = make(map[string]string, len(l.Confirmed))
	for k, v := range l.Confirmed {
		c.Confirmed[k] = v
	}
	c.Holds = make([]SlotHold, len(l.Holds))
	for i, h := range l.Holds {
		h.SlotIDs = append([]string(nil), h.SlotIDs...)
		c.Holds[i] = h
	}
	return &c
}
