package domain

import (
	"sort"
	"time"
)

// HoldTTL is how long a pending booking blocks its slots
const HoldTTL = 10 * time.Minute

// HoldExpired is the soft-expiry rule: a hold lapses once more than ttl has
// passed since it was created.
func HoldExpired(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(createdAt) > ttl
}

// SlotSet is a set of slot ids
type SlotSet map[string]struct{}

// NewSlotSet builds a set from ids
func NewSlotSet(ids ...string) SlotSet {
	s := make(SlotSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s SlotSet) Add(id string) {
	s[id] = struct{}{}
}

func (s SlotSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in chronological slot order
func (s SlotSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sortSlotIDs(out)
	return out
}

// Intersect returns the members of ids that are in s, keeping ids' order
func (s SlotSet) Intersect(ids []string) []string {
	var out []string
	for _, id := range ids {
		if s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func sortSlotIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		hi, _ := ParseSlotID(ids[i])
		hj, _ := ParseSlotID(ids[j])
		if hi != hj {
			return hi < hj
		}
		return ids[i] < ids[j]
	})
}

// UnavailableSlots folds the bookings of one date into the set of slots they
// block at now. Confirmed bookings always count; pending ones only while
// their hold is live.
func UnavailableSlots(date Date, bookings []*Booking, now time.Time, ttl time.Duration) SlotSet {
	out := SlotSet{}
	for _, b := range bookings {
		if b.Date != date || !b.Occupies(now, ttl) {
			continue
		}
		for _, id := range b.SlotIDs {
			out.Add(id)
		}
	}
	return out
}

// Today returns the current calendar day in loc
func Today(now time.Time, loc *time.Location) Date {
	return DateOf(now, loc)
}

// SlotPassed reports whether the slot starting at hour on date has ended at now
func SlotPassed(date Date, hour int, now time.Time, loc *time.Location) bool {
	return !now.Before(date.At(hour+1, loc))
}

// PastSlots returns the slots of date that can no longer be booked at now
func PastSlots(date Date, w OperatingWindow, now time.Time, loc *time.Location) SlotSet {
	out := SlotSet{}
	today := Today(now, loc)
	switch {
	case date.Before(today):
		for _, s := range w.Slots() {
			out.Add(s.ID)
		}
	case date == today:
		for _, s := range w.Slots() {
			if SlotPassed(date, s.StartHour, now, loc) {
				out.Add(s.ID)
			}
		}
	}
	return out
}
