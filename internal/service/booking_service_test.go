package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/dto"
)

// Friday 2025-06-06 10:00 IST
var friday = time.Date(2025, 6, 6, 10, 0, 0, 0, ist)

func reserveReq(date string, slots ...string) *dto.ReserveRequest {
	return &dto.ReserveRequest{
		Date:          date,
		SlotIDs:       slots,
		CustomerName:  "Asha Rao",
		CustomerPhone: "9876543210",
	}
}

func TestBookingService_Reserve_Success(t *testing.T) {
	f := newFixture(friday)

	resp, err := f.bookings.Reserve(context.Background(), reserveReq("2025-06-07", "slot-18", "slot-19"))
	require.NoError(t, err)

	assert.NotEmpty(t, resp.BookingID)
	assert.Regexp(t, `^TB-[0-9A-Z]{8}$`, resp.Reference)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, int64(3200), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.True(t, resp.ExpiresAt.Equal(friday.Add(10*time.Minute)))
	assert.Equal(t, []domain.BookingEventType{domain.BookingEventReserved}, f.events.Events())

	stored, err := f.repo.GetByID(context.Background(), resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", stored.CustomerName)
	assert.Equal(t, "turf-1", stored.TurfID)
}

func TestBookingService_Reserve_WeekdayRate(t *testing.T) {
	f := newFixture(friday)

	resp, err := f.bookings.Reserve(context.Background(), reserveReq("2025-06-09", "slot-18"))
	require.NoError(t, err)
	assert.Equal(t, int64(1200), resp.Amount)
}

func TestBookingService_Reserve_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   *dto.ReserveRequest
		field string
	}{
		{"nil request", nil, "request"},
		{"missing date", reserveReq("", "slot-18"), "date"},
		{"malformed date", reserveReq("06/07/2025", "slot-18"), "date"},
		{"past date", reserveReq("2025-06-05", "slot-18"), "date"},
		{"no slots", reserveReq("2025-06-07"), "slot_ids"},
		{"duplicate slot", reserveReq("2025-06-07", "slot-18", "slot-18"), "slot_ids"},
		{"unknown slot", reserveReq("2025-06-07", "slot-5"), "slot_ids"},
		{"ended slot today", reserveReq("2025-06-06", "slot-9"), "slot_ids"},
		{"blank name", &dto.ReserveRequest{Date: "2025-06-07", SlotIDs: []string{"slot-18"}, CustomerName: "  ", CustomerPhone: "9876543210"}, "customer_name"},
		{"short phone", &dto.ReserveRequest{Date: "2025-06-07", SlotIDs: []string{"slot-18"}, CustomerName: "Asha", CustomerPhone: "987654321"}, "customer_phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(friday)

			_, err := f.bookings.Reserve(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err), "got %v", err)

			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, f.events.Events())
		})
	}
}

func TestBookingService_Reserve_PastSlotRule(t *testing.T) {
	f := newFixture(time.Date(2025, 6, 6, 7, 0, 0, 0, ist))

	_, err := f.bookings.Reserve(context.Background(), reserveReq("2025-06-06", "slot-6"))
	assert.True(t, domain.IsValidationError(err))

	// slot-7 runs until 08:00 and can still be booked
	_, err = f.bookings.Reserve(context.Background(), reserveReq("2025-06-06", "slot-7"))
	assert.NoError(t, err)
}

func TestBookingService_Reserve_ConflictThenExpiry(t *testing.T) {
	f := newFixture(friday)
	ctx := context.Background()

	_, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18", "slot-19"))
	require.NoError(t, err)

	_, err = f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-19", "slot-20"))
	require.Error(t, err)
	assert.True(t, domain.IsConflictError(err))
	slots, ok := domain.ConflictingSlots(err)
	require.True(t, ok)
	assert.Equal(t, []string{"slot-19"}, slots)

	f.clock.Advance(10*time.Minute + time.Second)

	resp, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-19", "slot-20"))
	require.NoError(t, err)
	assert.Equal(t, int64(3200), resp.Amount)
}

func TestBookingService_Reserve_ConcurrentOverlap(t *testing.T) {
	f := newFixture(friday)

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.Reserve(context.Background(), reserveReq("2025-06-07", "slot-20", "slot-21"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case domain.IsConflictError(err):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}

func TestBookingService_Availability(t *testing.T) {
	f := newFixture(friday)
	ctx := context.Background()

	_, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
	require.NoError(t, err)
	_, err = f.bookings.LockSlot(ctx, &dto.SlotActionRequest{Date: "2025-06-07", SlotID: "slot-20"})
	require.NoError(t, err)

	resp, err := f.bookings.Availability(ctx, "2025-06-07")
	require.NoError(t, err)
	assert.True(t, resp.IsWeekend)
	assert.Equal(t, int64(1600), resp.Rate)
	assert.Len(t, resp.Slots, 18)
	assert.Equal(t, []string{"slot-18", "slot-20"}, resp.UnavailableSlots)

	for _, s := range resp.Slots {
		want := s.ID != "slot-18" && s.ID != "slot-20"
		assert.Equal(t, want, s.Available, s.ID)
	}

	// lapsed holds stop counting
	f.clock.Advance(11 * time.Minute)
	resp, err = f.bookings.Availability(ctx, "2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-20"}, resp.UnavailableSlots)
}

func TestBookingService_Availability_Today(t *testing.T) {
	f := newFixture(time.Date(2025, 6, 6, 7, 30, 0, 0, ist))

	resp, err := f.bookings.Availability(context.Background(), "2025-06-06")
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-6"}, resp.UnavailableSlots)
	assert.Equal(t, int64(1200), resp.Rate)
}

func TestBookingService_Confirm(t *testing.T) {
	t.Run("idempotent with the same reference", func(t *testing.T) {
		f := newFixture(friday)
		ctx := context.Background()
		r, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
		require.NoError(t, err)

		b, err := f.bookings.Confirm(ctx, r.BookingID, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, b.Status)

		again, err := f.bookings.Confirm(ctx, r.BookingID, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, b.ConfirmedAt, again.ConfirmedAt)
		assert.Equal(t, 1, f.events.Count(domain.BookingEventConfirmed))
	})

	t.Run("different reference is rejected", func(t *testing.T) {
		f := newFixture(friday)
		ctx := context.Background()
		r, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
		require.NoError(t, err)
		_, err = f.bookings.Confirm(ctx, r.BookingID, "pay_1")
		require.NoError(t, err)

		_, err = f.bookings.Confirm(ctx, r.BookingID, "pay_2")
		assert.True(t, domain.IsTransitionError(err))
		assert.Equal(t, r.Reference, domain.ReferenceOf(err))
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(friday)
		_, err := f.bookings.Confirm(context.Background(), "missing", "pay_1")
		assert.True(t, domain.IsNotFoundError(err))
	})

	t.Run("late payment is flagged by default", func(t *testing.T) {
		f := newFixture(friday)
		ctx := context.Background()
		r, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
		require.NoError(t, err)

		f.clock.Advance(15 * time.Minute)
		_, err = f.bookings.Confirm(ctx, r.BookingID, "pay_late")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrHoldExpired)
		assert.Equal(t, r.Reference, domain.ReferenceOf(err))

		stored, err := f.repo.GetByID(ctx, r.BookingID)
		require.NoError(t, err)
		assert.True(t, stored.NeedsReconciliation)
		assert.Equal(t, "pay_late", stored.ReconcilePaymentRef)
		assert.Equal(t, domain.BookingStatusPending, stored.Status)
		assert.Equal(t, 1, f.events.Count(domain.BookingEventFlagged))
	})

	t.Run("late payment confirms when allowed and slots are free", func(t *testing.T) {
		f := newFixture(friday, withLateConfirm())
		ctx := context.Background()
		r, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
		require.NoError(t, err)

		f.clock.Advance(15 * time.Minute)
		b, err := f.bookings.Confirm(ctx, r.BookingID, "pay_late")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	})

	t.Run("late payment conflicts when slots were re-booked", func(t *testing.T) {
		f := newFixture(friday, withLateConfirm())
		ctx := context.Background()
		r, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
		require.NoError(t, err)

		f.clock.Advance(15 * time.Minute)
		_, err = f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
		require.NoError(t, err)

		_, err = f.bookings.Confirm(ctx, r.BookingID, "pay_late")
		assert.True(t, domain.IsConflictError(err))

		stored, err := f.repo.GetByID(ctx, r.BookingID)
		require.NoError(t, err)
		assert.True(t, stored.NeedsReconciliation)
	})
}

func TestBookingService_Release(t *testing.T) {
	f := newFixture(friday)
	ctx := context.Background()

	r, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
	require.NoError(t, err)
	_, err = f.bookings.Confirm(ctx, r.BookingID, "pay_1")
	require.NoError(t, err)

	resp, err := f.bookings.Release(ctx, r.BookingID)
	require.NoError(t, err)
	assert.Equal(t, ReleaseWarning, resp.Warning)
	assert.Equal(t, "released", resp.Booking.Status)

	again, err := f.bookings.Release(ctx, r.BookingID)
	require.NoError(t, err)
	assert.Equal(t, ReleaseWarning, again.Warning)
	assert.Equal(t, 1, f.events.Count(domain.BookingEventReleased))

	avail, err := f.bookings.Availability(ctx, "2025-06-07")
	require.NoError(t, err)
	assert.Empty(t, avail.UnavailableSlots)

	_, err = f.bookings.Release(ctx, "missing")
	assert.True(t, domain.IsNotFoundError(err))
}

func TestBookingService_LockUnlock(t *testing.T) {
	f := newFixture(friday)
	ctx := context.Background()

	r, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
	require.NoError(t, err)

	locked, err := f.bookings.LockSlot(ctx, &dto.SlotActionRequest{Date: "2025-06-07", SlotID: "slot-18"})
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-18"}, locked.LockedSlots)

	locked, err = f.bookings.LockSlot(ctx, &dto.SlotActionRequest{Date: "2025-06-07", SlotID: "slot-18"})
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-18"}, locked.LockedSlots)

	unlocked, err := f.bookings.UnlockSlot(ctx, &dto.SlotActionRequest{Date: "2025-06-07", SlotID: "slot-18"})
	require.NoError(t, err)
	assert.Empty(t, unlocked.LockedSlots)

	// the hold survives the unlock
	avail, err := f.bookings.Availability(ctx, "2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-18"}, avail.UnavailableSlots)

	b, err := f.bookings.GetBooking(ctx, r.BookingID)
	require.NoError(t, err)
	assert.Equal(t, "pending", b.Status)

	_, err = f.bookings.LockSlot(ctx, &dto.SlotActionRequest{Date: "2025-06-07", SlotID: "slot-3"})
	assert.True(t, domain.IsValidationError(err))
}

func TestBookingService_ListBookings(t *testing.T) {
	f := newFixture(friday)
	ctx := context.Background()

	first, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.bookings.Reserve(ctx, reserveReq("2025-06-08", "slot-18"))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	third, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-19"))
	require.NoError(t, err)

	byPhone, err := f.bookings.ListBookings(ctx, &dto.BookingListQuery{Phone: "9876543210"})
	require.NoError(t, err)
	require.Len(t, byPhone, 3)
	assert.Equal(t, second.BookingID, byPhone[0].ID)
	assert.Equal(t, third.BookingID, byPhone[1].ID)
	assert.Equal(t, first.BookingID, byPhone[2].ID)

	byDate, err := f.bookings.ListBookings(ctx, &dto.BookingListQuery{Date: "2025-06-07"})
	require.NoError(t, err)
	require.Len(t, byDate, 2)
	assert.Equal(t, third.BookingID, byDate[0].ID)

	_, err = f.bookings.ListBookings(ctx, &dto.BookingListQuery{Phone: "12"})
	assert.True(t, domain.IsValidationError(err))
	_, err = f.bookings.ListBookings(ctx, &dto.BookingListQuery{Status: "paid"})
	assert.True(t, domain.IsValidationError(err))
}

func TestBookingService_GetBooking_ReportsExpired(t *testing.T) {
	f := newFixture(friday)
	ctx := context.Background()

	r, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	b, err := f.bookings.GetBooking(ctx, r.BookingID)
	require.NoError(t, err)
	assert.Equal(t, "expired", b.Status)
}

func TestBookingService_ExpireStaleHolds(t *testing.T) {
	f := newFixture(friday)
	ctx := context.Background()

	_, err := f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-18"))
	require.NoError(t, err)
	_, err = f.bookings.Reserve(ctx, reserveReq("2025-06-07", "slot-19"))
	require.NoError(t, err)

	n, err := f.bookings.ExpireStaleHolds(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(11 * time.Minute)
	n, err = f.bookings.ExpireStaleHolds(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.events.Count(domain.BookingEventExpired))

	state, err := f.bookings.SlotState(ctx, "2025-06-07")
	require.NoError(t, err)
	assert.Empty(t, state.Held)
	assert.Empty(t, state.Unavailable)
}
