package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

var (
	// Booking counters
	ReservationsTotal  *telemetry.Counter
	ConfirmationsTotal *telemetry.Counter
	ReleasesTotal      *telemetry.Counter
	HoldsExpiredTotal  *telemetry.Counter
	BookingsFlagged    *telemetry.Counter
	SlotLocksTotal     *telemetry.Counter

	// Payment counters
	PaymentVerifications *telemetry.Counter
	OrdersCreated        *telemetry.Counter

	// Error tracking
	ErrorsTotal *telemetry.Counter

	// Histograms
	ReserveDuration *telemetry.Histogram
	BookingAmount   *telemetry.Histogram

	// Gauges
	ActiveHolds *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all booking metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func counter(dst **telemetry.Counter, name, description string) error {
	c, err := telemetry.NewCounter(telemetry.MetricOpts{Name: name, Description: description, Unit: "1"})
	if err != nil {
		return err
	}
	*dst = c
	return nil
}

func initMetrics() error {
	counters := []struct {
		dst  **telemetry.Counter
		name string
		desc string
	}{
		{&ReservationsTotal, "turf_reservations_total", "Reserve attempts by outcome"},
		{&ConfirmationsTotal, "turf_confirmations_total", "Confirm attempts by outcome"},
		{&ReleasesTotal, "turf_releases_total", "Bookings released by an admin"},
		{&HoldsExpiredTotal, "turf_holds_expired_total", "Pending holds marked expired by the reaper"},
		{&BookingsFlagged, "turf_bookings_flagged_total", "Bookings flagged for manual reconciliation"},
		{&SlotLocksTotal, "turf_slot_locks_total", "Admin slot lock and unlock operations"},
		{&PaymentVerifications, "turf_payment_verifications_total", "Payment verifications by method and result"},
		{&OrdersCreated, "turf_orders_created_total", "Gateway orders created"},
		{&ErrorsTotal, "turf_errors_total", "Errors by operation and kind"},
	}
	for _, c := range counters {
		if err := counter(c.dst, c.name, c.desc); err != nil {
			return err
		}
	}

	var err error
	ReserveDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "turf_reserve_duration_seconds",
		Description: "Time to reserve slots including the ledger write",
		Unit:        "s",
	}, []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5})
	if err != nil {
		return err
	}

	BookingAmount, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "turf_booking_amount",
		Description: "Booking amount in whole currency units",
		Unit:        "1",
	}, []float64{1000, 2000, 4000, 8000, 16000, 32000})
	if err != nil {
		return err
	}

	ActiveHolds, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "turf_active_holds",
		Description: "Pending holds created by this process and not yet resolved",
		Unit:        "1",
	})
	return err
}

// RecordReservation records a reserve attempt
func RecordReservation(ctx context.Context, outcome string, slots int, amount int64, durationSeconds float64) {
	if ReservationsTotal != nil {
		ReservationsTotal.Inc(ctx, attribute.String("outcome", outcome))
	}
	if ReserveDuration != nil {
		ReserveDuration.Record(ctx, durationSeconds, attribute.String("outcome", outcome))
	}
	if outcome != "success" {
		return
	}
	if BookingAmount != nil {
		BookingAmount.Record(ctx, float64(amount), attribute.Int("slots", slots))
	}
	if ActiveHolds != nil {
		ActiveHolds.Inc(ctx)
	}
}

// RecordConfirmation records a confirm attempt
func RecordConfirmation(ctx context.Context, outcome string) {
	if ConfirmationsTotal != nil {
		ConfirmationsTotal.Inc(ctx, attribute.String("outcome", outcome))
	}
	if outcome == "confirmed" && ActiveHolds != nil {
		ActiveHolds.Dec(ctx)
	}
}

// RecordRelease records an admin release
func RecordRelease(ctx context.Context, wasPending bool) {
	if ReleasesTotal != nil {
		ReleasesTotal.Inc(ctx)
	}
	if wasPending && ActiveHolds != nil {
		ActiveHolds.Dec(ctx)
	}
}

// RecordHoldsExpired records holds materialized as expired
func RecordHoldsExpired(ctx context.Context, n int) {
	if HoldsExpiredTotal != nil && n > 0 {
		HoldsExpiredTotal.Add(ctx, int64(n))
	}
}

// RecordFlagged records a booking flagged for reconciliation
func RecordFlagged(ctx context.Context, reason string) {
	if BookingsFlagged != nil {
		BookingsFlagged.Inc(ctx, attribute.String("reason", reason))
	}
}

// RecordSlotLock records a lock or unlock
func RecordSlotLock(ctx context.Context, action string) {
	if SlotLocksTotal != nil {
		SlotLocksTotal.Inc(ctx, attribute.String("action", action))
	}
}

// RecordPaymentVerification records a signature or status check
func RecordPaymentVerification(ctx context.Context, method string, ok bool) {
	if PaymentVerifications != nil {
		result := "failed"
		if ok {
			result = "ok"
		}
		PaymentVerifications.Inc(ctx,
			attribute.String("method", method),
			attribute.String("result", result),
		)
	}
}

// RecordOrderCreated records a gateway order
func RecordOrderCreated(ctx context.Context, gateway string) {
	if OrdersCreated != nil {
		OrdersCreated.Inc(ctx, attribute.String("gateway", gateway))
	}
}

// RecordError records an error by operation and kind
func RecordError(ctx context.Context, operation, kind string) {
	if ErrorsTotal != nil {
		ErrorsTotal.Inc(ctx,
			attribute.String("operation", operation),
			attribute.String("kind", kind),
		)
	}
}
