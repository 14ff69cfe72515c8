package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/turf-booking/internal/di"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "turf-booking", Environment: "test"},
		Storage: config.StorageConfig{Driver: "memory"},
		Booking: config.BookingConfig{
			TurfID:    "main",
			Timezone:  "Asia/Kolkata",
			OpenHour:  6,
			CloseHour: 24,
			HoldTTL:   10 * time.Minute,
		},
		Pricing: config.PricingConfig{WeekdayRate: 1200, WeekendRate: 1600},
		Payment: config.PaymentConfig{Provider: "mock", Currency: "INR"},
		Admin:   config.AdminConfig{Secret: "secret"},
		Events:  config.EventsConfig{Driver: "none"},
	}
}

// sharedBuilder hands every command the same in-memory container so state
// survives across invocations
func sharedBuilder(t *testing.T) Builder {
	t.Helper()
	cfg := testConfig()
	infra, err := di.NewInfrastructure(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(infra.Close)

	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	now := time.Date(2025, 6, 6, 10, 0, 0, 0, ist)

	c, err := di.NewContainer(&di.ContainerConfig{Infra: infra, Config: cfg, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	return func(ctx context.Context) (*di.Container, *config.Config, func(), error) {
		return c, cfg, func() {}, nil
	}
}

func execute(t *testing.T, build Builder, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRoot(build)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestPricingCommands(t *testing.T) {
	build := sharedBuilder(t)

	out, _, err := execute(t, build, "pricing", "get")
	require.NoError(t, err)
	var p dto.PricingResponse
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, dto.PricingSourceDefaults, p.Source)

	_, _, err = execute(t, build, "pricing", "set", "--weekday", "1300", "--weekend", "1700")
	require.NoError(t, err)

	out, _, err = execute(t, build, "pricing", "quote", "2025-06-07", "slot-6,slot-7")
	require.NoError(t, err)
	var q dto.QuoteResponse
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, int64(3400), q.Amount)

	_, _, err = execute(t, build, "pricing", "set", "--weekday", "1300")
	assert.Error(t, err, "weekend flag is required")
}

func TestSlotsLockAndShow(t *testing.T) {
	build := sharedBuilder(t)

	_, _, err := execute(t, build, "slots", "lock", "2025-06-07", "slot-20")
	require.NoError(t, err)

	out, _, err := execute(t, build, "slots", "show", "2025-06-07")
	require.NoError(t, err)
	var avail dto.AvailabilityResponse
	require.NoError(t, json.Unmarshal([]byte(out), &avail))
	assert.Contains(t, avail.UnavailableSlots, "slot-20")

	_, _, err = execute(t, build, "slots", "unlock", "2025-06-07", "slot-20")
	require.NoError(t, err)

	out, _, err = execute(t, build, "slots", "state", "2025-06-07")
	require.NoError(t, err)
	var state dto.SlotStateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Empty(t, state.Locked)
}

func TestBookingsRelease(t *testing.T) {
	build := sharedBuilder(t)
	c, _, _, err := build(context.Background())
	require.NoError(t, err)

	reserved, err := c.BookingService.Reserve(context.Background(), &dto.ReserveRequest{
		Date:          "2025-06-07",
		SlotIDs:       []string{"slot-9"},
		CustomerName:  "Ravi",
		CustomerPhone: "9123456780",
	})
	require.NoError(t, err)

	_, _, err = execute(t, build, "bookings", "release", reserved.BookingID)
	assert.Error(t, err, "release needs --yes")

	out, stderr, err := execute(t, build, "bookings", "release", reserved.BookingID, "--yes")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning:")
	var b dto.BookingResponse
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, "released", b.Status)

	out, _, err = execute(t, build, "bookings", "list", "--phone", "9123456780")
	require.NoError(t, err)
	var list []dto.BookingResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, reserved.BookingID, list[0].ID)
}

func TestReconcileArgs(t *testing.T) {
	build := sharedBuilder(t)

	_, _, err := execute(t, build, "reconcile")
	assert.Error(t, err)

	_, _, err = execute(t, build, "reconcile", "b1", "--pending")
	assert.Error(t, err)

	out, _, err := execute(t, build, "reconcile", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "reconciled 0 bookings")
}
