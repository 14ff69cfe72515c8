package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/dto"
)

func newPricingUnderTest(repo *MockPricingRepository, clock *testClock) PricingService {
	return NewPricingService(repo, &PricingServiceConfig{
		Defaults: domain.DefaultPricing(),
		Currency: "INR",
		CacheTTL: time.Minute,
		Clock:    clock.Now,
	})
}

func TestPricingService_DefaultsWhenNotConfigured(t *testing.T) {
	repo := new(MockPricingRepository)
	repo.On("Get", mock.Anything).Return(nil, domain.ErrPricingNotConfigured).Once()
	svc := newPricingUnderTest(repo, newTestClock(friday))

	cfg, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1200), cfg.WeekdayRate)
	assert.Equal(t, int64(1600), cfg.WeekendRate)

	resp, err := svc.GetPricing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.PricingSourceDefaults, resp.Source)
	repo.AssertExpectations(t)
}

func TestPricingService_StorageDown(t *testing.T) {
	repo := new(MockPricingRepository)
	repo.On("Get", mock.Anything).Return(nil, domain.StorageError("pricing.get", errors.New("connection refused")))
	svc := newPricingUnderTest(repo, newTestClock(friday))

	_, err := svc.Resolve(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	resp, err := svc.GetPricing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.PricingSourceDefaults, resp.Source)
	assert.Equal(t, int64(1600), resp.WeekendRate)
}

func TestPricingService_Reserve_FailsWhenPricingUnavailable(t *testing.T) {
	repo := new(MockPricingRepository)
	repo.On("Get", mock.Anything).Return(nil, domain.StorageError("pricing.get", errors.New("timeout")))
	f := newFixture(friday)
	bookings := NewBookingService(f.repo, newPricingUnderTest(repo, f.clock), f.events, &BookingServiceConfig{
		TurfID: "turf-1", Location: ist, Clock: f.clock.Now,
	})

	_, err := bookings.Reserve(context.Background(), reserveReq("2025-06-07", "slot-18"))
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	state, err := f.repo.GetSlotState(context.Background(), "turf-1", domain.MustParseDate("2025-06-07"))
	require.NoError(t, err)
	assert.Empty(t, state.Holds)
}

func TestPricingService_CachesReads(t *testing.T) {
	repo := new(MockPricingRepository)
	stored := &domain.PricingConfig{WeekdayRate: 1000, WeekendRate: 1500, Version: 3}
	repo.On("Get", mock.Anything).Return(stored, nil).Once()
	clock := newTestClock(friday)
	svc := newPricingUnderTest(repo, clock)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := svc.Resolve(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, int64(1500), cfg.WeekendRate)
		}()
	}
	wg.Wait()
	repo.AssertNumberOfCalls(t, "Get", 1)

	clock.Advance(2 * time.Minute)
	repo.On("Get", mock.Anything).Return(&domain.PricingConfig{WeekdayRate: 1100, WeekendRate: 1500, Version: 4}, nil).Once()
	cfg, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1100), cfg.WeekdayRate)
	repo.AssertNumberOfCalls(t, "Get", 2)
}

func TestPricingService_UpdateRefreshesCache(t *testing.T) {
	repo := new(MockPricingRepository)
	clock := newTestClock(friday)
	repo.On("Get", mock.Anything).Return(&domain.PricingConfig{WeekdayRate: 1200, WeekendRate: 1600, Version: 1}, nil).Once()
	repo.On("Set", mock.Anything, domain.PricingConfig{WeekdayRate: 900, WeekendRate: 1400}, friday).
		Return(&domain.PricingConfig{WeekdayRate: 900, WeekendRate: 1400, Version: 2, UpdatedAt: friday}, nil).Once()
	svc := newPricingUnderTest(repo, clock)

	_, err := svc.Resolve(context.Background())
	require.NoError(t, err)

	resp, err := svc.UpdatePricing(context.Background(), &dto.UpdatePricingRequest{WeekdayRate: 900, WeekendRate: 1400})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Version)
	assert.Equal(t, dto.PricingSourceStored, resp.Source)

	cfg, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(900), cfg.WeekdayRate)
	repo.AssertExpectations(t)
}

func TestPricingService_UpdateValidation(t *testing.T) {
	tests := []struct {
		name string
		req  *dto.UpdatePricingRequest
	}{
		{"nil", nil},
		{"zero weekday", &dto.UpdatePricingRequest{WeekdayRate: 0, WeekendRate: 1600}},
		{"negative weekend", &dto.UpdatePricingRequest{WeekdayRate: 1200, WeekendRate: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPricingRepository)
			svc := newPricingUnderTest(repo, newTestClock(friday))

			_, err := svc.UpdatePricing(context.Background(), tt.req)
			assert.True(t, domain.IsValidationError(err))
			repo.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPricingService_Quote(t *testing.T) {
	f := newFixture(friday)

	tests := []struct {
		name    string
		date    string
		slots   []string
		rate    int64
		amount  int64
		weekend bool
	}{
		{"saturday", "2025-06-07", []string{"slot-18", "slot-19"}, 1600, 3200, true},
		{"monday", "2025-06-09", []string{"slot-6"}, 1200, 1200, false},
		{"sunday three slots", "2025-06-08", []string{"slot-6", "slot-7", "slot-8"}, 1600, 4800, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := f.pricing.Quote(context.Background(), tt.date, tt.slots)
			require.NoError(t, err)
			assert.Equal(t, tt.rate, q.Rate)
			assert.Equal(t, tt.amount, q.Amount)
			assert.Equal(t, tt.weekend, q.IsWeekend)
		})
	}

	_, err := f.pricing.Quote(context.Background(), "2025-06-07", []string{"slot-30"})
	assert.True(t, domain.IsValidationError(err))
}
