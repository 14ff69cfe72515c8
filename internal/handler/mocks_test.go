package handler

import (
	"context"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/internal/service"
)

// MockBookingService is a mock implementation of BookingService for testing
type MockBookingService struct {
	AvailabilityFunc     func(ctx context.Context, date string) (*dto.AvailabilityResponse, error)
	ReserveFunc          func(ctx context.Context, req *dto.ReserveRequest) (*dto.ReserveResponse, error)
	ConfirmFunc          func(ctx context.Context, bookingID, paymentRef string) (*domain.Booking, error)
	ReleaseFunc          func(ctx context.Context, bookingID string) (*dto.ReleaseResponse, error)
	GetBookingFunc       func(ctx context.Context, bookingID string) (*dto.BookingResponse, error)
	ListBookingsFunc     func(ctx context.Context, q *dto.BookingListQuery) ([]*dto.BookingResponse, error)
	LockSlotFunc         func(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error)
	UnlockSlotFunc       func(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error)
	SlotStateFunc        func(ctx context.Context, date string) (*dto.SlotStateResponse, error)
	ExpireStaleHoldsFunc func(ctx context.Context, limit int) (int, error)
}

func (m *MockBookingService) Availability(ctx context.Context, date string) (*dto.AvailabilityResponse, error) {
	if m.AvailabilityFunc != nil {
		return m.AvailabilityFunc(ctx, date)
	}
	return &dto.AvailabilityResponse{Date: date}, nil
}

func (m *MockBookingService) Reserve(ctx context.Context, req *dto.ReserveRequest) (*dto.ReserveResponse, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, req)
	}
	return &dto.ReserveResponse{}, nil
}

func (m *MockBookingService) Confirm(ctx context.Context, bookingID, paymentRef string) (*domain.Booking, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, bookingID, paymentRef)
	}
	return nil, nil
}

func (m *MockBookingService) Release(ctx context.Context, bookingID string) (*dto.ReleaseResponse, error) {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, bookingID)
	}
	return &dto.ReleaseResponse{}, nil
}

func (m *MockBookingService) GetBooking(ctx context.Context, bookingID string) (*dto.BookingResponse, error) {
	if m.GetBookingFunc != nil {
		return m.GetBookingFunc(ctx, bookingID)
	}
	return &dto.BookingResponse{ID: bookingID}, nil
}

func (m *MockBookingService) ListBookings(ctx context.Context, q *dto.BookingListQuery) ([]*dto.BookingResponse, error) {
	if m.ListBookingsFunc != nil {
		return m.ListBookingsFunc(ctx, q)
	}
	return nil, nil
}

func (m *MockBookingService) LockSlot(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error) {
	if m.LockSlotFunc != nil {
		return m.LockSlotFunc(ctx, req)
	}
	return &dto.LockedSlotsResponse{Date: req.Date, LockedSlots: []string{req.SlotID}}, nil
}

func (m *MockBookingService) UnlockSlot(ctx context.Context, req *dto.SlotActionRequest) (*dto.LockedSlotsResponse, error) {
	if m.UnlockSlotFunc != nil {
		return m.UnlockSlotFunc(ctx, req)
	}
	return &dto.LockedSlotsResponse{Date: req.Date}, nil
}

func (m *MockBookingService) SlotState(ctx context.Context, date string) (*dto.SlotStateResponse, error) {
	if m.SlotStateFunc != nil {
		return m.SlotStateFunc(ctx, date)
	}
	return &dto.SlotStateResponse{Date: date}, nil
}

func (m *MockBookingService) ExpireStaleHolds(ctx context.Context, limit int) (int, error) {
	if m.ExpireStaleHoldsFunc != nil {
		return m.ExpireStaleHoldsFunc(ctx, limit)
	}
	return 0, nil
}

// MockPricingService is a mock implementation of PricingService for testing
type MockPricingService struct {
	GetPricingFunc    func(ctx context.Context) (*dto.PricingResponse, error)
	QuoteFunc         func(ctx context.Context, date string, slotIDs []string) (*dto.QuoteResponse, error)
	UpdatePricingFunc func(ctx context.Context, req *dto.UpdatePricingRequest) (*dto.PricingResponse, error)
}

func (m *MockPricingService) GetPricing(ctx context.Context) (*dto.PricingResponse, error) {
	if m.GetPricingFunc != nil {
		return m.GetPricingFunc(ctx)
	}
	return &dto.PricingResponse{WeekdayRate: 1200, WeekendRate: 1600, Source: dto.PricingSourceDefaults}, nil
}

func (m *MockPricingService) Current(ctx context.Context) (domain.PricingConfig, string) {
	return domain.DefaultPricing(), dto.PricingSourceDefaults
}

func (m *MockPricingService) Resolve(ctx context.Context) (domain.PricingConfig, error) {
	return domain.DefaultPricing(), nil
}

func (m *MockPricingService) Quote(ctx context.Context, date string, slotIDs []string) (*dto.QuoteResponse, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, date, slotIDs)
	}
	return &dto.QuoteResponse{Date: date, SlotIDs: slotIDs}, nil
}

func (m *MockPricingService) UpdatePricing(ctx context.Context, req *dto.UpdatePricingRequest) (*dto.PricingResponse, error) {
	if m.UpdatePricingFunc != nil {
		return m.UpdatePricingFunc(ctx, req)
	}
	return &dto.PricingResponse{WeekdayRate: req.WeekdayRate, WeekendRate: req.WeekendRate, Source: dto.PricingSourceStored}, nil
}

// MockPaymentService is a mock implementation of PaymentService for testing
type MockPaymentService struct {
	CreateOrderFunc       func(ctx context.Context, bookingID string) (*dto.CreateOrderResponse, error)
	ConfirmPaymentFunc    func(ctx context.Context, bookingID string, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error)
	HandleCallbackFunc    func(ctx context.Context, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error)
	HandleStripeEventFunc func(ctx context.Context, payload []byte, sigHeader string) (*service.StripeEventResult, error)
	ReconcileFunc         func(ctx context.Context, bookingID string) (*dto.ReconcileResponse, error)
	ReconcilePendingFunc  func(ctx context.Context, limit int) (int, error)
}

func (m *MockPaymentService) CreateOrder(ctx context.Context, bookingID string) (*dto.CreateOrderResponse, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, bookingID)
	}
	return &dto.CreateOrderResponse{BookingID: bookingID}, nil
}

func (m *MockPaymentService) ConfirmPayment(ctx context.Context, bookingID string, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	if m.ConfirmPaymentFunc != nil {
		return m.ConfirmPaymentFunc(ctx, bookingID, req)
	}
	return &dto.ConfirmResponse{BookingID: bookingID, Status: string(domain.BookingStatusConfirmed)}, nil
}

func (m *MockPaymentService) HandleCallback(ctx context.Context, req *dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	if m.HandleCallbackFunc != nil {
		return m.HandleCallbackFunc(ctx, req)
	}
	return &dto.ConfirmResponse{Status: string(domain.BookingStatusConfirmed)}, nil
}

func (m *MockPaymentService) HandleStripeEvent(ctx context.Context, payload []byte, sigHeader string) (*service.StripeEventResult, error) {
	if m.HandleStripeEventFunc != nil {
		return m.HandleStripeEventFunc(ctx, payload, sigHeader)
	}
	return &service.StripeEventResult{Outcome: service.OutcomeIgnored}, nil
}

func (m *MockPaymentService) Reconcile(ctx context.Context, bookingID string) (*dto.ReconcileResponse, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, bookingID)
	}
	return &dto.ReconcileResponse{BookingID: bookingID}, nil
}

func (m *MockPaymentService) ReconcilePending(ctx context.Context, limit int) (int, error) {
	if m.ReconcilePendingFunc != nil {
		return m.ReconcilePendingFunc(ctx, limit)
	}
	return 0, nil
}
