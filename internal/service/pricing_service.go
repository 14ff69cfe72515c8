package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/internal/metrics"
	"github.com/prohmpiriya/turf-booking/internal/repository"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

const pricingCacheKey = "pricing"

// PricingService defines the interface for pricing business logic
type PricingService interface {
	// GetPricing returns the pricing shown to customers, falling back to
	// the seed rates when storage is unavailable
	GetPricing(ctx context.Context) (*dto.PricingResponse, error)

	// Current returns the display pricing record and its source
	Current(ctx context.Context) (domain.PricingConfig, string)

	// Resolve returns the pricing used to charge a reservation
	Resolve(ctx context.Context) (domain.PricingConfig, error)

	// Quote prices a slot selection on a date
	Quote(ctx context.Context, date string, slotIDs []string) (*dto.QuoteResponse, error)

	// UpdatePricing replaces both rates
	UpdatePricing(ctx context.Context, req *dto.UpdatePricingRequest) (*dto.PricingResponse, error)
}

// PricingServiceConfig contains configuration for pricing service
type PricingServiceConfig struct {
	Defaults domain.PricingConfig
	Currency string
	CacheTTL time.Duration
	Window   domain.OperatingWindow
	Clock    func() time.Time
}

type cachedPricing struct {
	config    domain.PricingConfig
	source    string
	expiresAt time.Time
}

// pricingService implements PricingService. The cache is the only
// in-process shared state of the booking core.
type pricingService struct {
	repo     repository.PricingRepository
	defaults domain.PricingConfig
	currency string
	ttl      time.Duration
	window   domain.OperatingWindow
	now      func() time.Time

	group  singleflight.Group
	mu     sync.RWMutex
	cached *cachedPricing
}

// NewPricingService creates a new pricing service
func NewPricingService(repo repository.PricingRepository, cfg *PricingServiceConfig) PricingService {
	s := &pricingService{
		repo:     repo,
		defaults: domain.DefaultPricing(),
		currency: "INR",
		ttl:      30 * time.Second,
		window:   domain.DefaultOperatingWindow(),
		now:      time.Now,
	}
	if cfg != nil {
		if cfg.Defaults.Validate() == nil {
			s.defaults = cfg.Defaults
		}
		if cfg.Currency != "" {
			s.currency = cfg.Currency
		}
		if cfg.CacheTTL > 0 {
			s.ttl = cfg.CacheTTL
		}
		if cfg.Window.CloseHour > cfg.Window.OpenHour {
			s.window = cfg.Window
		}
		if cfg.Clock != nil {
			s.now = cfg.Clock
		}
	}
	return s
}

// GetPricing returns the current pricing for display
func (s *pricingService) GetPricing(ctx context.Context) (*dto.PricingResponse, error) {
	cfg, source := s.Current(ctx)
	return dto.PricingFromDomain(&cfg, s.currency, source), nil
}

// Current never fails: a storage outage degrades to the seed rates
func (s *pricingService) Current(ctx context.Context) (domain.PricingConfig, string) {
	cfg, source, err := s.load(ctx)
	if err != nil {
		logger.Get().Warn("pricing unavailable, serving defaults", zap.Error(err))
		metrics.RecordError(ctx, "pricing.get", "storage")
		return s.defaults, dto.PricingSourceDefaults
	}
	return cfg, source
}

// Resolve fails with ErrStorageUnavailable rather than charge stale defaults
func (s *pricingService) Resolve(ctx context.Context) (domain.PricingConfig, error) {
	cfg, _, err := s.load(ctx)
	return cfg, err
}

// Quote prices a slot selection on a date
func (s *pricingService) Quote(ctx context.Context, date string, slotIDs []string) (*dto.QuoteResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.pricing.quote")
	defer span.End()

	d, err := domain.ParseDate(date)
	if err != nil {
		span.SetStatus(codes.Error, "invalid date")
		return nil, err
	}
	if err := domain.ValidateSlotIDs(slotIDs, s.window); err != nil {
		span.SetStatus(codes.Error, "invalid slots")
		return nil, err
	}

	cfg, _ := s.Current(ctx)
	span.SetAttributes(attribute.String("date", d.String()), attribute.Int("slots", len(slotIDs)))
	return &dto.QuoteResponse{
		Date:      d.String(),
		SlotIDs:   append([]string(nil), slotIDs...),
		IsWeekend: d.IsWeekend(),
		Rate:      cfg.RateFor(d),
		Amount:    cfg.Amount(slotIDs, d),
		Currency:  s.currency,
	}, nil
}

// UpdatePricing replaces the pricing record and refreshes the cache
func (s *pricingService) UpdatePricing(ctx context.Context, req *dto.UpdatePricingRequest) (*dto.PricingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.pricing.update")
	defer span.End()

	if req == nil {
		return nil, domain.NewValidationError("pricing", "is required")
	}
	next := domain.PricingConfig{WeekdayRate: req.WeekdayRate, WeekendRate: req.WeekendRate}
	if err := next.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid rates")
		return nil, err
	}

	saved, err := s.repo.Set(ctx, next, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.group.Forget(pricingCacheKey)
	s.store(*saved, dto.PricingSourceStored)

	span.SetAttributes(attribute.Int64("version", saved.Version))
	logger.Get().Info("pricing updated",
		zap.Int64("weekday_rate", saved.WeekdayRate),
		zap.Int64("weekend_rate", saved.WeekendRate),
		zap.Int64("version", saved.Version),
	)
	return dto.PricingFromDomain(saved, s.currency, dto.PricingSourceStored), nil
}

func (s *pricingService) load(ctx context.Context) (domain.PricingConfig, string, error) {
	if c := s.fresh(); c != nil {
		return c.config, c.source, nil
	}

	v, err, _ := s.group.Do(pricingCacheKey, func() (interface{}, error) {
		if c := s.fresh(); c != nil {
			return c, nil
		}
		stored, err := s.repo.Get(ctx)
		switch {
		case errors.Is(err, domain.ErrPricingNotConfigured):
			return s.store(s.defaults, dto.PricingSourceDefaults), nil
		case err != nil:
			return nil, err
		}
		return s.store(s.merge(*stored), dto.PricingSourceStored), nil
	})
	if err != nil {
		return domain.PricingConfig{}, "", err
	}
	c := v.(*cachedPricing)
	return c.config, c.source, nil
}

func (s *pricingService) fresh() *cachedPricing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached != nil && s.now().Before(s.cached.expiresAt) {
		return s.cached
	}
	return nil
}

// merge lays a stored record over the seed rates
func (s *pricingService) merge(stored domain.PricingConfig) domain.PricingConfig {
	if stored.WeekdayRate <= 0 {
		stored.WeekdayRate = s.defaults.WeekdayRate
	}
	if stored.WeekendRate <= 0 {
		stored.WeekendRate = s.defaults.WeekendRate
	}
	return stored
}

func (s *pricingService) store(cfg domain.PricingConfig, source string) *cachedPricing {
	c := &cachedPricing{config: cfg, source: source, expiresAt: s.now().Add(s.ttl)}
	s.mu.Lock()
	s.cached = c
	s.mu.Unlock()
	return c
}
