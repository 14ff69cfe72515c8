package worker

import (
	"context"
	"time"
)

// HoldExpirer marks lapsed pending holds as expired
type HoldExpirer interface {
	ExpireStaleHolds(ctx context.Context, limit int) (int, error)
}

// HoldReaperConfig contains configuration for the hold reaper
type HoldReaperConfig struct {
	// ScanInterval is the interval between scans for lapsed holds
	ScanInterval time.Duration
	// BatchSize is the number of holds to expire in each scan
	BatchSize int
}

// DefaultHoldReaperConfig returns default configuration
func DefaultHoldReaperConfig() *HoldReaperConfig {
	return &HoldReaperConfig{
		ScanInterval: 30 * time.Second,
		BatchSize:    100,
	}
}

// HoldReaper periodically records lapsed holds as expired. Availability
// never depends on it: a lapsed hold stops blocking its slots as soon as
// its TTL passes, whether or not the reaper has run.
type HoldReaper struct {
	*runner
}

// NewHoldReaper creates a new hold reaper
func NewHoldReaper(expirer HoldExpirer, config *HoldReaperConfig) *HoldReaper {
	if config == nil {
		config = DefaultHoldReaperConfig()
	}
	defaults := DefaultHoldReaperConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	return &HoldReaper{
		runner: newRunner("hold reaper", config.ScanInterval, config.BatchSize, expirer.ExpireStaleHolds),
	}
}
