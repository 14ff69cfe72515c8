package worker

import (
	"context"
	"time"
)

// PendingReconciler asks the payment gateway about unconfirmed orders
type PendingReconciler interface {
	ReconcilePending(ctx context.Context, limit int) (int, error)
}

// PaymentReconcilerConfig contains configuration for the payment reconciler
type PaymentReconcilerConfig struct {
	// ScanInterval is the interval between reconciliation passes
	ScanInterval time.Duration
	// BatchSize is the number of bookings checked per pass
	BatchSize int
}

// DefaultPaymentReconcilerConfig returns default configuration
func DefaultPaymentReconcilerConfig() *PaymentReconcilerConfig {
	return &PaymentReconcilerConfig{
		ScanInterval: time.Minute,
		BatchSize:    50,
	}
}

// PaymentReconciler recovers payments whose callback never arrived, e.g.
// when the customer closed the browser after paying.
type PaymentReconciler struct {
	*runner
}

// NewPaymentReconciler creates a new payment reconciler
func NewPaymentReconciler(reconciler PendingReconciler, config *PaymentReconcilerConfig) *PaymentReconciler {
	if config == nil {
		config = DefaultPaymentReconcilerConfig()
	}
	defaults := DefaultPaymentReconcilerConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	return &PaymentReconciler{
		runner: newRunner("payment reconciler", config.ScanInterval, config.BatchSize, reconciler.ReconcilePending),
	}
}
