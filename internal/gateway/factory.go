package gateway

import (
	"fmt"

	"github.com/prohmpiriya/turf-booking/pkg/config"
)

// NewFromConfig builds the configured payment gateway
func NewFromConfig(cfg config.PaymentConfig) (PaymentGateway, error) {
	switch cfg.Provider {
	case "", "mock":
		return NewMockGateway(&MockGatewayConfig{DelayMs: cfg.MockDelayMs}), nil
	case "stripe":
		return NewStripeGateway(&StripeGatewayConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhook,
		})
	case "omise":
		return NewOmiseGateway(&OmiseGatewayConfig{
			PublicKey: cfg.OmisePublicKey,
			SecretKey: cfg.OmiseSecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
