package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

// SettingsValidator checks requested amounts against the configured payment limits.
type SettingsValidator struct {
	repo              domain.SettingsRepository
	conversionRateKey string
	logger            *slog.Logger
}

func NewSettingsValidator(repo domain.SettingsRepository, conversionRateKey string, logger *slog.Logger) *SettingsValidator {
	return &SettingsValidator{
		repo:              repo,
		conversionRateKey: conversionRateKey,
		logger:            logger.With("component", "settings_validator"),
	}
}

// Validate returns the settings snapshot used for the check, so callers can take the
// conversion rate from the same read. Out-of-range amounts fail with *domain.ValidationError.
func (v *SettingsValidator) Validate(ctx context.Context, amount int64) (*domain.PaymentSettings, error) {
	settings, err := v.repo.GetPaymentSettings(ctx, v.conversionRateKey)
	if err != nil {
		return nil, fmt.Errorf("fetching payment settings: %w", err)
	}
	if !settings.InRange(amount) {
		v.logger.InfoContext(ctx, "Payment amount rejected",
			"amount", amount,
			"min_payment_amount", settings.MinAmount.String(),
			"max_payment_amount", settings.MaxAmount.String())
		return nil, domain.ErrAmountOutOfRange()
	}
	return settings, nil
}

// CurrentConversionRate reads and parses the conversion rate on its own. Request paths take the
// rate from the Validate snapshot; this standalone read serves the startup check.
func (v *SettingsValidator) CurrentConversionRate(ctx context.Context) (decimal.Decimal, error) {
	value, err := v.repo.GetSystemSetting(ctx, v.conversionRateKey)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching conversion rate: %w", err)
	}
	return domain.ParseConversionRate(v.conversionRateKey, value)
}
