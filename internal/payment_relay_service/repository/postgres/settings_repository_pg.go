package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

// Numerics are read as text so they round-trip through decimal without float conversion.
const selectPaymentSettingsSQL = `SELECT ps.min_payment_amount::text, ps.max_payment_amount::text,
(SELECT ss.value FROM system_settings ss WHERE ss.key = $1 LIMIT 1)
FROM payment_settings ps LIMIT 1`

const selectSystemSettingSQL = `SELECT value FROM system_settings WHERE key = $1 LIMIT 1`

type PgSettingsRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgSettingsRepository(db DB, logger *slog.Logger) *PgSettingsRepository {
	return &PgSettingsRepository{db: db, logger: logger.With("component", "settings_repository_pg")}
}

func (r *PgSettingsRepository) GetPaymentSettings(ctx context.Context, conversionRateKey string) (*domain.PaymentSettings, error) {
	var minText, maxText string
	var rate *string
	err := r.db.QueryRow(ctx, selectPaymentSettingsSQL, conversionRateKey).Scan(&minText, &maxText, &rate)
	if err != nil {
		if mapError(err) == domain.ErrNotFound {
			return nil, domain.ErrSettingsUnavailable
		}
		return nil, fmt.Errorf("querying payment settings: %w", err)
	}

	minAmount, err := decimal.NewFromString(minText)
	if err != nil {
		return nil, fmt.Errorf("parsing min_payment_amount %q: %w", minText, err)
	}
	maxAmount, err := decimal.NewFromString(maxText)
	if err != nil {
		return nil, fmt.Errorf("parsing max_payment_amount %q: %w", maxText, err)
	}
	return &domain.PaymentSettings{
		MinAmount:           minAmount,
		MaxAmount:           maxAmount,
		ConversionRateKey:   conversionRateKey,
		ConversionRateValue: rate,
	}, nil
}

func (r *PgSettingsRepository) GetSystemSetting(ctx context.Context, key string) (*string, error) {
	var value *string
	err := r.db.QueryRow(ctx, selectSystemSettingSQL, key).Scan(&value)
	if err != nil {
		if mapError(err) == domain.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("querying system setting %s: %w", key, err)
	}
	return value, nil
}
