// Package hasura implements the payment relay repositories as GraphQL operations
// against the Hasura engine.
package hasura

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/graphql"
)

const getPaymentSettingsQuery = `
query GetPaymentSettings($rate_key: String!) {
  payment_settings(limit: 1) {
    min_payment_amount
    max_payment_amount
  }
  system_settings(where: {key: {_eq: $rate_key}}, limit: 1) {
    value
  }
}`

const getSystemSettingQuery = `
query GetSystemSetting($key: String!) {
  system_settings(where: {key: {_eq: $key}}, limit: 1) {
    value
  }
}`

type systemSettingRow struct {
	Value *string `json:"value"`
}

type SettingsRepository struct {
	exec graphql.Executor
}

func NewSettingsRepository(exec graphql.Executor) *SettingsRepository {
	return &SettingsRepository{exec: exec}
}

func (r *SettingsRepository) GetPaymentSettings(ctx context.Context, conversionRateKey string) (*domain.PaymentSettings, error) {
	var out struct {
		PaymentSettings []struct {
			MinPaymentAmount decimal.Decimal `json:"min_payment_amount"`
			MaxPaymentAmount decimal.Decimal `json:"max_payment_amount"`
		} `json:"payment_settings"`
		SystemSettings []systemSettingRow `json:"system_settings"`
	}
	err := r.exec.Execute(ctx, "GetPaymentSettings", getPaymentSettingsQuery, map[string]any{"rate_key": conversionRateKey}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.PaymentSettings) == 0 {
		return nil, domain.ErrSettingsUnavailable
	}

	settings := &domain.PaymentSettings{
		MinAmount:         out.PaymentSettings[0].MinPaymentAmount,
		MaxAmount:         out.PaymentSettings[0].MaxPaymentAmount,
		ConversionRateKey: conversionRateKey,
	}
	if len(out.SystemSettings) > 0 {
		settings.ConversionRateValue = out.SystemSettings[0].Value
	}
	return settings, nil
}

func (r *SettingsRepository) GetSystemSetting(ctx context.Context, key string) (*string, error) {
	var out struct {
		SystemSettings []systemSettingRow `json:"system_settings"`
	}
	if err := r.exec.Execute(ctx, "GetSystemSetting", getSystemSettingQuery, map[string]any{"key": key}, &out); err != nil {
		return nil, fmt.Errorf("reading system setting %s: %w", key, err)
	}
	if len(out.SystemSettings) == 0 {
		return nil, nil
	}
	return out.SystemSettings[0].Value, nil
}
