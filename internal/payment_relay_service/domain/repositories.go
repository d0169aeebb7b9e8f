package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// SettingsRepository reads the global, read-only payment settings.
type SettingsRepository interface {
	// GetPaymentSettings reads the amount limits and the conversion rate setting in one round trip.
	// Returns ErrSettingsUnavailable if no payment_settings row exists.
	GetPaymentSettings(ctx context.Context, conversionRateKey string) (*PaymentSettings, error)
	// GetSystemSetting returns nil, nil if the key is absent.
	GetSystemSetting(ctx context.Context, key string) (*string, error)
}

// TransactionRepository persists credit purchases.
type TransactionRepository interface {
	// CreatePending inserts txn with status pending and returns the stored id.
	CreatePending(ctx context.Context, txn *Transaction) (string, error)
	// CompletePending moves matching pending rows to completed and returns the rows it moved.
	// An empty result means nothing was pending for that payment.
	CompletePending(ctx context.Context, update CompletionUpdate) ([]CompletedTransaction, error)
}

// ClientRepository reads user accounts and applies the two writes billing owns.
type ClientRepository interface {
	// GetByID returns ErrNotFound for an unknown user.
	GetByID(ctx context.Context, id string) (*Client, error)
	// SetStripeCustomerIDIfUnset stores customerID only when the user has none yet.
	// The boolean reports whether this call performed the write.
	SetStripeCustomerIDIfUnset(ctx context.Context, id, customerID string) (bool, error)
	// IncrementCredits adds credits to the user's balance and returns the affected row count.
	IncrementCredits(ctx context.Context, id string, credits decimal.Decimal) (int64, error)
}

// PaymentMethodRepository persists autopay configuration.
type PaymentMethodRepository interface {
	// UpsertAutopay inserts or updates the user's single payment method row and returns its id.
	UpsertAutopay(ctx context.Context, pm *PaymentMethod) (string, error)
}
