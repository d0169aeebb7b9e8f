package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a credit purchase.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// TransactionType defines the nature of a transaction row.
type TransactionType string

const TransactionTypeCreditPurchase TransactionType = "credit_purchase"

// PaymentMethodTypeCard is the only payment method type autopay stores.
const PaymentMethodTypeCard = "card"

// Transaction is a credit purchase paid through a checkout session.
type Transaction struct {
	ID                      string            `json:"id"`
	UserID                  string            `json:"user_id"`
	Amount                  int64             `json:"amount"` // major currency units, as requested by the user
	CreditsAmount           decimal.Decimal   `json:"credits_amount"`
	StripePaymentIntentID   *string           `json:"stripe_payment_intent_id,omitempty"`
	StripeCheckoutSessionID string            `json:"stripe_checkout_session_id"`
	Type                    TransactionType   `json:"type"`
	Status                  TransactionStatus `json:"status"`
	Currency                string            `json:"currency"`
	ReceiptURL              *string           `json:"receipt_url,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// CompletedTransaction is what the status transition reports for each row it moved.
type CompletedTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	CreditsAmount decimal.Decimal `json:"credits_amount"`
}

// CompletionUpdate selects the pending transaction(s) a successful payment settles.
// TransactionID is optional and comes from the payment intent metadata.
type CompletionUpdate struct {
	PaymentIntentID string
	TransactionID   string
	ReceiptURL      *string
}

// Client is the user account as far as billing is concerned.
type Client struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	StripeCustomerID *string         `json:"stripe_customer_id,omitempty"`
	CreditsBalance   decimal.Decimal `json:"credits_balance"`
}

// HasStripeCustomer reports whether a processor customer was already assigned.
func (c *Client) HasStripeCustomer() bool {
	return c.StripeCustomerID != nil && *c.StripeCustomerID != ""
}

// PaymentMethod holds the autopay configuration, one row per user.
type PaymentMethod struct {
	ID                    string `json:"id"`
	UserID                string `json:"user_id"`
	AutoPayAmount         int64  `json:"auto_pay_amount"`
	AutoPayDay            int    `json:"auto_pay_day"`
	AutoPayEnabled        bool   `json:"auto_pay_enabled"`
	StripePaymentMethodID string `json:"stripe_payment_method_id"` // setup intent reference until a method is attached
	Type                  string `json:"type"`
}

// PaymentSettings is one read of the global payment limits and the conversion rate setting.
type PaymentSettings struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal

	ConversionRateKey   string
	ConversionRateValue *string // nil when the system setting row is absent
}

// InRange reports whether amount lies within [MinAmount, MaxAmount].
func (s *PaymentSettings) InRange(amount int64) bool {
	a := decimal.NewFromInt(amount)
	return !a.LessThan(s.MinAmount) && !a.GreaterThan(s.MaxAmount)
}

// ConversionRate parses the conversion rate captured with this snapshot.
func (s *PaymentSettings) ConversionRate() (decimal.Decimal, error) {
	return ParseConversionRate(s.ConversionRateKey, s.ConversionRateValue)
}

// ParseConversionRate turns a system setting value into a rate.
func ParseConversionRate(key string, value *string) (decimal.Decimal, error) {
	if value == nil {
		return decimal.Zero, &ValidationError{
			Path:    "$",
			Message: fmt.Sprintf("system setting %q is not configured", key),
		}
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(*value))
	if err != nil {
		return decimal.Zero, &ValidationError{
			Path:    "$",
			Message: fmt.Sprintf("system setting %q is not a number: %q", key, *value),
		}
	}
	return rate, nil
}
