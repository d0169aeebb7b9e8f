package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SubjectCreditsPurchased is the NATS subject for CreditsPurchasedEvent.
const SubjectCreditsPurchased = "payments.credits.purchased"

// CreditsPurchasedEvent is emitted after a completed transaction credited a balance.
type CreditsPurchasedEvent struct {
	TransactionID   string          `json:"transaction_id"`
	UserID          string          `json:"user_id"`
	CreditsAmount   decimal.Decimal `json:"credits_amount"`
	PaymentIntentID string          `json:"payment_intent_id"`
	StripeEventID   string          `json:"stripe_event_id"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// EventPublisher delivers domain events to other services.
type EventPublisher interface {
	PublishCreditsPurchased(ctx context.Context, event CreditsPurchasedEvent) error
}

// WebhookArchiver keeps a copy of verified raw webhook payloads.
type WebhookArchiver interface {
	Archive(ctx context.Context, event *WebhookEvent) error
}
