package domain

import (
	"context"
	"time"
)

// EventTypePaymentIntentSucceeded is the only processor event that changes state here.
const EventTypePaymentIntentSucceeded = "payment_intent.succeeded"

// CheckoutSessionRequest describes a hosted, single-use payment page.
type CheckoutSessionRequest struct {
	TransactionID string // our pre-generated transaction id, echoed back through metadata
	UserID        string
	UnitAmount    int64 // minor currency units
	Currency      string
	ProductName   string
	SuccessURL    string
	CancelURL     string
	CustomerEmail *string
}

type CheckoutSession struct {
	ID              string
	PaymentIntentID *string // may be nil until the customer pays, depending on API version
	URL             string
}

type CustomerRequest struct {
	UserID string
	Email  string
}

type Customer struct {
	ID string
}

type SetupIntentRequest struct {
	UserID     string
	CustomerID string
}

type SetupIntent struct {
	ID           string
	ClientSecret string
}

// WebhookEvent is a verified processor notification. Payment fields are only
// populated for payment_intent.* events.
type WebhookEvent struct {
	ID              string
	Type            string
	Created         time.Time
	Livemode        bool
	PaymentIntentID string
	ReceiptURL      *string
	TransactionID   string // from payment intent metadata, empty if absent
	Raw             []byte
}

// PaymentGateway is the payment processor as this service uses it.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error)
	CreateSetupIntent(ctx context.Context, req SetupIntentRequest) (*SetupIntent, error)
	// ConstructWebhookEvent verifies the signature and parses the payload.
	// Errors wrap ErrMissingSignature, ErrInvalidSignature or ErrInvalidPayload.
	ConstructWebhookEvent(payload []byte, signature string) (*WebhookEvent, error)
}
