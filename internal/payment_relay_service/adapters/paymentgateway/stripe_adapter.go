package paymentgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

var stripeRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "payment_relay",
		Name:      "stripe_request_duration_seconds",
		Help:      "Duration of Stripe API calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation", "status"},
)

const metadataTransactionID = "transaction_id"

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the Stripe API base URL. Empty means the public API.
	APIURL     string
	HTTPClient *http.Client
}

// StripeAdapter implements domain.PaymentGateway on top of stripe-go.
type StripeAdapter struct {
	client        *stripe.Client
	webhookSecret string
	logger        *slog.Logger
}

func NewStripeAdapter(cfg StripeConfig, logger *slog.Logger) *StripeAdapter {
	var opts []stripe.ClientOption
	if cfg.APIURL != "" || cfg.HTTPClient != nil {
		backendCfg := &stripe.BackendConfig{HTTPClient: cfg.HTTPClient}
		if cfg.APIURL != "" {
			backendCfg.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
		}
		opts = append(opts, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg)))
	}
	return &StripeAdapter{
		client:        stripe.NewClient(cfg.SecretKey, opts...),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger.With("adapter", "stripe_payment_gateway"),
	}
}

func observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	stripeRequestDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

func (a *StripeAdapter) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (*domain.CheckoutSession, error) {
	metadata := map[string]string{
		metadataTransactionID: req.TransactionID,
		"user_id":             req.UserID,
	}
	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: []*string{stripe.String("card")},
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
					UnitAmount: stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.TransactionID),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.CustomerEmail != nil && *req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(*req.CustomerEmail)
	}
	params.SetIdempotencyKey(req.TransactionID)

	start := time.Now()
	session, err := a.client.V1CheckoutSessions.Create(ctx, params)
	observe("checkout_session_create", start, err)
	if err != nil {
		a.logger.ErrorContext(ctx, "Stripe checkout session creation failed", "error", err, "transaction_id", req.TransactionID)
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}

	out := &domain.CheckoutSession{ID: session.ID, URL: session.URL}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		pi := session.PaymentIntent.ID
		out.PaymentIntentID = &pi
	}
	a.logger.InfoContext(ctx, "Stripe checkout session created", "checkout_session_id", session.ID, "transaction_id", req.TransactionID)
	return out, nil
}

func (a *StripeAdapter) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	start := time.Now()
	_, err := a.client.V1CheckoutSessions.Expire(ctx, sessionID, &stripe.CheckoutSessionExpireParams{})
	observe("checkout_session_expire", start, err)
	if err != nil {
		return fmt.Errorf("stripe expire checkout session %s: %w", sessionID, err)
	}
	a.logger.InfoContext(ctx, "Stripe checkout session expired", "checkout_session_id", sessionID)
	return nil
}

func (a *StripeAdapter) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (*domain.Customer, error) {
	params := &stripe.CustomerCreateParams{
		Metadata: map[string]string{"user_id": req.UserID},
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.SetIdempotencyKey("customer-" + req.UserID)

	start := time.Now()
	customer, err := a.client.V1Customers.Create(ctx, params)
	observe("customer_create", start, err)
	if err != nil {
		a.logger.ErrorContext(ctx, "Stripe customer creation failed", "error", err, "user_id", req.UserID)
		return nil, fmt.Errorf("stripe customer: %w", err)
	}
	return &domain.Customer{ID: customer.ID}, nil
}

func (a *StripeAdapter) CreateSetupIntent(ctx context.Context, req domain.SetupIntentRequest) (*domain.SetupIntent, error) {
	params := &stripe.SetupIntentCreateParams{
		Customer:           stripe.String(req.CustomerID),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Usage:              stripe.String(string(stripe.SetupIntentUsageOffSession)),
		Metadata:           map[string]string{"user_id": req.UserID},
	}

	start := time.Now()
	intent, err := a.client.V1SetupIntents.Create(ctx, params)
	observe("setup_intent_create", start, err)
	if err != nil {
		a.logger.ErrorContext(ctx, "Stripe setup intent creation failed", "error", err, "stripe_customer_id", req.CustomerID)
		return nil, fmt.Errorf("stripe setup intent: %w", err)
	}
	return &domain.SetupIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// paymentIntentObject covers both the current and the pre-2022 shape of a
// payment intent, which carried its charges inline.
type paymentIntentObject struct {
	ID           string            `json:"id"`
	Metadata     map[string]string `json:"metadata"`
	LatestCharge json.RawMessage   `json:"latest_charge"`
	Charges      *struct {
		Data []struct {
			ReceiptURL string `json:"receipt_url"`
		} `json:"data"`
	} `json:"charges"`
}

func (o *paymentIntentObject) receiptURL() *string {
	if o.Charges != nil && len(o.Charges.Data) > 0 && o.Charges.Data[0].ReceiptURL != "" {
		u := o.Charges.Data[0].ReceiptURL
		return &u
	}
	// latest_charge is a bare id unless expanded.
	if len(o.LatestCharge) > 0 && o.LatestCharge[0] == '{' {
		var charge stripe.Charge
		if err := json.Unmarshal(o.LatestCharge, &charge); err == nil && charge.ReceiptURL != "" {
			return &charge.ReceiptURL
		}
	}
	return nil
}

func (a *StripeAdapter) ConstructWebhookEvent(payload []byte, signature string) (*domain.WebhookEvent, error) {
	if signature == "" {
		return nil, domain.ErrMissingSignature
	}
	if !json.Valid(payload) {
		return nil, domain.ErrInvalidPayload
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, a.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned):
			return nil, fmt.Errorf("%w: %v", domain.ErrMissingSignature, err)
		case errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}

	out := &domain.WebhookEvent{
		ID:       event.ID,
		Type:     string(event.Type),
		Created:  time.Unix(event.Created, 0).UTC(),
		Livemode: event.Livemode,
		Raw:      payload,
	}
	if !strings.HasPrefix(out.Type, "payment_intent.") || event.Data == nil {
		return out, nil
	}

	var obj paymentIntentObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: decoding payment intent: %v", domain.ErrInvalidPayload, err)
	}
	out.PaymentIntentID = obj.ID
	out.ReceiptURL = obj.receiptURL()
	out.TransactionID = obj.Metadata[metadataTransactionID]
	return out, nil
}
