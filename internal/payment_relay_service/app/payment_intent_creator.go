package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

// checkoutSessionPlaceholder is substituted by Stripe with the session id on redirect.
const checkoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type CreatePaymentInput struct {
	UserID string
	Amount int64
	Email  *string
}

type CreatePaymentResult struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	TransactionID     string `json:"transaction_id"`
}

// PaymentIntentCreator opens a checkout session and records the pending transaction behind it.
type PaymentIntentCreator struct {
	validator   *SettingsValidator
	gateway     domain.PaymentGateway
	txnRepo     domain.TransactionRepository
	frontendURL string
	currency    string
	logger      *slog.Logger
	newID       func() string
}

func NewPaymentIntentCreator(
	validator *SettingsValidator,
	gateway domain.PaymentGateway,
	txnRepo domain.TransactionRepository,
	frontendURL string,
	currency string,
	logger *slog.Logger,
) *PaymentIntentCreator {
	return &PaymentIntentCreator{
		validator:   validator,
		gateway:     gateway,
		txnRepo:     txnRepo,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		currency:    strings.ToLower(currency),
		logger:      logger.With("component", "payment_intent_creator"),
		newID:       uuid.NewString,
	}
}

func (c *PaymentIntentCreator) CreatePayment(ctx context.Context, in CreatePaymentInput) (res *CreatePaymentResult, err error) {
	logger := c.logger.With("user_id", in.UserID, "amount", in.Amount)
	defer func() { actionsProcessedCounter.WithLabelValues("create_payment", actionOutcome(err)).Inc() }()

	settings, err := c.validator.Validate(ctx, in.Amount)
	if err != nil {
		return nil, err
	}
	rate, err := settings.ConversionRate()
	if err != nil {
		return nil, err
	}
	credits := decimal.NewFromInt(in.Amount).Mul(rate)
	logger.DebugContext(ctx, "Credits computed", "conversion_rate", rate.String(), "credits", credits.String())

	transactionID := c.newID()
	session, err := c.gateway.CreateCheckoutSession(ctx, domain.CheckoutSessionRequest{
		TransactionID: transactionID,
		UserID:        in.UserID,
		UnitAmount:    in.Amount * 100,
		Currency:      c.currency,
		ProductName:   fmt.Sprintf("%s Credits", credits.String()),
		SuccessURL:    c.frontendURL + "/payment/success?session_id=" + checkoutSessionPlaceholder,
		CancelURL:     c.frontendURL + "/payment/cancel",
		CustomerEmail: in.Email,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create checkout session", "error", err)
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	logger = logger.With("checkout_session_id", session.ID)

	txn := &domain.Transaction{
		ID:                      transactionID,
		UserID:                  in.UserID,
		Amount:                  in.Amount,
		CreditsAmount:           credits,
		StripePaymentIntentID:   session.PaymentIntentID,
		StripeCheckoutSessionID: session.ID,
		Type:                    domain.TransactionTypeCreditPurchase,
		Status:                  domain.TransactionStatusPending,
		Currency:                strings.ToUpper(c.currency),
	}
	storedID, err := c.txnRepo.CreatePending(ctx, txn)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record pending transaction, expiring checkout session", "error", err, "transaction_id", transactionID)
		c.expireOrphan(ctx, logger, session.ID)
		return nil, fmt.Errorf("recording pending transaction: %w", err)
	}

	logger.InfoContext(ctx, "Checkout session created", "transaction_id", storedID, "credits", credits.String())
	return &CreatePaymentResult{CheckoutSessionID: session.ID, TransactionID: storedID}, nil
}

// expireOrphan closes a session that has no local record so it can never be paid.
func (c *PaymentIntentCreator) expireOrphan(ctx context.Context, logger *slog.Logger, sessionID string) {
	if err := c.gateway.ExpireCheckoutSession(context.WithoutCancel(ctx), sessionID); err != nil {
		logger.ErrorContext(ctx, "Failed to expire orphaned checkout session", "error", err)
	}
}

func actionOutcome(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return outcomeValidationError
	}
	return outcomeInternalError
}
