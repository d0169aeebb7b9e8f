package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

type SetupAutopayInput struct {
	UserID     string
	Amount     int64
	DayOfMonth int
}

type SetupAutopayResult struct {
	ClientSecret  string `json:"client_secret"`
	SetupIntentID string `json:"setup_intent_id"`
}

// AutopaySetupCreator prepares a reusable payment method and stores the autopay schedule.
type AutopaySetupCreator struct {
	validator  *SettingsValidator
	gateway    domain.PaymentGateway
	clientRepo domain.ClientRepository
	pmRepo     domain.PaymentMethodRepository
	logger     *slog.Logger
}

func NewAutopaySetupCreator(
	validator *SettingsValidator,
	gateway domain.PaymentGateway,
	clientRepo domain.ClientRepository,
	pmRepo domain.PaymentMethodRepository,
	logger *slog.Logger,
) *AutopaySetupCreator {
	return &AutopaySetupCreator{
		validator:  validator,
		gateway:    gateway,
		clientRepo: clientRepo,
		pmRepo:     pmRepo,
		logger:     logger.With("component", "autopay_setup_creator"),
	}
}

func (c *AutopaySetupCreator) SetupAutopay(ctx context.Context, in SetupAutopayInput) (res *SetupAutopayResult, err error) {
	logger := c.logger.With("user_id", in.UserID, "amount", in.Amount, "day_of_month", in.DayOfMonth)
	defer func() { actionsProcessedCounter.WithLabelValues("setup_autopay", actionOutcome(err)).Inc() }()

	if _, err = c.validator.Validate(ctx, in.Amount); err != nil {
		return nil, err
	}

	customerID, err := c.resolveCustomer(ctx, logger, in.UserID)
	if err != nil {
		return nil, err
	}
	logger = logger.With("stripe_customer_id", customerID)

	setupIntent, err := c.gateway.CreateSetupIntent(ctx, domain.SetupIntentRequest{
		UserID:     in.UserID,
		CustomerID: customerID,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create setup intent", "error", err)
		return nil, fmt.Errorf("creating setup intent: %w", err)
	}

	pmID, err := c.pmRepo.UpsertAutopay(ctx, &domain.PaymentMethod{
		UserID:                in.UserID,
		AutoPayAmount:         in.Amount,
		AutoPayDay:            in.DayOfMonth,
		AutoPayEnabled:        true,
		StripePaymentMethodID: setupIntent.ID,
		Type:                  domain.PaymentMethodTypeCard,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save autopay payment method", "error", err, "setup_intent_id", setupIntent.ID)
		return nil, fmt.Errorf("saving autopay payment method: %w", err)
	}

	logger.InfoContext(ctx, "Autopay configured", "setup_intent_id", setupIntent.ID, "payment_method_id", pmID)
	return &SetupAutopayResult{ClientSecret: setupIntent.ClientSecret, SetupIntentID: setupIntent.ID}, nil
}

// resolveCustomer returns the user's Stripe customer, creating it on first use.
// The id is stored with a compare-and-set; a concurrent request that stored first wins,
// and the gateway's idempotency key makes both requests see the same customer.
func (c *AutopaySetupCreator) resolveCustomer(ctx context.Context, logger *slog.Logger, userID string) (string, error) {
	client, err := c.clientRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("client %s not found: %w", userID, err)
		}
		return "", fmt.Errorf("fetching client: %w", err)
	}
	if client.HasStripeCustomer() {
		return *client.StripeCustomerID, nil
	}

	customer, err := c.gateway.CreateCustomer(ctx, domain.CustomerRequest{UserID: userID, Email: client.Email})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create Stripe customer", "error", err)
		return "", fmt.Errorf("creating stripe customer: %w", err)
	}

	stored, err := c.clientRepo.SetStripeCustomerIDIfUnset(ctx, userID, customer.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to store Stripe customer id", "error", err, "stripe_customer_id", customer.ID)
		return "", fmt.Errorf("storing stripe customer id: %w", err)
	}
	if stored {
		customersCreatedCounter.WithLabelValues("stored").Inc()
		logger.InfoContext(ctx, "Stripe customer created", "stripe_customer_id", customer.ID)
		return customer.ID, nil
	}

	customersCreatedCounter.WithLabelValues("superseded").Inc()
	client, err = c.clientRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("re-reading client after concurrent customer assignment: %w", err)
	}
	if !client.HasStripeCustomer() {
		return "", fmt.Errorf("stripe customer id for client %s was not persisted", userID)
	}
	if *client.StripeCustomerID != customer.ID {
		logger.WarnContext(ctx, "Another request assigned a different Stripe customer; using the stored one",
			"created_customer_id", customer.ID,
			"stored_customer_id", *client.StripeCustomerID)
	}
	return *client.StripeCustomerID, nil
}
