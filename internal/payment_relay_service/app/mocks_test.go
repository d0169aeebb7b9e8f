package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

// --- Mocks ---

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetPaymentSettings(ctx context.Context, conversionRateKey string) (*domain.PaymentSettings, error) {
	args := m.Called(ctx, conversionRateKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentSettings), args.Error(1)
}

func (m *MockSettingsRepository) GetSystemSetting(ctx context.Context, key string) (*string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreatePending(ctx context.Context, txn *domain.Transaction) (string, error) {
	args := m.Called(ctx, txn)
	return args.String(0), args.Error(1)
}

func (m *MockTransactionRepository) CompletePending(ctx context.Context, update domain.CompletionUpdate) ([]domain.CompletedTransaction, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CompletedTransaction), args.Error(1)
}

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockClientRepository) SetStripeCustomerIDIfUnset(ctx context.Context, id, customerID string) (bool, error) {
	args := m.Called(ctx, id, customerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRepository) IncrementCredits(ctx context.Context, id string, credits decimal.Decimal) (int64, error) {
	args := m.Called(ctx, id, credits)
	return args.Get(0).(int64), args.Error(1)
}

type MockPaymentMethodRepository struct {
	mock.Mock
}

func (m *MockPaymentMethodRepository) UpsertAutopay(ctx context.Context, pm *domain.PaymentMethod) (string, error) {
	args := m.Called(ctx, pm)
	return args.String(0), args.Error(1)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *MockPaymentGateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockPaymentGateway) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (*domain.Customer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockPaymentGateway) CreateSetupIntent(ctx context.Context, req domain.SetupIntentRequest) (*domain.SetupIntent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SetupIntent), args.Error(1)
}

func (m *MockPaymentGateway) ConstructWebhookEvent(payload []byte, signature string) (*domain.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCreditsPurchased(ctx context.Context, event domain.CreditsPurchasedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockWebhookArchiver struct {
	mock.Mock
}

func (m *MockWebhookArchiver) Archive(ctx context.Context, event *domain.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func testSettings(min, max int64, rate string) *domain.PaymentSettings {
	return &domain.PaymentSettings{
		MinAmount:           decimal.NewFromInt(min),
		MaxAmount:           decimal.NewFromInt(max),
		ConversionRateKey:   "credit_conversion_rate",
		ConversionRateValue: strPtr(rate),
	}
}
