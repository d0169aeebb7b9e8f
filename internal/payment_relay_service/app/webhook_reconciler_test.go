package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

type webhookTestComponents struct {
	reconciler     *WebhookReconciler
	mockGateway    *MockPaymentGateway
	mockTxnRepo    *MockTransactionRepository
	mockClientRepo *MockClientRepository
	mockPublisher  *MockEventPublisher
	mockArchiver   *MockWebhookArchiver
}

func setupWebhookTest(t *testing.T) webhookTestComponents {
	t.Helper()
	mockGateway := new(MockPaymentGateway)
	mockTxnRepo := new(MockTransactionRepository)
	mockClientRepo := new(MockClientRepository)
	mockPublisher := new(MockEventPublisher)
	mockArchiver := new(MockWebhookArchiver)
	mockArchiver.On("Archive", mock.Anything, mock.Anything).Return(nil).Maybe()

	reconciler := NewWebhookReconciler(mockGateway, mockTxnRepo, mockClientRepo, mockPublisher, mockArchiver, discardLogger())
	reconciler.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	return webhookTestComponents{
		reconciler:     reconciler,
		mockGateway:    mockGateway,
		mockTxnRepo:    mockTxnRepo,
		mockClientRepo: mockClientRepo,
		mockPublisher:  mockPublisher,
		mockArchiver:   mockArchiver,
	}
}

func succeededEvent() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:              "evt_1",
		Type:            domain.EventTypePaymentIntentSucceeded,
		PaymentIntentID: "pi_1",
		ReceiptURL:      strPtr("https://pay.stripe.com/receipts/r1"),
		TransactionID:   "6f1c2a40-0000-4000-8000-000000000001",
	}
}

func matchCredits(expected decimal.Decimal) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(expected) })
}

func TestWebhookReconciler_Succeeded_CreditsUser(t *testing.T) {
	comps := setupWebhookTest(t)
	payload := []byte(`{"id":"evt_1"}`)
	event := succeededEvent()
	credits := decimal.NewFromInt(250)

	comps.mockGateway.On("ConstructWebhookEvent", payload, "t=1,v1=abc").Return(event, nil).Once()
	comps.mockTxnRepo.On("CompletePending", mock.Anything, domain.CompletionUpdate{
		PaymentIntentID: "pi_1",
		TransactionID:   event.TransactionID,
		ReceiptURL:      event.ReceiptURL,
	}).Return([]domain.CompletedTransaction{{ID: event.TransactionID, UserID: "user-1", CreditsAmount: credits}}, nil).Once()
	comps.mockClientRepo.On("IncrementCredits", mock.Anything, "user-1", matchCredits(credits)).Return(int64(1), nil).Once()
	comps.mockPublisher.On("PublishCreditsPurchased", mock.Anything, mock.MatchedBy(func(e domain.CreditsPurchasedEvent) bool {
		return e.TransactionID == event.TransactionID &&
			e.UserID == "user-1" &&
			e.CreditsAmount.Equal(credits) &&
			e.PaymentIntentID == "pi_1" &&
			e.StripeEventID == "evt_1" &&
			e.OccurredAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	})).Return(nil).Once()

	err := comps.reconciler.HandlePaymentWebhook(context.Background(), payload, "t=1,v1=abc")

	require.NoError(t, err)
	comps.mockGateway.AssertExpectations(t)
	comps.mockTxnRepo.AssertExpectations(t)
	comps.mockClientRepo.AssertExpectations(t)
	comps.mockPublisher.AssertExpectations(t)
	comps.mockArchiver.AssertCalled(t, "Archive", mock.Anything, event)
}

func TestWebhookReconciler_ReplayCreditsOnce(t *testing.T) {
	comps := setupWebhookTest(t)
	payload := []byte(`{"id":"evt_1"}`)
	event := succeededEvent()
	credits := decimal.NewFromInt(250)

	comps.mockGateway.On("ConstructWebhookEvent", payload, "sig").Return(event, nil).Twice()
	comps.mockTxnRepo.On("CompletePending", mock.Anything, mock.Anything).
		Return([]domain.CompletedTransaction{{ID: event.TransactionID, UserID: "user-1", CreditsAmount: credits}}, nil).Once()
	comps.mockTxnRepo.On("CompletePending", mock.Anything, mock.Anything).
		Return([]domain.CompletedTransaction{}, nil).Once()
	comps.mockClientRepo.On("IncrementCredits", mock.Anything, "user-1", matchCredits(credits)).Return(int64(1), nil).Once()
	comps.mockPublisher.On("PublishCreditsPurchased", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, comps.reconciler.HandlePaymentWebhook(context.Background(), payload, "sig"))
	require.NoError(t, comps.reconciler.HandlePaymentWebhook(context.Background(), payload, "sig"))

	comps.mockClientRepo.AssertNumberOfCalls(t, "IncrementCredits", 1)
	comps.mockPublisher.AssertNumberOfCalls(t, "PublishCreditsPurchased", 1)
	comps.mockTxnRepo.AssertExpectations(t)
}

func TestWebhookReconciler_UnknownPaymentIntentIsNoop(t *testing.T) {
	comps := setupWebhookTest(t)
	event := succeededEvent()
	event.PaymentIntentID = "pi_unknown"
	event.TransactionID = ""

	comps.mockGateway.On("ConstructWebhookEvent", mock.Anything, mock.Anything).Return(event, nil).Once()
	comps.mockTxnRepo.On("CompletePending", mock.Anything, mock.MatchedBy(func(u domain.CompletionUpdate) bool {
		return u.PaymentIntentID == "pi_unknown" && u.TransactionID == ""
	})).Return(nil, nil).Once()

	err := comps.reconciler.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig")

	require.NoError(t, err)
	comps.mockClientRepo.AssertNotCalled(t, "IncrementCredits", mock.Anything, mock.Anything, mock.Anything)
	comps.mockPublisher.AssertNotCalled(t, "PublishCreditsPurchased", mock.Anything, mock.Anything)
}

func TestWebhookReconciler_InvalidSignatureMakesNoMutations(t *testing.T) {
	comps := setupWebhookTest(t)
	comps.mockGateway.On("ConstructWebhookEvent", mock.Anything, "tampered").
		Return(nil, domain.ErrInvalidSignature).Once()

	err := comps.reconciler.HandlePaymentWebhook(context.Background(), []byte(`{}`), "tampered")

	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	comps.mockTxnRepo.AssertNotCalled(t, "CompletePending", mock.Anything, mock.Anything)
	comps.mockClientRepo.AssertNotCalled(t, "IncrementCredits", mock.Anything, mock.Anything, mock.Anything)
	comps.mockArchiver.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything)
}

func TestWebhookReconciler_OtherEventTypesIgnored(t *testing.T) {
	comps := setupWebhookTest(t)
	comps.mockGateway.On("ConstructWebhookEvent", mock.Anything, mock.Anything).
		Return(&domain.WebhookEvent{ID: "evt_2", Type: "payment_intent.payment_failed", PaymentIntentID: "pi_1"}, nil).Once()

	err := comps.reconciler.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig")

	require.NoError(t, err)
	comps.mockTxnRepo.AssertNotCalled(t, "CompletePending", mock.Anything, mock.Anything)
	comps.mockArchiver.AssertNumberOfCalls(t, "Archive", 1)
}

func TestWebhookReconciler_MissingPaymentIntentID(t *testing.T) {
	comps := setupWebhookTest(t)
	event := succeededEvent()
	event.PaymentIntentID = ""
	comps.mockGateway.On("ConstructWebhookEvent", mock.Anything, mock.Anything).Return(event, nil).Once()

	err := comps.reconciler.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig")

	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	comps.mockTxnRepo.AssertNotCalled(t, "CompletePending", mock.Anything, mock.Anything)
}

func TestWebhookReconciler_StatusUpdateFailure(t *testing.T) {
	comps := setupWebhookTest(t)
	dbErr := errors.New("hasura unavailable")
	comps.mockGateway.On("ConstructWebhookEvent", mock.Anything, mock.Anything).Return(succeededEvent(), nil).Once()
	comps.mockTxnRepo.On("CompletePending", mock.Anything, mock.Anything).Return(nil, dbErr).Once()

	err := comps.reconciler.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig")

	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "updating transaction status")
	comps.mockClientRepo.AssertNotCalled(t, "IncrementCredits", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookReconciler_CreditFailureKeepsCompletedStatus(t *testing.T) {
	comps := setupWebhookTest(t)
	dbErr := errors.New("timeout")
	comps.mockGateway.On("ConstructWebhookEvent", mock.Anything, mock.Anything).Return(succeededEvent(), nil).Once()
	comps.mockTxnRepo.On("CompletePending", mock.Anything, mock.Anything).
		Return([]domain.CompletedTransaction{{ID: "txn-1", UserID: "user-1", CreditsAmount: decimal.NewFromInt(10)}}, nil).Once()
	comps.mockClientRepo.On("IncrementCredits", mock.Anything, "user-1", mock.Anything).Return(int64(0), dbErr).Once()

	err := comps.reconciler.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig")

	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "crediting user balance")
	comps.mockTxnRepo.AssertNumberOfCalls(t, "CompletePending", 1)
	comps.mockPublisher.AssertNotCalled(t, "PublishCreditsPurchased", mock.Anything, mock.Anything)
}

func TestWebhookReconciler_MultipleRowsCreditsFirstOnly(t *testing.T) {
	comps := setupWebhookTest(t)
	comps.mockGateway.On("ConstructWebhookEvent", mock.Anything, mock.Anything).Return(succeededEvent(), nil).Once()
	comps.mockTxnRepo.On("CompletePending", mock.Anything, mock.Anything).Return([]domain.CompletedTransaction{
		{ID: "txn-1", UserID: "user-1", CreditsAmount: decimal.NewFromInt(10)},
		{ID: "txn-2", UserID: "user-2", CreditsAmount: decimal.NewFromInt(20)},
	}, nil).Once()
	comps.mockClientRepo.On("IncrementCredits", mock.Anything, "user-1", matchCredits(decimal.NewFromInt(10))).Return(int64(1), nil).Once()
	comps.mockPublisher.On("PublishCreditsPurchased", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, comps.reconciler.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))

	comps.mockClientRepo.AssertNumberOfCalls(t, "IncrementCredits", 1)
}

func TestWebhookReconciler_PublishAndArchiveFailuresAreNotFatal(t *testing.T) {
	mockGateway := new(MockPaymentGateway)
	mockTxnRepo := new(MockTransactionRepository)
	mockClientRepo := new(MockClientRepository)
	mockPublisher := new(MockEventPublisher)
	mockArchiver := new(MockWebhookArchiver)
	reconciler := NewWebhookReconciler(mockGateway, mockTxnRepo, mockClientRepo, mockPublisher, mockArchiver, discardLogger())

	mockGateway.On("ConstructWebhookEvent", mock.Anything, mock.Anything).Return(succeededEvent(), nil).Once()
	mockArchiver.On("Archive", mock.Anything, mock.Anything).Return(errors.New("s3 down")).Once()
	mockTxnRepo.On("CompletePending", mock.Anything, mock.Anything).
		Return([]domain.CompletedTransaction{{ID: "txn-1", UserID: "user-1", CreditsAmount: decimal.NewFromInt(10)}}, nil).Once()
	mockClientRepo.On("IncrementCredits", mock.Anything, "user-1", mock.Anything).Return(int64(1), nil).Once()
	mockPublisher.On("PublishCreditsPurchased", mock.Anything, mock.Anything).Return(errors.New("nats down")).Once()

	assert.NoError(t, reconciler.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
	mockArchiver.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}
