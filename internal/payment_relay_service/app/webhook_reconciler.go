package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

const (
	webhookOutcomeRejected   = "rejected"
	webhookOutcomeIgnored    = "ignored"
	webhookOutcomeNoPending  = "no_pending_transaction"
	webhookOutcomeReconciled = "reconciled"
	webhookOutcomeError      = "error"
)

// WebhookReconciler turns verified payment notifications into completed transactions and credits.
type WebhookReconciler struct {
	gateway    domain.PaymentGateway
	txnRepo    domain.TransactionRepository
	clientRepo domain.ClientRepository
	publisher  domain.EventPublisher
	archiver   domain.WebhookArchiver
	logger     *slog.Logger
	now        func() time.Time
}

func NewWebhookReconciler(
	gateway domain.PaymentGateway,
	txnRepo domain.TransactionRepository,
	clientRepo domain.ClientRepository,
	publisher domain.EventPublisher,
	archiver domain.WebhookArchiver,
	logger *slog.Logger,
) *WebhookReconciler {
	return &WebhookReconciler{
		gateway:    gateway,
		txnRepo:    txnRepo,
		clientRepo: clientRepo,
		publisher:  publisher,
		archiver:   archiver,
		logger:     logger.With("component", "webhook_reconciler"),
		now:        time.Now,
	}
}

// HandlePaymentWebhook verifies and applies one delivery. Only payment_intent.succeeded
// changes state; every other verified event is acknowledged without side effects.
// Redeliveries of an already applied event find no pending row and are no-ops.
func (r *WebhookReconciler) HandlePaymentWebhook(ctx context.Context, rawPayload []byte, signature string) error {
	event, err := r.gateway.ConstructWebhookEvent(rawPayload, signature)
	if err != nil {
		webhookEventsCounter.WithLabelValues("unknown", webhookOutcomeRejected).Inc()
		r.logger.WarnContext(ctx, "Rejected webhook delivery", "error", err)
		return err
	}
	logger := r.logger.With("event_id", event.ID, "event_type", event.Type)

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, event); err != nil {
			logger.WarnContext(ctx, "Failed to archive webhook payload", "error", err)
		}
	}

	if event.Type != domain.EventTypePaymentIntentSucceeded {
		webhookEventsCounter.WithLabelValues(event.Type, webhookOutcomeIgnored).Inc()
		logger.DebugContext(ctx, "Ignoring webhook event")
		return nil
	}
	if event.PaymentIntentID == "" {
		webhookEventsCounter.WithLabelValues(event.Type, webhookOutcomeRejected).Inc()
		logger.WarnContext(ctx, "Payment intent event without an object id")
		return fmt.Errorf("event %s has no payment intent id: %w", event.ID, domain.ErrInvalidPayload)
	}
	logger = logger.With("payment_intent_id", event.PaymentIntentID)

	completed, err := r.txnRepo.CompletePending(ctx, domain.CompletionUpdate{
		PaymentIntentID: event.PaymentIntentID,
		TransactionID:   event.TransactionID,
		ReceiptURL:      event.ReceiptURL,
	})
	if err != nil {
		webhookEventsCounter.WithLabelValues(event.Type, webhookOutcomeError).Inc()
		logger.ErrorContext(ctx, "Failed to update transaction status", "error", err)
		return fmt.Errorf("updating transaction status: %w", err)
	}
	if len(completed) == 0 {
		webhookEventsCounter.WithLabelValues(event.Type, webhookOutcomeNoPending).Inc()
		logger.InfoContext(ctx, "No pending transaction for payment intent")
		return nil
	}
	if len(completed) > 1 {
		logger.WarnContext(ctx, "Payment intent completed more than one transaction; crediting the first",
			"completed_count", len(completed))
	}

	txn := completed[0]
	logger = logger.With("transaction_id", txn.ID, "user_id", txn.UserID)

	affected, err := r.clientRepo.IncrementCredits(ctx, txn.UserID, txn.CreditsAmount)
	if err != nil {
		// The transaction is already completed; a retry would find nothing pending.
		webhookEventsCounter.WithLabelValues(event.Type, webhookOutcomeError).Inc()
		logger.ErrorContext(ctx, "Transaction completed but credits were not added, manual repair required",
			"error", err, "credits", txn.CreditsAmount.String())
		return fmt.Errorf("crediting user balance: %w", err)
	}
	if affected == 0 {
		logger.ErrorContext(ctx, "Credit increment matched no client row, manual repair required",
			"credits", txn.CreditsAmount.String())
	}

	webhookEventsCounter.WithLabelValues(event.Type, webhookOutcomeReconciled).Inc()
	if txn.CreditsAmount.IsPositive() {
		creditsGrantedCounter.Add(txn.CreditsAmount.InexactFloat64())
	}
	logger.InfoContext(ctx, "Payment reconciled", "credits", txn.CreditsAmount.String())

	r.publish(ctx, logger, event, txn)
	return nil
}

func (r *WebhookReconciler) publish(ctx context.Context, logger *slog.Logger, event *domain.WebhookEvent, txn domain.CompletedTransaction) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.PublishCreditsPurchased(ctx, domain.CreditsPurchasedEvent{
		TransactionID:   txn.ID,
		UserID:          txn.UserID,
		CreditsAmount:   txn.CreditsAmount,
		PaymentIntentID: event.PaymentIntentID,
		StripeEventID:   event.ID,
		OccurredAt:      r.now().UTC(),
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish credits purchased event", "error", err)
	}
}
