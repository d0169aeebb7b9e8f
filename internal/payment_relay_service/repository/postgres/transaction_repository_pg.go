package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

const insertTransactionSQL = `INSERT INTO transactions
(id, user_id, amount, credits_amount, stripe_payment_intent_id, stripe_checkout_session_id, type, status, currency)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
RETURNING id::text`

const completeByPaymentIntentSQL = `UPDATE transactions
SET status = 'completed', receipt_url = $2, updated_at = now()
WHERE status = 'pending' AND stripe_payment_intent_id = $1
RETURNING id::text, user_id::text, credits_amount::text`

const completeByPaymentIntentOrIDSQL = `UPDATE transactions
SET status = 'completed', receipt_url = $2, stripe_payment_intent_id = $1, updated_at = now()
WHERE status = 'pending' AND (stripe_payment_intent_id = $1 OR id = $3)
RETURNING id::text, user_id::text, credits_amount::text`

type PgTransactionRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgTransactionRepository(db DB, logger *slog.Logger) *PgTransactionRepository {
	return &PgTransactionRepository{db: db, logger: logger.With("component", "transaction_repository_pg")}
}

func (r *PgTransactionRepository) CreatePending(ctx context.Context, txn *domain.Transaction) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, insertTransactionSQL,
		txn.ID, txn.UserID, txn.Amount, txn.CreditsAmount.String(), txn.StripePaymentIntentID,
		txn.StripeCheckoutSessionID, string(domain.TransactionTypeCreditPurchase),
		string(domain.TransactionStatusPending), txn.Currency,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("inserting transaction %s: %w", txn.ID, mapError(err))
	}
	return id, nil
}

func (r *PgTransactionRepository) CompletePending(ctx context.Context, update domain.CompletionUpdate) ([]domain.CompletedTransaction, error) {
	query, args := completeByPaymentIntentSQL, []any{update.PaymentIntentID, update.ReceiptURL}
	if _, err := uuid.Parse(update.TransactionID); err == nil {
		query, args = completeByPaymentIntentOrIDSQL, append(args, update.TransactionID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("completing transactions for %s: %w", update.PaymentIntentID, err)
	}
	defer rows.Close()

	var completed []domain.CompletedTransaction
	for rows.Next() {
		var row domain.CompletedTransaction
		var credits string
		if err := rows.Scan(&row.ID, &row.UserID, &credits); err != nil {
			return nil, fmt.Errorf("scanning completed transaction: %w", err)
		}
		if row.CreditsAmount, err = decimal.NewFromString(credits); err != nil {
			return nil, fmt.Errorf("parsing credits_amount %q: %w", credits, err)
		}
		completed = append(completed, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating completed transactions: %w", err)
	}
	if len(completed) > 0 {
		r.logger.DebugContext(ctx, "Transactions completed", "payment_intent_id", update.PaymentIntentID, "count", len(completed))
	}
	return completed, nil
}
