package hasura

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/graphql"
)

const createTransactionMutation = `
mutation CreateTransaction(
  $id: uuid!,
  $user_id: uuid!,
  $amount: Int!,
  $credits: numeric!,
  $payment_intent_id: String,
  $checkout_session_id: String!,
  $currency: String!
) {
  insert_transactions_one(object: {
    id: $id,
    user_id: $user_id,
    amount: $amount,
    credits_amount: $credits,
    stripe_payment_intent_id: $payment_intent_id,
    stripe_checkout_session_id: $checkout_session_id,
    type: "credit_purchase",
    status: "pending",
    currency: $currency
  }) {
    id
  }
}`

// Only pending rows match, so a redelivered event updates nothing.
const completeByPaymentIntentMutation = `
mutation CompleteTransaction($payment_intent_id: String!, $receipt_url: String) {
  update_transactions(
    where: {status: {_eq: "pending"}, stripe_payment_intent_id: {_eq: $payment_intent_id}},
    _set: {status: "completed", receipt_url: $receipt_url, updated_at: "now()"}
  ) {
    affected_rows
    returning {
      id
      user_id
      credits_amount
    }
  }
}`

const completeByPaymentIntentOrIDMutation = `
mutation CompleteTransactionByReference($payment_intent_id: String!, $transaction_id: uuid!, $receipt_url: String) {
  update_transactions(
    where: {
      status: {_eq: "pending"},
      _or: [
        {stripe_payment_intent_id: {_eq: $payment_intent_id}},
        {id: {_eq: $transaction_id}}
      ]
    },
    _set: {
      status: "completed",
      receipt_url: $receipt_url,
      stripe_payment_intent_id: $payment_intent_id,
      updated_at: "now()"
    }
  ) {
    affected_rows
    returning {
      id
      user_id
      credits_amount
    }
  }
}`

type TransactionRepository struct {
	exec graphql.Executor
}

func NewTransactionRepository(exec graphql.Executor) *TransactionRepository {
	return &TransactionRepository{exec: exec}
}

func (r *TransactionRepository) CreatePending(ctx context.Context, txn *domain.Transaction) (string, error) {
	vars := map[string]any{
		"id":                  txn.ID,
		"user_id":             txn.UserID,
		"amount":              txn.Amount,
		"credits":             txn.CreditsAmount,
		"payment_intent_id":   txn.StripePaymentIntentID,
		"checkout_session_id": txn.StripeCheckoutSessionID,
		"currency":            txn.Currency,
	}
	var out struct {
		InsertTransactionsOne *struct {
			ID string `json:"id"`
		} `json:"insert_transactions_one"`
	}
	if err := r.exec.Execute(ctx, "CreateTransaction", createTransactionMutation, vars, &out); err != nil {
		return "", err
	}
	if out.InsertTransactionsOne == nil {
		return "", domain.ErrNotFound
	}
	return out.InsertTransactionsOne.ID, nil
}

func (r *TransactionRepository) CompletePending(ctx context.Context, update domain.CompletionUpdate) ([]domain.CompletedTransaction, error) {
	operation, document := "CompleteTransaction", completeByPaymentIntentMutation
	vars := map[string]any{
		"payment_intent_id": update.PaymentIntentID,
		"receipt_url":       update.ReceiptURL,
	}
	if _, err := uuid.Parse(update.TransactionID); err == nil {
		operation, document = "CompleteTransactionByReference", completeByPaymentIntentOrIDMutation
		vars["transaction_id"] = update.TransactionID
	}

	var out struct {
		UpdateTransactions struct {
			AffectedRows int `json:"affected_rows"`
			Returning    []struct {
				ID            string          `json:"id"`
				UserID        string          `json:"user_id"`
				CreditsAmount decimal.Decimal `json:"credits_amount"`
			} `json:"returning"`
		} `json:"update_transactions"`
	}
	if err := r.exec.Execute(ctx, operation, document, vars, &out); err != nil {
		return nil, err
	}
	if out.UpdateTransactions.AffectedRows > 0 && len(out.UpdateTransactions.Returning) == 0 {
		return nil, fmt.Errorf("%s: %d rows completed but none returned", operation, out.UpdateTransactions.AffectedRows)
	}

	completed := make([]domain.CompletedTransaction, 0, len(out.UpdateTransactions.Returning))
	for _, row := range out.UpdateTransactions.Returning {
		completed = append(completed, domain.CompletedTransaction{
			ID:            row.ID,
			UserID:        row.UserID,
			CreditsAmount: row.CreditsAmount,
		})
	}
	return completed, nil
}
