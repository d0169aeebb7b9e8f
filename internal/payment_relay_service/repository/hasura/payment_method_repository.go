package hasura

import (
	"context"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/graphql"
)

const upsertPaymentMethodMutation = `
mutation UpsertPaymentMethod(
  $user_id: uuid!,
  $amount: numeric!,
  $day: Int!,
  $enabled: Boolean!,
  $setup_intent_id: String!,
  $type: String!
) {
  insert_payment_methods_one(
    object: {
      user_id: $user_id,
      auto_pay_amount: $amount,
      auto_pay_day: $day,
      auto_pay_enabled: $enabled,
      stripe_payment_method_id: $setup_intent_id,
      type: $type
    },
    on_conflict: {
      constraint: payment_methods_user_id_key,
      update_columns: [auto_pay_amount, auto_pay_day, auto_pay_enabled, stripe_payment_method_id]
    }
  ) {
    id
  }
}`

type PaymentMethodRepository struct {
	exec graphql.Executor
}

func NewPaymentMethodRepository(exec graphql.Executor) *PaymentMethodRepository {
	return &PaymentMethodRepository{exec: exec}
}

func (r *PaymentMethodRepository) UpsertAutopay(ctx context.Context, pm *domain.PaymentMethod) (string, error) {
	vars := map[string]any{
		"user_id":         pm.UserID,
		"amount":          pm.AutoPayAmount,
		"day":             pm.AutoPayDay,
		"enabled":         pm.AutoPayEnabled,
		"setup_intent_id": pm.StripePaymentMethodID,
		"type":            pm.Type,
	}
	var out struct {
		InsertPaymentMethodsOne *struct {
			ID string `json:"id"`
		} `json:"insert_payment_methods_one"`
	}
	if err := r.exec.Execute(ctx, "UpsertPaymentMethod", upsertPaymentMethodMutation, vars, &out); err != nil {
		return "", err
	}
	if out.InsertPaymentMethodsOne == nil {
		return "", domain.ErrNotFound
	}
	return out.InsertPaymentMethodsOne.ID, nil
}
