package hasura

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/platform/graphql"
)

const getClientQuery = `
query GetClient($user_id: uuid!) {
  clients_by_pk(id: $user_id) {
    id
    email
    stripe_customer_id
    credits_balance
  }
}`

const setStripeCustomerMutation = `
mutation SetStripeCustomer($user_id: uuid!, $customer_id: String!) {
  update_clients(
    where: {
      id: {_eq: $user_id},
      _or: [{stripe_customer_id: {_is_null: true}}, {stripe_customer_id: {_eq: ""}}]
    },
    _set: {stripe_customer_id: $customer_id}
  ) {
    affected_rows
  }
}`

const incrementCreditsMutation = `
mutation UpdateUserCredits($user_id: uuid!, $credits: numeric!) {
  update_clients(
    where: {id: {_eq: $user_id}},
    _inc: {credits_balance: $credits}
  ) {
    affected_rows
  }
}`

type affectedRows struct {
	AffectedRows int64 `json:"affected_rows"`
}

type ClientRepository struct {
	exec graphql.Executor
}

func NewClientRepository(exec graphql.Executor) *ClientRepository {
	return &ClientRepository{exec: exec}
}

func (r *ClientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	var out struct {
		ClientsByPK *struct {
			ID               string          `json:"id"`
			Email            *string         `json:"email"`
			StripeCustomerID *string         `json:"stripe_customer_id"`
			CreditsBalance   decimal.Decimal `json:"credits_balance"`
		} `json:"clients_by_pk"`
	}
	if err := r.exec.Execute(ctx, "GetClient", getClientQuery, map[string]any{"user_id": id}, &out); err != nil {
		return nil, err
	}
	if out.ClientsByPK == nil {
		return nil, domain.ErrNotFound
	}

	c := &domain.Client{
		ID:               out.ClientsByPK.ID,
		StripeCustomerID: out.ClientsByPK.StripeCustomerID,
		CreditsBalance:   out.ClientsByPK.CreditsBalance,
	}
	if out.ClientsByPK.Email != nil {
		c.Email = *out.ClientsByPK.Email
	}
	return c, nil
}

func (r *ClientRepository) SetStripeCustomerIDIfUnset(ctx context.Context, id, customerID string) (bool, error) {
	var out struct {
		UpdateClients affectedRows `json:"update_clients"`
	}
	vars := map[string]any{"user_id": id, "customer_id": customerID}
	if err := r.exec.Execute(ctx, "SetStripeCustomer", setStripeCustomerMutation, vars, &out); err != nil {
		return false, err
	}
	return out.UpdateClients.AffectedRows > 0, nil
}

func (r *ClientRepository) IncrementCredits(ctx context.Context, id string, credits decimal.Decimal) (int64, error) {
	var out struct {
		UpdateClients affectedRows `json:"update_clients"`
	}
	vars := map[string]any{"user_id": id, "credits": credits}
	if err := r.exec.Execute(ctx, "UpdateUserCredits", incrementCreditsMutation, vars, &out); err != nil {
		return 0, err
	}
	return out.UpdateClients.AffectedRows, nil
}
