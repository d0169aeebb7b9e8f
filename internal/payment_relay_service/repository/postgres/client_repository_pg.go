package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

const selectClientSQL = `SELECT id::text, COALESCE(email, ''), stripe_customer_id, credits_balance::text
FROM clients WHERE id = $1`

const setStripeCustomerSQL = `UPDATE clients SET stripe_customer_id = $2
WHERE id = $1 AND (stripe_customer_id IS NULL OR stripe_customer_id = '')`

const incrementCreditsSQL = `UPDATE clients SET credits_balance = credits_balance + $2::numeric WHERE id = $1`

type PgClientRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgClientRepository(db DB, logger *slog.Logger) *PgClientRepository {
	return &PgClientRepository{db: db, logger: logger.With("component", "client_repository_pg")}
}

func (r *PgClientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	c := &domain.Client{}
	var balance string
	err := r.db.QueryRow(ctx, selectClientSQL, id).Scan(&c.ID, &c.Email, &c.StripeCustomerID, &balance)
	if err != nil {
		return nil, fmt.Errorf("querying client %s: %w", id, mapError(err))
	}
	if c.CreditsBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parsing credits_balance %q: %w", balance, err)
	}
	return c, nil
}

func (r *PgClientRepository) SetStripeCustomerIDIfUnset(ctx context.Context, id, customerID string) (bool, error) {
	tag, err := r.db.Exec(ctx, setStripeCustomerSQL, id, customerID)
	if err != nil {
		return false, fmt.Errorf("setting stripe customer for client %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgClientRepository) IncrementCredits(ctx context.Context, id string, credits decimal.Decimal) (int64, error) {
	tag, err := r.db.Exec(ctx, incrementCreditsSQL, id, credits.String())
	if err != nil {
		return 0, fmt.Errorf("incrementing credits for client %s: %w", id, err)
	}
	return tag.RowsAffected(), nil
}
