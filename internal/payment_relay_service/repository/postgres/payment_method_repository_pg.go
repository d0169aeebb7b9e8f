package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

const upsertPaymentMethodSQL = `INSERT INTO payment_methods
(user_id, auto_pay_amount, auto_pay_day, auto_pay_enabled, stripe_payment_method_id, type)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
auto_pay_amount = EXCLUDED.auto_pay_amount,
auto_pay_day = EXCLUDED.auto_pay_day,
auto_pay_enabled = EXCLUDED.auto_pay_enabled,
stripe_payment_method_id = EXCLUDED.stripe_payment_method_id
RETURNING id::text`

type PgPaymentMethodRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgPaymentMethodRepository(db DB, logger *slog.Logger) *PgPaymentMethodRepository {
	return &PgPaymentMethodRepository{db: db, logger: logger.With("component", "payment_method_repository_pg")}
}

func (r *PgPaymentMethodRepository) UpsertAutopay(ctx context.Context, pm *domain.PaymentMethod) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, upsertPaymentMethodSQL,
		pm.UserID, pm.AutoPayAmount, pm.AutoPayDay, pm.AutoPayEnabled, pm.StripePaymentMethodID, pm.Type,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting payment method for user %s: %w", pm.UserID, mapError(err))
	}
	return id, nil
}
