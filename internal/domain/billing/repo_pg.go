package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

const userCols = `uid, email, plan, stripe_customer_id, stripe_subscription_id`

func (r *userRepoPG) scanUser(row pgx.Row) (*UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.UID, &u.Email, &u.Plan, &u.StripeCustomerID, &u.StripeSubscriptionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) GetByUID(ctx context.Context, uid string) (*UserRecord, error) {
	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE uid = $1`, uid))
}

func (r *userRepoPG) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*UserRecord, error) {
	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE stripe_subscription_id = $1`, subscriptionID))
}

func (r *userRepoPG) SetPlanPro(ctx context.Context, uid, email, customerID, subscriptionID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (uid, email, plan, stripe_customer_id, stripe_subscription_id)
		VALUES ($1, $2, 'pro', $3, $4)
		ON CONFLICT (uid) DO UPDATE SET
			plan = 'pro',
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			updated_at = NOW()`,
		uid, email, customerID, subscriptionID)
	return err
}

func (r *userRepoPG) SetPlanFree(ctx context.Context, uid string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET plan = 'free', updated_at = NOW() WHERE uid = $1`, uid)
	return err
}
