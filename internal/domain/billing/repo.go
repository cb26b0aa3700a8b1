package billing

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no user record matches the lookup.
var ErrNotFound = errors.New("billing: user not found")

// UserRepository persists billing state for users.
//
// SetPlanPro is an unconditional upsert keyed by uid, which makes webhook
// replays idempotent: applying the same completed-checkout event twice
// converges on the same record.
type UserRepository interface {
	GetByUID(ctx context.Context, uid string) (*UserRecord, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*UserRecord, error)
	SetPlanPro(ctx context.Context, uid, email, customerID, subscriptionID string) error
	SetPlanFree(ctx context.Context, uid string) error
}
