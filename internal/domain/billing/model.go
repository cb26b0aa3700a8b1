package billing

// Plan is the user's billing tier. Capabilities are always derived from
// the persisted plan, never assumed client-side.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// UserRecord is the billing view of a user.
type UserRecord struct {
	UID                  string `json:"uid"`
	Email                string `json:"email"`
	Plan                 Plan   `json:"plan"`
	StripeCustomerID     string `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string `json:"stripe_subscription_id,omitempty"`
}

// CheckoutSession is the client-facing result of starting a checkout.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
