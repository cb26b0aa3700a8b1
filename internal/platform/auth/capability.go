package auth

import "context"

// Capability names gate premium behavior.
const (
	CapabilityPremiumThemes = "premium-themes"
)

// PlanResolver reports the billing plan for a user. The billing domain's
// user repository satisfies this.
type PlanResolver interface {
	PlanForUser(ctx context.Context, uid string) (string, error)
}

var planCapabilities = map[string]map[string]bool{
	"free": {},
	"pro": {
		CapabilityPremiumThemes: true,
	},
}

// HasCapability resolves whether the user's current plan grants the named
// capability. The plan is always read from the resolver, never assumed:
// an unknown user or a lookup failure yields the free tier.
func HasCapability(ctx context.Context, r PlanResolver, uid, capability string) bool {
	if r == nil || uid == "" {
		return false
	}
	plan, err := r.PlanForUser(ctx, uid)
	if err != nil {
		return false
	}
	return planCapabilities[plan][capability]
}
