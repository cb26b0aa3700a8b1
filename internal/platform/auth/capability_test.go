package auth

import (
	"context"
	"errors"
	"testing"
)

type stubResolver struct {
	plans map[string]string
	err   error
}

func (r *stubResolver) PlanForUser(_ context.Context, uid string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.plans[uid], nil
}

func TestHasCapability(t *testing.T) {
	ctx := context.Background()
	r := &stubResolver{plans: map[string]string{
		"pro-user":  "pro",
		"free-user": "free",
	}}

	if !HasCapability(ctx, r, "pro-user", CapabilityPremiumThemes) {
		t.Error("pro plan should grant premium themes")
	}
	if HasCapability(ctx, r, "free-user", CapabilityPremiumThemes) {
		t.Error("free plan should not grant premium themes")
	}
	if HasCapability(ctx, r, "unknown-user", CapabilityPremiumThemes) {
		t.Error("unknown plan should not grant anything")
	}
}

func TestHasCapabilityFailsClosed(t *testing.T) {
	ctx := context.Background()

	if HasCapability(ctx, nil, "pro-user", CapabilityPremiumThemes) {
		t.Error("nil resolver should deny")
	}
	if HasCapability(ctx, &stubResolver{}, "", CapabilityPremiumThemes) {
		t.Error("empty uid should deny")
	}
	failing := &stubResolver{err: errors.New("db down")}
	if HasCapability(ctx, failing, "pro-user", CapabilityPremiumThemes) {
		t.Error("lookup failure should deny")
	}
}
