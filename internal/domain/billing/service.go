package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/protocol/protocol/internal/platform/metrics"
)

var (
	ErrUnauthenticated = errors.New("billing: caller is not authenticated")
	ErrInvalidArgument = errors.New("billing: invalid argument")
)

// Config holds the checkout parameters fixed at deploy time.
type Config struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Service owns the plan lifecycle: it opens checkout sessions and applies
// Stripe webhook events to the user repository.
type Service struct {
	users    UserRepository
	checkout CheckoutClient
	cfg      Config
	logger   zerolog.Logger
}

func NewService(users UserRepository, checkout CheckoutClient, cfg Config, logger zerolog.Logger) *Service {
	return &Service{users: users, checkout: checkout, cfg: cfg, logger: logger}
}

// PlanForUser reports the persisted plan, defaulting unknown users to the
// free tier. Satisfies the auth package's PlanResolver.
func (s *Service) PlanForUser(ctx context.Context, uid string) (string, error) {
	u, err := s.users.GetByUID(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return string(PlanFree), nil
	}
	if err != nil {
		return "", err
	}
	return string(u.Plan), nil
}

// CreateCheckoutSession opens a hosted subscription checkout for the
// caller. The uid is embedded in session metadata so the completion
// webhook can find the account again.
func (s *Service) CreateCheckoutSession(ctx context.Context, uid, email string) (*CheckoutSession, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	if s.cfg.PriceID == "" {
		return nil, fmt.Errorf("%w: price id is not configured", ErrInvalidArgument)
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, CheckoutParams{
		UID:        uid,
		Email:      email,
		PriceID:    s.cfg.PriceID,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("uid", uid).Msg("failed to create checkout session")
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return session, nil
}

// HandleEvent applies one verified webhook event. A nil return means the
// event may be acknowledged; a non-nil return withholds the ack so Stripe
// redelivers. Unknown event types and events for unknown users are
// acknowledged without effect.
func (s *Service) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, ev)
	case "customer.subscription.deleted", "customer.subscription.canceled", "customer.subscription.updated":
		return s.handleSubscriptionChange(ctx, ev)
	default:
		s.logger.Debug().Str("event_type", ev.Type).Msg("ignoring webhook event")
		metrics.BillingEvents.WithLabelValues(ev.Type, "ignored").Inc()
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, ev Event) error {
	var session checkoutSessionObject
	if err := json.Unmarshal(ev.Data.Object, &session); err != nil {
		s.logger.Error().Err(err).Str("event_id", ev.ID).Msg("malformed checkout session object")
		metrics.BillingEvents.WithLabelValues(ev.Type, "malformed").Inc()
		return nil
	}

	uid := session.Metadata["uid"]
	if uid == "" {
		s.logger.Error().Str("event_id", ev.ID).Msg("checkout session has no uid metadata")
		metrics.BillingEvents.WithLabelValues(ev.Type, "missing_uid").Inc()
		return nil
	}

	// Unconditional set: replays converge on the same record.
	if err := s.users.SetPlanPro(ctx, uid, session.CustomerEmail, session.Customer, session.Subscription); err != nil {
		metrics.BillingEvents.WithLabelValues(ev.Type, "error").Inc()
		return fmt.Errorf("set plan pro for %s: %w", uid, err)
	}

	s.logger.Info().Str("uid", uid).Str("subscription_id", session.Subscription).Msg("plan upgraded to pro")
	metrics.BillingEvents.WithLabelValues(ev.Type, "applied").Inc()
	return nil
}

func (s *Service) handleSubscriptionChange(ctx context.Context, ev Event) error {
	var sub subscriptionObject
	if err := json.Unmarshal(ev.Data.Object, &sub); err != nil {
		s.logger.Error().Err(err).Str("event_id", ev.ID).Msg("malformed subscription object")
		metrics.BillingEvents.WithLabelValues(ev.Type, "malformed").Inc()
		return nil
	}

	// Updates only matter once the subscription has lapsed.
	if ev.Type == "customer.subscription.updated" && sub.Status != "canceled" {
		metrics.BillingEvents.WithLabelValues(ev.Type, "ignored").Inc()
		return nil
	}

	u, err := s.users.GetBySubscriptionID(ctx, sub.ID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn().Str("subscription_id", sub.ID).Msg("subscription event for unknown user")
		metrics.BillingEvents.WithLabelValues(ev.Type, "unknown_user").Inc()
		return nil
	}
	if err != nil {
		metrics.BillingEvents.WithLabelValues(ev.Type, "error").Inc()
		return fmt.Errorf("lookup subscription %s: %w", sub.ID, err)
	}

	if err := s.users.SetPlanFree(ctx, u.UID); err != nil {
		metrics.BillingEvents.WithLabelValues(ev.Type, "error").Inc()
		return fmt.Errorf("set plan free for %s: %w", u.UID, err)
	}

	s.logger.Info().Str("uid", u.UID).Str("subscription_id", sub.ID).Msg("plan downgraded to free")
	metrics.BillingEvents.WithLabelValues(ev.Type, "applied").Inc()
	return nil
}
