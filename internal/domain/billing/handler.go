package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/protocol/protocol/internal/platform/auth"
)

type Handler struct {
	svc           *Service
	webhookSecret string
	now           func() time.Time
}

func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret, now: time.Now}
}

// RegisterRoutes wires the authenticated checkout endpoint onto the API
// group and the signature-verified webhook onto the public group.
func (h *Handler) RegisterRoutes(api, public *echo.Group) {
	api.POST("/billing/checkout-session", h.CreateCheckoutSession)
	api.GET("/billing/plan", h.GetPlan)
	public.POST("/webhooks/stripe", h.StripeWebhook)
}

func (h *Handler) CreateCheckoutSession(c echo.Context) error {
	ctx := c.Request().Context()
	uid := auth.UserID(ctx)
	email := auth.UserEmail(ctx)

	session, err := h.svc.CreateCheckoutSession(ctx, uid, email)
	if errors.Is(err, ErrUnauthenticated) {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if errors.Is(err, ErrInvalidArgument) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create checkout session")
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) GetPlan(c echo.Context) error {
	ctx := c.Request().Context()
	uid := auth.UserID(ctx)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	plan, err := h.svc.PlanForUser(ctx, uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve plan")
	}
	return c.JSON(http.StatusOK, map[string]string{"plan": plan})
}

// StripeWebhook verifies the delivery signature against the raw body
// before anything is parsed or mutated. A verification failure is a 400
// and must leave no trace; a persistence failure is a 500 so Stripe
// retries the delivery.
func (h *Handler) StripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable payload")
	}

	sig := c.Request().Header.Get("Stripe-Signature")
	if err := VerifyWebhookSignature(payload, sig, h.webhookSecret, h.now()); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event")
	}

	if err := h.svc.HandleEvent(c.Request().Context(), ev); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "event processing failed")
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
