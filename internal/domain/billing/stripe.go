package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const stripeAPIBase = "https://api.stripe.com"

// CheckoutParams carries what Stripe needs to open a subscription
// checkout for a user. The uid travels in session metadata so the
// completion webhook can be tied back to the account.
type CheckoutParams struct {
	UID        string
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutClient creates hosted checkout sessions.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
}

// StripeClient talks to the Stripe REST API with a secret key.
type StripeClient struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{
		secretKey: secretKey,
		baseURL:   stripeAPIBase,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer_email", p.Email)
	form.Set("line_items[0][price]", p.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("metadata[uid]", p.UID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read checkout response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stripe returned %d: %s", resp.StatusCode, body)
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	return &session, nil
}

// SignatureTolerance bounds how old a webhook timestamp may be before the
// signature is rejected as a possible replay.
const SignatureTolerance = 5 * time.Minute

// SignPayload computes the v1 webhook signature for a payload at the
// given timestamp. Exported for tests and local tooling.
func SignPayload(payload []byte, secret string, t time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(t.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a Stripe-Signature header
// ("t=<unix>,v1=<hex>[,v1=...]") against the raw payload. Comparison is
// constant time and the timestamp must fall within SignatureTolerance of
// now.
func VerifyWebhookSignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return fmt.Errorf("missing signature header")
	}

	var ts time.Time
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			sec, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("malformed signature timestamp")
			}
			ts = time.Unix(sec, 0)
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if ts.IsZero() || len(candidates) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	age := now.Sub(ts)
	if age < -SignatureTolerance || age > SignatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	expected := SignPayload(payload, secret, ts)
	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("signature mismatch")
}

// Event is the decoded envelope of a Stripe webhook delivery.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// checkoutSessionObject is the subset of a checkout.session object the
// sync cares about.
type checkoutSessionObject struct {
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

// subscriptionObject is the subset of a subscription object the sync
// cares about.
type subscriptionObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
