package billing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_test"
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), SignPayload(payload, secret, now))
	if err := VerifyWebhookSignature(payload, header, secret, now); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	if err := VerifyWebhookSignature(payload, header, "whsec_other", now); err == nil {
		t.Error("wrong secret accepted")
	}
	if err := VerifyWebhookSignature([]byte(`tampered`), header, secret, now); err == nil {
		t.Error("tampered payload accepted")
	}
	if err := VerifyWebhookSignature(payload, "", secret, now); err == nil {
		t.Error("empty header accepted")
	}
	if err := VerifyWebhookSignature(payload, "v1=deadbeef", secret, now); err == nil {
		t.Error("header without timestamp accepted")
	}
	if err := VerifyWebhookSignature(payload, header, secret, now.Add(SignatureTolerance+time.Minute)); err == nil {
		t.Error("stale timestamp accepted")
	}

	// Extra v1 candidates are tolerated as long as one matches.
	multi := fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", now.Unix(), SignPayload(payload, secret, now))
	if err := VerifyWebhookSignature(payload, multi, secret, now); err != nil {
		t.Errorf("valid candidate among several rejected: %v", err)
	}
}

func TestStripeClientCreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("authorization = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("mode"); got != "subscription" {
			t.Errorf("mode = %q", got)
		}
		if got := r.PostForm.Get("metadata[uid]"); got != "user-1" {
			t.Errorf("metadata uid = %q", got)
		}
		if got := r.PostForm.Get("line_items[0][price]"); got != "price_1" {
			t.Errorf("price = %q", got)
		}
		fmt.Fprint(w, `{"id":"cs_1","url":"https://checkout.stripe.com/pay/cs_1"}`)
	}))
	defer srv.Close()

	client := NewStripeClient("sk_test_123")
	client.baseURL = srv.URL

	session, err := client.CreateCheckoutSession(context.Background(), CheckoutParams{
		UID:        "user-1",
		Email:      "u@example.com",
		PriceID:    "price_1",
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/cancel",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if session.ID != "cs_1" || session.URL == "" {
		t.Errorf("session = %+v", session)
	}
}

func TestStripeClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"message":"no such price"}}`)
	}))
	defer srv.Close()

	client := NewStripeClient("sk_test_123")
	client.baseURL = srv.URL

	if _, err := client.CreateCheckoutSession(context.Background(), CheckoutParams{UID: "u", PriceID: "bad"}); err == nil {
		t.Error("expected error on non-200 response")
	}
}
