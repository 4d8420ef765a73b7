package integration

import (
	"net/url"
	"testing"
	"time"
)

type session struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type outcome struct {
	Status           string `json:"status"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	Message          string `json:"message"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
}

type submitResult struct {
	SessionID string  `json:"session_id"`
	Status    string  `json:"status"`
	Outcome   outcome `json:"outcome"`
	ReturnURL string  `json:"return_url"`
}

type callbackResult struct {
	Outcome   outcome `json:"outcome"`
	SessionID string  `json:"session_id"`
}

type smsMessages struct {
	Count int `json:"count"`
}

func newSession(t *testing.T, h *Harness, query string) string {
	t.Helper()
	resp := h.MustDo(Request{Method: "POST", URL: h.Config().CheckoutURL + "/api/v1/sessions" + query})
	h.AssertStatus(resp, 201)
	id := Decode[session](t, resp).Data.ID
	if id == "" {
		t.Fatal("session id missing")
	}
	return id
}

func TestMobileMoneyCheckout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h := NewHarness(t)
	h.Require(10*time.Second, h.Config().GatewayMockURL, h.Config().CheckoutURL)
	if err := h.ResetGatewayMock(); err != nil {
		t.Fatalf("Failed to reset gateway mock: %v", err)
	}

	id := newSession(t, h, "?order_id=ORD-77&amount=1500&email=wanjiru@example.com&success_url="+url.QueryEscape("https://shop.example.com/done"))

	resp := h.MustDo(Request{
		Method: "POST",
		URL:    h.Config().CheckoutURL + "/api/v1/sessions/" + id + "/submit",
		Body: map[string]any{
			"country":               "KE",
			"currency":              "KES",
			"amount":                "1500",
			"payment_method":        "mobile_money",
			"mobile_money_provider": "mpesa",
			"customer": map[string]string{
				"name":  "Wanjiru Kamau",
				"email": "wanjiru@example.com",
				"phone": "0712345678",
			},
		},
	})
	h.AssertStatus(resp, 200)

	result := Decode[submitResult](t, resp).Data
	if result.Outcome.Status != "success" {
		t.Fatalf("expected success, got %+v", result.Outcome)
	}
	if result.Outcome.Reference == "" {
		t.Fatal("reference missing")
	}
	if result.ReturnURL == "" {
		t.Error("order return URL missing")
	}

	// A finished session needs a reset before another submit.
	again := h.MustDo(Request{Method: "POST", URL: h.Config().CheckoutURL + "/api/v1/sessions/" + id + "/submit"})
	h.AssertStatus(again, 409)

	receiptURL := h.Config().ReceiptURL
	if err := h.waitForHealth(receiptURL+"/health", time.Second); err != nil {
		t.Logf("receipt-service not running, skipping SMS check")
		return
	}
	if err := h.waitForHealth(h.Config().SMSMockURL+"/health", time.Second); err != nil {
		t.Logf("SMS mock not running, skipping SMS check")
		return
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp := h.MustDo(Request{Method: "GET", URL: h.Config().SMSMockURL + "/admin/messages?to=" + url.QueryEscape("+254712345678")})
		var msgs smsMessages
		if err := resp.JSON(&msgs); err == nil && msgs.Count > 0 {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Error("no receipt SMS delivered")
}

func TestCardRedirectAndCallback(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h := NewHarness(t)
	h.Require(10*time.Second, h.Config().GatewayMockURL, h.Config().CheckoutURL)
	if err := h.ResetGatewayMock(); err != nil {
		t.Fatalf("Failed to reset gateway mock: %v", err)
	}

	id := newSession(t, h, "")

	resp := h.MustDo(Request{
		Method: "POST",
		URL:    h.Config().CheckoutURL + "/api/v1/sessions/" + id + "/submit",
		Body: map[string]any{
			"country":        "NG",
			"currency":       "NGN",
			"amount":         "2500",
			"payment_method": "card",
			"metadata":       map[string]string{"test_card": "4084084084084416"},
			"customer": map[string]string{
				"name":  "Ada Obi",
				"email": "ada@example.com",
				"phone": "08031234567",
			},
		},
	})
	h.AssertStatus(resp, 200)

	result := Decode[submitResult](t, resp).Data
	if result.Outcome.AuthorizationURL == "" {
		t.Fatalf("expected a redirect, got %+v", result.Outcome)
	}

	// The mock's hosted page sends the payer back to the callback URL.
	page := h.MustDo(Request{Method: "GET", URL: result.Outcome.AuthorizationURL})
	h.AssertStatus(page, 302)
	callback := page.Headers.Get("Location")
	if callback == "" {
		t.Fatal("hosted page did not redirect")
	}

	cb := h.MustDo(Request{Method: "GET", URL: callback})
	h.AssertStatus(cb, 200)

	got := Decode[callbackResult](t, cb).Data
	if got.Outcome.Status != "failed" {
		t.Errorf("expected declined card to fail, got %+v", got.Outcome)
	}
	if got.SessionID != id {
		t.Errorf("callback resolved session %q, want %q", got.SessionID, id)
	}

	stored := h.MustDo(Request{Method: "GET", URL: h.Config().CheckoutURL + "/api/v1/sessions/" + id})
	h.AssertStatus(stored, 200)
	if s := Decode[session](t, stored).Data; s.Status != "failed" {
		t.Errorf("session status = %q, want failed", s.Status)
	}
}

func TestCallbackWithoutReference(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h := NewHarness(t)
	h.Require(10*time.Second, h.Config().CheckoutURL)

	resp := h.MustDo(Request{Method: "GET", URL: h.Config().CheckoutURL + "/payment/callback"})
	h.AssertStatus(resp, 400)
	if env := Decode[map[string]any](t, resp); env.Error == nil || env.Error.Code != "MISSING_REFERENCE" {
		t.Errorf("unexpected error body: %s", string(resp.Body))
	}
}
