package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// =============================================================================
// Integration Test Harness
// =============================================================================
// Drives a locally running checkout stack: checkout-service pointed at the
// gateway mock, and optionally receipt-service pointed at the SMS mock.
// Tests skip when the pieces they need are not up.
// =============================================================================

type Config struct {
	CheckoutURL    string
	ReceiptURL     string
	GatewayMockURL string
	SMSMockURL     string
}

func DefaultConfig() *Config {
	return &Config{
		CheckoutURL:    getEnvOrDefault("CHECKOUT_URL", "http://localhost:8080"),
		ReceiptURL:     getEnvOrDefault("RECEIPT_URL", "http://localhost:8086"),
		GatewayMockURL: getEnvOrDefault("GATEWAY_MOCK_URL", "http://localhost:8090"),
		SMSMockURL:     getEnvOrDefault("SMS_MOCK_URL", "http://localhost:8091"),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

type Harness struct {
	t      *testing.T
	config *Config
	client *http.Client
}

func NewHarness(t *testing.T) *Harness {
	return &Harness{
		t:      t,
		config: DefaultConfig(),
		client: &http.Client{
			Timeout: 30 * time.Second,
			// Redirects are part of what the tests assert on.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *Harness) Config() *Config {
	return h.config
}

// =============================================================================
// HTTP Helpers
// =============================================================================

type Request struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
}

type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func (h *Harness) Do(req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		jsonBody, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequest(req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody, Headers: resp.Header}, nil
}

// MustDo fails the test on transport errors.
func (h *Harness) MustDo(req Request) *Response {
	h.t.Helper()
	resp, err := h.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	return resp
}

func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Envelope is the checkout-service response shape.
type Envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func Decode[T any](t *testing.T, resp *Response) Envelope[T] {
	t.Helper()
	var env Envelope[T]
	if err := resp.JSON(&env); err != nil {
		t.Fatalf("failed to decode %s: %v", string(resp.Body), err)
	}
	return env
}

// =============================================================================
// Mock Server Helpers
// =============================================================================

func (h *Harness) reset(base string) error {
	resp, err := h.Do(Request{Method: "POST", URL: base + "/admin/reset"})
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("reset failed with status %d", resp.StatusCode)
	}
	return nil
}

func (h *Harness) ResetGatewayMock() error {
	return h.reset(h.config.GatewayMockURL)
}

func (h *Harness) ResetSMSMock() error {
	return h.reset(h.config.SMSMockURL)
}

// =============================================================================
// Health Checks
// =============================================================================

// Require skips the test unless every URL answers /health within timeout.
func (h *Harness) Require(timeout time.Duration, urls ...string) {
	h.t.Helper()
	for _, u := range urls {
		if err := h.waitForHealth(u+"/health", timeout); err != nil {
			h.t.Skipf("%s not available: %v", u, err)
		}
	}
}

func (h *Harness) waitForHealth(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := h.client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", url)
}

// =============================================================================
// Assertions
// =============================================================================

func (h *Harness) AssertStatus(resp *Response, expected int) {
	h.t.Helper()
	if resp.StatusCode != expected {
		h.t.Errorf("Expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}
