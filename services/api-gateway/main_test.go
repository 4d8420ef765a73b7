package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rohianon/multicurrency-checkout/pkg/config"
)

type seen struct {
	method string
	path   string
	query  string
	body   string
	auth   string
	reqID  string
}

func upstream(t *testing.T, name string, got *seen) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*got = seen{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(body),
			auth:   r.Header.Get("Authorization"),
			reqID:  r.Header.Get("X-Request-ID"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", name)
		if r.URL.Path == "/payment/callback" {
			w.WriteHeader(http.StatusBadRequest)
		}
		_, _ = w.Write([]byte(`{"data":{"upstream":"` + name + `"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(checkoutURL, receiptURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AllowOrigins: []string{"*"}, RateLimit: 1000},
		Upstreams: config.UpstreamsConfig{
			CheckoutURL: checkoutURL,
			ReceiptURL:  receiptURL,
			Timeout:     5 * time.Second,
		},
	}
}

func TestRoutesCheckoutTraffic(t *testing.T) {
	var checkout, receipts seen
	app := newApp(testConfig(upstream(t, "checkout", &checkout).URL, upstream(t, "receipts", &receipts).URL))

	req := httptest.NewRequest("POST", "/api/v1/sessions/abc/submit?x=1", strings.NewReader(`{"amount":"1500"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "checkout", resp.Header.Get("X-Upstream"))
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "POST", checkout.method)
	assert.Equal(t, "/api/v1/sessions/abc/submit", checkout.path)
	assert.Equal(t, "x=1", checkout.query)
	assert.Equal(t, `{"amount":"1500"}`, checkout.body)
	assert.Equal(t, "req-123", checkout.reqID)
	assert.Empty(t, receipts.path)
}

func TestRoutesReceiptsWithoutPrefix(t *testing.T) {
	var checkout, receipts seen
	app := newApp(testConfig(upstream(t, "checkout", &checkout).URL, upstream(t, "receipts", &receipts).URL))

	req := httptest.NewRequest("GET", "/api/v1/receipts?reference=ref_1", nil)
	req.Header.Set("Authorization", "Bearer token")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "/receipts", receipts.path)
	assert.Equal(t, "reference=ref_1", receipts.query)
	assert.Equal(t, "Bearer token", receipts.auth)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/receipts/templates", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "/receipts/templates", receipts.path)
	assert.Empty(t, checkout.path)
}

func TestCallbackKeepsUpstreamStatus(t *testing.T) {
	var checkout, receipts seen
	app := newApp(testConfig(upstream(t, "checkout", &checkout).URL, upstream(t, "receipts", &receipts).URL))

	resp, err := app.Test(httptest.NewRequest("GET", "/payment/callback?trxref=ref_9", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "/payment/callback", checkout.path)
	assert.Equal(t, "trxref=ref_9", checkout.query)
}

func TestUpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	app := newApp(testConfig(dead.URL, dead.URL))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/countries", nil), 10000)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)

	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}

func TestReady(t *testing.T) {
	var checkout, receipts seen
	up := upstream(t, "checkout", &checkout)
	other := upstream(t, "receipts", &receipts)
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	resp, err := newApp(testConfig(up.URL, other.URL)).Test(httptest.NewRequest("GET", "/ready", nil), 10000)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = newApp(testConfig(up.URL, dead.URL)).Test(httptest.NewRequest("GET", "/ready", nil), 10000)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)

	var env struct {
		Data struct {
			Upstreams map[string]string `json:"upstreams"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "up", env.Data.Upstreams["checkout-service"])
	assert.Equal(t, "unreachable", env.Data.Upstreams["receipt-service"])
}

func TestInfoAndNotFound(t *testing.T) {
	app := newApp(testConfig("http://127.0.0.1:1", "http://127.0.0.1:1"))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
