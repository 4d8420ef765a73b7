// Package gateway is a thin client over the payment gateway's REST
// endpoints: initialize, verify and list transactions. It never retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rohianon/multicurrency-checkout/pkg/crypto"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/metrics"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
)

// DefaultIntegration tags every initialize call's metadata.
const DefaultIntegration = "multicurrency_checkout"

const snippetLen = 200

// API is implemented by Client and by test doubles.
type API interface {
	Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)
	ListTransactions(ctx context.Context, filters url.Values) (*TransactionList, error)
}

type Config struct {
	BaseURL     string
	CallbackURL string
	SecretKey   string
	Integration string
	HTTPClient  *http.Client
}

type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

var _ API = (*Client)(nil)

func NewClient(cfg *Config) *Client {
	integration := cfg.Integration
	if integration == "" {
		integration = DefaultIntegration
	}
	c := *cfg
	c.Integration = integration

	return &Client{
		config:     &c,
		httpClient: telemetry.WrapHTTPClient(cfg.HTTPClient),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// GenerateReference returns "ref_<unix millis>_<13 base36 chars>".
func GenerateReference() string {
	return fmt.Sprintf("ref_%d_%s", time.Now().UnixMilli(), crypto.MustRandomString(13, crypto.Base36))
}

func (c *Client) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	reference := GenerateReference()
	ctx, span := telemetry.StartClientSpan(ctx, string(OpInitialize),
		telemetry.AttrReference.String(reference),
		telemetry.AttrMethod.String(req.PaymentMethod),
		telemetry.AttrCurrency.String(req.Currency),
	)

	payload := *req
	payload.Metadata = maps.Clone(req.Metadata)
	if payload.Metadata == nil {
		payload.Metadata = make(map[string]any, 1)
	}
	payload.Metadata["integration"] = c.config.Integration

	body, err := json.Marshal(initializeBody{
		InitializeRequest: &payload,
		Reference:         reference,
		CallbackURL:       c.config.CallbackURL,
	})
	if err != nil {
		telemetry.EndSpan(span, err)
		return nil, &GatewayError{Op: OpInitialize, Message: "failed to encode request: " + err.Error(), Err: err}
	}

	var resp InitializeResponse
	err = c.do(ctx, OpInitialize, http.MethodPost, c.baseURL+"/payments/initialize/", body, &resp)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	if resp.Data.Reference == "" {
		resp.Data.Reference = reference
	}

	logger.WithContext(ctx).Info().
		Str("reference", resp.Data.Reference).
		Str("method", req.PaymentMethod).
		Str("currency", req.Currency).
		Int64("amount", req.Amount).
		Msg("Payment initialized")

	return &resp, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	ctx, span := telemetry.StartClientSpan(ctx, string(OpVerify), telemetry.AttrReference.String(reference))

	var resp VerifyResponse
	endpoint := c.baseURL + "/payments/verify/" + url.PathEscape(reference) + "/"
	err := c.do(ctx, OpVerify, http.MethodGet, endpoint, nil, &resp)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListTransactions(ctx context.Context, filters url.Values) (*TransactionList, error) {
	ctx, span := telemetry.StartClientSpan(ctx, string(OpList))

	endpoint := c.baseURL + "/payments/transactions/?" + filters.Encode()
	var resp TransactionList
	err := c.do(ctx, OpList, http.MethodGet, endpoint, nil, &resp)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []Transaction{}
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, op Op, method, endpoint string, body []byte, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, op, method, endpoint, body, out)
	metrics.RecordGatewayRequest(string(op), err, time.Since(start))
	return err
}

func (c *Client) roundTrip(ctx context.Context, op Op, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &GatewayError{Op: op, Message: "failed to create request: " + err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.SecretKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Message: fmt.Sprintf("%s request failed: %v", op, err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response: " + err.Error(), Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isJSON(contentType) {
		return &GatewayError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Expected JSON but got %s. Response: %s", contentType, snippet(raw)),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Message
		if msg == "" {
			msg = defaultMessages[op]
		}
		logger.WithContext(ctx).Warn().
			Str("op", string(op)).
			Int("status", resp.StatusCode).
			Str("message", msg).
			Msg("Gateway returned an error")
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &GatewayError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode response: " + err.Error(),
			Err:        err,
		}
	}
	return nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func snippet(b []byte) string {
	r := []rune(string(b))
	if len(r) > snippetLen {
		r = r[:snippetLen]
	}
	return string(r)
}

// Verifier is the subset of API needed to confirm a payment.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)
}

// Lister is the subset of API needed to browse transactions.
type Lister interface {
	ListTransactions(ctx context.Context, filters url.Values) (*TransactionList, error)
}
