// Package sms sends payment receipts through Africa's Talking.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Rohianon/multicurrency-checkout/pkg/config"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
)

const (
	LiveBaseURL    = "https://api.africastalking.com"
	SandboxBaseURL = "https://api.sandbox.africastalking.com"

	// statusSuccess is Africa's Talking's per-recipient "Success" code.
	statusSuccess = 101
)

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

type Config struct {
	APIKey   string
	Username string
	Sender   string
	Sandbox  bool
	// BaseURL overrides the live/sandbox endpoint.
	BaseURL    string
	HTTPClient *http.Client
}

func FromConfig(c config.SMSConfig) *Config {
	return &Config{
		APIKey:   c.APIKey,
		Username: c.Username,
		Sender:   c.Sender,
		Sandbox:  c.Sandbox,
	}
}

type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

type Recipient struct {
	StatusCode int    `json:"statusCode"`
	Number     string `json:"number"`
	Status     string `json:"status"`
	Cost       string `json:"cost"`
	MessageID  string `json:"messageId"`
}

type SendResponse struct {
	SMSMessageData struct {
		Message    string      `json:"Message"`
		Recipients []Recipient `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// DeliveryError reports a recipient the provider refused.
type DeliveryError struct {
	Number string
	Status string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sms to %s failed: %s", e.Number, e.Status)
}

func NewClient(cfg *Config) *Client {
	baseURL := LiveBaseURL
	if cfg.Sandbox {
		baseURL = SandboxBaseURL
	}
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Client{
		config:     cfg,
		httpClient: telemetry.WrapHTTPClient(cfg.HTTPClient),
		baseURL:    baseURL,
	}
}

func (c *Client) Send(ctx context.Context, to, message string) error {
	data := url.Values{}
	data.Set("username", c.config.Username)
	data.Set("to", to)
	data.Set("message", message)
	if c.config.Sender != "" {
		data.Set("from", c.config.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/version1/messaging", strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	for _, r := range result.SMSMessageData.Recipients {
		if r.StatusCode != statusSuccess {
			return &DeliveryError{Number: r.Number, Status: r.Status}
		}
	}
	return nil
}

// MockClient records messages instead of sending them.
type MockClient struct {
	mu       sync.Mutex
	messages []MockMessage
	// Err, when set, is returned from every Send.
	Err error
}

type MockMessage struct {
	To      string
	Message string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Send(_ context.Context, to, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.messages = append(c.messages, MockMessage{To: to, Message: message})
	return nil
}

func (c *MockClient) Messages() []MockMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MockMessage(nil), c.messages...)
}

var (
	_ Sender = (*Client)(nil)
	_ Sender = (*MockClient)(nil)
)
