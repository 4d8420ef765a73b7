package types

import (
	"errors"
	"time"

	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
)

type CountryResponse struct {
	registry.Country
	PaymentMethods []registry.MethodInfo `json:"payment_methods"`
}

type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
	// Amount is the normalised amount in subunits, present when valid.
	Amount int64 `json:"amount,omitempty"`
}

type SessionResponse struct {
	*checkout.Session
	AvailableMethods []registry.PaymentMethod `json:"available_methods,omitempty"`
}

// SubmitResponse is returned for both successful and gateway-failed submits.
type SubmitResponse struct {
	SessionID string            `json:"session_id"`
	Status    checkout.Status   `json:"status"`
	Outcome   *checkout.Outcome `json:"outcome"`
	ReturnURL string            `json:"return_url,omitempty"`
}

type CallbackResponse struct {
	Outcome   *checkout.Outcome `json:"outcome"`
	SessionID string            `json:"session_id,omitempty"`
	ReturnURL string            `json:"return_url,omitempty"`
}

type HistoryResponse struct {
	Status       string                 `json:"status"`
	Count        int                    `json:"count"`
	Counts       map[gateway.Status]int `json:"counts"`
	Transactions []gateway.Transaction  `json:"transactions"`
}

// AttemptStatus mirrors checkout.Status with "initiated" for payments still
// awaiting verification.
type AttemptStatus string

const (
	AttemptInitiated AttemptStatus = "initiated"
	AttemptSucceeded AttemptStatus = "success"
	AttemptFailed    AttemptStatus = "failed"
)

var ErrAttemptNotFound = errors.New("attempt not found")

// Attempt is one row of checkout_attempts. Amount is in subunits.
type Attempt struct {
	ID        string        `json:"id"`
	Reference string        `json:"reference"`
	SessionID string        `json:"session_id"`
	OrderID   *string       `json:"order_id,omitempty"`
	Email     string        `json:"email"`
	Country   string        `json:"country"`
	Currency  string        `json:"currency"`
	Method    string        `json:"method"`
	Amount    int64         `json:"amount"`
	Status    AttemptStatus `json:"status"`
	Message   *string       `json:"message,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
