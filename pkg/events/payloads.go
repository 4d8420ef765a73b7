package events

import "time"

// Amounts are in currency subunits, the same unit the gateway uses.

type PaymentInitiatedPayload struct {
	Reference string `json:"reference"`
	SessionID string `json:"session_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Country   string `json:"country"`
	Method    string `json:"method"`
	Email     string `json:"email"`
	// Redirect is set for card payments continuing on the gateway's page.
	Redirect bool `json:"redirect,omitempty"`
}

type PaymentCompletedPayload struct {
	Reference    string    `json:"reference"`
	SessionID    string    `json:"session_id,omitempty"`
	OrderID      string    `json:"order_id,omitempty"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Method       string    `json:"method,omitempty"`
	Channel      string    `json:"channel,omitempty"`
	Email        string    `json:"email,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

type PaymentFailedPayload struct {
	Reference     string `json:"reference,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	OrderID       string `json:"order_id,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Method        string `json:"method,omitempty"`
	FailureCode   string `json:"failure_code"`
	FailureReason string `json:"failure_reason"`
}
