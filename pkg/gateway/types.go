package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Status is the gateway's status field. Some deployments send a bool; true
// decodes as "success" and false as "failed".
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

func (s *Status) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true":
		*s = StatusSuccess
		return nil
	case "false":
		*s = StatusFailed
		return nil
	case "null":
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = Status(str)
	return nil
}

func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// ID accepts both numeric and string transaction identifiers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(b)
	return nil
}

// InitializeRequest is the payment payload. Amount is in the currency's
// smallest unit.
type InitializeRequest struct {
	Email               string         `json:"email"`
	Amount              int64          `json:"amount"`
	Currency            string         `json:"currency"`
	PaymentMethod       string         `json:"payment_method"`
	CustomerName        string         `json:"customer_name,omitempty"`
	CustomerPhone       string         `json:"customer_phone,omitempty"`
	CustomerCountry     string         `json:"customer_country,omitempty"`
	MobileMoneyProvider string         `json:"mobile_money_provider,omitempty"`
	MobileMoneyNumber   string         `json:"mobile_money_number,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// initializeBody is what goes on the wire: the request plus the fields the
// client adds.
type initializeBody struct {
	*InitializeRequest
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
}

type InitializeData struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

type InitializeResponse struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Data    InitializeData `json:"data"`
}

type Transaction struct {
	ID            ID         `json:"id"`
	Reference     string     `json:"reference"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Status        Status     `json:"status"`
	Email         string     `json:"email"`
	PaymentMethod string     `json:"payment_method"`
	Channel       string     `json:"channel,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type VerifyResponse struct {
	Status  Status      `json:"status"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

// Succeeded reports whether both the envelope and the transaction are
// successful.
func (r *VerifyResponse) Succeeded() bool {
	return r.Status.IsSuccess() && r.Data.Status.IsSuccess()
}

type TransactionList struct {
	Count   int           `json:"count"`
	Results []Transaction `json:"results"`
}

type errorBody struct {
	Message string `json:"message"`
}
