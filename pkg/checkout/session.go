// Package checkout drives a payment from form submission through gateway
// verification. It holds no global state: every flow runs against an explicit
// Session.
package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
)

// Status is the checkout state machine:
//
//	idle -> processing -> success | failed
//
// success and failed return to idle only through Reset.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Outcome is the result of a submission or a callback.
type Outcome struct {
	Status           Status               `json:"status"`
	Reference        string               `json:"reference,omitempty"`
	AuthorizationURL string               `json:"authorization_url,omitempty"`
	Message          string               `json:"message,omitempty"`
	Amount           string               `json:"amount,omitempty"`
	Currency         string               `json:"currency,omitempty"`
	Transaction      *gateway.Transaction `json:"transaction,omitempty"`
	Err              error                `json:"-"`
}

// Redirect reports whether the payer must continue on the gateway's page.
func (o *Outcome) Redirect() bool {
	return o.AuthorizationURL != ""
}

// Session carries everything one payer's checkout needs between requests.
type Session struct {
	ID        string    `json:"id"`
	LastEmail string    `json:"last_email,omitempty"`
	Status    Status    `json:"status"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
	Order     *Order    `json:"order,omitempty"`
	Form      *Form     `json:"form,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New().String(),
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AttachOrder stores a deep-linked order and prefills the session form from
// it. Orders without the order_id, amount and email trio are ignored.
func (s *Session) AttachOrder(o Order) {
	if !o.HasContext() {
		return
	}
	s.Order = &o
	if s.Form == nil {
		s.Form = &Form{}
	}
	o.Prefill(s.Form)
	s.touch()
}

// Resolve records a verified callback outcome on the session that started
// the payment and reports whether the session changed. Outcomes for any
// reference other than the current attempt's are ignored, as are repeats of
// an outcome already recorded. A session with a submission in flight is
// left alone.
func (s *Session) Resolve(out *Outcome) bool {
	if out == nil || out.Reference == "" || s.Status == StatusProcessing {
		return false
	}
	if s.Outcome == nil || s.Outcome.Reference != out.Reference {
		return false
	}
	if s.Status == out.Status && !s.Outcome.Redirect() {
		return false
	}
	s.Status = out.Status
	s.Outcome = out
	s.touch()
	return true
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
