package types

import "time"

type ReceiptStatus string

const (
	StatusSent    ReceiptStatus = "sent"
	StatusFailed  ReceiptStatus = "failed"
	StatusSkipped ReceiptStatus = "skipped"
)

// TemplateType names a receipt message template.
type TemplateType string

const (
	TemplatePaymentReceipt TemplateType = "payment_receipt"
	TemplateOrderReceipt   TemplateType = "order_receipt"
)

type Template struct {
	Type TemplateType `json:"type"`
	Name string       `json:"name"`
	Body string       `json:"body"`
}

// Receipt is one delivery attempt, kept in memory for the ops endpoint.
type Receipt struct {
	ID        string        `json:"id"`
	EventID   string        `json:"event_id,omitempty"`
	Reference string        `json:"reference"`
	Phone     string        `json:"phone,omitempty"`
	Template  TemplateType  `json:"template"`
	Message   string        `json:"message"`
	Status    ReceiptStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// ResendRequest asks for a receipt to be sent again by hand.
type ResendRequest struct {
	Reference    string `json:"reference"`
	Phone        string `json:"phone"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	CustomerName string `json:"customer_name,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
}
