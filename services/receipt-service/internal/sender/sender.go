// Package sender turns completed-payment events into SMS receipts.
package sender

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rohianon/multicurrency-checkout/pkg/events"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/metrics"
	"github.com/Rohianon/multicurrency-checkout/pkg/sms"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
	"github.com/Rohianon/multicurrency-checkout/services/receipt-service/internal/types"
)

// historySize bounds the receipts kept for the ops endpoint and the event IDs
// remembered for deduplication.
const historySize = 500

var templates = map[types.TemplateType]types.Template{
	types.TemplatePaymentReceipt: {
		Type: types.TemplatePaymentReceipt,
		Name: "Payment Receipt",
		Body: "Hi {{name}}, we received your payment of {{amount}}. Ref: {{reference}}. Thank you!",
	},
	types.TemplateOrderReceipt: {
		Type: types.TemplateOrderReceipt,
		Name: "Order Receipt",
		Body: "Hi {{name}}, your payment of {{amount}} for order {{order_id}} was successful. Ref: {{reference}}.",
	},
}

type Sender struct {
	sms       sms.Sender
	validator *validation.Validator

	mu       sync.Mutex
	receipts []types.Receipt
	seen     map[string]struct{}
	seenFIFO []string
}

func NewSender(client sms.Sender, v *validation.Validator) *Sender {
	return &Sender{
		sms:       client,
		validator: v,
		seen:      make(map[string]struct{}),
	}
}

func (s *Sender) Templates() []types.Template {
	return []types.Template{
		templates[types.TemplatePaymentReceipt],
		templates[types.TemplateOrderReceipt],
	}
}

// HandlePaymentCompleted is the events.Handler for checkout.payments.completed.
// Redelivered events are ignored. Payments without a phone number are skipped.
func (s *Sender) HandlePaymentCompleted(ctx context.Context, event *events.Event) error {
	var p events.PaymentCompletedPayload
	if err := event.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode payment completed payload: %w", err)
	}

	if !s.markSeen(event.EventID) {
		logger.WithContext(ctx).Debug().Str("event_id", event.EventID).Msg("Duplicate payment event ignored")
		return nil
	}

	_, err := s.Send(ctx, event.EventID, p)
	return err
}

// Send renders and delivers the receipt for p and records the attempt.
func (s *Sender) Send(ctx context.Context, eventID string, p events.PaymentCompletedPayload) (types.Receipt, error) {
	tmpl := templates[types.TemplatePaymentReceipt]
	if p.OrderID != "" {
		tmpl = templates[types.TemplateOrderReceipt]
	}

	receipt := types.Receipt{
		ID:        uuid.New().String(),
		EventID:   eventID,
		Reference: p.Reference,
		Phone:     p.Phone,
		Template:  tmpl.Type,
		Message:   render(tmpl.Body, s.templateData(p)),
		CreatedAt: time.Now().UTC(),
	}
	log := logger.WithContext(ctx).With().Str("reference", p.Reference).Logger()

	var err error
	switch {
	case p.Phone == "":
		receipt.Status = types.StatusSkipped
		log.Info().Msg("No phone number on payment, receipt skipped")
	default:
		err = s.sms.Send(ctx, p.Phone, receipt.Message)
		if err != nil {
			receipt.Status = types.StatusFailed
			receipt.Error = err.Error()
			log.Error().Err(err).Msg("Failed to send receipt")
			err = fmt.Errorf("send receipt for %s: %w", p.Reference, err)
		} else {
			receipt.Status = types.StatusSent
			log.Info().Msg("Receipt sent")
		}
	}

	metrics.RecordReceipt(string(receipt.Status))
	s.record(receipt)
	return receipt, err
}

// Receipts returns the most recent receipts first, optionally for one
// reference.
func (s *Sender) Receipts(reference string) []types.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Receipt, 0, len(s.receipts))
	for i := len(s.receipts) - 1; i >= 0; i-- {
		if reference != "" && s.receipts[i].Reference != reference {
			continue
		}
		out = append(out, s.receipts[i])
	}
	return out
}

func (s *Sender) templateData(p events.PaymentCompletedPayload) map[string]string {
	name := strings.TrimSpace(p.CustomerName)
	if name == "" {
		name = "there"
	} else if first, _, ok := strings.Cut(name, " "); ok {
		name = first
	}
	return map[string]string{
		"name":      name,
		"amount":    s.validator.FormatSubunit(p.Amount, p.Currency),
		"reference": p.Reference,
		"order_id":  p.OrderID,
	}
}

func (s *Sender) record(r types.Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	if len(s.receipts) > historySize {
		s.receipts = s.receipts[len(s.receipts)-historySize:]
	}
}

// markSeen reports whether id is new. Empty IDs are always new.
func (s *Sender) markSeen(id string) bool {
	if id == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.seenFIFO = append(s.seenFIFO, id)
	if len(s.seenFIFO) > historySize {
		delete(s.seen, s.seenFIFO[0])
		s.seenFIFO = s.seenFIFO[1:]
	}
	return true
}

func render(body string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}
