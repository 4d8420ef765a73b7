package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rohianon/multicurrency-checkout/pkg/events"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/sms"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
	"github.com/Rohianon/multicurrency-checkout/services/receipt-service/internal/types"
)

func init() {
	logger.Init("test", "error", false)
}

func newSender(t *testing.T) (*Sender, *sms.MockClient) {
	t.Helper()
	client := sms.NewMockClient()
	return NewSender(client, validation.New(registry.MustBuiltin())), client
}

func completedEvent(payload events.PaymentCompletedPayload) *events.Event {
	e := events.NewEvent(events.EventTypePaymentCompleted, "checkout-service", payload)
	e.EventID = "evt-" + payload.Reference
	return e
}

func TestHandlePaymentCompleted(t *testing.T) {
	s, client := newSender(t)

	err := s.HandlePaymentCompleted(context.Background(), completedEvent(events.PaymentCompletedPayload{
		Reference:    "ref-1",
		Amount:       150000,
		Currency:     "NGN",
		CustomerName: "Ada Obi",
		Phone:        "+2348012345678",
	}))
	require.NoError(t, err)

	msgs := client.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+2348012345678", msgs[0].To)
	assert.Equal(t, "Hi Ada, we received your payment of ₦1,500.00. Ref: ref-1. Thank you!", msgs[0].Message)

	receipts := s.Receipts("")
	require.Len(t, receipts, 1)
	assert.Equal(t, types.StatusSent, receipts[0].Status)
	assert.Equal(t, types.TemplatePaymentReceipt, receipts[0].Template)
}

func TestHandlePaymentCompletedOrderTemplate(t *testing.T) {
	s, client := newSender(t)

	err := s.HandlePaymentCompleted(context.Background(), completedEvent(events.PaymentCompletedPayload{
		Reference: "ref-2",
		OrderID:   "ORD-9",
		Amount:    2500,
		Currency:  "KES",
		Phone:     "+254712345678",
	}))
	require.NoError(t, err)

	msgs := client.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Message, "Hi there")
	assert.Contains(t, msgs[0].Message, "order ORD-9")
	assert.Contains(t, msgs[0].Message, "25.00")
}

func TestHandlePaymentCompletedDeduplicates(t *testing.T) {
	s, client := newSender(t)
	event := completedEvent(events.PaymentCompletedPayload{Reference: "ref-3", Amount: 100, Currency: "USD", Phone: "+15555550100"})

	require.NoError(t, s.HandlePaymentCompleted(context.Background(), event))
	require.NoError(t, s.HandlePaymentCompleted(context.Background(), event))

	assert.Len(t, client.Messages(), 1)
}

func TestHandlePaymentCompletedWithoutPhone(t *testing.T) {
	s, client := newSender(t)

	err := s.HandlePaymentCompleted(context.Background(), completedEvent(events.PaymentCompletedPayload{Reference: "ref-4", Amount: 100, Currency: "USD"}))
	require.NoError(t, err)

	assert.Empty(t, client.Messages())
	receipts := s.Receipts("ref-4")
	require.Len(t, receipts, 1)
	assert.Equal(t, types.StatusSkipped, receipts[0].Status)
}

func TestSendFailure(t *testing.T) {
	s, client := newSender(t)
	client.Err = errors.New("provider down")

	receipt, err := s.Send(context.Background(), "", events.PaymentCompletedPayload{Reference: "ref-5", Amount: 100, Currency: "GHS", Phone: "+233241234567"})
	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, receipt.Status)
	assert.Equal(t, "provider down", receipt.Error)
}

func TestReceiptsNewestFirstAndBounded(t *testing.T) {
	s, _ := newSender(t)
	ctx := context.Background()

	for i := 0; i < historySize+5; i++ {
		_, err := s.Send(ctx, "", events.PaymentCompletedPayload{Reference: "ref", Amount: int64(i + 1), Currency: "USD"})
		require.NoError(t, err)
	}
	_, err := s.Send(ctx, "", events.PaymentCompletedPayload{Reference: "last", Amount: 1, Currency: "USD"})
	require.NoError(t, err)

	all := s.Receipts("")
	assert.Len(t, all, historySize)
	assert.Equal(t, "last", all[0].Reference)
}

func TestRender(t *testing.T) {
	got := render("{{a}} and {{b}} and {{a}}", map[string]string{"a": "x", "b": "y"})
	assert.Equal(t, "x and y and x", got)
}
