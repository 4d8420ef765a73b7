package checkout

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway/gatewaytest"
)

func TestReferenceFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"reference", "reference=ref_1", "ref_1"},
		{"trxref", "trxref=ref_2", "ref_2"},
		{"reference wins", "trxref=ref_2&reference=ref_1", "ref_1"},
		{"empty reference falls back", "reference=&trxref=ref_2", "ref_2"},
		{"none", "status=success", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ReferenceFromQuery(q))
		})
	}
}

func TestCallbackMissingReference(t *testing.T) {
	sim := gatewaytest.New()
	h := NewCallbackHandler(sim)

	out := h.Handle(context.Background(), url.Values{})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, MessageNoReference, out.Message)
	assert.ErrorIs(t, out.Err, ErrMissingReference)
	assert.Zero(t, sim.Calls().Total())
}

func TestCallbackVerifies(t *testing.T) {
	sim := gatewaytest.New()
	sim.Seed(gateway.Transaction{Reference: "ref_ok", Status: gateway.StatusSuccess, Currency: "NGN", Amount: 100000})
	sim.Seed(gateway.Transaction{Reference: "ref_bad", Status: gateway.StatusFailed})
	h := NewCallbackHandler(sim)

	out := h.Handle(context.Background(), url.Values{"trxref": {"ref_ok"}})
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, MessagePaymentSuccessful, out.Message)
	require.NotNil(t, out.Transaction)
	assert.Equal(t, int64(100000), out.Transaction.Amount)

	out = h.Handle(context.Background(), url.Values{"reference": {"ref_bad"}})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, MessageVerificationFailed, out.Message)
	assert.NoError(t, out.Err)

	assert.Equal(t, 2, sim.Calls().Verify)
}

func TestCallbackVerifyError(t *testing.T) {
	sim := gatewaytest.New()
	h := NewCallbackHandler(sim)

	out := h.Handle(context.Background(), url.Values{"reference": {"ref_unknown"}})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, MessageVerifyError, out.Message)

	_, isGateway := gateway.AsGatewayError(out.Err)
	assert.True(t, isGateway)
	assert.Equal(t, 1, sim.Calls().Verify)
}
