package checkout

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway/gatewaytest"
)

func seededHistory(t *testing.T) *History {
	t.Helper()
	sim := gatewaytest.New()
	sim.Seed(gateway.Transaction{Reference: "ref_1", Status: "success"})
	sim.Seed(gateway.Transaction{Reference: "ref_2", Status: " FAILED "})
	sim.Seed(gateway.Transaction{Reference: "ref_3", Status: "pending"})
	sim.Seed(gateway.Transaction{Reference: "ref_4", Status: "Success"})

	h, err := LoadHistory(context.Background(), sim, url.Values{})
	require.NoError(t, err)
	require.Equal(t, 1, sim.Calls().List)
	return h
}

func TestHistoryFilter(t *testing.T) {
	h := seededHistory(t)

	tests := []struct {
		filter string
		want   int
	}{
		{"", 4},
		{"all", 4},
		{"success", 2},
		{"  SUCCESS ", 2},
		{"failed", 1},
		{"pending", 1},
		{"refunded", 4},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			assert.Len(t, h.Filter(tt.filter), tt.want)
		})
	}
}

func TestHistoryFindAndCounts(t *testing.T) {
	h := seededHistory(t)

	tx, ok := h.Find("ref_3")
	require.True(t, ok)
	assert.Equal(t, gateway.StatusPending, tx.Status)

	_, ok = h.Find("ref_missing")
	assert.False(t, ok)

	assert.Equal(t, map[gateway.Status]int{
		gateway.StatusSuccess: 2,
		gateway.StatusFailed:  1,
		gateway.StatusPending: 1,
	}, h.Counts())
}

func TestLoadHistoryError(t *testing.T) {
	sim := gatewaytest.New()
	sim.FailList = errors.New("boom")

	_, err := LoadHistory(context.Background(), sim, nil)
	assert.Error(t, err)
}
