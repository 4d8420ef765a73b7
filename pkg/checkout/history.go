package checkout

import (
	"context"
	"net/url"
	"strings"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
)

var historyStatuses = []gateway.Status{gateway.StatusPending, gateway.StatusSuccess, gateway.StatusFailed}

// History is one fetched page of transactions. Filtering happens locally.
type History struct {
	Transactions []gateway.Transaction `json:"transactions"`
}

// LoadHistory fetches transactions once. Filters are passed to the gateway
// verbatim.
func LoadHistory(ctx context.Context, lister gateway.Lister, filters url.Values) (*History, error) {
	list, err := lister.ListTransactions(ctx, filters)
	if err != nil {
		return nil, err
	}
	txs := list.Results
	if txs == nil {
		txs = []gateway.Transaction{}
	}
	return &History{Transactions: txs}, nil
}

// Filter returns the transactions whose status matches. The match ignores
// case and surrounding spaces; "all", "" and unrecognised statuses return
// everything.
func (h *History) Filter(status string) []gateway.Transaction {
	want := gateway.Status(strings.ToLower(strings.TrimSpace(status)))
	if !knownHistoryStatus(want) {
		return h.Transactions
	}

	out := make([]gateway.Transaction, 0, len(h.Transactions))
	for _, tx := range h.Transactions {
		if normalizeStatus(tx.Status) == want {
			out = append(out, tx)
		}
	}
	return out
}

func (h *History) Find(reference string) (gateway.Transaction, bool) {
	for _, tx := range h.Transactions {
		if tx.Reference == reference {
			return tx, true
		}
	}
	return gateway.Transaction{}, false
}

// Counts tallies transactions per normalised status.
func (h *History) Counts() map[gateway.Status]int {
	counts := make(map[gateway.Status]int, len(historyStatuses))
	for _, tx := range h.Transactions {
		counts[normalizeStatus(tx.Status)]++
	}
	return counts
}

func knownHistoryStatus(s gateway.Status) bool {
	for _, known := range historyStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func normalizeStatus(s gateway.Status) gateway.Status {
	return gateway.Status(strings.ToLower(strings.TrimSpace(string(s))))
}
