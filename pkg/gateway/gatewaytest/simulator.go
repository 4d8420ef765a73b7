// Package gatewaytest provides an in-memory gateway.API for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
)

// Outcome scripts how a payment resolves when verified.
type Outcome int

const (
	Success Outcome = iota
	Fail
	Close
	Pending
)

// CardOutcomes maps the gateway's test card numbers to outcomes.
var CardOutcomes = map[string]Outcome{
	"4084084084084408": Success,
	"4084084084084416": Fail,
	"4084084084084424": Fail,
	"4084084084084432": Fail,
	"4084084084084440": Pending,
}

// Calls counts requests per operation.
type Calls struct {
	Initialize int
	Verify     int
	List       int
}

func (c Calls) Total() int {
	return c.Initialize + c.Verify + c.List
}

// Simulator records initialized payments and resolves them according to the
// scripted outcome. The zero value is not usable; use New.
type Simulator struct {
	mu sync.Mutex

	// AuthorizationURL, when non-empty, is returned for card payments so
	// callers take the redirect path.
	AuthorizationURL string
	Default          Outcome

	FailInitialize error
	FailVerify     error
	FailList       error

	transactions map[string]*gateway.Transaction
	order        []string
	outcomes     map[string]Outcome
	requests     []gateway.InitializeRequest
	calls        Calls
	seq          int
	now          func() time.Time
}

var _ gateway.API = (*Simulator)(nil)

func New() *Simulator {
	return &Simulator{
		transactions: make(map[string]*gateway.Transaction),
		outcomes:     make(map[string]Outcome),
		now:          time.Now,
	}
}

// SetOutcome scripts the result of verifying reference.
func (s *Simulator) SetOutcome(reference string, o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[reference] = o
	if tx, ok := s.transactions[reference]; ok {
		s.resolve(tx, o)
	}
}

// Seed adds a transaction as if it had been created earlier.
func (s *Simulator) Seed(tx gateway.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := tx
	if _, ok := s.transactions[t.Reference]; !ok {
		s.order = append(s.order, t.Reference)
	}
	s.transactions[t.Reference] = &t
}

func (s *Simulator) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Requests returns the initialize payloads received so far.
func (s *Simulator) Requests() []gateway.InitializeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gateway.InitializeRequest(nil), s.requests...)
}

func (s *Simulator) Initialize(ctx context.Context, req *gateway.InitializeRequest) (*gateway.InitializeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.Initialize++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.FailInitialize != nil {
		return nil, s.FailInitialize
	}

	s.seq++
	reference := gateway.GenerateReference()
	s.requests = append(s.requests, *req)

	tx := &gateway.Transaction{
		ID:            gateway.ID(fmt.Sprint(s.seq)),
		Reference:     reference,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        gateway.StatusPending,
		Email:         req.Email,
		PaymentMethod: req.PaymentMethod,
		Channel:       req.PaymentMethod,
		CreatedAt:     s.now().UTC(),
	}
	s.transactions[reference] = tx
	s.order = append(s.order, reference)

	if _, scripted := s.outcomes[reference]; !scripted {
		s.outcomes[reference] = s.outcomeFor(req)
	}

	resp := &gateway.InitializeResponse{
		Status:  gateway.StatusSuccess,
		Message: "Authorization URL created",
		Data:    gateway.InitializeData{Reference: reference, AccessCode: fmt.Sprintf("access_%d", s.seq)},
	}
	if s.AuthorizationURL != "" && req.PaymentMethod == "card" {
		resp.Data.AuthorizationURL = s.AuthorizationURL + "/" + reference
	}
	return resp, nil
}

func (s *Simulator) Verify(ctx context.Context, reference string) (*gateway.VerifyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.Verify++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.FailVerify != nil {
		return nil, s.FailVerify
	}

	tx, ok := s.transactions[reference]
	if !ok {
		return nil, &gateway.GatewayError{Op: gateway.OpVerify, StatusCode: 404, Message: "Transaction reference not found"}
	}
	if tx.Status == gateway.StatusPending {
		if o, scripted := s.outcomes[reference]; scripted {
			s.resolve(tx, o)
		}
	}

	status := gateway.StatusSuccess
	message := "Verification successful"
	if o := s.outcomes[reference]; o == Close {
		status = gateway.StatusFailed
		message = "Transaction was abandoned"
	}
	return &gateway.VerifyResponse{Status: status, Message: message, Data: *tx}, nil
}

func (s *Simulator) ListTransactions(ctx context.Context, filters url.Values) (*gateway.TransactionList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.List++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.FailList != nil {
		return nil, s.FailList
	}

	want := strings.ToLower(filters.Get("status"))
	results := make([]gateway.Transaction, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		tx := s.transactions[s.order[i]]
		if want != "" && string(tx.Status) != want {
			continue
		}
		results = append(results, *tx)
	}
	return &gateway.TransactionList{Count: len(results), Results: results}, nil
}

func (s *Simulator) outcomeFor(req *gateway.InitializeRequest) Outcome {
	if card, ok := req.Metadata["test_card"].(string); ok {
		if o, known := CardOutcomes[card]; known {
			return o
		}
	}
	return s.Default
}

func (s *Simulator) resolve(tx *gateway.Transaction, o Outcome) {
	switch o {
	case Success:
		tx.Status = gateway.StatusSuccess
		paid := s.now().UTC()
		tx.PaidAt = &paid
	case Fail, Close:
		tx.Status = gateway.StatusFailed
	case Pending:
		tx.Status = gateway.StatusPending
	}
}

// Lookup returns the stored transaction without resolving it.
func (s *Simulator) Lookup(reference string) (gateway.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[reference]
	if !ok {
		return gateway.Transaction{}, false
	}
	return *tx, true
}
