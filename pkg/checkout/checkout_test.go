package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway/gatewaytest"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
)

func newValidator(t *testing.T) *validation.Validator {
	t.Helper()
	reg, err := registry.Builtin()
	require.NoError(t, err)
	return validation.New(reg)
}

func cardForm(amount string) Form {
	return Form{
		Country:  "NG",
		Currency: "NGN",
		Amount:   amount,
		Method:   registry.MethodCard,
		Customer: Customer{Name: "Ada Obi", Email: "ada@example.com", Phone: "08012345678"},
		Metadata: map[string]any{"test_card": registry.TestCards["successful"]},
	}
}

func TestSubmitCardPaymentVerifies(t *testing.T) {
	sim := gatewaytest.New()
	o := NewOrchestrator(sim, newValidator(t))
	s := NewSession()

	out, err := o.Submit(context.Background(), s, cardForm("1000"))
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.NotEmpty(t, out.Reference)
	assert.Equal(t, MessagePaymentSuccessful, out.Message)
	assert.Equal(t, StatusSuccess, s.Status)
	assert.Equal(t, "ada@example.com", s.LastEmail)
	assert.Same(t, out, s.Outcome)

	reqs := sim.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(100000), reqs[0].Amount)
	assert.Equal(t, 1, sim.Calls().Verify)
}

func TestSubmitCardRedirect(t *testing.T) {
	sim := gatewaytest.New()
	sim.AuthorizationURL = "https://checkout.test"
	o := NewOrchestrator(sim, newValidator(t))
	s := NewSession()

	out, err := o.Submit(context.Background(), s, cardForm("1000"))
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.True(t, out.Redirect())
	assert.Equal(t, "https://checkout.test/"+out.Reference, out.AuthorizationURL)
	assert.Zero(t, sim.Calls().Verify, "verification is left to the callback")
}

func TestSubmitBelowMinimumStaysIdle(t *testing.T) {
	sim := gatewaytest.New()
	o := NewOrchestrator(sim, newValidator(t))
	s := NewSession()

	out, err := o.Submit(context.Background(), s, cardForm("50"))
	assert.Nil(t, out)

	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "Minimum amount is ₦100", verr.Fields[FieldAmount])
	assert.Equal(t, StatusIdle, s.Status)
	assert.Empty(t, s.LastEmail)
	assert.Zero(t, sim.Calls().Total())
}

func TestSubmitDeclinedCard(t *testing.T) {
	sim := gatewaytest.New()
	o := NewOrchestrator(sim, newValidator(t))
	s := NewSession()

	f := cardForm("1000")
	f.Metadata["test_card"] = registry.TestCards["declined"]

	out, err := o.Submit(context.Background(), s, f)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, MessageCancelledOrFailed, out.Message)
	assert.NoError(t, out.Err)
}

func TestSubmitGatewayError(t *testing.T) {
	sim := gatewaytest.New()
	sim.FailInitialize = &gateway.GatewayError{Op: gateway.OpInitialize, StatusCode: 400, Message: "Invalid currency for merchant"}
	o := NewOrchestrator(sim, newValidator(t))
	s := NewSession()

	out, err := o.Submit(context.Background(), s, cardForm("1000"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "Invalid currency for merchant", out.Message)
	assert.Error(t, out.Err)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Zero(t, sim.Calls().Verify)
}

func TestSubmitNonGatewayError(t *testing.T) {
	sim := gatewaytest.New()
	sim.FailVerify = errors.New("connection reset")
	o := NewOrchestrator(sim, newValidator(t))

	f := cardForm("1000")
	f.Method = registry.MethodUSSD
	f.BankCode = "gtb"

	out, err := o.Submit(context.Background(), NewSession(), f)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, MessagePaymentFailed, out.Message)
	assert.NotEmpty(t, out.Reference)
}

func TestSubmitRequiresReset(t *testing.T) {
	o := NewOrchestrator(gatewaytest.New(), newValidator(t))
	s := NewSession()

	_, err := o.Submit(context.Background(), s, cardForm("1000"))
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), s, cardForm("1000"))
	assert.ErrorIs(t, err, ErrResetRequired)

	require.NoError(t, o.Reset(s))
	assert.Equal(t, StatusIdle, s.Status)
	assert.Nil(t, s.Outcome)

	_, err = o.Submit(context.Background(), s, cardForm("1000"))
	assert.NoError(t, err)
}

func TestSubmitRejectsWhileProcessing(t *testing.T) {
	o := NewOrchestrator(gatewaytest.New(), newValidator(t))
	s := NewSession()
	s.Status = StatusProcessing

	_, err := o.Submit(context.Background(), s, cardForm("1000"))
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	assert.ErrorIs(t, o.Reset(s), ErrSubmissionInProgress)
}

// blockingAPI holds Initialize until released.
type blockingAPI struct {
	*gatewaytest.Simulator
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAPI) Initialize(ctx context.Context, req *gateway.InitializeRequest) (*gateway.InitializeResponse, error) {
	close(b.entered)
	<-b.release
	return b.Simulator.Initialize(ctx, req)
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	api := &blockingAPI{
		Simulator: gatewaytest.New(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	o := NewOrchestrator(api, newValidator(t))
	first := NewSession()
	second := *first

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := o.Submit(context.Background(), first, cardForm("1000"))
		assert.NoError(t, err)
	}()

	<-api.entered
	_, err := o.Submit(context.Background(), &second, cardForm("1000"))
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(api.release)
	wg.Wait()
	assert.Equal(t, 1, api.Calls().Initialize)
}

func TestSubmitCarriesOrderID(t *testing.T) {
	sim := gatewaytest.New()
	o := NewOrchestrator(sim, newValidator(t))
	s := NewSession()
	s.AttachOrder(Order{OrderID: "ord-42", Amount: "1500", Email: "buyer@example.com"})

	f := cardForm("")
	f.Amount = s.Form.Amount

	_, err := o.Submit(context.Background(), s, f)
	require.NoError(t, err)
	assert.Equal(t, "ord-42", sim.Requests()[0].Metadata["order_id"])
	assert.Equal(t, int64(150000), sim.Requests()[0].Amount)
}

func TestSessionResolve(t *testing.T) {
	s := NewSession()
	s.Status = StatusSuccess
	s.Outcome = &Outcome{Status: StatusSuccess, Reference: "ref_1", AuthorizationURL: "https://gateway.test/pay/ref_1"}

	out := &Outcome{Status: StatusFailed, Reference: "ref_1", Message: MessageVerificationFailed}
	assert.True(t, s.Resolve(out))
	assert.Equal(t, StatusFailed, s.Status)
	assert.Same(t, out, s.Outcome)

	// Same outcome again is not a change.
	assert.False(t, s.Resolve(&Outcome{Status: StatusFailed, Reference: "ref_1"}))

	s.Status = StatusProcessing
	assert.False(t, s.Resolve(&Outcome{Status: StatusSuccess, Reference: "ref_1"}))
	assert.Equal(t, StatusProcessing, s.Status)
	assert.False(t, NewSession().Resolve(nil))
}

func TestSessionResolveIgnoresOtherReferences(t *testing.T) {
	s := NewSession()
	s.Status = StatusSuccess
	s.Outcome = &Outcome{Status: StatusSuccess, Reference: "ref_2", AuthorizationURL: "https://gateway.test/pay/ref_2"}

	assert.False(t, s.Resolve(&Outcome{Status: StatusFailed, Reference: "ref_1"}))
	assert.Equal(t, "ref_2", s.Outcome.Reference)

	idle := NewSession()
	assert.False(t, idle.Resolve(&Outcome{Status: StatusSuccess, Reference: "ref_1"}))
	assert.Equal(t, StatusIdle, idle.Status)
	assert.Nil(t, idle.Outcome)
}
