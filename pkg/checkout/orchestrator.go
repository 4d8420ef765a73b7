package checkout

import (
	"context"
	"sync"

	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
)

const (
	MessagePaymentSuccessful = "Payment successful! Your transaction has been completed."
	MessageRedirect          = "Complete your payment on the gateway's page"
	MessageCancelledOrFailed = "Payment was cancelled or failed"
	MessagePaymentFailed     = "Payment failed. Please try again."
)

var (
	ErrSubmissionInProgress = apperrors.ErrSubmissionInProgress
	ErrResetRequired        = apperrors.ErrResetRequired
)

// Orchestrator validates forms and runs them through the gateway. One
// Orchestrator serves many sessions; it refuses concurrent submissions for the
// same session ID.
type Orchestrator struct {
	api       gateway.API
	validator *validation.Validator

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewOrchestrator(api gateway.API, v *validation.Validator) *Orchestrator {
	return &Orchestrator{
		api:       api,
		validator: v,
		inFlight:  make(map[string]struct{}),
	}
}

func (o *Orchestrator) Validator() *validation.Validator {
	return o.validator
}

// Submit validates f and, if it passes, initializes a payment.
//
// Validation failures return a *ValidationError and leave s idle. Gateway
// failures are not returned as errors: they end the session in failed with
// the gateway's message and Outcome.Err set.
func (o *Orchestrator) Submit(ctx context.Context, s *Session, f Form) (*Outcome, error) {
	if !o.acquire(s.ID) {
		return nil, ErrSubmissionInProgress
	}
	defer o.release(s.ID)

	switch {
	case s.Status == StatusProcessing:
		return nil, ErrSubmissionInProgress
	case s.Status.Terminal():
		return nil, ErrResetRequired
	}

	amount, fields := f.validate(o.validator)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if f.OrderID == "" && s.Order != nil {
		f.OrderID = s.Order.OrderID
	}

	ctx, span := telemetry.StartSpan(ctx, "checkout.submit",
		telemetry.AttrSessionID.String(s.ID),
		telemetry.AttrMethod.String(string(f.Method)),
		telemetry.AttrCurrency.String(f.Currency),
		telemetry.AttrCountry.String(f.Country),
	)
	defer span.End()

	s.Status = StatusProcessing
	s.LastEmail = f.Customer.Email
	s.Outcome = nil
	s.touch()

	req := f.request(o.validator, amount)
	base := Outcome{Amount: amount.String(), Currency: req.Currency}

	initResp, err := o.api.Initialize(ctx, req)
	if err != nil {
		return o.finish(ctx, s, gatewayFailure(base, err)), nil
	}
	base.Reference = initResp.Data.Reference

	if registry.PaymentMethod(req.PaymentMethod) == registry.MethodCard && initResp.Data.AuthorizationURL != "" {
		out := base
		out.Status = StatusSuccess
		out.AuthorizationURL = initResp.Data.AuthorizationURL
		out.Message = MessageRedirect
		return o.finish(ctx, s, &out), nil
	}

	verified, err := o.api.Verify(ctx, initResp.Data.Reference)
	if err != nil {
		return o.finish(ctx, s, gatewayFailure(base, err)), nil
	}

	out := base
	tx := verified.Data
	out.Transaction = &tx
	if verified.Succeeded() {
		out.Status = StatusSuccess
		out.Message = MessagePaymentSuccessful
	} else {
		out.Status = StatusFailed
		out.Message = MessageCancelledOrFailed
	}
	return o.finish(ctx, s, &out), nil
}

// Reset returns a finished session to idle.
func (o *Orchestrator) Reset(s *Session) error {
	if s.Status == StatusProcessing || o.busy(s.ID) {
		return ErrSubmissionInProgress
	}
	s.Status = StatusIdle
	s.Outcome = nil
	s.touch()
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, s *Session, out *Outcome) *Outcome {
	s.Status = out.Status
	s.Outcome = out
	s.touch()

	telemetry.SetAttributes(ctx,
		telemetry.AttrReference.String(out.Reference),
		telemetry.AttrOutcome.String(string(out.Status)),
	)

	event := logger.WithContext(ctx).Info()
	if out.Status == StatusFailed {
		event = logger.WithContext(ctx).Warn().Err(out.Err)
	}
	event.
		Str("session_id", s.ID).
		Str("reference", out.Reference).
		Str("status", string(out.Status)).
		Msg("Checkout submission finished")

	return out
}

func gatewayFailure(base Outcome, err error) *Outcome {
	out := base
	out.Status = StatusFailed
	out.Err = err
	out.Message = MessagePaymentFailed
	if gerr, ok := gateway.AsGatewayError(err); ok && gerr.Message != "" {
		out.Message = gerr.Message
	}
	return &out
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[id]; busy {
		return false
	}
	o.inFlight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inFlight, id)
	o.mu.Unlock()
}

func (o *Orchestrator) busy(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[id]
	return ok
}
