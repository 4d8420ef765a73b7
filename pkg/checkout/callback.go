package checkout

import (
	"context"
	"net/url"
	"strings"

	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
)

const (
	MessageNoReference        = "No payment reference found"
	MessageVerificationFailed = "Payment verification failed. Please contact support."
	MessageVerifyError        = "Failed to verify payment. Please check your transaction status."
)

var ErrMissingReference = apperrors.ErrMissingReference

// ReferenceFromQuery reads the payment reference from a gateway return URL,
// preferring "reference" over "trxref".
func ReferenceFromQuery(q url.Values) string {
	if ref := strings.TrimSpace(q.Get("reference")); ref != "" {
		return ref
	}
	return strings.TrimSpace(q.Get("trxref"))
}

// CallbackHandler verifies a payment when the payer returns from the gateway.
type CallbackHandler struct {
	api gateway.Verifier
}

func NewCallbackHandler(api gateway.Verifier) *CallbackHandler {
	return &CallbackHandler{api: api}
}

// Handle verifies the reference found in q exactly once. It always returns an
// Outcome; Outcome.Err is set when the reference is missing or the gateway
// call failed.
func (h *CallbackHandler) Handle(ctx context.Context, q url.Values) *Outcome {
	reference := ReferenceFromQuery(q)
	if reference == "" {
		logger.WithContext(ctx).Warn().Msg("Callback without payment reference")
		return &Outcome{Status: StatusFailed, Message: MessageNoReference, Err: ErrMissingReference}
	}

	ctx, span := telemetry.StartSpan(ctx, "checkout.callback", telemetry.AttrReference.String(reference))
	defer span.End()

	resp, err := h.api.Verify(ctx, reference)
	if err != nil {
		logger.WithContext(ctx).Error().Err(err).Str("reference", reference).Msg("Payment verification error")
		return &Outcome{Status: StatusFailed, Reference: reference, Message: MessageVerifyError, Err: err}
	}

	tx := resp.Data
	out := &Outcome{Reference: reference, Transaction: &tx, Currency: tx.Currency}
	if resp.Succeeded() {
		out.Status = StatusSuccess
		out.Message = MessagePaymentSuccessful
	} else {
		out.Status = StatusFailed
		out.Message = MessageVerificationFailed
	}

	telemetry.SetAttributes(ctx, telemetry.AttrOutcome.String(string(out.Status)))
	logger.WithContext(ctx).Info().
		Str("reference", reference).
		Str("status", string(out.Status)).
		Str("gateway_status", string(tx.Status)).
		Msg("Payment verified")

	return out
}
