package handler

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/events"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/metrics"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/response"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
	"github.com/Rohianon/multicurrency-checkout/services/checkout-service/internal/types"
)

const serviceName = "checkout-service"

type SessionStore interface {
	Create(ctx context.Context, order checkout.Order) (*checkout.Session, error)
	Get(ctx context.Context, id string) (*checkout.Session, error)
	Save(ctx context.Context, s *checkout.Session) error
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string) (func(), error)
	BindReference(ctx context.Context, reference, sessionID string) error
	SessionForReference(ctx context.Context, reference string) (*checkout.Session, error)
	Ping(ctx context.Context) error
}

type AttemptStore interface {
	Create(ctx context.Context, a *types.Attempt) error
	UpdateStatus(ctx context.Context, reference string, status types.AttemptStatus, message string) error
	GetByReference(ctx context.Context, reference string) (*types.Attempt, error)
	ListBySession(ctx context.Context, sessionID string) ([]types.Attempt, error)
}

type Handler struct {
	registry     *registry.Registry
	orchestrator *checkout.Orchestrator
	callbacks    *checkout.CallbackHandler
	lister       gateway.Lister
	sessions     SessionStore
	attempts     AttemptStore
	publisher    events.Publisher
}

// Deps wires a Handler. Attempts and Publisher are optional.
type Deps struct {
	Gateway   gateway.API
	Registry  *registry.Registry
	Sessions  SessionStore
	Attempts  AttemptStore
	Publisher events.Publisher
}

func New(d Deps) *Handler {
	orchestrator := checkout.NewOrchestrator(d.Gateway, validation.New(d.Registry))
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Handler{
		registry:     d.Registry,
		orchestrator: orchestrator,
		callbacks:    checkout.NewCallbackHandler(d.Gateway),
		lister:       d.Gateway,
		sessions:     d.Sessions,
		attempts:     d.Attempts,
		publisher:    publisher,
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.sessions.Ping(c.UserContext()); err != nil {
		return apperrors.ErrServiceUnavailable.WithDetails("session store unreachable").WithError(err)
	}
	return c.JSON(fiber.Map{"status": "healthy", "service": serviceName})
}

// =============================================================================
// Reference data
// =============================================================================

func (h *Handler) ListCountries(c *fiber.Ctx) error {
	countries := h.registry.Countries()
	items := make([]types.CountryResponse, len(countries))
	for i, country := range countries {
		items[i] = countryResponse(country)
	}
	return response.List(c, items, len(items))
}

func (h *Handler) GetCountry(c *fiber.Ctx) error {
	country, ok := h.registry.LookupCountry(c.Params("code"))
	if !ok {
		return apperrors.ErrUnknownCountry.WithDetails(c.Params("code"))
	}
	return response.Success(c, countryResponse(country))
}

func (h *Handler) ListCurrencies(c *fiber.Ctx) error {
	currencies := h.registry.Currencies()
	return response.List(c, currencies, len(currencies))
}

func (h *Handler) GetCurrency(c *fiber.Ctx) error {
	currency, ok := h.registry.LookupCurrency(c.Params("code"))
	if !ok {
		return apperrors.ErrUnknownCurrency.WithDetails(c.Params("code"))
	}
	return response.Success(c, currency)
}

func countryResponse(country registry.Country) types.CountryResponse {
	methods := make([]registry.MethodInfo, len(country.Methods))
	for i, m := range country.Methods {
		methods[i] = registry.DescribeMethod(m)
	}
	return types.CountryResponse{Country: country, PaymentMethods: methods}
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks a form without touching any session.
func (h *Handler) Validate(c *fiber.Ctx) error {
	var form checkout.Form
	if err := c.BodyParser(&form); err != nil {
		return apperrors.ErrBadRequest.WithDetails("Invalid request body")
	}

	v := h.orchestrator.Validator()
	fields := form.Validate(v)
	if len(fields) > 0 {
		recordValidationFailures(fields)
		return response.Success(c, types.ValidateResponse{Valid: false, Errors: fields})
	}

	req, err := form.Request(v)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}
	return response.Success(c, types.ValidateResponse{Valid: true, Amount: req.Amount})
}

// =============================================================================
// Sessions
// =============================================================================

// CreateSession starts a checkout. Deep-link parameters in the query string
// attach an order and prefill the form.
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return apperrors.ErrBadRequest.WithDetails("Invalid query string")
	}

	s, err := h.sessions.Create(c.UserContext(), checkout.ParseOrder(query))
	if err != nil {
		return storeError(err)
	}

	logger.WithContext(c.UserContext()).Info().
		Str("session_id", s.ID).
		Bool("order", s.Order != nil).
		Msg("Checkout session created")

	return response.Created(c, h.sessionResponse(s))
}

func (h *Handler) GetSession(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return storeError(err)
	}
	return response.Success(c, h.sessionResponse(s))
}

func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.UserContext(), c.Params("id")); err != nil {
		return storeError(err)
	}
	return response.NoContent(c)
}

// ResetSession returns a finished session to idle. It shares the submit lock
// so a callback cannot land on top of the reset.
func (h *Handler) ResetSession(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	unlock, err := h.sessions.Lock(ctx, id)
	if err != nil {
		return storeError(err)
	}
	defer unlock()

	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if err := h.orchestrator.Reset(s); err != nil {
		return err
	}
	if err := h.sessions.Save(ctx, s); err != nil {
		return storeError(err)
	}
	return response.Success(c, h.sessionResponse(s))
}

func (h *Handler) sessionResponse(s *checkout.Session) types.SessionResponse {
	resp := types.SessionResponse{Session: s}
	if s.Form != nil && s.Form.Country != "" {
		resp.AvailableMethods = h.registry.AvailableMethods(s.Form.Country)
	}
	return resp
}

// =============================================================================
// Submit
// =============================================================================

// Submit runs a payment for the session. An empty body submits the form
// stored on the session.
func (h *Handler) Submit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	unlock, err := h.sessions.Lock(ctx, id)
	if err != nil {
		return storeError(err)
	}
	defer unlock()

	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		return storeError(err)
	}

	var form checkout.Form
	if len(c.Body()) == 0 && s.Form != nil {
		form = *s.Form
	} else if err := c.BodyParser(&form); err != nil {
		return apperrors.ErrBadRequest.WithDetails("Invalid request body")
	}

	if form.OrderID == "" && s.Order != nil {
		form.OrderID = s.Order.OrderID
	}

	method := methodOf(form)
	out, err := h.orchestrator.Submit(ctx, s, form)
	if err != nil {
		if verr, ok := checkout.AsValidationError(err); ok {
			recordValidationFailures(verr.Fields)
			metrics.RecordSubmission(method, strings.ToUpper(form.Currency), "invalid")
			return apperrors.ErrValidation.WithDetails(map[string]string(verr.Fields))
		}
		return err
	}

	s.Form = &form
	if err := h.sessions.Save(ctx, s); err != nil {
		logger.WithContext(ctx).Error().Err(err).Str("session_id", s.ID).Msg("Failed to save session after submit")
	}
	result := string(out.Status)
	if out.Redirect() {
		result = "redirect"
	}
	metrics.RecordSubmission(method, out.Currency, result)

	h.recordSubmission(ctx, s, form, out)

	resp := types.SubmitResponse{SessionID: s.ID, Status: s.Status, Outcome: out}
	if s.Order != nil && !out.Redirect() {
		resp.ReturnURL = s.Order.ReturnURL(out)
	}

	if out.Err != nil {
		return response.Failure(c, apperrors.ErrGateway.WithMessage(out.Message), resp)
	}
	return response.Success(c, resp)
}

// recordSubmission binds the reference to the session, stores the attempt and
// publishes the payment events. Submissions the gateway never accepted have no
// reference and are skipped. Failures here are logged only.
func (h *Handler) recordSubmission(ctx context.Context, s *checkout.Session, form checkout.Form, out *checkout.Outcome) {
	log := logger.WithContext(ctx)
	v := h.orchestrator.Validator()
	amount := h.subunits(out)

	if out.Reference == "" {
		return
	}

	if err := h.sessions.BindReference(ctx, out.Reference, s.ID); err != nil {
		log.Warn().Err(err).Str("reference", out.Reference).Msg("Failed to bind reference to session")
	}

	if h.attempts != nil {
		attempt := &types.Attempt{
			Reference: out.Reference,
			SessionID: s.ID,
			OrderID:   optional(form.OrderID),
			Email:     form.Customer.Email,
			Country:   strings.ToUpper(form.Country),
			Currency:  out.Currency,
			Method:    methodOf(form),
			Amount:    amount,
			Status:    attemptStatus(out),
			Message:   optional(out.Message),
		}
		if err := h.attempts.Create(ctx, attempt); err != nil {
			log.Error().Err(err).Str("reference", out.Reference).Msg("Failed to record checkout attempt")
		}
	}

	h.publish(ctx, events.TopicPaymentInitiated, events.EventTypePaymentInitiated, s.ID, events.PaymentInitiatedPayload{
		Reference: out.Reference,
		SessionID: s.ID,
		OrderID:   form.OrderID,
		Amount:    amount,
		Currency:  out.Currency,
		Country:   strings.ToUpper(form.Country),
		Method:    methodOf(form),
		Email:     form.Customer.Email,
		Redirect:  out.Redirect(),
	})

	switch {
	case out.Redirect():
	case out.Status == checkout.StatusSuccess:
		payload := completedPayload(s, out)
		payload.Phone = v.FormatPhoneNumber(form.Customer.Phone, form.Country)
		h.publishOnce(ctx, events.TopicPaymentCompleted, events.EventTypePaymentCompleted, s.ID, out.Reference, payload)
	case out.Status == checkout.StatusFailed:
		h.publishOnce(ctx, events.TopicPaymentFailed, events.EventTypePaymentFailed, s.ID, out.Reference, failedPayload(s, out, methodOf(form), amount))
	}
}

// =============================================================================
// Callback
// =============================================================================

// Callback verifies the payment the payer returned from and resolves the
// session that started it.
func (h *Handler) Callback(c *fiber.Ctx) error {
	ctx := c.UserContext()
	query, _ := url.ParseQuery(string(c.Request().URI().QueryString()))

	out := h.callbacks.Handle(ctx, query)
	metrics.RecordCallback(string(out.Status))
	resp := types.CallbackResponse{Outcome: out}

	if errors.Is(out.Err, checkout.ErrMissingReference) {
		return response.Failure(c, apperrors.ErrMissingReference.WithMessage(out.Message), resp)
	}
	if out.Err != nil {
		return response.Failure(c, apperrors.ErrGateway.WithMessage(out.Message), resp)
	}

	s, changed := h.resolveSession(ctx, out)
	if s != nil {
		resp.SessionID = s.ID
		if s.Order != nil {
			resp.ReturnURL = s.Order.ReturnURL(out)
		}
	}

	if h.attempts != nil {
		if err := h.attempts.UpdateStatus(ctx, out.Reference, attemptStatus(out), out.Message); err != nil {
			logger.WithContext(ctx).Warn().Err(err).Str("reference", out.Reference).Msg("Failed to update checkout attempt")
		}
	}

	// A bound session that did not change has already been reported, or
	// belongs to a later attempt.
	if s != nil && !changed {
		return response.Success(c, resp)
	}

	correlation := out.Reference
	if s != nil {
		correlation = s.ID
	}
	if out.Status == checkout.StatusSuccess {
		payload := completedPayload(s, out)
		if s != nil && s.Form != nil {
			payload.Phone = h.orchestrator.Validator().FormatPhoneNumber(s.Form.Customer.Phone, s.Form.Country)
		}
		h.publishOnce(ctx, events.TopicPaymentCompleted, events.EventTypePaymentCompleted, correlation, out.Reference, payload)
	} else {
		var method string
		if out.Transaction != nil {
			method = out.Transaction.PaymentMethod
		}
		h.publishOnce(ctx, events.TopicPaymentFailed, events.EventTypePaymentFailed, correlation, out.Reference, failedPayload(s, out, method, h.subunits(out)))
	}

	return response.Success(c, resp)
}

// resolveSession applies a verified outcome to the session bound to its
// reference, under the session's submit lock. It returns the session, if one
// is bound, and whether the outcome changed it. A session busy with another
// submission is returned unchanged.
func (h *Handler) resolveSession(ctx context.Context, out *checkout.Outcome) (*checkout.Session, bool) {
	log := logger.WithContext(ctx).With().Str("reference", out.Reference).Logger()

	s, err := h.sessions.SessionForReference(ctx, out.Reference)
	if err != nil {
		if !errors.Is(err, apperrors.ErrSessionNotFound) {
			log.Warn().Err(err).Msg("Failed to look up session for callback")
		}
		return nil, false
	}

	unlock, err := h.sessions.Lock(ctx, s.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrSubmissionInProgress) {
			log.Warn().Err(err).Str("session_id", s.ID).Msg("Failed to lock session for callback")
		}
		return s, false
	}
	defer unlock()

	// Re-read under the lock; a submit or reset may have landed since.
	current, err := h.sessions.Get(ctx, s.ID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.ID).Msg("Failed to reload session for callback")
		return s, false
	}
	s = current

	if !s.Resolve(out) {
		log.Debug().Str("session_id", s.ID).Str("status", string(s.Status)).Msg("Callback left session unchanged")
		return s, false
	}
	if err := h.sessions.Save(ctx, s); err != nil {
		log.Warn().Err(err).Str("session_id", s.ID).Msg("Failed to save resolved session")
	}
	return s, true
}

// =============================================================================
// History
// =============================================================================

// ListTransactions fetches the gateway's transactions once and filters them
// by ?status locally.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	query, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	status := query.Get("status")
	query.Del("status")

	hist, err := checkout.LoadHistory(c.UserContext(), h.lister, query)
	if err != nil {
		return gatewayError(err)
	}

	txs := hist.Filter(status)
	if status == "" {
		status = "all"
	}
	return response.Success(c, types.HistoryResponse{
		Status:       status,
		Count:        len(txs),
		Counts:       hist.Counts(),
		Transactions: txs,
	})
}

func (h *Handler) GetTransaction(c *fiber.Ctx) error {
	hist, err := checkout.LoadHistory(c.UserContext(), h.lister, nil)
	if err != nil {
		return gatewayError(err)
	}

	tx, ok := hist.Find(c.Params("reference"))
	if !ok {
		return apperrors.ErrTransactionNotFound.WithDetails(c.Params("reference"))
	}
	return response.Success(c, tx)
}

// =============================================================================
// Attempts
// =============================================================================

// ListAttempts returns the submissions recorded for a session, newest first.
func (h *Handler) ListAttempts(c *fiber.Ctx) error {
	if h.attempts == nil {
		return apperrors.ErrServiceUnavailable.WithMessage("Attempt history is not enabled")
	}
	attempts, err := h.attempts.ListBySession(c.UserContext(), c.Params("id"))
	if err != nil {
		return storeError(err)
	}
	return response.List(c, attempts, len(attempts))
}

func (h *Handler) GetAttempt(c *fiber.Ctx) error {
	if h.attempts == nil {
		return apperrors.ErrServiceUnavailable.WithMessage("Attempt history is not enabled")
	}
	reference := c.Params("reference")
	attempt, err := h.attempts.GetByReference(c.UserContext(), reference)
	if errors.Is(err, types.ErrAttemptNotFound) {
		return apperrors.ErrTransactionNotFound.WithDetails(reference)
	}
	if err != nil {
		return storeError(err)
	}
	return response.Success(c, attempt)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) publish(ctx context.Context, topic, eventType, correlationID string, payload any) {
	h.send(ctx, topic, events.NewEvent(eventType, serviceName, payload).WithCorrelationID(correlationID))
}

// publishOnce publishes a payment's terminal event under an ID derived from
// its reference, so repeats collapse at the consumer.
func (h *Handler) publishOnce(ctx context.Context, topic, eventType, correlationID, reference string, payload any) {
	h.send(ctx, topic, events.NewEvent(eventType, serviceName, payload).
		WithCorrelationID(correlationID).
		WithIdempotencyKey(reference))
}

func (h *Handler) send(ctx context.Context, topic string, event *events.Event) {
	if err := h.publisher.Publish(ctx, topic, event); err != nil {
		logger.WithContext(ctx).Error().Err(err).
			Str("topic", topic).
			Str("event_id", event.EventID).
			Msg("Failed to publish event")
	}
}

// subunits prefers the gateway's recorded amount over the submitted one.
func (h *Handler) subunits(out *checkout.Outcome) int64 {
	if out.Transaction != nil {
		return out.Transaction.Amount
	}
	amount, err := decimal.NewFromString(out.Amount)
	if err != nil {
		return 0
	}
	return h.registry.ConvertToSubunit(amount, out.Currency)
}

func completedPayload(s *checkout.Session, out *checkout.Outcome) events.PaymentCompletedPayload {
	p := events.PaymentCompletedPayload{
		Reference:   out.Reference,
		Currency:    out.Currency,
		CompletedAt: time.Now().UTC(),
	}
	if tx := out.Transaction; tx != nil {
		p.Amount = tx.Amount
		p.Currency = tx.Currency
		p.Method = tx.PaymentMethod
		p.Channel = tx.Channel
		p.Email = tx.Email
		if tx.PaidAt != nil {
			p.CompletedAt = tx.PaidAt.UTC()
		}
	}
	if s != nil {
		p.SessionID = s.ID
		if s.Order != nil {
			p.OrderID = s.Order.OrderID
		}
		if s.Form != nil {
			p.CustomerName = s.Form.Customer.Name
			if p.Email == "" {
				p.Email = s.Form.Customer.Email
			}
		}
	}
	return p
}

func failedPayload(s *checkout.Session, out *checkout.Outcome, method string, amount int64) events.PaymentFailedPayload {
	p := events.PaymentFailedPayload{
		Reference:     out.Reference,
		Amount:        amount,
		Currency:      out.Currency,
		Method:        method,
		FailureCode:   "DECLINED",
		FailureReason: out.Message,
	}
	if out.Err != nil {
		p.FailureCode = apperrors.ErrGateway.Code
	}
	if s != nil {
		p.SessionID = s.ID
		if s.Order != nil {
			p.OrderID = s.Order.OrderID
		}
	}
	return p
}

func attemptStatus(out *checkout.Outcome) types.AttemptStatus {
	switch {
	case out.Redirect():
		return types.AttemptInitiated
	case out.Status == checkout.StatusSuccess:
		return types.AttemptSucceeded
	default:
		return types.AttemptFailed
	}
}

func recordValidationFailures(fields checkout.FieldErrors) {
	for _, f := range fields.Fields() {
		metrics.RecordValidationFailure(f)
	}
}

func methodOf(f checkout.Form) string {
	if f.Method == "" {
		return string(registry.MethodCard)
	}
	return string(f.Method)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// storeError passes AppErrors through and hides everything else behind a 500.
func storeError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.ErrInternal.WithError(err)
}

func gatewayError(err error) error {
	if gerr, ok := gateway.AsGatewayError(err); ok {
		return apperrors.ErrGateway.WithMessage(gerr.Message).WithError(err)
	}
	return apperrors.ErrGateway.WithError(err)
}

// Register mounts the checkout routes. protect guards merchant-only routes
// and may be nil.
func (h *Handler) Register(app fiber.Router, protect fiber.Handler) {
	app.Get("/health", h.Health)
	app.Get("/payment/callback", h.Callback)

	api := app.Group("/api/v1")
	api.Get("/countries", h.ListCountries)
	api.Get("/countries/:code", h.GetCountry)
	api.Get("/currencies", h.ListCurrencies)
	api.Get("/currencies/:code", h.GetCurrency)
	api.Post("/validate", h.Validate)

	api.Post("/sessions", h.CreateSession)
	api.Get("/sessions/:id", h.GetSession)
	api.Delete("/sessions/:id", h.DeleteSession)
	api.Post("/sessions/:id/submit", h.Submit)
	api.Post("/sessions/:id/reset", h.ResetSession)

	handlers := []fiber.Handler{}
	if protect != nil {
		handlers = append(handlers, protect)
	}
	api.Get("/transactions", append(handlers, h.ListTransactions)...)
	api.Get("/transactions/:reference", append(handlers, h.GetTransaction)...)
	api.Get("/sessions/:id/attempts", append(handlers, h.ListAttempts)...)
	api.Get("/attempts/:reference", append(handlers, h.GetAttempt)...)
}
