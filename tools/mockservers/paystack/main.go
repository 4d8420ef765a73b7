package main

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway/gatewaytest"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
)

// =============================================================================
// Payment Gateway Mock Server
// =============================================================================
// Serves the three gateway endpoints the checkout client calls, backed by the
// in-memory simulator:
// - POST /payments/initialize/
// - GET  /payments/verify/:reference/
// - GET  /payments/transactions/
// Test card numbers in metadata.test_card decide how a payment resolves.
// =============================================================================

type Server struct {
	mu        sync.RWMutex
	sim       *gatewaytest.Simulator
	callbacks map[string]string
	secretKey string
	publicURL string
}

type initializeBody struct {
	gateway.InitializeRequest
	CallbackURL string `json:"callback_url"`
}

type resolveBody struct {
	Outcome string `json:"outcome"`
}

var outcomes = map[string]gatewaytest.Outcome{
	"success":   gatewaytest.Success,
	"failed":    gatewaytest.Fail,
	"abandoned": gatewaytest.Close,
	"pending":   gatewaytest.Pending,
}

func NewServer(secretKey, publicURL string) *Server {
	s := &Server{secretKey: secretKey, publicURL: strings.TrimRight(publicURL, "/")}
	s.reset()
	return s
}

func main() {
	logger.Init("gateway-mock", getEnv("LOG_LEVEL", "info"), true)

	port := getEnv("PORT", "8090")
	server := NewServer(os.Getenv("MOCK_SECRET_KEY"), getEnv("PUBLIC_URL", "http://localhost:"+port))

	app := newApp(server, fiberlogger.New())

	logger.Info().Str("port", port).Msg("Gateway mock server starting")
	if err := app.Listen(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("Server error")
	}
}

func newApp(s *Server, middleware ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Payment Gateway Mock Server",
		DisableStartupMessage: true,
	})
	for _, m := range middleware {
		app.Use(m)
	}

	payments := app.Group("/payments", s.requireSecret)
	payments.Post("/initialize/", s.initialize)
	payments.Get("/verify/:reference/", s.verify)
	payments.Get("/transactions/", s.listTransactions)

	// Hosted payment page stand-in for card redirects.
	app.Get("/pay/:reference", s.pay)

	app.Get("/admin/transactions", s.adminTransactions)
	app.Post("/admin/resolve/:reference", s.adminResolve)
	app.Post("/admin/reset", s.adminReset)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": "gateway-mock"})
	})

	return app
}

func (s *Server) requireSecret(c *fiber.Ctx) error {
	key, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || key == "" || (s.secretKey != "" && key != s.secretKey) {
		return fail(c, fiber.StatusUnauthorized, "Invalid key")
	}
	return c.Next()
}

func (s *Server) simulator() *gatewaytest.Simulator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim
}

func (s *Server) initialize(c *fiber.Ctx) error {
	var body initializeBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	switch {
	case body.Email == "":
		return fail(c, fiber.StatusBadRequest, "Email is required")
	case body.Amount <= 0:
		return fail(c, fiber.StatusBadRequest, "Invalid amount")
	case body.Currency == "":
		return fail(c, fiber.StatusBadRequest, "Currency is required")
	}

	resp, err := s.simulator().Initialize(c.UserContext(), &body.InitializeRequest)
	if err != nil {
		return failErr(c, err)
	}

	if body.CallbackURL != "" {
		s.mu.Lock()
		s.callbacks[resp.Data.Reference] = body.CallbackURL
		s.mu.Unlock()
	}

	logger.Info().
		Str("reference", resp.Data.Reference).
		Str("method", body.PaymentMethod).
		Str("currency", body.Currency).
		Int64("amount", body.Amount).
		Msg("Payment initialized")

	return c.JSON(resp)
}

func (s *Server) verify(c *fiber.Ctx) error {
	resp, err := s.simulator().Verify(c.UserContext(), c.Params("reference"))
	if err != nil {
		return failErr(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) listTransactions(c *fiber.Ctx) error {
	filters := url.Values{}
	for k, v := range c.Queries() {
		filters.Set(k, v)
	}
	resp, err := s.simulator().ListTransactions(c.UserContext(), filters)
	if err != nil {
		return failErr(c, err)
	}
	return c.JSON(resp)
}

// pay plays the customer completing the hosted page: it sends them back to
// the merchant's callback URL.
func (s *Server) pay(c *fiber.Ctx) error {
	reference := c.Params("reference")
	if _, ok := s.simulator().Lookup(reference); !ok {
		return fail(c, fiber.StatusNotFound, "Transaction reference not found")
	}

	s.mu.RLock()
	callback := s.callbacks[reference]
	s.mu.RUnlock()
	if callback == "" {
		return c.JSON(fiber.Map{"status": true, "message": "No callback registered", "reference": reference})
	}

	target, err := url.Parse(callback)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Invalid callback URL")
	}
	q := target.Query()
	q.Set("reference", reference)
	q.Set("trxref", reference)
	target.RawQuery = q.Encode()
	return c.Redirect(target.String(), fiber.StatusFound)
}

// =============================================================================
// Admin Endpoints
// =============================================================================

func (s *Server) adminTransactions(c *fiber.Ctx) error {
	resp, err := s.simulator().ListTransactions(context.Background(), url.Values{})
	if err != nil {
		return failErr(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) adminResolve(c *fiber.Ctx) error {
	reference := c.Params("reference")
	var body resolveBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	outcome, ok := outcomes[strings.ToLower(body.Outcome)]
	if !ok {
		return fail(c, fiber.StatusBadRequest, "outcome must be one of success, failed, abandoned, pending")
	}

	sim := s.simulator()
	if _, found := sim.Lookup(reference); !found {
		return fail(c, fiber.StatusNotFound, "Transaction reference not found")
	}
	sim.SetOutcome(reference, outcome)
	tx, _ := sim.Lookup(reference)

	return c.JSON(fiber.Map{"status": true, "message": "Outcome updated", "data": tx})
}

func (s *Server) adminReset(c *fiber.Ctx) error {
	s.reset()
	return c.JSON(fiber.Map{"status": true, "message": "reset complete"})
}

func (s *Server) reset() {
	sim := gatewaytest.New()
	sim.AuthorizationURL = s.publicURL + "/pay"

	s.mu.Lock()
	s.sim = sim
	s.callbacks = make(map[string]string)
	s.mu.Unlock()
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"status": false, "message": message})
}

func failErr(c *fiber.Ctx, err error) error {
	if gerr, ok := gateway.AsGatewayError(err); ok && gerr.StatusCode != 0 {
		return fail(c, gerr.StatusCode, gerr.Message)
	}
	if errors.Is(err, context.Canceled) {
		return fail(c, fiber.StatusServiceUnavailable, "Request cancelled")
	}
	return fail(c, fiber.StatusInternalServerError, err.Error())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
