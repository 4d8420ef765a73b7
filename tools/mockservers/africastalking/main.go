package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"

	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/sms"
)

// =============================================================================
// SMS Mock Server
// =============================================================================
// Stands in for the Africa's Talking messaging API so receipt-service can run
// locally. Messages are kept in memory and can be inspected per recipient.
// Numbers registered through /admin/reject are refused per recipient, which
// is how a delivery failure looks on the real API.
// =============================================================================

const (
	statusProcessed = 101
	statusRejected  = 403
	costPerMessage  = 0.80
)

type Server struct {
	mu       sync.RWMutex
	messages []Message
	rejected map[string]bool
	apiKey   string
}

type Message struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	From      string    `json:"from,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func NewServer(apiKey string) *Server {
	return &Server{
		messages: make([]Message, 0),
		rejected: make(map[string]bool),
		apiKey:   apiKey,
	}
}

func main() {
	logger.Init("sms-mock", getEnv("LOG_LEVEL", "info"), true)

	app := newApp(NewServer(os.Getenv("AT_API_KEY")), fiberlogger.New())

	port := getEnv("PORT", "8091")
	logger.Info().Str("port", port).Msg("SMS mock server starting")
	if err := app.Listen(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("Server error")
	}
}

func newApp(s *Server, middleware ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "SMS Mock Server",
		DisableStartupMessage: true,
	})
	for _, m := range middleware {
		app.Use(m)
	}

	app.Post("/version1/messaging", s.handleSMS)

	app.Get("/admin/messages", s.listMessages)
	app.Post("/admin/reject/:number", s.reject)
	app.Post("/admin/reset", s.reset)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "service": "sms-mock"})
	})

	return app
}

func (s *Server) validAPIKey(c *fiber.Ctx) bool {
	key := c.Get("apiKey")
	if s.apiKey != "" {
		return key == s.apiKey
	}
	return key != ""
}

func (s *Server) handleSMS(c *fiber.Ctx) error {
	if !s.validAPIKey(c) {
		return c.Status(fiber.StatusUnauthorized).SendString("The supplied authentication is invalid")
	}

	to := c.FormValue("to")
	text := c.FormValue("message")
	if c.FormValue("username") == "" || to == "" || text == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing required parameters")
	}

	numbers := parseRecipients(to)
	recipients := make([]sms.Recipient, 0, len(numbers))
	sent := 0

	s.mu.Lock()
	for _, number := range numbers {
		msg := Message{
			ID:        "ATXid_" + uuid.NewString(),
			To:        number,
			Message:   text,
			From:      c.FormValue("from"),
			Status:    "Sent",
			CreatedAt: time.Now().UTC(),
		}
		r := sms.Recipient{
			StatusCode: statusProcessed,
			Number:     number,
			Status:     "Success",
			Cost:       fmt.Sprintf("KES %.4f", costPerMessage),
			MessageID:  msg.ID,
		}
		if s.rejected[number] {
			msg.Status = "Rejected"
			r = sms.Recipient{StatusCode: statusRejected, Number: number, Status: "InvalidPhoneNumber", Cost: "0", MessageID: "None"}
		} else {
			sent++
		}
		s.messages = append(s.messages, msg)
		recipients = append(recipients, r)
	}
	s.mu.Unlock()

	logger.Debug().Int("recipients", len(numbers)).Int("sent", sent).Msg("SMS accepted")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"SMSMessageData": fiber.Map{
			"Message":    fmt.Sprintf("Sent to %d/%d Total Cost: KES %.4f", sent, len(numbers), float64(sent)*costPerMessage),
			"Recipients": recipients,
		},
	})
}

func parseRecipients(to string) []string {
	var out []string
	for _, n := range strings.Split(to, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// =============================================================================
// Admin Endpoints
// =============================================================================

func (s *Server) listMessages(c *fiber.Ctx) error {
	to := c.Query("to")

	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		if to == "" || m.To == to {
			messages = append(messages, m)
		}
	}
	return c.JSON(fiber.Map{"messages": messages, "count": len(messages)})
}

func (s *Server) reject(c *fiber.Ctx) error {
	number := strings.TrimSpace(c.Params("number"))
	if number == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "number is required"})
	}

	s.mu.Lock()
	s.rejected[number] = true
	s.mu.Unlock()

	return c.JSON(fiber.Map{"status": "rejecting", "number": number})
}

func (s *Server) reset(c *fiber.Ctx) error {
	s.mu.Lock()
	s.messages = make([]Message, 0)
	s.rejected = make(map[string]bool)
	s.mu.Unlock()

	return c.JSON(fiber.Map{"status": "reset complete"})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
