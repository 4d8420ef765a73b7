package response

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
)

// =============================================================================
// Response Envelope
// =============================================================================
// Every checkout endpoint answers with the same envelope.
//
// Success:
//
//	{
//	  "data": { ... },
//	  "meta": {"request_id": "uuid", "timestamp": "2026-01-31T12:00:00Z"}
//	}
//
// Failure (data is present when the failure still produced a result, e.g. a
// failed payment outcome):
//
//	{
//	  "data": { "status": "failed", ... },
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "Invalid input",
//	    "details": ["email: Email is required"],
//	    "fields": {"email": "Email is required"}
//	  },
//	  "meta": { ... }
//	}
// =============================================================================

type Response struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
	Meta  Meta       `json:"meta"`
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []string          `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ListData wraps a complete, unpaginated listing.
type ListData struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// =============================================================================
// Builders
// =============================================================================

func Success(c *fiber.Ctx, data any) error {
	return c.JSON(Response{
		Data: data,
		Meta: buildMeta(c),
	})
}

func SuccessWithStatus(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Response{
		Data: data,
		Meta: buildMeta(c),
	})
}

func Created(c *fiber.Ctx, data any) error {
	return SuccessWithStatus(c, fiber.StatusCreated, data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func List(c *fiber.Ctx, items any, count int) error {
	return Success(c, ListData{Items: items, Count: count})
}

func Error(c *fiber.Ctx, status int, code, message string, details ...string) error {
	return c.Status(status).JSON(Response{
		Error: &ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: buildMeta(c),
	})
}

// Failure renders appErr together with data, for failures that still carry a
// result the client needs.
func Failure(c *fiber.Ctx, appErr *apperrors.AppError, data any) error {
	return c.Status(appErr.HTTPStatus).JSON(Response{
		Data:  data,
		Error: errorBody(appErr),
		Meta:  buildMeta(c),
	})
}

// =============================================================================
// Helpers
// =============================================================================

func buildMeta(c *fiber.Ctx) Meta {
	return Meta{
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
		Version:   "v1",
	}
}

// GetRequestID returns the request ID set by middleware, assigning one if the
// request has none yet.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok && id != "" {
		return id
	}
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	id := uuid.New().String()
	c.Locals("request_id", id)
	return id
}
