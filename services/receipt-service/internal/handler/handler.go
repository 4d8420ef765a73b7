package handler

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/events"
	"github.com/Rohianon/multicurrency-checkout/pkg/response"
	"github.com/Rohianon/multicurrency-checkout/services/receipt-service/internal/sender"
	"github.com/Rohianon/multicurrency-checkout/services/receipt-service/internal/types"
)

type Handler struct {
	sender *sender.Sender
}

func NewHandler(s *sender.Sender) *Handler {
	return &Handler{sender: s}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy", "service": "receipt-service"})
}

// ListReceipts returns recent receipts, newest first.
// GET /receipts?reference=xxx
func (h *Handler) ListReceipts(c *fiber.Ctx) error {
	receipts := h.sender.Receipts(c.Query("reference"))
	return response.List(c, receipts, len(receipts))
}

// Resend sends a receipt by hand, bypassing event deduplication.
// POST /receipts
func (h *Handler) Resend(c *fiber.Ctx) error {
	var req types.ResendRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrBadRequest.WithDetails("Invalid request body")
	}

	fields := map[string]string{}
	if req.Reference == "" {
		fields["reference"] = "Reference is required"
	}
	if req.Phone == "" {
		fields["phone"] = "Phone number is required"
	}
	if req.Currency == "" {
		fields["currency"] = "Currency is required"
	}
	if req.Amount <= 0 {
		fields["amount"] = "Amount must be positive"
	}
	if len(fields) > 0 {
		return apperrors.ErrValidation.WithDetails(fields)
	}

	receipt, err := h.sender.Send(c.UserContext(), "", events.PaymentCompletedPayload{
		Reference:    req.Reference,
		OrderID:      req.OrderID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
	})
	if err != nil {
		return response.Failure(c, apperrors.ErrServiceUnavailable.WithMessage("Failed to send receipt"), receipt)
	}
	return response.Created(c, receipt)
}

func (h *Handler) ListTemplates(c *fiber.Ctx) error {
	templates := h.sender.Templates()
	return response.List(c, templates, len(templates))
}
