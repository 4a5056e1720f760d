package handler

import (
	"go-repair-billing/internal/middleware"
	"go-repair-billing/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type PaymentHandler struct {
	service service.SettlementService
	log     zerolog.Logger
}

func NewPaymentHandler(s service.SettlementService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, log: logger}
}

// RecordPayment answers 400 with a "remaining" field when the amount is
// larger than the open balance.
func (h *PaymentHandler) RecordPayment(c *fiber.Ctx) error {
	var req service.PaymentRequest
	if !bind(c, &req) {
		return nil
	}

	result, err := h.service.RecordPayment(c.UserContext(), req, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	list, err := h.service.ListPayments(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(list)
}
