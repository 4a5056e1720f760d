package handler

import (
	"go-repair-billing/internal/middleware"
	"go-repair-billing/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type InvoiceHandler struct {
	service service.SettlementService
	log     zerolog.Logger
}

func NewInvoiceHandler(s service.SettlementService, logger zerolog.Logger) *InvoiceHandler {
	return &InvoiceHandler{service: s, log: logger}
}

func (h *InvoiceHandler) CreateInvoice(c *fiber.Ctx) error {
	var req service.CreateInvoiceRequest
	if !bind(c, &req) {
		return nil
	}

	invoice, err := h.service.CreateInvoice(c.UserContext(), req, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

func (h *InvoiceHandler) CreateFromRepair(c *fiber.Ctx) error {
	repairID, ok := parseID(c, "repairId")
	if !ok {
		return nil
	}

	var req service.FromRepairRequest
	if len(c.Body()) > 0 && !bind(c, &req) {
		return nil
	}

	invoice, err := h.service.CreateFromRepair(c.UserContext(), repairID, req, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	invoice, err := h.service.GetInvoice(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(invoice)
}

func (h *InvoiceHandler) UpdateInvoice(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	var req service.AdjustmentRequest
	if !bind(c, &req) {
		return nil
	}

	invoice, err := h.service.UpdateAdjustments(c.UserContext(), id, req, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(invoice)
}

func (h *InvoiceHandler) SendInvoice(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	invoice, err := h.service.SendInvoice(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(invoice)
}

func (h *InvoiceHandler) CancelInvoice(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	invoice, err := h.service.CancelInvoice(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(invoice)
}

func (h *InvoiceHandler) DeleteInvoice(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	if err := h.service.DeleteInvoice(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Invoice deleted"})
}

func (h *InvoiceHandler) AddItem(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}

	var req service.ItemInput
	if !bind(c, &req) {
		return nil
	}

	result, err := h.service.AddItem(c.UserContext(), id, req, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *InvoiceHandler) UpdateItem(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return nil
	}

	var req service.ItemInput
	if !bind(c, &req) {
		return nil
	}

	result, err := h.service.UpdateItem(c.UserContext(), id, itemID, req, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(result)
}

func (h *InvoiceHandler) RemoveItem(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return nil
	}

	newTotal, err := h.service.RemoveItem(c.UserContext(), id, itemID, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"newTotal": newTotal})
}
