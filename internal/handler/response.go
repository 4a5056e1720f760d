package handler

import (
	"errors"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/middleware"
	"go-repair-billing/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// parseID reads a uuid route parameter. When ok is false the 400
// response has already been written.
func parseID(c *fiber.Ctx, name string) (id uuid.UUID, ok bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes the JSON body into dst and validates it.
func bind(c *fiber.Ctx, dst any) bool {
	if err := c.BodyParser(dst); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
		return false
	}
	if errs := validator.ValidateStruct(dst); len(errs) > 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Validation failed", "errors": errs})
		return false
	}
	return true
}

// respondError maps service errors onto HTTP statuses. Unknown errors are
// logged and answered with a generic body.
func respondError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	var exceeded *apperrors.BalanceExceededError
	switch {
	case errors.As(err, &exceeded):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     err.Error(),
			"remaining": exceeded.Remaining,
		})
	case errors.Is(err, apperrors.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperrors.ErrAlreadyInvoiced),
		errors.Is(err, apperrors.ErrDuplicateItem),
		errors.Is(err, apperrors.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	reqLog := middleware.Logger(c, log)
	reqLog.Error().Err(err).Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
}
