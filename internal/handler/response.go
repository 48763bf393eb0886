package handler

import (
	"errors"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind error) int {
	switch {
	case errors.Is(kind, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(kind, service.ErrValidation), errors.Is(kind, service.ErrInvalidStatus):
		return fiber.StatusBadRequest
	case errors.Is(kind, service.ErrAlreadyProcessed), errors.Is(kind, service.ErrInsufficientStock):
		return fiber.StatusConflict
	case errors.Is(kind, service.ErrForbiddenTransition):
		return fiber.StatusForbidden
	case errors.Is(kind, service.ErrIncompleteCheck):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// respondError renders typed service errors with their kind and offending
// field. Anything untyped becomes a 500 without leaking its text.
func respondError(c *fiber.Ctx, err error) error {
	var typed *service.Error
	if !errors.As(err, &typed) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
	}

	body := fiber.Map{
		"error": typed.Message,
		"kind":  typed.Kind.Error(),
	}
	if typed.Field != "" {
		body["field"] = typed.Field
	}
	if typed.ID != "" {
		body["id"] = typed.ID
	}
	return c.Status(statusFor(typed.Kind)).JSON(body)
}

// getActor builds the principal from the locals set by RequireAuth.
func getActor(c *fiber.Ctx) service.Actor {
	id, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("user_role").(model.RoleCode)
	return service.Actor{ID: id, Role: role}
}

// Helper untuk parse UUID dari path param
func parseIDParam(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
