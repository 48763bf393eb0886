package handler

import (
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type InventoryCheckHandler struct {
	service service.StocktakeService
}

func NewInventoryCheckHandler(s service.StocktakeService) *InventoryCheckHandler {
	return &InventoryCheckHandler{service: s}
}

type checkStatusRequest struct {
	Status model.CheckStatus `json:"status"`
}

func (h *InventoryCheckHandler) CreateCheck(c *fiber.Ctx) error {
	var req service.CreateCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	check, err := h.service.CreateCheck(c.UserContext(), &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Inventory check created", "data": check})
}

func (h *InventoryCheckHandler) GetChecks(c *fiber.Ctx) error {
	checks, err := h.service.ListChecks(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": checks})
}

func (h *InventoryCheckHandler) GetCheck(c *fiber.Ctx) error {
	checkID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid inventory check ID")
	}

	check, err := h.service.GetCheck(c.UserContext(), checkID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": check})
}

func (h *InventoryCheckHandler) UpdateStatus(c *fiber.Ctx) error {
	checkID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid inventory check ID")
	}

	var req checkStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	check, err := h.service.TransitionCheck(c.UserContext(), checkID, req.Status, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Inventory check status updated", "data": check})
}

func (h *InventoryCheckHandler) RecordCount(c *fiber.Ctx) error {
	itemID, ok := parseIDParam(c, "itemId")
	if !ok {
		return badRequest(c, "Invalid inventory check item ID")
	}

	var req service.RecordCountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	item, err := h.service.RecordCount(c.UserContext(), itemID, &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Count recorded", "data": item})
}

func (h *InventoryCheckHandler) ApplyAdjustments(c *fiber.Ctx) error {
	checkID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid inventory check ID")
	}

	applied, err := h.service.ApplyAdjustments(c.UserContext(), checkID, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Adjustments applied", "data": fiber.Map{"applied": applied}})
}
