package handler

import (
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type InventoryHandler struct {
	service   service.InventoryService
	approvals service.ApprovalService
}

func NewInventoryHandler(s service.InventoryService, approvals service.ApprovalService) *InventoryHandler {
	return &InventoryHandler{service: s, approvals: approvals}
}

func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	product, err := h.service.CreateProduct(c.UserContext(), &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid product ID")
	}

	var req service.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	updated, err := h.service.UpdateProduct(c.UserContext(), productID, &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": products})
}

func (h *InventoryHandler) GetLowStockProducts(c *fiber.Ctx) error {
	products, err := h.service.GetLowStockProducts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": products})
}

func (h *InventoryHandler) CreateTransaction(c *fiber.Ctx) error {
	var req service.ChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	result, err := h.service.RecordTransaction(c.UserContext(), &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}

	msg := "Transaction submitted for approval"
	if result.AppliedImmediately {
		msg = "Transaction recorded"
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg, "data": result})
}

// GetTransactions lists ledger entries.
// Query params: status, type, product_id, reference
func (h *InventoryHandler) GetTransactions(c *fiber.Ctx) error {
	filter := repository.TransactionFilter{
		Status:    model.TransactionStatus(c.Query("status")),
		Type:      model.TransactionType(c.Query("type")),
		Reference: c.Query("reference"),
	}
	if raw := c.Query("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid product_id")
		}
		filter.ProductID = id
	}

	transactions, err := h.service.GetAllTransactions(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": transactions})
}

func (h *InventoryHandler) GetTransaction(c *fiber.Ctx) error {
	txID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid transaction ID")
	}

	tx, err := h.service.GetTransactionByID(c.UserContext(), txID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": tx})
}

func (h *InventoryHandler) ApproveTransaction(c *fiber.Ctx) error {
	return h.decide(c, model.TxApproved, "Transaction approved")
}

func (h *InventoryHandler) RejectTransaction(c *fiber.Ctx) error {
	return h.decide(c, model.TxRejected, "Transaction rejected")
}

func (h *InventoryHandler) decide(c *fiber.Ctx, decision model.TransactionStatus, msg string) error {
	txID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid transaction ID")
	}

	txn, err := h.approvals.Decide(c.UserContext(), txID, decision, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": msg, "data": txn})
}
