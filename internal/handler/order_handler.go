package handler

import (
	"go-stock-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

// CreateOrder places an order. An Idempotency-Key header makes retries safe.
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	order, err := h.service.CreateOrder(c.UserContext(), &req, getActor(c), c.Get("Idempotency-Key"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Order created", "data": order})
}

// PUT /api/v1/orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}

	var req service.UpdateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), orderID, &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Order status updated", "data": order})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}

	order, err := h.service.GetOrder(c.UserContext(), orderID, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": order})
}

func (h *OrderHandler) GetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": orders})
}
