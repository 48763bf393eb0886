package handler

import (
	"go-stock-ledger/internal/middleware"
	"go-stock-ledger/internal/model"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Auth      *AuthHandler
	Inventory *InventoryHandler
	Orders    *OrderHandler
	Checks    *InventoryCheckHandler
	Dashboard *DashboardHandler
}

// SetupRoutes mounts the /api/v1 surface on app.
func SetupRoutes(app *fiber.App, h Handlers, authn middleware.Authenticator) {
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/register", h.Auth.Register)
	auth.Post("/reset-password", h.Auth.ResetPassword)
	auth.Post("/heartbeat", middleware.RequireAuth(authn), h.Auth.Heartbeat)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(authn))
	backOffice := middleware.RequireRole(model.RoleAdmin, model.RoleStaff)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	// Dashboard Routes
	protected.Get("/dashboard/stats", backOffice, h.Dashboard.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", backOffice, h.Dashboard.GetStockMovement)

	// Product Routes (catalog is readable by every role)
	protected.Get("/products", h.Inventory.GetProducts)
	protected.Get("/products/low-stock", backOffice, h.Inventory.GetLowStockProducts)
	protected.Post("/products", backOffice, h.Inventory.CreateProduct)
	protected.Put("/products/:id", backOffice, h.Inventory.UpdateProduct)

	// Transaction Routes
	protected.Get("/transactions", backOffice, h.Inventory.GetTransactions)
	protected.Get("/transactions/:id", backOffice, h.Inventory.GetTransaction)
	protected.Post("/transactions", backOffice, h.Inventory.CreateTransaction)
	protected.Post("/transactions/:id/approve", adminOnly, h.Inventory.ApproveTransaction)
	protected.Post("/transactions/:id/reject", adminOnly, h.Inventory.RejectTransaction)

	// Order Routes (customers are scoped to their own orders by the service)
	protected.Post("/orders", h.Orders.CreateOrder)
	protected.Get("/orders", h.Orders.GetOrders)
	protected.Get("/orders/:id", h.Orders.GetOrder)
	protected.Put("/orders/:id/status", h.Orders.UpdateOrderStatus)

	// Stocktake Routes
	checks := protected.Group("/inventory-checks", backOffice)
	checks.Post("/", h.Checks.CreateCheck)
	checks.Get("/", h.Checks.GetChecks)
	checks.Put("/items/:itemId", h.Checks.RecordCount)
	checks.Get("/:id", h.Checks.GetCheck)
	checks.Put("/:id/status", h.Checks.UpdateStatus)
	checks.Post("/:id/apply", h.Checks.ApplyAdjustments)
}
