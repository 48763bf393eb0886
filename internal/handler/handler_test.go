package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	app    *fiber.App
	db     *gorm.DB
	issuer *jwt.Issuer
	tokens map[model.RoleCode]string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	log := zap.NewNop()
	issuer := jwt.NewIssuer("handler-test", time.Hour)

	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	userRepo := repository.NewUserRepo(db)
	ledger := service.NewStockLedger(productRepo, txRepo, log)

	authService := service.NewAuthService(userRepo, issuer, nil, log)
	userService := service.NewUserService(userRepo, log)
	invService := service.NewInventoryService(productRepo, txRepo, ledger, db, nil, log)
	approvals := service.NewApprovalService(txRepo, ledger, db, nil, log)
	orders := service.NewOrderService(productRepo, repository.NewOrderRepo(db), txRepo, ledger, nil, db, nil, log)
	checks := service.NewStocktakeService(productRepo, repository.NewInventoryCheckRepo(db), ledger, db, nil, log)

	app := fiber.New()
	SetupRoutes(app, Handlers{
		Auth:      NewAuthHandler(authService, userService),
		Inventory: NewInventoryHandler(invService, approvals),
		Orders:    NewOrderHandler(orders),
		Checks:    NewInventoryCheckHandler(checks),
		Dashboard: NewDashboardHandler(service.NewDashboardService(txRepo)),
	}, authService)

	srv := &testServer{app: app, db: db, issuer: issuer, tokens: map[model.RoleCode]string{}}
	for _, role := range []model.RoleCode{model.RoleAdmin, model.RoleStaff, model.RoleCustomer} {
		user := &model.User{Email: string(role) + "@example.com", FullName: string(role), Role: role, IsActive: true}
		require.NoError(t, user.SetPassword("secret123"))
		require.NoError(t, userRepo.Create(context.Background(), user))
		token, err := issuer.GenerateToken(user.ID, user.Email, user.FullName, string(role))
		require.NoError(t, err)
		srv.tokens[role] = token
	}
	return srv
}

func (s *testServer) seedProduct(t *testing.T, sku string, quantity int) *model.Product {
	t.Helper()
	p := &model.Product{
		SKU: sku, Name: sku, Price: decimal.NewFromInt(10), CostPrice: decimal.NewFromInt(6),
		TaxRate: decimal.Zero, Quantity: quantity, MinQuantity: 5, IsActive: true,
	}
	require.NoError(t, s.db.Create(p).Error)
	return p
}

type apiResponse struct {
	status int
	body   map[string]interface{}
}

func (s *testServer) do(t *testing.T, method, path string, role model.RoleCode, payload interface{}, headers ...string) apiResponse {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[role])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := apiResponse{status: resp.StatusCode, body: map[string]interface{}{}}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.body)
	}
	return out
}

func dataField(t *testing.T, r apiResponse, key string) interface{} {
	t.Helper()
	data, ok := r.body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", r.body)
	return data[key]
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind error
		want int
	}{
		{service.ErrNotFound, fiber.StatusNotFound},
		{service.ErrValidation, fiber.StatusBadRequest},
		{service.ErrInvalidStatus, fiber.StatusBadRequest},
		{service.ErrAlreadyProcessed, fiber.StatusConflict},
		{service.ErrInsufficientStock, fiber.StatusConflict},
		{service.ErrForbiddenTransition, fiber.StatusForbidden},
		{service.ErrIncompleteCheck, fiber.StatusUnprocessableEntity},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.kind), tt.kind.Error())
	}
}

func TestOrderEndpoints(t *testing.T) {
	srv := setupServer(t)
	p := srv.seedProduct(t, "API-1", 10)
	order := map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": p.ID, "quantity": 3}},
	}

	t.Run("requires a token", func(t *testing.T) {
		r := srv.do(t, "POST", "/api/v1/orders", "", order)
		assert.Equal(t, fiber.StatusUnauthorized, r.status)
	})

	var orderID string
	t.Run("customer order reserves stock", func(t *testing.T) {
		r := srv.do(t, "POST", "/api/v1/orders", model.RoleCustomer, order)
		require.Equal(t, fiber.StatusCreated, r.status, r.body)
		assert.Equal(t, "Order created", r.body["message"])
		assert.Equal(t, "pending", dataField(t, r, "status"))
		orderID = dataField(t, r, "id").(string)
	})

	t.Run("insufficient stock is a conflict", func(t *testing.T) {
		big := map[string]interface{}{
			"items": []map[string]interface{}{{"product_id": p.ID, "quantity": 8}},
		}
		r := srv.do(t, "POST", "/api/v1/orders", model.RoleCustomer, big)
		assert.Equal(t, fiber.StatusConflict, r.status)
		assert.Equal(t, "insufficient stock", r.body["kind"])
		assert.Equal(t, "quantity", r.body["field"])
	})

	t.Run("empty order is a validation error", func(t *testing.T) {
		r := srv.do(t, "POST", "/api/v1/orders", model.RoleCustomer, map[string]interface{}{"items": []interface{}{}})
		assert.Equal(t, fiber.StatusBadRequest, r.status)
		assert.Equal(t, "validation failed", r.body["kind"])
	})

	t.Run("customer cannot ship", func(t *testing.T) {
		r := srv.do(t, "PUT", "/api/v1/orders/"+orderID+"/status", model.RoleCustomer, map[string]string{"status": "processing"})
		assert.Equal(t, fiber.StatusForbidden, r.status)
	})

	t.Run("customer cancels", func(t *testing.T) {
		r := srv.do(t, "PUT", "/api/v1/orders/"+orderID+"/status", model.RoleCustomer, map[string]string{"status": "cancelled"})
		require.Equal(t, fiber.StatusOK, r.status, r.body)
		assert.Equal(t, "cancelled", dataField(t, r, "status"))
	})

	t.Run("unknown order", func(t *testing.T) {
		r := srv.do(t, "GET", "/api/v1/orders/"+uuid.NewString(), model.RoleAdmin, nil)
		assert.Equal(t, fiber.StatusNotFound, r.status)
	})

	t.Run("malformed id", func(t *testing.T) {
		r := srv.do(t, "GET", "/api/v1/orders/not-a-uuid", model.RoleAdmin, nil)
		assert.Equal(t, fiber.StatusBadRequest, r.status)
	})

	var stored model.Product
	require.NoError(t, srv.db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, 10, stored.Quantity)
}

func TestTransactionEndpoints(t *testing.T) {
	srv := setupServer(t)
	p := srv.seedProduct(t, "API-2", 20)

	r := srv.do(t, "POST", "/api/v1/transactions", model.RoleStaff, map[string]interface{}{
		"product_id": p.ID, "type": "out", "quantity": 5,
	})
	require.Equal(t, fiber.StatusCreated, r.status, r.body)
	assert.Equal(t, "Transaction submitted for approval", r.body["message"])
	txID := dataField(t, r, "transaction").(map[string]interface{})["id"].(string)

	r = srv.do(t, "POST", "/api/v1/transactions", model.RoleCustomer, map[string]interface{}{
		"product_id": p.ID, "type": "in", "quantity": 5,
	})
	assert.Equal(t, fiber.StatusForbidden, r.status)

	r = srv.do(t, "POST", "/api/v1/transactions/"+txID+"/approve", model.RoleStaff, nil)
	assert.Equal(t, fiber.StatusForbidden, r.status)

	r = srv.do(t, "POST", "/api/v1/transactions/"+txID+"/approve", model.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, r.status, r.body)
	assert.EqualValues(t, 15, dataField(t, r, "new_quantity"))

	r = srv.do(t, "POST", "/api/v1/transactions/"+txID+"/reject", model.RoleAdmin, nil)
	assert.Equal(t, fiber.StatusConflict, r.status)
	assert.Equal(t, "already processed", r.body["kind"])

	r = srv.do(t, "GET", "/api/v1/transactions?status=bogus", model.RoleAdmin, nil)
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = srv.do(t, "GET", "/api/v1/transactions?status=approved", model.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Len(t, r.body["data"], 1)
}

func TestInventoryCheckEndpoints(t *testing.T) {
	srv := setupServer(t)
	p := srv.seedProduct(t, "API-3", 50)

	r := srv.do(t, "POST", "/api/v1/inventory-checks", model.RoleCustomer, map[string]interface{}{})
	assert.Equal(t, fiber.StatusForbidden, r.status)

	r = srv.do(t, "POST", "/api/v1/inventory-checks", model.RoleStaff, map[string]interface{}{
		"product_ids": []uuid.UUID{p.ID},
	})
	require.Equal(t, fiber.StatusCreated, r.status, r.body)
	checkID := dataField(t, r, "id").(string)
	items := dataField(t, r, "items").([]interface{})
	require.Len(t, items, 1)
	itemID := items[0].(map[string]interface{})["id"].(string)

	r = srv.do(t, "PUT", "/api/v1/inventory-checks/"+checkID+"/status", model.RoleStaff, map[string]string{"status": "in_progress"})
	require.Equal(t, fiber.StatusOK, r.status, r.body)

	r = srv.do(t, "PUT", "/api/v1/inventory-checks/"+checkID+"/status", model.RoleStaff, map[string]string{"status": "completed"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, r.status)
	assert.Equal(t, "incomplete check", r.body["kind"])

	r = srv.do(t, "PUT", "/api/v1/inventory-checks/items/"+itemID, model.RoleStaff, map[string]interface{}{"actual_quantity": 2.5})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "actual_quantity", r.body["field"])

	r = srv.do(t, "PUT", "/api/v1/inventory-checks/items/"+itemID, model.RoleStaff, map[string]interface{}{"actual_quantity": 47})
	require.Equal(t, fiber.StatusOK, r.status, r.body)
	assert.EqualValues(t, -3, dataField(t, r, "difference"))

	r = srv.do(t, "PUT", "/api/v1/inventory-checks/"+checkID+"/status", model.RoleAdmin, map[string]string{"status": "completed"})
	require.Equal(t, fiber.StatusOK, r.status, r.body)

	r = srv.do(t, "POST", "/api/v1/inventory-checks/"+checkID+"/apply", model.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, r.status, r.body)
	assert.EqualValues(t, 1, dataField(t, r, "applied"))

	var stored model.Product
	require.NoError(t, srv.db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, 47, stored.Quantity)
}

func TestAuthEndpoints(t *testing.T) {
	srv := setupServer(t)

	r := srv.do(t, "POST", "/api/v1/auth/login", "", map[string]string{"email": "staff@example.com", "password": "secret123"})
	require.Equal(t, fiber.StatusOK, r.status, r.body)
	assert.NotEmpty(t, r.body["token"])

	r = srv.do(t, "POST", "/api/v1/auth/login", "", map[string]string{"email": "staff@example.com", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, r.status)

	r = srv.do(t, "POST", "/api/v1/auth/login", "", map[string]string{"email": ""})
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = srv.do(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "new@example.com", "password": "secret123", "full_name": "New Buyer",
	})
	require.Equal(t, fiber.StatusCreated, r.status, r.body)
	assert.Equal(t, "customer", dataField(t, r, "role"))

	r = srv.do(t, "GET", "/api/v1/dashboard/stats", model.RoleCustomer, nil)
	assert.Equal(t, fiber.StatusForbidden, r.status)

	r = srv.do(t, "GET", "/api/v1/dashboard/stats", model.RoleAdmin, nil)
	assert.Equal(t, fiber.StatusOK, r.status)
}
