package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	admin    = Actor{ID: uuid.NewString(), Role: model.RoleAdmin}
	staff    = Actor{ID: uuid.NewString(), Role: model.RoleStaff}
	customer = Actor{ID: uuid.NewString(), Role: model.RoleCustomer}
)

// recordingHub captures published messages.
type recordingHub struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (h *recordingHub) Publish(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

type testEnv struct {
	db         *gorm.DB
	hub        *recordingHub
	products   repository.ProductRepository
	txns       repository.TransactionRepository
	orderRepo  repository.OrderRepository
	checkRepo  repository.InventoryCheckRepository
	ledger     StockLedger
	inventory  InventoryService
	approvals  ApprovalService
	orders     OrderService
	stocktakes StocktakeService
	fixedNow   time.Time
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection: concurrent units of work queue up behind each other.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	log := zap.NewNop()
	env := &testEnv{
		db:        db,
		hub:       &recordingHub{},
		products:  repository.NewProductRepo(db),
		txns:      repository.NewTransactionRepo(db),
		orderRepo: repository.NewOrderRepo(db),
		checkRepo: repository.NewInventoryCheckRepo(db),
		fixedNow:  time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
	}
	now := func() time.Time { return env.fixedNow }

	ledger := NewStockLedger(env.products, env.txns, log)
	ledger.(*stockLedger).now = now
	env.ledger = ledger

	env.inventory = NewInventoryService(env.products, env.txns, ledger, db, env.hub, log)

	approvals := NewApprovalService(env.txns, ledger, db, env.hub, log)
	approvals.(*approvalService).now = now
	env.approvals = approvals

	orders := NewOrderService(env.products, env.orderRepo, env.txns, ledger, nil, db, env.hub, log)
	orders.(*orderService).now = now
	env.orders = orders

	stocktakes := NewStocktakeService(env.products, env.checkRepo, ledger, db, env.hub, log)
	stocktakes.(*stocktakeService).now = now
	env.stocktakes = stocktakes

	return env
}

// seedProduct inserts a product directly with the given on-hand quantity.
func (e *testEnv) seedProduct(t *testing.T, sku string, quantity int, opts ...func(*model.Product)) *model.Product {
	t.Helper()
	p := &model.Product{
		SKU:         sku,
		Name:        "Product " + sku,
		Unit:        "pcs",
		Price:       decimal.RequireFromString("10.00"),
		CostPrice:   decimal.RequireFromString("6.00"),
		TaxRate:     decimal.Zero,
		Quantity:    quantity,
		MinQuantity: 5,
		IsActive:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *testEnv) quantityOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := e.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (e *testEnv) transactionsFor(t *testing.T, filter repository.TransactionFilter) []model.InventoryTransaction {
	t.Helper()
	txns, err := e.txns.FindAll(context.Background(), filter)
	require.NoError(t, err)
	return txns
}

// assertDeltaInvariant checks every stored transaction against its type.
func (e *testEnv) assertDeltaInvariant(t *testing.T) {
	t.Helper()
	var all []model.InventoryTransaction
	require.NoError(t, e.db.Find(&all).Error)
	for _, txn := range all {
		if txn.Status == model.TxRejected {
			continue
		}
		require.Equal(t, txn.Type.Apply(txn.PreviousQuantity, txn.Quantity), txn.NewQuantity,
			"transaction %s (%s %d) recorded %d -> %d", txn.ID, txn.Type, txn.Quantity, txn.PreviousQuantity, txn.NewQuantity)
	}
}

func inactive(p *model.Product) { p.IsActive = false }

func withTax(rate string) func(*model.Product) {
	return func(p *model.Product) { p.TaxRate = decimal.RequireFromString(rate) }
}

func withPrice(price string) func(*model.Product) {
	return func(p *model.Product) { p.Price = decimal.RequireFromString(price) }
}
