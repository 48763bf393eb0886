package service

import (
	"context"
	"testing"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct_OpeningStockGoesThroughLedger(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	p, err := env.inventory.CreateProduct(ctx, &CreateProductRequest{
		SKU:             "NEW-1",
		Name:            "Widget",
		Unit:            "pcs",
		Price:           decimal.RequireFromString("12.50"),
		CostPrice:       decimal.RequireFromString("8.00"),
		TaxRate:         decimal.RequireFromString("11"),
		InitialQuantity: 25,
		MinQuantity:     5,
	}, staff)
	require.NoError(t, err)

	assert.True(t, p.IsActive)
	assert.Equal(t, 25, p.Quantity)
	assert.Equal(t, 25, env.quantityOf(t, p.ID))

	txns := env.transactionsFor(t, repository.TransactionFilter{ProductID: p.ID})
	require.Len(t, txns, 1)
	assert.Equal(t, model.TxIn, txns[0].Type)
	assert.Equal(t, model.TxApproved, txns[0].Status)
	assert.Equal(t, 0, txns[0].PreviousQuantity)
	assert.Equal(t, 25, txns[0].NewQuantity)
	assert.Equal(t, "Initial stock", txns[0].Reason)
}

func TestCreateProduct_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "TAKEN", 1)

	base := func() *CreateProductRequest {
		return &CreateProductRequest{SKU: "FRESH", Name: "Fresh", Price: decimal.NewFromInt(1)}
	}

	dup := base()
	dup.SKU = "TAKEN"
	_, err := env.inventory.CreateProduct(ctx, dup, admin)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	negative := base()
	negative.InitialQuantity = -1
	_, err = env.inventory.CreateProduct(ctx, negative, admin)
	assert.ErrorIs(t, err, ErrValidation)

	taxed := base()
	taxed.TaxRate = decimal.NewFromInt(150)
	_, err = env.inventory.CreateProduct(ctx, taxed, admin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.inventory.CreateProduct(ctx, base(), customer)
	assert.ErrorIs(t, err, ErrForbiddenTransition)

	products, err := env.inventory.GetAllProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestUpdateProduct_LeavesQuantityAlone(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, "UPD", 9)

	updated, err := env.inventory.UpdateProduct(ctx, p.ID, &UpdateProductRequest{
		Name:        "Renamed",
		Price:       decimal.RequireFromString("15.00"),
		CostPrice:   decimal.RequireFromString("9.00"),
		MinQuantity: 10,
		IsActive:    false,
	}, staff)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 9, updated.Quantity)

	stored, err := env.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 9, stored.Quantity)
	assert.Empty(t, env.transactionsFor(t, repository.TransactionFilter{}))

	_, err = env.inventory.UpdateProduct(ctx, uuid.New(), &UpdateProductRequest{Name: "x"}, staff)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLowStockProducts(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "LOW", 5)
	env.seedProduct(t, "OK", 6)
	env.seedProduct(t, "LOW-OFF", 0, inactive)

	low, err := env.inventory.GetLowStockProducts(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "LOW", low[0].SKU)
}

func TestGetAllTransactions_FilterValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.inventory.GetAllTransactions(ctx, repository.TransactionFilter{Status: "done"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = env.inventory.GetAllTransactions(ctx, repository.TransactionFilter{Type: "move"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = env.inventory.GetTransactionByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
