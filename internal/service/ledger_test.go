package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRecordTransaction_AdminAppliesImmediately(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, "SKU-IN", 10)

	result, err := env.inventory.RecordTransaction(ctx, &ChangeRequest{
		ProductID: p.ID, Type: model.TxIn, Quantity: 5, Reason: "restock",
	}, admin)
	require.NoError(t, err)

	assert.True(t, result.AppliedImmediately)
	assert.Equal(t, model.TxApproved, result.Transaction.Status)
	assert.Equal(t, 10, result.Transaction.PreviousQuantity)
	assert.Equal(t, 15, result.Transaction.NewQuantity)
	assert.Equal(t, admin.ID, result.Transaction.ApprovedBy)
	assert.NotNil(t, result.Transaction.ApprovedAt)
	assert.Equal(t, 15, env.quantityOf(t, p.ID))
	assert.Equal(t, 1, env.hub.count())
	env.assertDeltaInvariant(t)
}

func TestRecordTransaction_StaffLeavesPending(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, "SKU-OUT", 20)

	result, err := env.inventory.RecordTransaction(ctx, &ChangeRequest{
		ProductID: p.ID, Type: model.TxOut, Quantity: 5,
	}, staff)
	require.NoError(t, err)

	assert.False(t, result.AppliedImmediately)
	assert.Equal(t, model.TxPending, result.Transaction.Status)
	assert.Equal(t, 20, result.Transaction.PreviousQuantity)
	assert.Equal(t, 15, result.Transaction.NewQuantity)
	assert.Empty(t, result.Transaction.ApprovedBy)
	assert.Equal(t, 20, env.quantityOf(t, p.ID))

	pending := env.transactionsFor(t, repository.TransactionFilter{Status: model.TxPending})
	require.Len(t, pending, 1)
	assert.Equal(t, staff.ID, pending[0].CreatedBy)
}

func TestRecordTransaction_Adjustment(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, "SKU-ADJ", 12)

	result, err := env.inventory.RecordTransaction(ctx, &ChangeRequest{
		ProductID: p.ID, Type: model.TxAdjustment, Quantity: 7,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, 12, result.Transaction.PreviousQuantity)
	assert.Equal(t, 7, result.Transaction.NewQuantity)
	assert.Equal(t, 7, env.quantityOf(t, p.ID))

	// Adjusting to zero is a legitimate write-off.
	_, err = env.inventory.RecordTransaction(ctx, &ChangeRequest{
		ProductID: p.ID, Type: model.TxAdjustment, Quantity: 0,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, 0, env.quantityOf(t, p.ID))
	env.assertDeltaInvariant(t)
}

func TestRecordTransaction_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, "SKU-REJ", 3)

	tests := []struct {
		name   string
		req    ChangeRequest
		actor  Actor
		kind   error
		detail error
	}{
		{"out beyond stock", ChangeRequest{ProductID: p.ID, Type: model.TxOut, Quantity: 4}, admin, ErrInsufficientStock, nil},
		{"staff out beyond stock", ChangeRequest{ProductID: p.ID, Type: model.TxOut, Quantity: 4}, staff, ErrInsufficientStock, nil},
		{"zero in", ChangeRequest{ProductID: p.ID, Type: model.TxIn, Quantity: 0}, admin, ErrValidation, ErrInvalidQuantity},
		{"negative out", ChangeRequest{ProductID: p.ID, Type: model.TxOut, Quantity: -2}, admin, ErrValidation, ErrInvalidQuantity},
		{"negative adjustment", ChangeRequest{ProductID: p.ID, Type: model.TxAdjustment, Quantity: -1}, admin, ErrValidation, ErrInvalidQuantity},
		{"unknown type", ChangeRequest{ProductID: p.ID, Type: "transfer", Quantity: 1}, admin, ErrInvalidStatus, nil},
		{"missing product", ChangeRequest{ProductID: uuid.New(), Type: model.TxIn, Quantity: 1}, admin, ErrNotFound, ErrProductNotFound},
		{"nil product id", ChangeRequest{Type: model.TxIn, Quantity: 1}, admin, ErrValidation, nil},
		{"customer", ChangeRequest{ProductID: p.ID, Type: model.TxIn, Quantity: 1}, customer, ErrForbiddenTransition, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.inventory.RecordTransaction(ctx, &req, tt.actor)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.detail != nil {
				assert.ErrorIs(t, err, tt.detail)
			}
		})
	}

	assert.Equal(t, 3, env.quantityOf(t, p.ID))
	assert.Empty(t, env.transactionsFor(t, repository.TransactionFilter{}))
	assert.Zero(t, env.hub.count())
}

func TestRecordTransaction_ErrorCarriesContext(t *testing.T) {
	env := setupTestEnv(t)
	p := env.seedProduct(t, "SKU-CTX", 2)

	_, err := env.inventory.RecordTransaction(context.Background(), &ChangeRequest{
		ProductID: p.ID, Type: model.TxOut, Quantity: 9,
	}, admin)

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, ErrInsufficientStock, typed.Kind)
	assert.Equal(t, "product", typed.Entity)
	assert.Equal(t, p.ID.String(), typed.ID)
	assert.Equal(t, "quantity", typed.Field)
	assert.Contains(t, typed.Message, "SKU-CTX")
	assert.Equal(t, ErrInsufficientStock, KindOf(err))
	assert.Nil(t, KindOf(errors.New("plain")))
}

func TestLedger_ConcurrentOutsSerialize(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, "SKU-RACE", 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.inventory.RecordTransaction(ctx, &ChangeRequest{
				ProductID: p.ID, Type: model.TxOut, Quantity: 6,
			}, admin)
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 4, env.quantityOf(t, p.ID))
	assert.Len(t, env.transactionsFor(t, repository.TransactionFilter{ProductID: p.ID}), 1)
	env.assertDeltaInvariant(t)
}

func TestLedger_CallerRollbackDiscardsEverything(t *testing.T) {
	env := setupTestEnv(t)
	p := env.seedProduct(t, "SKU-UOW", 8)
	boom := errors.New("later step failed")

	err := env.db.Transaction(func(tx *gorm.DB) error {
		if _, err := env.ledger.Post(tx, ChangeRequest{ProductID: p.ID, Type: model.TxOut, Quantity: 3}, staff); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 8, env.quantityOf(t, p.ID))
	assert.Empty(t, env.transactionsFor(t, repository.TransactionFilter{}))
}

func TestLedger_PostIgnoresRole(t *testing.T) {
	env := setupTestEnv(t)
	p := env.seedProduct(t, "SKU-POST", 8)

	var txn *model.InventoryTransaction
	err := env.db.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = env.ledger.Post(tx, ChangeRequest{ProductID: p.ID, Type: model.TxOut, Quantity: 3, Reference: "REF-1"}, customer)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.TxApproved, txn.Status)
	assert.Equal(t, 5, env.quantityOf(t, p.ID))
}

func TestLedger_BaselineOnlyForAdjustments(t *testing.T) {
	env := setupTestEnv(t)
	p := env.seedProduct(t, "SKU-BASE", 8)
	baseline := 8

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.ledger.Post(tx, ChangeRequest{ProductID: p.ID, Type: model.TxIn, Quantity: 1, Baseline: &baseline}, admin)
		return err
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 8, env.quantityOf(t, p.ID))
}
