package service

import (
	"errors"
	"time"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChangeRequest describes one requested quantity change.
type ChangeRequest struct {
	ProductID uuid.UUID             `json:"product_id" validate:"uuid_required"`
	Type      model.TransactionType `json:"type" validate:"required"`
	Quantity  int                   `json:"quantity"`
	Reason    string                `json:"reason" validate:"max=500"`
	Reference string                `json:"reference" validate:"max=100"`

	// Baseline replaces the live quantity as the recorded previous quantity.
	// Only stocktake adjustments set it: they record the counted snapshot.
	Baseline *int `json:"-"`
}

type ChangeResult struct {
	Transaction        *model.InventoryTransaction `json:"transaction"`
	AppliedImmediately bool                        `json:"applied_immediately"`
}

// StockLedger is the only writer of Product.quantity. Every method works
// inside the caller's unit of work (tx) and never commits on its own.
type StockLedger interface {
	// ApplyChange records a change; admins apply it at once, everyone else
	// leaves it pending for approval.
	ApplyChange(tx *gorm.DB, req ChangeRequest, actor Actor) (*ChangeResult, error)
	// Post records and applies a change with status approved regardless of role.
	Post(tx *gorm.DB, req ChangeRequest, actor Actor) (*model.InventoryTransaction, error)
	// Approve applies a pending transaction against the product's current quantity.
	Approve(tx *gorm.DB, txn *model.InventoryTransaction, approver Actor) error
}

type stockLedger struct {
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	log             *zap.Logger
	now             func() time.Time
}

func NewStockLedger(pRepo repository.ProductRepository, tRepo repository.TransactionRepository, log *zap.Logger) StockLedger {
	return &stockLedger{
		productRepo:     pRepo,
		transactionRepo: tRepo,
		log:             log.Named("ledger"),
		now:             time.Now,
	}
}

func (l *stockLedger) ApplyChange(tx *gorm.DB, req ChangeRequest, actor Actor) (*ChangeResult, error) {
	txn, err := l.apply(tx, req, actor, actor.IsAdmin())
	if err != nil {
		return nil, err
	}
	return &ChangeResult{Transaction: txn, AppliedImmediately: txn.Status == model.TxApproved}, nil
}

func (l *stockLedger) Post(tx *gorm.DB, req ChangeRequest, actor Actor) (*model.InventoryTransaction, error) {
	return l.apply(tx, req, actor, true)
}

func (l *stockLedger) apply(tx *gorm.DB, req ChangeRequest, actor Actor, immediate bool) (*model.InventoryTransaction, error) {
	if err := checkChange(req); err != nil {
		return nil, err
	}

	product, err := l.lockProduct(tx, req.ProductID)
	if err != nil {
		return nil, err
	}

	previous := product.Quantity
	if req.Baseline != nil {
		if req.Type != model.TxAdjustment {
			return nil, validationError("baseline", "baseline is only valid for adjustments")
		}
		previous = *req.Baseline
		if previous != product.Quantity {
			l.log.Warn("quantity drifted since snapshot",
				zap.String("product_id", product.ID.String()),
				zap.Int("snapshot", previous),
				zap.Int("current", product.Quantity),
				zap.String("reference", req.Reference))
		}
	}

	newQuantity := req.Type.Apply(previous, req.Quantity)
	if newQuantity < 0 {
		return nil, insufficientStock(product, req.Quantity)
	}

	txn := &model.InventoryTransaction{
		ProductID:        product.ID,
		Type:             req.Type,
		Quantity:         req.Quantity,
		PreviousQuantity: previous,
		NewQuantity:      newQuantity,
		Status:           model.TxPending,
		Reason:           req.Reason,
		Reference:        req.Reference,
	}
	txn.CreatedBy = actor.ID
	txn.UpdatedBy = actor.ID
	if immediate {
		now := l.now()
		txn.Status = model.TxApproved
		txn.ApprovedBy = actor.ID
		txn.ApprovedAt = &now
	}

	// The ledger row goes in before the product row changes.
	if err := l.transactionRepo.Create(tx, txn); err != nil {
		return nil, err
	}
	if immediate {
		if err := l.writeQuantity(tx, product, newQuantity, actor.ID); err != nil {
			return nil, err
		}
	}
	txn.Product = product
	return txn, nil
}

func (l *stockLedger) Approve(tx *gorm.DB, txn *model.InventoryTransaction, approver Actor) error {
	product, err := l.lockProduct(tx, txn.ProductID)
	if err != nil {
		return err
	}

	current := product.Quantity
	var newQuantity int
	if txn.Type == model.TxAdjustment {
		// An adjustment names an absolute target, so it is re-applied as one.
		newQuantity = txn.Quantity
	} else {
		newQuantity = current + txn.Delta()
	}
	if newQuantity < 0 {
		return insufficientStock(product, txn.Quantity)
	}

	now := l.now()
	txn.PreviousQuantity = current
	txn.NewQuantity = newQuantity
	txn.Status = model.TxApproved
	txn.ApprovedBy = approver.ID
	txn.ApprovedAt = &now

	if err := l.transactionRepo.UpdateDecision(tx, txn); err != nil {
		return err
	}
	if err := l.writeQuantity(tx, product, newQuantity, approver.ID); err != nil {
		return err
	}
	txn.Product = product
	return nil
}

// writeQuantity is the single place product quantity is persisted.
func (l *stockLedger) writeQuantity(tx *gorm.DB, product *model.Product, newQuantity int, actorID string) error {
	if newQuantity < 0 {
		return insufficientStock(product, product.Quantity-newQuantity)
	}
	if err := l.productRepo.UpdateStock(tx, product.ID, newQuantity, actorID); err != nil {
		return err
	}
	product.Quantity = newQuantity
	return nil
}

func (l *stockLedger) lockProduct(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	product, err := l.productRepo.LockByID(tx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("product", id)
	}
	return product, err
}

func checkChange(req ChangeRequest) error {
	if err := validateRequest(&req); err != nil {
		return err
	}
	switch req.Type {
	case model.TxIn, model.TxOut:
		if req.Quantity <= 0 {
			return invalidQuantity("quantity", req.Quantity)
		}
	case model.TxAdjustment:
		if req.Quantity < 0 {
			return invalidQuantity("quantity", req.Quantity)
		}
	default:
		return invalidStatus("type", req.Type)
	}
	return nil
}
