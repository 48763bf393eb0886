package service

import (
	"context"
	"errors"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type InventoryService interface {
	CreateProduct(ctx context.Context, req *CreateProductRequest, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest, actor Actor) (*model.Product, error)
	RecordTransaction(ctx context.Context, req *ChangeRequest, actor Actor) (*ChangeResult, error)
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	GetLowStockProducts(ctx context.Context) ([]model.Product, error)
	GetAllTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.InventoryTransaction, error)
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*model.InventoryTransaction, error)
}

type CreateProductRequest struct {
	SKU             string          `json:"sku" validate:"required,max=50"`
	Name            string          `json:"name" validate:"required,max=255"`
	Unit            string          `json:"unit" validate:"max=20"`
	Price           decimal.Decimal `json:"price"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	InitialQuantity int             `json:"initial_quantity" validate:"gte=0"`
	MinQuantity     int             `json:"min_quantity" validate:"gte=0"`
	IsActive        *bool           `json:"is_active"`
}

// UpdateProductRequest carries catalog fields only. Quantity changes go
// through RecordTransaction.
type UpdateProductRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Unit        string          `json:"unit" validate:"max=20"`
	Price       decimal.Decimal `json:"price"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	MinQuantity int             `json:"min_quantity" validate:"gte=0"`
	IsActive    bool            `json:"is_active"`
}

type inventoryService struct {
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	ledger          StockLedger
	db              *gorm.DB
	hub             Broadcaster
	log             *zap.Logger
}

func NewInventoryService(pRepo repository.ProductRepository, tRepo repository.TransactionRepository, ledger StockLedger, db *gorm.DB, hub Broadcaster, log *zap.Logger) InventoryService {
	return &inventoryService{
		productRepo:     pRepo,
		transactionRepo: tRepo,
		ledger:          ledger,
		db:              db,
		hub:             hub,
		log:             log.Named("inventory"),
	}
}

func checkPricing(price, cost, tax decimal.Decimal) error {
	if price.IsNegative() {
		return validationError("price", "price must not be negative")
	}
	if cost.IsNegative() {
		return validationError("cost_price", "cost_price must not be negative")
	}
	if tax.IsNegative() || tax.GreaterThan(decimal.NewFromInt(100)) {
		return validationError("tax_rate", "tax_rate must be between 0 and 100")
	}
	return nil
}

func (s *inventoryService) CreateProduct(ctx context.Context, req *CreateProductRequest, actor Actor) (*model.Product, error) {
	if err := requireStaff(actor, "product", uuid.Nil, "create products"); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := checkPricing(req.Price, req.CostPrice, req.TaxRate); err != nil {
		return nil, err
	}

	// Cek Duplikasi SKU
	if existing, err := s.productRepo.FindBySKU(ctx, req.SKU); err == nil && existing != nil {
		return nil, &Error{Kind: ErrValidation, Detail: ErrDuplicateSKU, Field: "sku", Message: ErrDuplicateSKU.Error()}
	}

	product := &model.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Unit:        req.Unit,
		Price:       req.Price,
		CostPrice:   req.CostPrice,
		TaxRate:     req.TaxRate,
		MinQuantity: req.MinQuantity,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	product.CreatedBy = actor.ID
	product.UpdatedBy = actor.ID

	var opening *model.InventoryTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.productRepo.Create(tx, product); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &Error{Kind: ErrValidation, Detail: ErrDuplicateSKU, Field: "sku", Message: ErrDuplicateSKU.Error()}
			}
			return err
		}
		if req.InitialQuantity == 0 {
			return nil
		}
		// Opening stock is a ledger entry like any other.
		txn, err := s.ledger.Post(tx, ChangeRequest{
			ProductID: product.ID,
			Type:      model.TxIn,
			Quantity:  req.InitialQuantity,
			Reason:    "Initial stock",
			Reference: product.SKU,
		}, actor)
		if err != nil {
			return err
		}
		opening = txn
		product.Quantity = txn.NewQuantity
		return nil
	})
	if err != nil {
		failed(s.log, "create product", actor, err)
		return nil, err
	}

	if opening != nil {
		committed(s.hub, s.log, "product_created", actor, opening)
	}
	return product, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest, actor Actor) (*model.Product, error) {
	if err := requireStaff(actor, "product", id, "update products"); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := checkPricing(req.Price, req.CostPrice, req.TaxRate); err != nil {
		return nil, err
	}

	var updated *model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.productRepo.LockByID(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("product", id)
		}
		if err != nil {
			return err
		}

		existing.Name = req.Name
		existing.Unit = req.Unit
		existing.Price = req.Price
		existing.CostPrice = req.CostPrice
		existing.TaxRate = req.TaxRate
		existing.MinQuantity = req.MinQuantity
		existing.IsActive = req.IsActive
		existing.UpdatedBy = actor.ID

		if err := s.productRepo.UpdateCatalog(tx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		failed(s.log, "update product", actor, err)
		return nil, err
	}
	return updated, nil
}

func (s *inventoryService) RecordTransaction(ctx context.Context, req *ChangeRequest, actor Actor) (*ChangeResult, error) {
	if err := requireStaff(actor, "product", req.ProductID, "record inventory transactions"); err != nil {
		return nil, err
	}
	req.Baseline = nil

	var result *ChangeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.ledger.ApplyChange(tx, *req, actor)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		failed(s.log, "record transaction", actor, err)
		return nil, err
	}

	committed(s.hub, s.log, "transaction_created", actor, result.Transaction)
	return result, nil
}

func (s *inventoryService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.FindAll(ctx)
}

func (s *inventoryService) GetLowStockProducts(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.FindLowStock(ctx)
}

func (s *inventoryService) GetAllTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.InventoryTransaction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidStatus("status", filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, invalidStatus("type", filter.Type)
	}
	return s.transactionRepo.FindAll(ctx, filter)
}

func (s *inventoryService) GetTransactionByID(ctx context.Context, id uuid.UUID) (*model.InventoryTransaction, error) {
	txn, err := s.transactionRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("transaction", id)
	}
	return txn, err
}
