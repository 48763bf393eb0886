package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go-stock-ledger/internal/metrics"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reasonStocktake = "Stocktake adjustment"

// StocktakeService reconciles physical counts against system quantities.
type StocktakeService interface {
	CreateCheck(ctx context.Context, req *CreateCheckRequest, actor Actor) (*model.InventoryCheck, error)
	TransitionCheck(ctx context.Context, id uuid.UUID, status model.CheckStatus, actor Actor) (*model.InventoryCheck, error)
	RecordCount(ctx context.Context, itemID uuid.UUID, req *RecordCountRequest, actor Actor) (*model.InventoryCheckItem, error)
	ApplyAdjustments(ctx context.Context, id uuid.UUID, actor Actor) (int, error)
	GetCheck(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error)
	ListChecks(ctx context.Context) ([]model.InventoryCheck, error)
}

type CreateCheckRequest struct {
	// ProductIDs limits the snapshot; empty means every active product.
	ProductIDs []uuid.UUID `json:"product_ids"`
	Notes      string      `json:"notes"`
}

// RecordCountRequest takes the count as a JSON number; it must be a whole,
// non-negative value.
type RecordCountRequest struct {
	ActualQuantity float64 `json:"actual_quantity"`
	Notes          string  `json:"notes"`
}

type stocktakeService struct {
	productRepo repository.ProductRepository
	checkRepo   repository.InventoryCheckRepository
	ledger      StockLedger
	db          *gorm.DB
	hub         Broadcaster
	log         *zap.Logger
	now         func() time.Time
}

func NewStocktakeService(pRepo repository.ProductRepository, cRepo repository.InventoryCheckRepository, ledger StockLedger, db *gorm.DB, hub Broadcaster, log *zap.Logger) StocktakeService {
	return &stocktakeService{
		productRepo: pRepo,
		checkRepo:   cRepo,
		ledger:      ledger,
		db:          db,
		hub:         hub,
		log:         log.Named("stocktake"),
		now:         time.Now,
	}
}

func (s *stocktakeService) CreateCheck(ctx context.Context, req *CreateCheckRequest, actor Actor) (*model.InventoryCheck, error) {
	if err := requireStaff(actor, "inventory check", uuid.Nil, "create inventory checks"); err != nil {
		return nil, err
	}

	var check *model.InventoryCheck
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := s.snapshotProducts(tx, req.ProductIDs)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return validationError("product_ids", "no products to count")
		}

		number, err := repository.NextDocumentNumber(tx, "inventory_checks", "check_number", repository.CheckNumberPrefix, s.now())
		if err != nil {
			return err
		}

		items := make([]model.InventoryCheckItem, 0, len(products))
		for _, p := range products {
			item := model.InventoryCheckItem{
				ProductID:      p.ID,
				SystemQuantity: p.Quantity,
				Status:         model.CheckItemPending,
			}
			item.CreatedBy = actor.ID
			items = append(items, item)
		}

		c := &model.InventoryCheck{
			CheckNumber: number,
			Status:      model.CheckPending,
			Notes:       req.Notes,
			Items:       items,
		}
		c.CreatedBy = actor.ID
		c.UpdatedBy = actor.ID
		if err := s.checkRepo.Create(tx, c); err != nil {
			return numberTaken("inventory check", "check_number", err)
		}
		check = c
		return nil
	})
	if err != nil {
		failed(s.log, "create inventory check", actor, err)
		return nil, err
	}

	s.log.Info("inventory check created",
		zap.String("check_number", check.CheckNumber),
		zap.Int("items", len(check.Items)),
		zap.String("actor", actor.ID))
	return check, nil
}

// snapshotProducts returns the products to count in ascending id order.
func (s *stocktakeService) snapshotProducts(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return s.productRepo.FindActive(tx)
	}
	sorted := repository.SortedIDs(ids)
	locked, err := s.productRepo.LockByIDs(tx, sorted)
	if err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(sorted))
	for _, id := range sorted {
		p, ok := locked[id]
		if !ok {
			return nil, notFound("product", id)
		}
		products = append(products, *p)
	}
	return products, nil
}

func (s *stocktakeService) TransitionCheck(ctx context.Context, id uuid.UUID, status model.CheckStatus, actor Actor) (*model.InventoryCheck, error) {
	if err := requireStaff(actor, "inventory check", id, "change inventory checks"); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidStatus("status", status)
	}

	var check *model.InventoryCheck
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.lockCheck(tx, id)
		if err != nil {
			return err
		}
		if !c.Status.CanTransitionTo(status) {
			return forbidden("inventory check", id, "inventory check %s cannot move from %s to %s", c.CheckNumber, c.Status, status)
		}

		now := s.now()
		switch status {
		case model.CheckInProgress:
			c.StartDate = &now
		case model.CheckCompleted:
			pending := 0
			for i := range c.Items {
				if !c.Items[i].IsCounted() {
					pending++
				}
			}
			if pending > 0 {
				return &Error{
					Kind:    ErrIncompleteCheck,
					Entity:  "inventory check",
					ID:      id.String(),
					Field:   "items",
					Message: fmt.Sprintf("inventory check %s has %d uncounted item(s)", c.CheckNumber, pending),
				}
			}
			c.EndDate = &now
			c.CompletedBy = actor.ID
		}
		c.Status = status
		c.UpdatedBy = actor.ID

		if err := s.checkRepo.UpdateCheck(tx, c); err != nil {
			return err
		}
		check = c
		return nil
	})
	if err != nil {
		failed(s.log, "transition inventory check", actor, err)
		return nil, err
	}

	s.log.Info("inventory check status changed",
		zap.String("check_number", check.CheckNumber),
		zap.String("status", string(check.Status)),
		zap.String("actor", actor.ID))
	return check, nil
}

// countToInt accepts only finite, whole, non-negative counts.
func countToInt(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, invalidQuantity("actual_quantity", v)
	}
	return int(v), nil
}

func (s *stocktakeService) RecordCount(ctx context.Context, itemID uuid.UUID, req *RecordCountRequest, actor Actor) (*model.InventoryCheckItem, error) {
	if err := requireStaff(actor, "inventory check item", itemID, "record counts"); err != nil {
		return nil, err
	}
	actual, err := countToInt(req.ActualQuantity)
	if err != nil {
		return nil, err
	}

	var item *model.InventoryCheckItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.checkRepo.FindItem(tx, itemID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("inventory check item", itemID)
		}
		if err != nil {
			return err
		}

		// Parent first, then the item: the same order ApplyAdjustments uses.
		check, err := s.lockCheck(tx, found.CheckID)
		if err != nil {
			return err
		}
		if check.Status != model.CheckInProgress {
			return forbidden("inventory check", check.ID, "counts can only be recorded while inventory check %s is in_progress (currently %s)", check.CheckNumber, check.Status)
		}
		it, err := s.checkRepo.LockItemByID(tx, itemID)
		if err != nil {
			return err
		}

		now := s.now()
		it.ActualQuantity = &actual
		it.Difference = actual - it.SystemQuantity
		it.Status = model.CheckItemChecked
		it.Notes = req.Notes
		it.CheckedBy = actor.ID
		it.CheckedAt = &now
		it.UpdatedBy = actor.ID
		if err := s.checkRepo.UpdateItem(tx, it); err != nil {
			return err
		}
		item = it
		return nil
	})
	if err != nil {
		failed(s.log, "record count", actor, err)
		return nil, err
	}
	return item, nil
}

func (s *stocktakeService) ApplyAdjustments(ctx context.Context, id uuid.UUID, actor Actor) (int, error) {
	if err := requireStaff(actor, "inventory check", id, "apply stocktake adjustments"); err != nil {
		return 0, err
	}

	var (
		check  *model.InventoryCheck
		posted []*model.InventoryTransaction
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.lockCheck(tx, id)
		if err != nil {
			return err
		}
		if c.Status != model.CheckCompleted {
			return forbidden("inventory check", id, "adjustments require a completed inventory check (currently %s)", c.Status)
		}

		for i := range c.Items {
			item := &c.Items[i]
			if item.Status != model.CheckItemChecked || item.Difference == 0 || item.ActualQuantity == nil {
				continue
			}
			baseline := item.SystemQuantity
			txn, err := s.ledger.Post(tx, ChangeRequest{
				ProductID: item.ProductID,
				Type:      model.TxAdjustment,
				Quantity:  *item.ActualQuantity,
				Reason:    reasonStocktake,
				Reference: c.CheckNumber,
				Baseline:  &baseline,
			}, actor)
			if err != nil {
				return err
			}
			item.Status = model.CheckItemAdjusted
			item.UpdatedBy = actor.ID
			if err := s.checkRepo.UpdateItem(tx, item); err != nil {
				return err
			}
			posted = append(posted, txn)
		}
		check = c
		return nil
	})
	if err != nil {
		failed(s.log, "apply stocktake adjustments", actor, err)
		return 0, err
	}

	metrics.StocktakeAdjustments.Add(float64(len(posted)))
	s.log.Info("stocktake adjustments applied",
		zap.String("check_number", check.CheckNumber),
		zap.Int("applied", len(posted)),
		zap.String("actor", actor.ID))
	committed(s.hub, s.log, "stocktake_applied", actor, posted...)
	return len(posted), nil
}

func (s *stocktakeService) lockCheck(tx *gorm.DB, id uuid.UUID) (*model.InventoryCheck, error) {
	check, err := s.checkRepo.LockByID(tx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("inventory check", id)
	}
	return check, err
}

func (s *stocktakeService) GetCheck(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error) {
	check, err := s.checkRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("inventory check", id)
	}
	return check, err
}

func (s *stocktakeService) ListChecks(ctx context.Context) ([]model.InventoryCheck, error) {
	return s.checkRepo.FindAll(ctx)
}
