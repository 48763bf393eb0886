package repository

import (
	"context"

	"go-stock-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryCheckRepository interface {
	Create(tx *gorm.DB, check *model.InventoryCheck) error
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.InventoryCheck, error)
	FindItem(tx *gorm.DB, id uuid.UUID) (*model.InventoryCheckItem, error)
	LockItemByID(tx *gorm.DB, id uuid.UUID) (*model.InventoryCheckItem, error)
	UpdateCheck(tx *gorm.DB, check *model.InventoryCheck) error
	UpdateItem(tx *gorm.DB, item *model.InventoryCheckItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error)
	FindAll(ctx context.Context) ([]model.InventoryCheck, error)
}

type inventoryCheckRepo struct {
	db *gorm.DB
}

func NewInventoryCheckRepo(db *gorm.DB) InventoryCheckRepository {
	return &inventoryCheckRepo{db}
}

func (r *inventoryCheckRepo) Create(tx *gorm.DB, check *model.InventoryCheck) error {
	items := check.Items
	if err := tx.Omit(clause.Associations).Create(check).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].CheckID = check.ID
	}
	if len(items) > 0 {
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return err
		}
	}
	check.Items = items
	return nil
}

// LockByID locks the check header and loads its items ordered by product.
func (r *inventoryCheckRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.InventoryCheck, error) {
	var check model.InventoryCheck
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&check, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("check_id = ?", check.ID).Order("product_id ASC").Find(&check.Items).Error; err != nil {
		return nil, err
	}
	return &check, nil
}

func (r *inventoryCheckRepo) FindItem(tx *gorm.DB, id uuid.UUID) (*model.InventoryCheckItem, error) {
	var item model.InventoryCheckItem
	if err := tx.First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *inventoryCheckRepo) LockItemByID(tx *gorm.DB, id uuid.UUID) (*model.InventoryCheckItem, error) {
	var item model.InventoryCheckItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *inventoryCheckRepo) UpdateCheck(tx *gorm.DB, check *model.InventoryCheck) error {
	return tx.Model(&model.InventoryCheck{}).
		Where("id = ?", check.ID).
		Updates(map[string]interface{}{
			"status":       check.Status,
			"start_date":   check.StartDate,
			"end_date":     check.EndDate,
			"completed_by": check.CompletedBy,
			"updated_by":   check.UpdatedBy,
		}).Error
}

func (r *inventoryCheckRepo) UpdateItem(tx *gorm.DB, item *model.InventoryCheckItem) error {
	return tx.Model(&model.InventoryCheckItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"actual_quantity": item.ActualQuantity,
			"difference":      item.Difference,
			"status":          item.Status,
			"notes":           item.Notes,
			"checked_by":      item.CheckedBy,
			"checked_at":      item.CheckedAt,
			"updated_by":      item.UpdatedBy,
		}).Error
}

func (r *inventoryCheckRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryCheck, error) {
	var check model.InventoryCheck
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id ASC") }).
		Preload("Items.Product").
		First(&check, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &check, nil
}

func (r *inventoryCheckRepo) FindAll(ctx context.Context) ([]model.InventoryCheck, error) {
	var checks []model.InventoryCheck
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&checks).Error
	return checks, err
}
