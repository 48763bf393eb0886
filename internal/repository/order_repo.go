package repository

import (
	"context"

	"go-stock-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(tx *gorm.DB, order *model.Order) error
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.Order, error)
	UpdateStatus(tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindAll(ctx context.Context, customerID uuid.UUID) ([]model.Order, error)
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db}
}

// Create writes the order header and then its items inside tx.
func (r *orderRepo) Create(tx *gorm.DB, order *model.Order) error {
	items := order.Items
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

// LockByID locks the order row and loads its items.
func (r *orderRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("order_id = ?", order.ID).Order("product_id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) UpdateStatus(tx *gorm.DB, order *model.Order) error {
	return tx.Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"processed_by":   order.ProcessedBy,
			"updated_by":     order.UpdatedBy,
		}).Error
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").Preload("Items.Product").First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindAll lists orders newest first; a non-nil customerID restricts to that customer.
func (r *orderRepo) FindAll(ctx context.Context, customerID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	q := r.db.WithContext(ctx).Preload("Items")
	if customerID != uuid.Nil {
		q = q.Where("customer_id = ?", customerID)
	}
	err := q.Order("created_at DESC").Find(&orders).Error
	return orders, err
}
