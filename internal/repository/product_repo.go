package repository

import (
	"context"
	"errors"
	"sort"

	"go-stock-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Create(tx *gorm.DB, product *model.Product) error
	FindAll(ctx context.Context) ([]model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	FindLowStock(ctx context.Context) ([]model.Product, error)
	FindActive(tx *gorm.DB) ([]model.Product, error)
	FindByIDs(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error)
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	LockByIDs(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error)
	UpdateCatalog(tx *gorm.DB, product *model.Product) error
	UpdateStock(tx *gorm.DB, id uuid.UUID, newStock int, updatedBy string) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(tx *gorm.DB, product *model.Product) error {
	return tx.Create(product).Error
}

func (r *productRepo) FindAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Order("sku ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindLowStock(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND quantity <= min_quantity", true).
		Order("quantity ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) FindActive(tx *gorm.DB) ([]model.Product, error) {
	var products []model.Product
	err := tx.Where("is_active = ?", true).Order("id ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByIDs(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := tx.Where("id IN ?", ids).Order("id ASC").Find(&products).Error
	return products, err
}

// LockByID reads a product with SELECT ... FOR UPDATE. tx must be an open
// transaction; the lock is held until it commits or rolls back.
func (r *productRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// LockByIDs locks the given products one by one in ascending id order so that
// two multi-product units of work cannot deadlock each other. Missing ids are
// absent from the returned map.
func (r *productRepo) LockByIDs(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	sorted := SortedIDs(ids)
	locked := make(map[uuid.UUID]*model.Product, len(sorted))
	for _, id := range sorted {
		product, err := r.LockByID(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[id] = product
	}
	return locked, nil
}

// UpdateCatalog writes descriptive fields only; quantity is left alone.
func (r *productRepo) UpdateCatalog(tx *gorm.DB, product *model.Product) error {
	return tx.Model(&model.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":         product.Name,
			"unit":         product.Unit,
			"price":        product.Price,
			"cost_price":   product.CostPrice,
			"tax_rate":     product.TaxRate,
			"min_quantity": product.MinQuantity,
			"is_active":    product.IsActive,
			"updated_by":   product.UpdatedBy,
		}).Error
}

// UpdateStock menerima *gorm.DB (tx) agar bisa berjalan dalam transaksi
func (r *productRepo) UpdateStock(tx *gorm.DB, id uuid.UUID, newStock int, updatedBy string) error {
	return tx.Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity":   newStock,
			"updated_by": updatedBy,
		}).Error
}

// SortedIDs returns a deduplicated copy of ids in ascending byte order.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
