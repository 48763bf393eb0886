package repository

import (
	"context"
	"time"

	"go-stock-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository interface {
	Create(tx *gorm.DB, txn *model.InventoryTransaction) error
	LockByID(tx *gorm.DB, id uuid.UUID) (*model.InventoryTransaction, error)
	UpdateDecision(tx *gorm.DB, txn *model.InventoryTransaction) error
	NetOutByReference(tx *gorm.DB, reference string) (map[uuid.UUID]int, error)
	FindAll(ctx context.Context, filter TransactionFilter) ([]model.InventoryTransaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryTransaction, error)
	GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
}

// TransactionFilter narrows FindAll. Zero values mean "any".
type TransactionFilter struct {
	ProductID uuid.UUID
	Status    model.TransactionStatus
	Type      model.TransactionType
	Reference string
}

// StockMovementData untuk chart data
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// DashboardStats untuk overview stats
type DashboardStats struct {
	TotalProducts       int64           `json:"total_products"`
	LowStockCount       int64           `json:"low_stock_count"`
	PendingTransactions int64           `json:"pending_transactions"`
	TotalValuation      decimal.Decimal `json:"total_valuation"`
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(tx *gorm.DB, txn *model.InventoryTransaction) error {
	return tx.Omit(clause.Associations).Create(txn).Error
}

func (r *transactionRepo) LockByID(tx *gorm.DB, id uuid.UUID) (*model.InventoryTransaction, error) {
	var txn model.InventoryTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&txn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpdateDecision persists the outcome of an approval decision.
func (r *transactionRepo) UpdateDecision(tx *gorm.DB, txn *model.InventoryTransaction) error {
	return tx.Model(&model.InventoryTransaction{}).
		Where("id = ?", txn.ID).
		Updates(map[string]interface{}{
			"status":            txn.Status,
			"previous_quantity": txn.PreviousQuantity,
			"new_quantity":      txn.NewQuantity,
			"approved_by":       txn.ApprovedBy,
			"approved_at":       txn.ApprovedAt,
			"updated_by":        txn.ApprovedBy,
		}).Error
}

// NetOutByReference sums approved out minus in quantities per product for a
// correlation key such as an order number.
func (r *transactionRepo) NetOutByReference(tx *gorm.DB, reference string) (map[uuid.UUID]int, error) {
	var rows []struct {
		ProductID uuid.UUID
		Net       int
	}
	err := tx.Model(&model.InventoryTransaction{}).
		Select(`product_id,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity WHEN type = ? THEN -quantity ELSE 0 END), 0) AS net`,
			model.TxOut, model.TxIn).
		Where("reference = ? AND status = ?", reference, model.TxApproved).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	net := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		net[row.ProductID] = row.Net
	}
	return net, nil
}

func (r *transactionRepo) FindAll(ctx context.Context, filter TransactionFilter) ([]model.InventoryTransaction, error) {
	var transactions []model.InventoryTransaction
	q := r.db.WithContext(ctx).Preload("Product")
	if filter.ProductID != uuid.Nil {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Reference != "" {
		q = q.Where("reference = ?", filter.Reference)
	}
	err := q.Order("created_at DESC").Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryTransaction, error) {
	var txn model.InventoryTransaction
	if err := r.db.WithContext(ctx).Preload("Product").First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepo) GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error) {
	var results []StockMovementData

	// Query untuk aggregate transactions per hari
	rows, err := r.db.WithContext(ctx).Model(&model.InventoryTransaction{}).
		Select(`
			DATE(created_at) as date,
			COALESCE(SUM(CASE WHEN type = 'in' THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN type = 'out' THEN quantity ELSE 0 END), 0) as outbound
		`).
		Where("status = ? AND created_at BETWEEN ? AND ?", model.TxApproved, startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Inbound, &data.Outbound); err != nil {
			return nil, err
		}
		results = append(results, data)
	}

	return results, rows.Err()
}

func (r *transactionRepo) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Product{}).
		Where("is_active = ? AND quantity <= min_quantity", true).
		Count(&stats.LowStockCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.InventoryTransaction{}).
		Where("status = ?", model.TxPending).
		Count(&stats.PendingTransactions).Error; err != nil {
		return nil, err
	}

	var valuation struct {
		Total decimal.Decimal
	}
	if err := db.Model(&model.Product{}).
		Select("COALESCE(SUM(quantity * cost_price), 0) AS total").
		Scan(&valuation).Error; err != nil {
		return nil, err
	}
	stats.TotalValuation = valuation.Total

	return &stats, nil
}
