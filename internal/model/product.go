package model

import "github.com/shopspring/decimal"

// Product is a catalog entry. Quantity is only ever written by the stock ledger.
type Product struct {
	BaseModel
	SKU         string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Unit        string          `gorm:"type:varchar(20)" json:"unit"`
	Price       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
	CostPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"cost_price"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"` // percent
	Quantity    int             `gorm:"not null;check:quantity >= 0" json:"quantity"`
	MinQuantity int             `gorm:"not null" json:"min_quantity"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
}

// IsLowStock reports whether quantity has reached the reorder threshold.
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.MinQuantity
}
