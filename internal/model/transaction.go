package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TxIn         TransactionType = "in"
	TxOut        TransactionType = "out"
	TxAdjustment TransactionType = "adjustment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TxIn || t == TxOut || t == TxAdjustment
}

// Apply returns the quantity that results from applying a change of this
// type and magnitude to current. The result may be negative; callers decide
// whether that is acceptable.
func (t TransactionType) Apply(current, magnitude int) int {
	switch t {
	case TxIn:
		return current + magnitude
	case TxOut:
		return current - magnitude
	case TxAdjustment:
		return magnitude
	}
	return current
}

type TransactionStatus string

const (
	TxPending  TransactionStatus = "pending"
	TxApproved TransactionStatus = "approved"
	TxRejected TransactionStatus = "rejected"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	return s == TxPending || s == TxApproved || s == TxRejected
}

// InventoryTransaction is the ledger entry behind every quantity change.
// NewQuantity - PreviousQuantity always equals the effect of (Type, Quantity)
// applied to PreviousQuantity.
type InventoryTransaction struct {
	BaseModel
	ProductID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"product_id"`
	Product          *Product          `json:"product,omitempty"`
	Type             TransactionType   `gorm:"type:varchar(20);not null" json:"type"`
	Quantity         int               `gorm:"not null" json:"quantity"`
	PreviousQuantity int               `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int               `gorm:"not null" json:"new_quantity"`
	Status           TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Reason           string            `gorm:"type:text" json:"reason"`
	Reference        string            `gorm:"type:varchar(100);index" json:"reference"`
	ApprovedBy       string            `gorm:"type:varchar(255)" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
}

func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// Delta is the signed quantity change this entry represents.
func (t *InventoryTransaction) Delta() int {
	return t.NewQuantity - t.PreviousQuantity
}
