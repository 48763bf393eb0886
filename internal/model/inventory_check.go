package model

import (
	"time"

	"github.com/google/uuid"
)

type CheckStatus string

const (
	CheckPending    CheckStatus = "pending"
	CheckInProgress CheckStatus = "in_progress"
	CheckCompleted  CheckStatus = "completed"
	CheckCancelled  CheckStatus = "cancelled"
)

var checkTransitions = map[CheckStatus][]CheckStatus{
	CheckPending:    {CheckInProgress, CheckCancelled},
	CheckInProgress: {CheckCompleted, CheckCancelled},
}

// Valid reports whether s is a known check status.
func (s CheckStatus) Valid() bool {
	switch s {
	case CheckPending, CheckInProgress, CheckCompleted, CheckCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the stocktake state machine allows s -> next.
func (s CheckStatus) CanTransitionTo(next CheckStatus) bool {
	for _, allowed := range checkTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type CheckItemStatus string

const (
	CheckItemPending  CheckItemStatus = "pending"
	CheckItemChecked  CheckItemStatus = "checked"
	CheckItemAdjusted CheckItemStatus = "adjusted"
)

// InventoryCheck is a stocktake session.
type InventoryCheck struct {
	BaseModel
	CheckNumber string               `gorm:"type:varchar(20);uniqueIndex;not null" json:"check_number"`
	Status      CheckStatus          `gorm:"type:varchar(20);not null;index" json:"status"`
	StartDate   *time.Time           `json:"start_date,omitempty"`
	EndDate     *time.Time           `json:"end_date,omitempty"`
	Notes       string               `gorm:"type:text" json:"notes"`
	CompletedBy string               `gorm:"type:varchar(255)" json:"completed_by,omitempty"`
	Items       []InventoryCheckItem `gorm:"foreignKey:CheckID" json:"items,omitempty"`
}

// InventoryCheckItem holds the snapshot and the physical count for one product.
type InventoryCheckItem struct {
	BaseModel
	CheckID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"check_id"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product        *Product        `json:"product,omitempty"`
	SystemQuantity int             `gorm:"not null" json:"system_quantity"`
	ActualQuantity *int            `json:"actual_quantity,omitempty"`
	Difference     int             `gorm:"not null" json:"difference"`
	Status         CheckItemStatus `gorm:"type:varchar(20);not null" json:"status"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CheckedBy      string          `gorm:"type:varchar(255)" json:"checked_by,omitempty"`
	CheckedAt      *time.Time      `json:"checked_at,omitempty"`
}

// IsCounted is true once a physical count has been recorded.
func (i *InventoryCheckItem) IsCounted() bool {
	return i.Status == CheckItemChecked || i.Status == CheckItemAdjusted
}
