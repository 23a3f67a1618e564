package models

import (
	"time"

	"github.com/google/uuid"
)

// StockLevel is the signed per-(branch, item) quantity. Negative quantities
// are legal: goods can leave the shelf faster than receiving is recorded.
type StockLevel struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID uuid.UUID `gorm:"column:branch_id;type:uuid;not null;uniqueIndex:idx_stock_branch_item"`
	ItemID   uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:idx_stock_branch_item"`
	Qty      int       `gorm:"column:qty;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
