package models

import (
	"time"

	"github.com/google/uuid"
)

// StockAllocation records one (branch, item, quantity) debit caused by an
// order. Release applies the exact inverse of these rows rather than
// recomputing from order items, so a later item edit cannot skew the refund.
type StockAllocation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	BranchID  uuid.UUID `gorm:"column:branch_id;type:uuid;not null"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	Qty       int       `gorm:"column:qty;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
