package models

import (
	"time"

	"github.com/google/uuid"
)

// Branch is a physical sales location with its own inventory ledger.
type Branch struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code   string    `gorm:"column:code;uniqueIndex;not null"`
	Name   string    `gorm:"column:name;not null"`
	IsMain bool      `gorm:"column:is_main;not null;default:false"`

	// AllowNegativeStock keeps the sale-branch path from ever blocking a sale.
	AllowNegativeStock bool `gorm:"column:allow_negative_stock;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
