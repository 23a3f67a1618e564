package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lehaiminh/chainpos-backend/pkg/enums"
)

// Tier is a loyalty rank ordered by priority (higher is better).
type Tier struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code     string    `gorm:"column:code;uniqueIndex;not null"`
	Name     string    `gorm:"column:name;not null"`
	Priority int       `gorm:"column:priority;not null"`

	// ThresholdCents is the cumulative tier-progress spend required to qualify.
	ThresholdCents int64 `gorm:"column:threshold_cents;not null;default:0"`

	EarnAmountPerPointCents int                `gorm:"column:earn_amount_per_point_cents;not null;default:0"`
	EarnRounding            enums.RoundingMode `gorm:"column:earn_rounding;type:text;not null;default:'FLOOR'"`
	EarnMinOrderCents       int                `gorm:"column:earn_min_order_cents;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
