package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lehaiminh/chainpos-backend/pkg/enums"
)

// LoyaltyPolicy is the singleton redemption/earning configuration row.
// Zero values for the caps mean "unlimited".
type LoyaltyPolicy struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`

	RedeemEnabled     bool `gorm:"column:redeem_enabled;not null;default:false"`
	CashPerPointCents int  `gorm:"column:cash_per_point_cents;not null;default:0"`
	RedeemMaxPercent  int  `gorm:"column:redeem_max_percent;not null;default:0"`
	RedeemMaxPoints   int  `gorm:"column:redeem_max_points;not null;default:0"`

	RedeemRounding enums.RoundingMode `gorm:"column:redeem_rounding;type:text;not null;default:'FLOOR'"`
	EarnBasis      enums.EarnBasis    `gorm:"column:earn_basis;type:text;not null;default:'TOTAL'"`

	// DowngradeAfterDays is the inactivity window; each elapsed window moves
	// the customer down one tier step. Zero disables downgrades.
	DowngradeAfterDays int    `gorm:"column:downgrade_after_days;not null;default:0"`
	FloorTierCode      string `gorm:"column:floor_tier_code;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
