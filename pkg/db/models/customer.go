package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer holds the loyalty state mutated by the settlement engine.
// TierSpendCents is the tier-progress counter: it accrues on every settled
// order and resets only on downgrade or admin override, never on upgrade.
type Customer struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Phone string    `gorm:"column:phone;uniqueIndex;not null"`
	Name  string    `gorm:"column:name;not null;default:''"`

	PointsBalance int `gorm:"column:points_balance;not null;default:0"`

	TierCode      string     `gorm:"column:tier_code;not null;default:''"`
	TierStartsAt  *time.Time `gorm:"column:tier_starts_at"`
	TierExpiresAt *time.Time `gorm:"column:tier_expires_at"`
	TierPermanent bool       `gorm:"column:tier_permanent;not null;default:false"`
	TierLocked    bool       `gorm:"column:tier_locked;not null;default:false"`

	SpendAllCents int64      `gorm:"column:spend_all_cents;not null;default:0"`
	OrdersAll     int        `gorm:"column:orders_all;not null;default:0"`
	LastOrderAt   *time.Time `gorm:"column:last_order_at"`

	TierSpendCents   int64      `gorm:"column:tier_spend_cents;not null;default:0"`
	TierSpendResetAt *time.Time `gorm:"column:tier_spend_reset_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
