package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	"github.com/lehaiminh/chainpos-backend/pkg/types"
)

// Order is the sale aggregate. Money fields are non-negative integers in minor
// currency units. The timestamp markers at the bottom double as idempotency
// guards: a side effect runs only while its marker is nil.
type Order struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code       string             `gorm:"column:code;uniqueIndex;not null"`
	Channel    enums.OrderChannel `gorm:"column:channel;type:text;not null"`
	Status     enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'PENDING'"`
	BranchID   *uuid.UUID         `gorm:"column:branch_id;type:uuid"`
	CustomerID *uuid.UUID         `gorm:"column:customer_id;type:uuid"`

	DeliveryMethod enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null;default:'PICKUP'"`

	SubtotalCents     int `gorm:"column:subtotal_cents;not null"`
	DiscountCents     int `gorm:"column:discount_cents;not null;default:0"`
	ExtraFeeCents     int `gorm:"column:extra_fee_cents;not null;default:0"`
	PointsRedeemed    int `gorm:"column:points_redeemed;not null;default:0"`
	PointsRedeemCents int `gorm:"column:points_redeem_cents;not null;default:0"`
	TotalCents        int `gorm:"column:total_cents;not null"`
	PaidCents         int `gorm:"column:paid_cents;not null;default:0"`

	Note *string `gorm:"column:note"`

	// Version is the global change-log position assigned on every write so
	// sync clients can request "changes since N".
	Version int64 `gorm:"column:version;not null;index"`

	LoyaltySnapshot *types.LoyaltySnapshot `gorm:"column:loyalty_snapshot;type:jsonb;serializer:json"`

	ConfirmedAt            *time.Time `gorm:"column:confirmed_at"`
	ShippedAt              *time.Time `gorm:"column:shipped_at"`
	CancelledAt            *time.Time `gorm:"column:cancelled_at"`
	RefundedAt             *time.Time `gorm:"column:refunded_at"`
	PointsRedeemedAt       *time.Time `gorm:"column:points_redeemed_at"`
	PointsAppliedAt        *time.Time `gorm:"column:points_applied_at"`
	PointsRevertedAt       *time.Time `gorm:"column:points_reverted_at"`
	PointsRedeemRevertedAt *time.Time `gorm:"column:points_redeem_reverted_at"`

	Items       []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments    []OrderPayment    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Allocations []StockAllocation `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OutstandingCents is the remaining balance due on the order.
func (o *Order) OutstandingCents() int {
	remaining := o.TotalCents - o.PaidCents
	if remaining < 0 {
		return 0
	}
	return remaining
}
