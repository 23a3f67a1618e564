package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lehaiminh/chainpos-backend/pkg/enums"
)

// OrderPayment records one tendered payment against an order.
type OrderPayment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Method      enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	AmountCents int                 `gorm:"column:amount_cents;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}
