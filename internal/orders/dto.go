package orders

import (
	"github.com/google/uuid"

	"github.com/lehaiminh/chainpos-backend/pkg/enums"
)

// ItemInput is a requested line: id and quantity only. Prices always come
// from the catalog reader.
type ItemInput struct {
	ItemID uuid.UUID
	Qty    int
}

// PaymentInput is one tendered payment as declared by the caller.
type PaymentInput struct {
	Method      enums.PaymentMethod
	AmountCents int
}

// CustomerInput identifies the buyer by phone; the record is upserted.
type CustomerInput struct {
	Phone string
	Name  string
}

// CreateInput carries everything needed to open an order.
type CreateInput struct {
	Channel        enums.OrderChannel
	Status         enums.OrderStatus
	BranchID       *uuid.UUID
	Customer       *CustomerInput
	DeliveryMethod enums.DeliveryMethod
	Items          []ItemInput
	Payments       []PaymentInput
	DiscountCents  int
	ExtraFeeCents  int
	RedeemPoints   int
	Note           *string
}

// ConfirmInput finalizes a pending order.
type ConfirmInput struct {
	Payments     []PaymentInput
	RedeemPoints int
}

// AppendPaymentInput adds payments to a debt order or an unpaid confirm order.
type AppendPaymentInput struct {
	Payments []PaymentInput
}

// ChangeStatusInput requests a ship/cancel/refund transition.
type ChangeStatusInput struct {
	Status enums.OrderStatus
	Note   *string
}

// ListInput filters the order listing.
type ListInput struct {
	Status   *enums.OrderStatus
	Channel  *enums.OrderChannel
	BranchID *uuid.UUID
	Limit    int
	Cursor   string
}

// ListChangesInput requests orders written after the given change-log version.
type ListChangesInput struct {
	SinceVersion int64
	Limit        int
}
