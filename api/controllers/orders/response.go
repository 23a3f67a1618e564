package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	"github.com/lehaiminh/chainpos-backend/pkg/types"
)

type orderItemResponse struct {
	ItemID         uuid.UUID `json:"item_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

type orderPaymentResponse struct {
	Method      string `json:"method"`
	AmountCents int    `json:"amount_cents"`
}

type allocationResponse struct {
	BranchID uuid.UUID `json:"branch_id"`
	ItemID   uuid.UUID `json:"item_id"`
	Qty      int       `json:"qty"`
}

type orderResponse struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	Channel        string     `json:"channel"`
	Status         string     `json:"status"`
	BranchID       *uuid.UUID `json:"branch_id,omitempty"`
	CustomerID     *uuid.UUID `json:"customer_id,omitempty"`
	DeliveryMethod string     `json:"delivery_method"`

	SubtotalCents     int `json:"subtotal_cents"`
	DiscountCents     int `json:"discount_cents"`
	ExtraFeeCents     int `json:"extra_fee_cents"`
	PointsRedeemed    int `json:"points_redeemed"`
	PointsRedeemCents int `json:"points_redeem_cents"`
	TotalCents        int `json:"total_cents"`
	PaidCents         int `json:"paid_cents"`
	OutstandingCents  int `json:"outstanding_cents"`

	Note    *string `json:"note,omitempty"`
	Version int64   `json:"version"`

	LoyaltySnapshot *types.LoyaltySnapshot `json:"loyalty_snapshot,omitempty"`

	Items       []orderItemResponse    `json:"items"`
	Payments    []orderPaymentResponse `json:"payments"`
	Allocations []allocationResponse   `json:"allocations,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type listResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type changesResponse struct {
	Orders        []orderResponse `json:"orders"`
	LatestVersion int64           `json:"latest_version"`
}

func toOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:                order.ID,
		Code:              order.Code,
		Channel:           order.Channel.String(),
		Status:            order.Status.String(),
		BranchID:          order.BranchID,
		CustomerID:        order.CustomerID,
		DeliveryMethod:    order.DeliveryMethod.String(),
		SubtotalCents:     order.SubtotalCents,
		DiscountCents:     order.DiscountCents,
		ExtraFeeCents:     order.ExtraFeeCents,
		PointsRedeemed:    order.PointsRedeemed,
		PointsRedeemCents: order.PointsRedeemCents,
		TotalCents:        order.TotalCents,
		PaidCents:         order.PaidCents,
		OutstandingCents:  order.OutstandingCents(),
		Note:              order.Note,
		Version:           order.Version,
		LoyaltySnapshot:   order.LoyaltySnapshot,
		ConfirmedAt:       order.ConfirmedAt,
		ShippedAt:         order.ShippedAt,
		CancelledAt:       order.CancelledAt,
		RefundedAt:        order.RefundedAt,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}

	resp.Items = make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ItemID:         item.ItemID,
			SKU:            item.SKU,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	resp.Payments = make([]orderPaymentResponse, 0, len(order.Payments))
	for _, payment := range order.Payments {
		resp.Payments = append(resp.Payments, orderPaymentResponse{
			Method:      payment.Method.String(),
			AmountCents: payment.AmountCents,
		})
	}
	for _, alloc := range order.Allocations {
		resp.Allocations = append(resp.Allocations, allocationResponse{
			BranchID: alloc.BranchID,
			ItemID:   alloc.ItemID,
			Qty:      alloc.Qty,
		})
	}
	return resp
}

func toOrderResponses(rows []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toOrderResponse(&rows[i]))
	}
	return out
}
