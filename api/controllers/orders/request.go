package orders

import (
	"github.com/google/uuid"

	internalorders "github.com/lehaiminh/chainpos-backend/internal/orders"
	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
)

type customerRequest struct {
	Phone string `json:"phone" validate:"required"`
	Name  string `json:"name"`
}

type itemRequest struct {
	ItemID uuid.UUID `json:"item_id" validate:"required"`
	Qty    int       `json:"qty" validate:"required,gt=0"`
}

type paymentRequest struct {
	Method      string `json:"method" validate:"required"`
	AmountCents int    `json:"amount_cents" validate:"required,gt=0"`
}

type createOrderRequest struct {
	Channel        string           `json:"channel" validate:"required"`
	Status         string           `json:"status" validate:"omitempty,oneof=PENDING CONFIRM DEBT"`
	BranchID       *uuid.UUID       `json:"branch_id"`
	Customer       *customerRequest `json:"customer"`
	DeliveryMethod string           `json:"delivery_method"`
	Items          []itemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments       []paymentRequest `json:"payments" validate:"omitempty,dive"`
	DiscountCents  int              `json:"discount_cents" validate:"min=0"`
	ExtraFeeCents  int              `json:"extra_fee_cents" validate:"min=0"`
	RedeemPoints   int              `json:"redeem_points" validate:"min=0"`
	Note           *string          `json:"note"`
}

type confirmOrderRequest struct {
	Payments     []paymentRequest `json:"payments" validate:"omitempty,dive"`
	RedeemPoints int              `json:"redeem_points" validate:"min=0"`
}

type appendPaymentsRequest struct {
	Payments []paymentRequest `json:"payments" validate:"required,min=1,dive"`
}

type changeStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note"`
}

func (req createOrderRequest) toInput() (internalorders.CreateInput, error) {
	channel, err := enums.ParseOrderChannel(req.Channel)
	if err != nil {
		return internalorders.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel")
	}

	status := enums.OrderStatusPending
	if req.Status != "" {
		status, err = enums.ParseOrderStatus(req.Status)
		if err != nil {
			return internalorders.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
	}

	var delivery enums.DeliveryMethod
	if req.DeliveryMethod != "" {
		delivery, err = enums.ParseDeliveryMethod(req.DeliveryMethod)
		if err != nil {
			return internalorders.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery method")
		}
	}

	payments, err := toPaymentInputs(req.Payments)
	if err != nil {
		return internalorders.CreateInput{}, err
	}

	in := internalorders.CreateInput{
		Channel:        channel,
		Status:         status,
		BranchID:       req.BranchID,
		DeliveryMethod: delivery,
		Payments:       payments,
		DiscountCents:  req.DiscountCents,
		ExtraFeeCents:  req.ExtraFeeCents,
		RedeemPoints:   req.RedeemPoints,
		Note:           req.Note,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, internalorders.ItemInput{ItemID: item.ItemID, Qty: item.Qty})
	}
	if req.Customer != nil {
		in.Customer = &internalorders.CustomerInput{Phone: req.Customer.Phone, Name: req.Customer.Name}
	}
	return in, nil
}

func toPaymentInputs(reqs []paymentRequest) ([]internalorders.PaymentInput, error) {
	out := make([]internalorders.PaymentInput, 0, len(reqs))
	for _, p := range reqs {
		method, err := enums.ParsePaymentMethod(p.Method)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
		}
		out = append(out, internalorders.PaymentInput{Method: method, AmountCents: p.AmountCents})
	}
	return out, nil
}
