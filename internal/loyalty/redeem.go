package loyalty

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	"github.com/lehaiminh/chainpos-backend/pkg/enums"
)

// RedeemInput carries everything the calculator needs. InvoiceBaseCents is
// subtotal - discount + extraFee, before any redemption discount.
type RedeemInput struct {
	RequestedPoints  int
	BalancePoints    int
	InvoiceBaseCents int
}

// RedeemResult is the grantable redemption and its cash value.
type RedeemResult struct {
	Points    int
	CashCents int
}

// CalculateRedeem clamps the requested redemption by three independent caps:
// the customer's balance, the per-order point cap, and the max-percent-of-
// invoice cap. Zero caps mean unlimited. Always re-derived server-side; a
// client-submitted cash amount is never trusted.
func CalculateRedeem(policy *models.LoyaltyPolicy, in RedeemInput) RedeemResult {
	if policy == nil || !policy.RedeemEnabled || policy.CashPerPointCents <= 0 {
		return RedeemResult{}
	}
	if in.RequestedPoints <= 0 || in.BalancePoints <= 0 || in.InvoiceBaseCents <= 0 {
		return RedeemResult{}
	}

	granted := in.RequestedPoints
	if in.BalancePoints < granted {
		granted = in.BalancePoints
	}
	if policy.RedeemMaxPoints > 0 && policy.RedeemMaxPoints < granted {
		granted = policy.RedeemMaxPoints
	}
	if policy.RedeemMaxPercent > 0 && policy.RedeemMaxPercent < 100 {
		capCents := decimal.NewFromInt(int64(in.InvoiceBaseCents)).
			Mul(decimal.NewFromInt(int64(policy.RedeemMaxPercent))).
			Div(decimal.NewFromInt(100))
		capPoints := capCents.Div(decimal.NewFromInt(int64(policy.CashPerPointCents))).Floor().IntPart()
		if capPoints < math.MaxInt32 && int(capPoints) < granted {
			granted = int(capPoints)
		}
	}
	if granted <= 0 {
		return RedeemResult{}
	}

	cash := decimal.NewFromInt(int64(granted)).Mul(decimal.NewFromInt(int64(policy.CashPerPointCents)))
	var cashCents int64
	switch policy.RedeemRounding {
	case enums.RoundingModeNearest:
		cashCents = cash.Round(0).IntPart()
	default:
		cashCents = cash.Floor().IntPart()
	}
	if cashCents > int64(in.InvoiceBaseCents) {
		cashCents = int64(in.InvoiceBaseCents)
	}

	return RedeemResult{Points: granted, CashCents: int(cashCents)}
}
