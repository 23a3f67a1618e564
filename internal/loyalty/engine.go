package loyalty

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/internal/customers"
	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
	"github.com/lehaiminh/chainpos-backend/pkg/types"
)

// SettleOutcome reports what a settlement call did.
type SettleOutcome string

const (
	SettleApplied SettleOutcome = "applied"
	SettleSkipped SettleOutcome = "skipped"
)

// Engine runs loyalty settlement and its reversals. Every entry point is
// guarded by a marker on the order, so a retried call is a successful no-op.
// Policy and tiers arrive as explicit parameters rather than ambient lookups.
type Engine interface {
	Settle(ctx context.Context, tx *gorm.DB, order *models.Order, customer *models.Customer, policy *models.LoyaltyPolicy, tiers []models.Tier, now time.Time) (SettleOutcome, error)
	Revert(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) (SettleOutcome, error)
	DebitRedeem(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error
	RefundRedeem(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error
}

type engine struct {
	customers customers.Repository
}

// NewEngine builds the settlement engine.
func NewEngine(customerRepo customers.Repository) (Engine, error) {
	if customerRepo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &engine{customers: customerRepo}, nil
}

// Settle mutates the customer's tier/spend state and credits earned points,
// once per order. Steps run in a fixed order: inactivity downgrade, spend
// accrual, upgrade evaluation, point earning. Tier-progress spend resets on
// downgrade only, never on upgrade.
func (e *engine) Settle(ctx context.Context, tx *gorm.DB, order *models.Order, customer *models.Customer, policy *models.LoyaltyPolicy, tiers []models.Tier, now time.Time) (SettleOutcome, error) {
	if order == nil {
		return SettleSkipped, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.PointsAppliedAt != nil {
		return SettleSkipped, nil
	}
	if customer == nil {
		// Anonymous sale. Stamp the marker so retries stay cheap.
		order.PointsAppliedAt = &now
		return SettleSkipped, nil
	}
	if policy == nil {
		policy = &models.LoyaltyPolicy{}
	}

	sorted := make([]models.Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	applyInactivityDowngrade(customer, policy, sorted, now)

	customer.SpendAllCents += int64(order.TotalCents)
	customer.TierSpendCents += int64(order.TotalCents)
	customer.OrdersAll++
	lastOrder := now
	customer.LastOrderAt = &lastOrder

	applyUpgrade(customer, sorted, now)

	current := tierByCode(sorted, customer.TierCode)
	earned := earnedPoints(order, policy, current)

	repo := e.customers.WithTx(tx)
	if err := repo.SaveLoyaltyState(ctx, customer); err != nil {
		return SettleSkipped, err
	}
	if earned > 0 {
		if err := repo.CreditPoints(ctx, customer.ID, earned); err != nil {
			return SettleSkipped, err
		}
		customer.PointsBalance += earned
	}

	snapshot := &types.LoyaltySnapshot{
		EarnedPoints: earned,
		TierCode:     customer.TierCode,
	}
	if current != nil {
		snapshot.AmountPerPointCents = current.EarnAmountPerPointCents
	}
	snapshot.BasisCents = earnBasis(order, policy)
	order.LoyaltySnapshot = snapshot
	order.PointsAppliedAt = &now

	return SettleApplied, nil
}

// Revert subtracts the snapshotted earned points, clamped at zero. Tier
// changes and spend accrual are one-way: cancelling an order does not undo
// an upgrade it triggered.
func (e *engine) Revert(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) (SettleOutcome, error) {
	if order == nil {
		return SettleSkipped, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.PointsRevertedAt != nil || order.PointsAppliedAt == nil {
		return SettleSkipped, nil
	}

	earned := 0
	if order.LoyaltySnapshot != nil {
		earned = order.LoyaltySnapshot.EarnedPoints
	}
	if earned > 0 && order.CustomerID != nil {
		if err := e.customers.WithTx(tx).DebitPointsClamped(ctx, *order.CustomerID, earned); err != nil {
			return SettleSkipped, err
		}
	}
	order.PointsRevertedAt = &now
	return SettleApplied, nil
}

// DebitRedeem takes the redeemed points off the customer's balance once.
func (e *engine) DebitRedeem(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.PointsRedeemedAt != nil || order.PointsRedeemed <= 0 {
		return nil
	}
	if order.CustomerID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "redemption requires a customer")
	}
	if err := e.customers.WithTx(tx).DebitPointsClamped(ctx, *order.CustomerID, order.PointsRedeemed); err != nil {
		return err
	}
	order.PointsRedeemedAt = &now
	return nil
}

// RefundRedeem credits redeemed points back after a cancel/refund, once, and
// only if the debit actually happened.
func (e *engine) RefundRedeem(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.PointsRedeemRevertedAt != nil || order.PointsRedeemedAt == nil || order.PointsRedeemed <= 0 {
		return nil
	}
	if order.CustomerID == nil {
		return nil
	}
	if err := e.customers.WithTx(tx).CreditPoints(ctx, *order.CustomerID, order.PointsRedeemed); err != nil {
		return err
	}
	order.PointsRedeemRevertedAt = &now
	return nil
}

func applyInactivityDowngrade(customer *models.Customer, policy *models.LoyaltyPolicy, tiers []models.Tier, now time.Time) {
	if customer.TierLocked || customer.TierPermanent {
		return
	}
	if policy.DowngradeAfterDays <= 0 || customer.LastOrderAt == nil || len(tiers) == 0 {
		return
	}

	days := int(now.Sub(*customer.LastOrderAt).Hours() / 24)
	steps := days / policy.DowngradeAfterDays
	if steps <= 0 {
		return
	}

	idx := tierIndex(tiers, customer.TierCode)
	if idx < 0 {
		idx = 0
	}

	floor := 0
	if policy.FloorTierCode != "" {
		if f := tierIndex(tiers, policy.FloorTierCode); f >= 0 {
			floor = f
		}
	}

	target := idx - steps
	if target < floor {
		target = floor
	}
	if target >= idx {
		return
	}

	customer.TierCode = tiers[target].Code
	starts := now
	customer.TierStartsAt = &starts
	customer.TierSpendCents = 0
	reset := now
	customer.TierSpendResetAt = &reset
}

func applyUpgrade(customer *models.Customer, tiers []models.Tier, now time.Time) {
	if customer.TierLocked || customer.TierPermanent || len(tiers) == 0 {
		return
	}

	currentPriority := -1
	if current := tierByCode(tiers, customer.TierCode); current != nil {
		currentPriority = current.Priority
	}

	var best *models.Tier
	for i := range tiers {
		if tiers[i].ThresholdCents <= customer.TierSpendCents {
			best = &tiers[i]
		}
	}
	if best == nil || best.Priority <= currentPriority {
		return
	}

	customer.TierCode = best.Code
	starts := now
	customer.TierStartsAt = &starts
}

func earnBasis(order *models.Order, policy *models.LoyaltyPolicy) int {
	if policy.EarnBasis == enums.EarnBasisSubtotal {
		return order.SubtotalCents
	}
	return order.TotalCents
}

func earnedPoints(order *models.Order, policy *models.LoyaltyPolicy, tier *models.Tier) int {
	if tier == nil || tier.EarnAmountPerPointCents <= 0 {
		return 0
	}
	basis := earnBasis(order, policy)
	if basis < tier.EarnMinOrderCents {
		return 0
	}
	return int(divideRound(int64(basis), int64(tier.EarnAmountPerPointCents), tier.EarnRounding))
}

func tierIndex(tiers []models.Tier, code string) int {
	for i := range tiers {
		if tiers[i].Code == code {
			return i
		}
	}
	return -1
}

func tierByCode(tiers []models.Tier, code string) *models.Tier {
	if i := tierIndex(tiers, code); i >= 0 {
		return &tiers[i]
	}
	return nil
}
