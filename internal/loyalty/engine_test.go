package loyalty

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/internal/customers"
	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	"github.com/lehaiminh/chainpos-backend/pkg/types"
)

type stubCustomerRepo struct {
	balances map[uuid.UUID]int
	saved    *models.Customer
	credits  int
	debits   int
}

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{balances: map[uuid.UUID]int{}}
}

func (s *stubCustomerRepo) WithTx(tx *gorm.DB) customers.Repository { return s }

func (s *stubCustomerRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return nil, nil
}

func (s *stubCustomerRepo) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	return nil, nil
}

func (s *stubCustomerRepo) UpsertByPhone(ctx context.Context, phone, name string) (*models.Customer, error) {
	return nil, nil
}

func (s *stubCustomerRepo) Save(ctx context.Context, customer *models.Customer) error {
	s.saved = customer
	return nil
}

func (s *stubCustomerRepo) SaveLoyaltyState(ctx context.Context, customer *models.Customer) error {
	s.saved = customer
	return nil
}

func (s *stubCustomerRepo) CreditPoints(ctx context.Context, id uuid.UUID, points int) error {
	s.balances[id] += points
	s.credits++
	return nil
}

func (s *stubCustomerRepo) DebitPointsClamped(ctx context.Context, id uuid.UUID, points int) error {
	next := s.balances[id] - points
	if next < 0 {
		next = 0
	}
	s.balances[id] = next
	s.debits++
	return nil
}

func testTiers() []models.Tier {
	return []models.Tier{
		{Code: "BRONZE", Priority: 1, ThresholdCents: 0, EarnAmountPerPointCents: 10_000, EarnRounding: enums.RoundingModeFloor},
		{Code: "SILVER", Priority: 2, ThresholdCents: 500_000, EarnAmountPerPointCents: 8_000, EarnRounding: enums.RoundingModeFloor},
		{Code: "GOLD", Priority: 3, ThresholdCents: 2_000_000, EarnAmountPerPointCents: 5_000, EarnRounding: enums.RoundingModeFloor},
	}
}

func confirmedOrder(customerID uuid.UUID, totalCents int) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		Code:          "POS-20260901-0001",
		Status:        enums.OrderStatusConfirm,
		CustomerID:    &customerID,
		SubtotalCents: totalCents,
		TotalCents:    totalCents,
	}
}

func TestSettleEarnsPointsAndStampsMarker(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	customer := &models.Customer{ID: customerID, TierCode: "BRONZE"}
	order := confirmedOrder(customerID, 35_000)
	now := time.Now()

	outcome, err := eng.Settle(context.Background(), nil, order, customer, &models.LoyaltyPolicy{}, testTiers(), now)
	require.NoError(t, err)
	assert.Equal(t, SettleApplied, outcome)

	// 35,000 at 10,000 per point, floored.
	assert.Equal(t, 3, repo.balances[customerID])
	require.NotNil(t, order.LoyaltySnapshot)
	assert.Equal(t, 3, order.LoyaltySnapshot.EarnedPoints)
	assert.Equal(t, "BRONZE", order.LoyaltySnapshot.TierCode)
	assert.NotNil(t, order.PointsAppliedAt)

	assert.EqualValues(t, 35_000, customer.SpendAllCents)
	assert.EqualValues(t, 35_000, customer.TierSpendCents)
	assert.Equal(t, 1, customer.OrdersAll)
}

func TestSettleTwiceIsNoOp(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	customer := &models.Customer{ID: customerID, TierCode: "BRONZE"}
	order := confirmedOrder(customerID, 35_000)
	now := time.Now()

	_, err = eng.Settle(context.Background(), nil, order, customer, &models.LoyaltyPolicy{}, testTiers(), now)
	require.NoError(t, err)

	outcome, err := eng.Settle(context.Background(), nil, order, customer, &models.LoyaltyPolicy{}, testTiers(), now)
	require.NoError(t, err)
	assert.Equal(t, SettleSkipped, outcome)
	assert.Equal(t, 3, repo.balances[customerID])
	assert.Equal(t, 1, repo.credits)
}

func TestSettleUpgradesAndEarnsAtNewTierRate(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	customer := &models.Customer{ID: customerID, TierCode: "BRONZE", TierSpendCents: 480_000}
	order := confirmedOrder(customerID, 40_000)

	outcome, err := eng.Settle(context.Background(), nil, order, customer, &models.LoyaltyPolicy{}, testTiers(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, SettleApplied, outcome)

	// 520,000 progress crosses the SILVER threshold; earning uses the
	// post-upgrade rate of 8,000 per point.
	assert.Equal(t, "SILVER", customer.TierCode)
	assert.EqualValues(t, 520_000, customer.TierSpendCents)
	assert.Equal(t, 5, repo.balances[customerID])
	assert.Equal(t, "SILVER", order.LoyaltySnapshot.TierCode)
}

func TestSettleInactivityDowngradeResetsProgress(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	lastOrder := time.Now().AddDate(0, 0, -200)
	customer := &models.Customer{
		ID:             customerID,
		TierCode:       "GOLD",
		TierSpendCents: 2_100_000,
		LastOrderAt:    &lastOrder,
	}
	order := confirmedOrder(customerID, 10_000)
	policy := &models.LoyaltyPolicy{DowngradeAfterDays: 180, FloorTierCode: "BRONZE"}

	_, err = eng.Settle(context.Background(), nil, order, customer, policy, testTiers(), time.Now())
	require.NoError(t, err)

	// One 180-day window elapsed: GOLD drops one step to SILVER and the
	// progress counter restarts from this order alone.
	assert.Equal(t, "SILVER", customer.TierCode)
	assert.EqualValues(t, 10_000, customer.TierSpendCents)
}

func TestSettleLockedTierNeverMoves(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	lastOrder := time.Now().AddDate(0, 0, -400)
	customer := &models.Customer{
		ID:             customerID,
		TierCode:       "GOLD",
		TierLocked:     true,
		TierSpendCents: 0,
		LastOrderAt:    &lastOrder,
	}
	order := confirmedOrder(customerID, 10_000)
	policy := &models.LoyaltyPolicy{DowngradeAfterDays: 180, FloorTierCode: "BRONZE"}

	_, err = eng.Settle(context.Background(), nil, order, customer, policy, testTiers(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "GOLD", customer.TierCode)
}

func TestSettleRespectsMinOrderAmount(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	tiers := []models.Tier{
		{Code: "BRONZE", Priority: 1, EarnAmountPerPointCents: 10_000, EarnMinOrderCents: 50_000, EarnRounding: enums.RoundingModeFloor},
	}
	customerID := uuid.New()
	customer := &models.Customer{ID: customerID, TierCode: "BRONZE"}
	order := confirmedOrder(customerID, 35_000)

	_, err = eng.Settle(context.Background(), nil, order, customer, &models.LoyaltyPolicy{}, tiers, time.Now())
	require.NoError(t, err)
	assert.Zero(t, repo.balances[customerID])
	assert.Equal(t, 0, order.LoyaltySnapshot.EarnedPoints)
	assert.NotNil(t, order.PointsAppliedAt)
}

func TestSettleSubtotalBasis(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	customer := &models.Customer{ID: customerID, TierCode: "BRONZE"}
	order := confirmedOrder(customerID, 20_000)
	order.SubtotalCents = 40_000
	policy := &models.LoyaltyPolicy{EarnBasis: enums.EarnBasisSubtotal}

	_, err = eng.Settle(context.Background(), nil, order, customer, policy, testTiers(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, repo.balances[customerID])
	assert.Equal(t, 40_000, order.LoyaltySnapshot.BasisCents)
}

func TestRevertSubtractsSnapshotOnce(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	repo.balances[customerID] = 100
	now := time.Now()
	order := confirmedOrder(customerID, 0)
	order.PointsAppliedAt = &now
	order.LoyaltySnapshot = &types.LoyaltySnapshot{EarnedPoints: 40}

	outcome, err := eng.Revert(context.Background(), nil, order, now)
	require.NoError(t, err)
	assert.Equal(t, SettleApplied, outcome)
	assert.Equal(t, 60, repo.balances[customerID])
	assert.NotNil(t, order.PointsRevertedAt)

	outcome, err = eng.Revert(context.Background(), nil, order, now)
	require.NoError(t, err)
	assert.Equal(t, SettleSkipped, outcome)
	assert.Equal(t, 60, repo.balances[customerID])
	assert.Equal(t, 1, repo.debits)
}

func TestRevertClampsAtZero(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	repo.balances[customerID] = 10
	now := time.Now()
	order := confirmedOrder(customerID, 0)
	order.PointsAppliedAt = &now
	order.LoyaltySnapshot = &types.LoyaltySnapshot{EarnedPoints: 40}

	_, err = eng.Revert(context.Background(), nil, order, now)
	require.NoError(t, err)
	assert.Zero(t, repo.balances[customerID])
}

func TestDebitAndRefundRedeemAreIdempotent(t *testing.T) {
	repo := newStubCustomerRepo()
	eng, err := NewEngine(repo)
	require.NoError(t, err)

	customerID := uuid.New()
	repo.balances[customerID] = 50
	now := time.Now()
	order := confirmedOrder(customerID, 10_000)
	order.PointsRedeemed = 20

	require.NoError(t, eng.DebitRedeem(context.Background(), nil, order, now))
	require.NoError(t, eng.DebitRedeem(context.Background(), nil, order, now))
	assert.Equal(t, 30, repo.balances[customerID])
	assert.Equal(t, 1, repo.debits)

	require.NoError(t, eng.RefundRedeem(context.Background(), nil, order, now))
	require.NoError(t, eng.RefundRedeem(context.Background(), nil, order, now))
	assert.Equal(t, 50, repo.balances[customerID])
	assert.Equal(t, 1, repo.credits)
}
