package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/internal/catalog"
	"github.com/lehaiminh/chainpos-backend/internal/customers"
	"github.com/lehaiminh/chainpos-backend/internal/inventory"
	"github.com/lehaiminh/chainpos-backend/internal/loyalty"
	"github.com/lehaiminh/chainpos-backend/pkg/config"
	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
	"github.com/lehaiminh/chainpos-backend/pkg/metrics"
	"github.com/lehaiminh/chainpos-backend/pkg/types"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOrderRepo struct {
	orders   map[uuid.UUID]*models.Order
	branches map[uuid.UUID]*models.Branch
	main     *models.Branch
	version  int64

	// beforePaidCAS and beforeStatusCAS run just before the respective
	// compare-and-swap, letting a test interleave a competing writer.
	beforePaidCAS   func()
	beforeStatusCAS func()
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders:   map[uuid.UUID]*models.Order{},
		branches: map[uuid.UUID]*models.Branch{},
	}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *stubOrderRepo) Save(ctx context.Context, order *models.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderRepo) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, stampColumn string, now time.Time) (bool, error) {
	if s.beforeStatusCAS != nil {
		s.beforeStatusCAS()
	}
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (s *stubOrderRepo) UpdatePaidCAS(ctx context.Context, id uuid.UUID, fromPaidCents, toPaidCents int, now time.Time) (bool, error) {
	if s.beforePaidCAS != nil {
		s.beforePaidCAS()
	}
	order, ok := s.orders[id]
	if !ok || order.PaidCents != fromPaidCents {
		return false, nil
	}
	order.PaidCents = toPaidCents
	return true, nil
}

func (s *stubOrderRepo) AppendPayments(ctx context.Context, payments []models.OrderPayment) error {
	return nil
}

func (s *stubOrderRepo) NextChangeVersion(ctx context.Context) (int64, error) {
	s.version++
	return s.version, nil
}

func (s *stubOrderRepo) List(ctx context.Context, in ListInput) ([]models.Order, error) {
	out := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, *order)
	}
	return out, nil
}

func (s *stubOrderRepo) ListChangesSince(ctx context.Context, version int64, limit int) ([]models.Order, error) {
	out := []models.Order{}
	for _, order := range s.orders {
		if order.Version > version {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubOrderRepo) FindBranchByID(ctx context.Context, id uuid.UUID) (*models.Branch, error) {
	branch, ok := s.branches[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "branch not found")
	}
	return branch, nil
}

func (s *stubOrderRepo) FindMainBranch(ctx context.Context, code string) (*models.Branch, error) {
	if s.main == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "main branch not found")
	}
	return s.main, nil
}

type stubCatalog struct {
	items map[uuid.UUID]catalog.ItemSnapshot
}

func (s *stubCatalog) Snapshot(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.ItemSnapshot, error) {
	out := map[uuid.UUID]catalog.ItemSnapshot{}
	for _, id := range ids {
		snap, ok := s.items[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown catalog items")
		}
		out[id] = snap
	}
	return out, nil
}

type stubAllocator struct {
	stock         map[string]int
	allocations   map[uuid.UUID][]models.StockAllocation
	allocateCalls int
}

func newStubAllocator() *stubAllocator {
	return &stubAllocator{
		stock:       map[string]int{},
		allocations: map[uuid.UUID][]models.StockAllocation{},
	}
}

func stockKey(branchID, itemID uuid.UUID) string {
	return fmt.Sprintf("%s|%s", branchID, itemID)
}

func (s *stubAllocator) Allocate(ctx context.Context, tx *gorm.DB, orderID, branchID uuid.UUID, lines []inventory.Line) ([]models.StockAllocation, error) {
	s.allocateCalls++
	records := make([]models.StockAllocation, 0, len(lines))
	for _, line := range lines {
		s.stock[stockKey(branchID, line.ItemID)] -= line.Qty
		records = append(records, models.StockAllocation{
			ID:       uuid.New(),
			OrderID:  orderID,
			BranchID: branchID,
			ItemID:   line.ItemID,
			Qty:      line.Qty,
		})
	}
	s.allocations[orderID] = records
	return records, nil
}

func (s *stubAllocator) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error) {
	records := s.allocations[orderID]
	for _, record := range records {
		s.stock[stockKey(record.BranchID, record.ItemID)] += record.Qty
	}
	delete(s.allocations, orderID)
	return len(records), nil
}

type stubCustomerRepo struct {
	byID    map[uuid.UUID]*models.Customer
	byPhone map[string]*models.Customer
}

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{
		byID:    map[uuid.UUID]*models.Customer{},
		byPhone: map[string]*models.Customer{},
	}
}

func (s *stubCustomerRepo) add(customer *models.Customer) {
	s.byID[customer.ID] = customer
	s.byPhone[customer.Phone] = customer
}

func (s *stubCustomerRepo) WithTx(tx *gorm.DB) customers.Repository { return s }

func (s *stubCustomerRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, ok := s.byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return customer, nil
}

func (s *stubCustomerRepo) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	customer, ok := s.byPhone[phone]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return customer, nil
}

func (s *stubCustomerRepo) UpsertByPhone(ctx context.Context, phone, name string) (*models.Customer, error) {
	if customer, ok := s.byPhone[phone]; ok {
		return customer, nil
	}
	customer := &models.Customer{ID: uuid.New(), Phone: phone, Name: name}
	s.add(customer)
	return customer, nil
}

func (s *stubCustomerRepo) Save(ctx context.Context, customer *models.Customer) error {
	s.add(customer)
	return nil
}

func (s *stubCustomerRepo) SaveLoyaltyState(ctx context.Context, customer *models.Customer) error {
	return nil
}

func (s *stubCustomerRepo) CreditPoints(ctx context.Context, id uuid.UUID, points int) error {
	if customer, ok := s.byID[id]; ok {
		customer.PointsBalance += points
	}
	return nil
}

func (s *stubCustomerRepo) DebitPointsClamped(ctx context.Context, id uuid.UUID, points int) error {
	if customer, ok := s.byID[id]; ok {
		customer.PointsBalance -= points
		if customer.PointsBalance < 0 {
			customer.PointsBalance = 0
		}
	}
	return nil
}

type stubPolicyStore struct {
	policy *models.LoyaltyPolicy
	tiers  []models.Tier
}

func (s *stubPolicyStore) Policy(ctx context.Context) (*models.LoyaltyPolicy, error) {
	if s.policy == nil {
		return &models.LoyaltyPolicy{}, nil
	}
	return s.policy, nil
}

func (s *stubPolicyStore) Tiers(ctx context.Context) ([]models.Tier, error) {
	return s.tiers, nil
}

type stubCodeGenerator struct {
	seq int
}

func (s *stubCodeGenerator) NextCode(ctx context.Context, channel enums.OrderChannel, now time.Time) (string, error) {
	s.seq++
	return fmt.Sprintf("TEST-%04d", s.seq), nil
}

type fixture struct {
	service   Service
	repo      *stubOrderRepo
	catalog   *stubCatalog
	allocator *stubAllocator
	customers *stubCustomerRepo
	policies  *stubPolicyStore
	registry  *prometheus.Registry

	branch *models.Branch
	main   *models.Branch
	itemID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newStubOrderRepo()
	branch := &models.Branch{ID: uuid.New(), Code: "B1", Name: "Branch One"}
	main := &models.Branch{ID: uuid.New(), Code: "MAIN", Name: "Main", IsMain: true}
	repo.branches[branch.ID] = branch
	repo.branches[main.ID] = main
	repo.main = main

	itemID := uuid.New()
	cat := &stubCatalog{items: map[uuid.UUID]catalog.ItemSnapshot{
		itemID: {ID: itemID, SKU: "SKU-1", Name: "Widget", PriceCents: 15_000},
	}}

	allocator := newStubAllocator()
	custRepo := newStubCustomerRepo()
	engine, err := loyalty.NewEngine(custRepo)
	require.NoError(t, err)
	policies := &stubPolicyStore{}
	registry := prometheus.NewRegistry()

	svc, err := NewService(
		stubTxRunner{},
		repo,
		cat,
		allocator,
		custRepo,
		engine,
		policies,
		&stubCodeGenerator{},
		config.OrdersConfig{MainBranchCode: "MAIN", ChangesPageSize: 200},
		nil,
		metrics.NewOrderMetrics(registry),
	)
	require.NoError(t, err)

	return &fixture{
		service:   svc,
		repo:      repo,
		catalog:   cat,
		allocator: allocator,
		customers: custRepo,
		policies:  policies,
		registry:  registry,
		branch:    branch,
		main:      main,
		itemID:    itemID,
	}
}

func counterValue(t *testing.T, registry *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCreatePOSConfirmDebitsStockAndMatchesPayments(t *testing.T) {
	f := newFixture(t)
	f.allocator.stock[stockKey(f.branch.ID, f.itemID)] = 10

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusConfirm,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 30_000}},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusConfirm, order.Status)
	assert.Equal(t, 30_000, order.SubtotalCents)
	assert.Equal(t, 30_000, order.TotalCents)
	assert.Equal(t, 30_000, order.PaidCents)
	assert.NotNil(t, order.ConfirmedAt)
	assert.NotNil(t, order.PointsAppliedAt)
	assert.Equal(t, 8, f.allocator.stock[stockKey(f.branch.ID, f.itemID)])
	assert.Len(t, order.Allocations, 1)
}

func TestCreatePOSConfirmRejectsPaymentMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusConfirm,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 25_000}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreatePendingRejectsPayments(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusPending,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 1}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 100}},
	})
	require.Error(t, err)
}

func TestCreateRejectsDiscountAboveSubtotal(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), CreateInput{
		Channel:       enums.OrderChannelPOS,
		Status:        enums.OrderStatusPending,
		BranchID:      &f.branch.ID,
		Items:         []ItemInput{{ItemID: f.itemID, Qty: 1}},
		DiscountCents: 20_000,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreateRejectsRedeemOutsideConfirm(t *testing.T) {
	f := newFixture(t)

	for _, status := range []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusDebt} {
		_, err := f.service.Create(context.Background(), CreateInput{
			Channel:      enums.OrderChannelPOS,
			Status:       status,
			BranchID:     &f.branch.ID,
			Items:        []ItemInput{{ItemID: f.itemID, Qty: 1}},
			RedeemPoints: 10,
		})
		require.Error(t, err, status)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}
}

func TestCreateOnlineMustStartPending(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), CreateInput{
		Channel: enums.OrderChannelOnline,
		Status:  enums.OrderStatusConfirm,
		Items:   []ItemInput{{ItemID: f.itemID, Qty: 1}},
	})
	require.Error(t, err)
}

func TestDebtOrderDebitsStockWithoutSettling(t *testing.T) {
	f := newFixture(t)
	f.allocator.stock[stockKey(f.branch.ID, f.itemID)] = 10
	customer := &models.Customer{ID: uuid.New(), Phone: "0900000001", PointsBalance: 0}
	f.customers.add(customer)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusDebt,
		BranchID: &f.branch.ID,
		Customer: &CustomerInput{Phone: customer.Phone},
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 25_000}},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusDebt, order.Status)
	assert.Equal(t, 25_000, order.PaidCents)
	assert.Equal(t, 5_000, order.OutstandingCents())
	assert.Equal(t, 8, f.allocator.stock[stockKey(f.branch.ID, f.itemID)])
	assert.Nil(t, order.PointsAppliedAt)
	assert.Zero(t, customer.OrdersAll)
}

func TestAppendPaymentPromotesDebtToConfirm(t *testing.T) {
	f := newFixture(t)
	customer := &models.Customer{ID: uuid.New(), Phone: "0900000002"}
	f.customers.add(customer)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusDebt,
		BranchID: &f.branch.ID,
		Customer: &CustomerInput{Phone: customer.Phone},
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 25_000}},
	})
	require.NoError(t, err)

	promoted, err := f.service.AppendPayment(context.Background(), order.ID, AppendPaymentInput{
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 5_000}},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusConfirm, promoted.Status)
	assert.Equal(t, 30_000, promoted.PaidCents)
	assert.NotNil(t, promoted.ConfirmedAt)
	assert.NotNil(t, promoted.PointsAppliedAt)
	assert.Equal(t, 1, customer.OrdersAll)
}

func TestAppendPaymentRejectsOverpayment(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusDebt,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 25_000}},
	})
	require.NoError(t, err)

	_, err = f.service.AppendPayment(context.Background(), order.ID, AppendPaymentInput{
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 6_000}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestAppendPaymentConflictsWithConcurrentTender(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusDebt,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 20_000}},
	})
	require.NoError(t, err)

	// Another cashier's tender lands between this call's read and its write.
	f.repo.beforePaidCAS = func() {
		f.repo.beforePaidCAS = nil
		f.repo.orders[order.ID].PaidCents += 5_000
	}

	_, err = f.service.AppendPayment(context.Background(), order.ID, AppendPaymentInput{
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 10_000}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.Equal(t, 25_000, f.repo.orders[order.ID].PaidCents)
}

func TestConfirmOnlineDefaultsCODAndUsesMainBranch(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel: enums.OrderChannelOnline,
		Items:   []ItemInput{{ItemID: f.itemID, Qty: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Nil(t, order.BranchID)

	confirmed, err := f.service.Confirm(context.Background(), order.ID, ConfirmInput{})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusConfirm, confirmed.Status)
	require.NotNil(t, confirmed.BranchID)
	assert.Equal(t, f.main.ID, *confirmed.BranchID)
	require.Len(t, confirmed.Payments, 1)
	assert.Equal(t, enums.PaymentMethodCOD, confirmed.Payments[0].Method)
	assert.Equal(t, 45_000, confirmed.Payments[0].AmountCents)
	assert.Equal(t, -3, f.allocator.stock[stockKey(f.main.ID, f.itemID)])
}

func TestConfirmTwiceDoesNotDoubleAllocate(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel: enums.OrderChannelOnline,
		Items:   []ItemInput{{ItemID: f.itemID, Qty: 1}},
	})
	require.NoError(t, err)

	first, err := f.service.Confirm(context.Background(), order.ID, ConfirmInput{})
	require.NoError(t, err)
	second, err := f.service.Confirm(context.Background(), order.ID, ConfirmInput{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, enums.OrderStatusConfirm, second.Status)
	assert.Equal(t, 1, f.allocator.allocateCalls)
	assert.Equal(t, -1, f.allocator.stock[stockKey(f.main.ID, f.itemID)])
}

func TestConfirmOnlineZeroTotalNeedsNoPayment(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:       enums.OrderChannelOnline,
		Items:         []ItemInput{{ItemID: f.itemID, Qty: 2}},
		DiscountCents: 30_000,
	})
	require.NoError(t, err)

	confirmed, err := f.service.Confirm(context.Background(), order.ID, ConfirmInput{})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusConfirm, confirmed.Status)
	assert.Zero(t, confirmed.TotalCents)
	assert.Zero(t, confirmed.PaidCents)
	assert.Empty(t, confirmed.Payments)
	assert.Equal(t, -2, f.allocator.stock[stockKey(f.main.ID, f.itemID)])
}

func TestConfirmRedeemCoveringFullInvoiceNeedsNoPayment(t *testing.T) {
	f := newFixture(t)
	customer := &models.Customer{ID: uuid.New(), Phone: "0900000006", PointsBalance: 30}
	f.customers.add(customer)
	f.policies.policy = &models.LoyaltyPolicy{
		RedeemEnabled:     true,
		CashPerPointCents: 1_000,
	}

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelOnline,
		Customer: &CustomerInput{Phone: customer.Phone},
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
	})
	require.NoError(t, err)

	confirmed, err := f.service.Confirm(context.Background(), order.ID, ConfirmInput{RedeemPoints: 30})
	require.NoError(t, err)

	assert.Equal(t, 30, confirmed.PointsRedeemed)
	assert.Equal(t, 30_000, confirmed.PointsRedeemCents)
	assert.Zero(t, confirmed.TotalCents)
	assert.Empty(t, confirmed.Payments)
	assert.Zero(t, customer.PointsBalance)
}

func TestConfirmResolvesRedeemAgainstCurrentBalance(t *testing.T) {
	f := newFixture(t)
	customer := &models.Customer{ID: uuid.New(), Phone: "0900000003", PointsBalance: 100}
	f.customers.add(customer)
	f.policies.policy = &models.LoyaltyPolicy{
		RedeemEnabled:     true,
		CashPerPointCents: 1_000,
		RedeemMaxPercent:  50,
	}

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelOnline,
		Customer: &CustomerInput{Phone: customer.Phone},
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
	})
	require.NoError(t, err)

	confirmed, err := f.service.Confirm(context.Background(), order.ID, ConfirmInput{RedeemPoints: 60})
	require.NoError(t, err)

	// invoice base 30,000 at 50% caps the redemption at 15 points.
	assert.Equal(t, 15, confirmed.PointsRedeemed)
	assert.Equal(t, 15_000, confirmed.PointsRedeemCents)
	assert.Equal(t, 15_000, confirmed.TotalCents)
	assert.NotNil(t, confirmed.PointsRedeemedAt)
	assert.Equal(t, 85, customer.PointsBalance)
}

func TestConfirmLosingTheRaceCountsNoTransition(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel: enums.OrderChannelOnline,
		Items:   []ItemInput{{ItemID: f.itemID, Qty: 1}},
	})
	require.NoError(t, err)

	// A competing confirm commits between this call's read and its swap.
	f.repo.beforeStatusCAS = func() {
		f.repo.beforeStatusCAS = nil
		f.repo.orders[order.ID].Status = enums.OrderStatusConfirm
	}

	confirmed, err := f.service.Confirm(context.Background(), order.ID, ConfirmInput{})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirm, confirmed.Status)
	assert.Zero(t, f.allocator.allocateCalls)
	assert.Zero(t, counterValue(t, f.registry, "order_transitions_total", "CONFIRM"))

	other, err := f.service.Create(context.Background(), CreateInput{
		Channel: enums.OrderChannelOnline,
		Items:   []ItemInput{{ItemID: f.itemID, Qty: 1}},
	})
	require.NoError(t, err)
	_, err = f.service.Confirm(context.Background(), other.ID, ConfirmInput{})
	require.NoError(t, err)
	assert.Equal(t, float64(1), counterValue(t, f.registry, "order_transitions_total", "CONFIRM"))
}

func TestConfirmRejectsNonPending(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusDebt,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 1}},
	})
	require.NoError(t, err)

	_, err = f.service.Confirm(context.Background(), order.ID, ConfirmInput{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCancelReleasesStockAndRevertsPoints(t *testing.T) {
	f := newFixture(t)
	f.allocator.stock[stockKey(f.branch.ID, f.itemID)] = 10
	customer := &models.Customer{ID: uuid.New(), Phone: "0900000004", PointsBalance: 0}
	f.customers.add(customer)
	f.policies.tiers = []models.Tier{
		{Code: "BASE", Priority: 1, EarnAmountPerPointCents: 750, EarnRounding: enums.RoundingModeFloor},
	}

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusConfirm,
		BranchID: &f.branch.ID,
		Customer: &CustomerInput{Phone: customer.Phone},
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 30_000}},
	})
	require.NoError(t, err)

	// 30,000 at 750 per point.
	require.NotNil(t, order.LoyaltySnapshot)
	assert.Equal(t, 40, order.LoyaltySnapshot.EarnedPoints)
	assert.Equal(t, 40, customer.PointsBalance)
	assert.Equal(t, 8, f.allocator.stock[stockKey(f.branch.ID, f.itemID)])

	cancelled, err := f.service.ChangeStatus(context.Background(), order.ID, ChangeStatusInput{Status: enums.OrderStatusCancelled})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.NotNil(t, cancelled.PointsRevertedAt)
	assert.Zero(t, customer.PointsBalance)
	assert.Equal(t, 10, f.allocator.stock[stockKey(f.branch.ID, f.itemID)])
	assert.Empty(t, cancelled.Allocations)

	// A second cancel is a no-op that does not subtract again.
	customer.PointsBalance = 25
	again, err := f.service.ChangeStatus(context.Background(), order.ID, ChangeStatusInput{Status: enums.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, again.Status)
	assert.Equal(t, 25, customer.PointsBalance)
}

func TestShipStampsTimestampOnly(t *testing.T) {
	f := newFixture(t)
	f.allocator.stock[stockKey(f.branch.ID, f.itemID)] = 10

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusConfirm,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 30_000}},
	})
	require.NoError(t, err)

	shipped, err := f.service.ChangeStatus(context.Background(), order.ID, ChangeStatusInput{Status: enums.OrderStatusShipped})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusShipped, shipped.Status)
	assert.NotNil(t, shipped.ShippedAt)
	assert.Equal(t, 8, f.allocator.stock[stockKey(f.branch.ID, f.itemID)])
	assert.Len(t, shipped.Allocations, 1)
}

func TestRefundAfterShipReleasesStock(t *testing.T) {
	f := newFixture(t)
	f.allocator.stock[stockKey(f.branch.ID, f.itemID)] = 10

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusConfirm,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 30_000}},
	})
	require.NoError(t, err)

	_, err = f.service.ChangeStatus(context.Background(), order.ID, ChangeStatusInput{Status: enums.OrderStatusShipped})
	require.NoError(t, err)
	refunded, err := f.service.ChangeStatus(context.Background(), order.ID, ChangeStatusInput{Status: enums.OrderStatusRefunded})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, 10, f.allocator.stock[stockKey(f.branch.ID, f.itemID)])
}

func TestChangeStatusTransitionMatrix(t *testing.T) {
	cases := []struct {
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{enums.OrderStatusPending, enums.OrderStatusRefunded, false},
		{enums.OrderStatusDebt, enums.OrderStatusCancelled, true},
		{enums.OrderStatusDebt, enums.OrderStatusShipped, false},
		{enums.OrderStatusConfirm, enums.OrderStatusShipped, true},
		{enums.OrderStatusConfirm, enums.OrderStatusCancelled, true},
		{enums.OrderStatusConfirm, enums.OrderStatusRefunded, false},
		{enums.OrderStatusShipped, enums.OrderStatusRefunded, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, transitionAllowed(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestChangeStatusFromTerminalRejected(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusPending,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 1}},
	})
	require.NoError(t, err)

	_, err = f.service.ChangeStatus(context.Background(), order.ID, ChangeStatusInput{Status: enums.OrderStatusCancelled})
	require.NoError(t, err)

	_, err = f.service.ChangeStatus(context.Background(), order.ID, ChangeStatusInput{Status: enums.OrderStatusShipped})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestConfirmStatusPatchNeverAllowed(t *testing.T) {
	f := newFixture(t)

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusPending,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 1}},
	})
	require.NoError(t, err)

	_, err = f.service.ChangeStatus(context.Background(), order.ID, ChangeStatusInput{Status: enums.OrderStatusConfirm})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestVersionIncreasesOnEveryWrite(t *testing.T) {
	f := newFixture(t)

	first, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusPending,
		BranchID: &f.branch.ID,
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 1}},
	})
	require.NoError(t, err)

	cancelled, err := f.service.ChangeStatus(context.Background(), first.ID, ChangeStatusInput{Status: enums.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Greater(t, cancelled.Version, int64(0))

	rows, latest, err := f.service.ListChanges(context.Background(), ListChangesInput{SinceVersion: 0})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, cancelled.Version, latest)
}

func TestLoyaltySnapshotFrozenAtConfirm(t *testing.T) {
	f := newFixture(t)
	customer := &models.Customer{ID: uuid.New(), Phone: "0900000005"}
	f.customers.add(customer)
	f.policies.tiers = []models.Tier{
		{Code: "BASE", Priority: 1, EarnAmountPerPointCents: 10_000, EarnRounding: enums.RoundingModeFloor},
	}

	order, err := f.service.Create(context.Background(), CreateInput{
		Channel:  enums.OrderChannelPOS,
		Status:   enums.OrderStatusConfirm,
		BranchID: &f.branch.ID,
		Customer: &CustomerInput{Phone: customer.Phone},
		Items:    []ItemInput{{ItemID: f.itemID, Qty: 2}},
		Payments: []PaymentInput{{Method: enums.PaymentMethodCash, AmountCents: 30_000}},
	})
	require.NoError(t, err)

	require.NotNil(t, order.LoyaltySnapshot)
	want := &types.LoyaltySnapshot{
		EarnedPoints:        3,
		TierCode:            "BASE",
		AmountPerPointCents: 10_000,
		BasisCents:          30_000,
	}
	assert.Equal(t, want, order.LoyaltySnapshot)
}
