package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/internal/catalog"
	"github.com/lehaiminh/chainpos-backend/internal/customers"
	"github.com/lehaiminh/chainpos-backend/internal/inventory"
	"github.com/lehaiminh/chainpos-backend/internal/loyalty"
	"github.com/lehaiminh/chainpos-backend/internal/payments"
	"github.com/lehaiminh/chainpos-backend/pkg/config"
	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
	"github.com/lehaiminh/chainpos-backend/pkg/logger"
	"github.com/lehaiminh/chainpos-backend/pkg/metrics"
	"github.com/lehaiminh/chainpos-backend/pkg/pagination"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the order state machine. It validates preconditions, calls the
// collaborators in a fixed order, and persists the order together with its
// side-effect markers. Every operation is safe to retry.
type Service interface {
	Create(ctx context.Context, in CreateInput) (*models.Order, error)
	Confirm(ctx context.Context, orderID uuid.UUID, in ConfirmInput) (*models.Order, error)
	AppendPayment(ctx context.Context, orderID uuid.UUID, in AppendPaymentInput) (*models.Order, error)
	ChangeStatus(ctx context.Context, orderID uuid.UUID, in ChangeStatusInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, in ListInput) ([]models.Order, string, error)
	ListChanges(ctx context.Context, in ListChangesInput) ([]models.Order, int64, error)
}

type service struct {
	tx        TxRunner
	repo      Repository
	catalog   catalog.Reader
	allocator inventory.Allocator
	customers customers.Repository
	engine    loyalty.Engine
	policies  loyalty.PolicyStore
	codes     CodeGenerator
	cfg       config.OrdersConfig
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics
}

// NewService wires the order state machine.
func NewService(
	tx TxRunner,
	repo Repository,
	catalogReader catalog.Reader,
	allocator inventory.Allocator,
	customerRepo customers.Repository,
	engine loyalty.Engine,
	policies loyalty.PolicyStore,
	codes CodeGenerator,
	cfg config.OrdersConfig,
	logg *logger.Logger,
	orderMetrics *metrics.OrderMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogReader == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if allocator == nil {
		return nil, fmt.Errorf("stock allocator required")
	}
	if customerRepo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("loyalty engine required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy store required")
	}
	if codes == nil {
		return nil, fmt.Errorf("code generator required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		catalog:   catalogReader,
		allocator: allocator,
		customers: customerRepo,
		engine:    engine,
		policies:  policies,
		codes:     codes,
		cfg:       cfg,
		logg:      logg,
		metrics:   orderMetrics,
	}, nil
}

var legalTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {enums.OrderStatusCancelled},
	enums.OrderStatusDebt:    {enums.OrderStatusCancelled},
	enums.OrderStatusConfirm: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped: {enums.OrderStatusRefunded},
}

func transitionAllowed(from, to enums.OrderStatus) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func (s *service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	now := time.Now().UTC()

	requested := in.Status
	if requested == "" {
		requested = enums.OrderStatusPending
	}
	if err := validateCreateInput(in, requested); err != nil {
		return nil, err
	}

	itemIDs := make([]uuid.UUID, 0, len(in.Items))
	for _, item := range in.Items {
		itemIDs = append(itemIDs, item.ItemID)
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		custRepo := s.customers.WithTx(tx)

		if in.Channel == enums.OrderChannelPOS {
			if _, err := repo.FindBranchByID(ctx, *in.BranchID); err != nil {
				return err
			}
		}

		snapshots, err := s.catalog.Snapshot(ctx, itemIDs)
		if err != nil {
			return err
		}

		orderID := uuid.New()
		items, subtotal := buildItems(orderID, in.Items, snapshots)

		if in.DiscountCents > subtotal {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal").
				WithDetails(map[string]any{"discount_cents": in.DiscountCents, "subtotal_cents": subtotal})
		}

		var customer *models.Customer
		if in.Customer != nil && in.Customer.Phone != "" {
			customer, err = custRepo.UpsertByPhone(ctx, in.Customer.Phone, in.Customer.Name)
			if err != nil {
				return err
			}
		}

		var policy *models.LoyaltyPolicy
		var tiers []models.Tier
		if requested == enums.OrderStatusConfirm {
			policy, err = s.policies.Policy(ctx)
			if err != nil {
				return err
			}
			tiers, err = s.policies.Tiers(ctx)
			if err != nil {
				return err
			}
		}

		redeemPoints, redeemCents := 0, 0
		if in.RedeemPoints > 0 {
			if customer == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "redemption requires a customer")
			}
			granted := loyalty.CalculateRedeem(policy, loyalty.RedeemInput{
				RequestedPoints:  in.RedeemPoints,
				BalancePoints:    customer.PointsBalance,
				InvoiceBaseCents: subtotal - in.DiscountCents + in.ExtraFeeCents,
			})
			redeemPoints, redeemCents = granted.Points, granted.CashCents
		}

		total := subtotal - in.DiscountCents - redeemCents + in.ExtraFeeCents
		if total < 0 {
			total = 0
		}

		declared := toReconcilerPayments(in.Payments)
		normalized, err := payments.Reconcile(declared, total, reconcileModeFor(requested))
		if err != nil {
			return err
		}

		code, err := s.codes.NextCode(ctx, in.Channel, now)
		if err != nil {
			return err
		}

		order := &models.Order{
			ID:                orderID,
			Code:              code,
			Channel:           in.Channel,
			Status:            requested,
			BranchID:          in.BranchID,
			DeliveryMethod:    deliveryOrDefault(in.DeliveryMethod, in.Channel),
			SubtotalCents:     subtotal,
			DiscountCents:     in.DiscountCents,
			ExtraFeeCents:     in.ExtraFeeCents,
			PointsRedeemed:    redeemPoints,
			PointsRedeemCents: redeemCents,
			TotalCents:        total,
			PaidCents:         payments.Sum(normalized),
			Note:              in.Note,
			Items:             items,
			Payments:          toPaymentRows(orderID, normalized),
		}
		if customer != nil {
			order.CustomerID = &customer.ID
		}
		if requested == enums.OrderStatusConfirm {
			order.ConfirmedAt = &now
		}

		order.Version, err = repo.NextChangeVersion(ctx)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, order); err != nil {
			return err
		}

		// Goods leave the shelf on CONFIRM and on DEBT alike.
		if requested == enums.OrderStatusConfirm || requested == enums.OrderStatusDebt {
			allocations, err := s.allocator.Allocate(ctx, tx, order.ID, *in.BranchID, toAllocationLines(items))
			if err != nil {
				return err
			}
			order.Allocations = allocations
		}

		if requested == enums.OrderStatusConfirm {
			if err := s.engine.DebitRedeem(ctx, tx, order, now); err != nil {
				return err
			}
			outcome, err := s.engine.Settle(ctx, tx, order, customer, policy, tiers, now)
			if err != nil {
				return err
			}
			s.metrics.IncSettlement(string(outcome))
			if err := repo.Save(ctx, order); err != nil {
				return err
			}
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(created.Status.String())
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderCode(ctx, created.Code), "order created")
	}
	return created, nil
}

// Confirm moves a pending order to CONFIRM. All preconditions are checked
// before any mutation; the status flip is a compare-and-swap so a concurrent
// retry cannot allocate stock or settle loyalty twice.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, in ConfirmInput) (*models.Order, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveConfirmDuration(time.Since(started)) }()

	now := time.Now().UTC()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusConfirm {
		return order, nil
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be confirmed").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	var result *models.Order
	flipped := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		custRepo := s.customers.WithTx(tx)

		// The stored totals are recomputed from the item snapshot; a stale
		// client total is ignored.
		subtotal := 0
		for _, item := range order.Items {
			subtotal += item.Qty * item.UnitPriceCents
		}
		if order.DiscountCents > subtotal {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal")
		}

		var customer *models.Customer
		if order.CustomerID != nil {
			customer, err = custRepo.FindByID(ctx, *order.CustomerID)
			if err != nil {
				return err
			}
		}

		policy, err := s.policies.Policy(ctx)
		if err != nil {
			return err
		}
		tiers, err := s.policies.Tiers(ctx)
		if err != nil {
			return err
		}

		// A redemption is resolved now, against the current balance and the
		// current policy, never from values captured at creation.
		redeemPoints, redeemCents := 0, 0
		if in.RedeemPoints > 0 {
			if customer == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "redemption requires a customer")
			}
			granted := loyalty.CalculateRedeem(policy, loyalty.RedeemInput{
				RequestedPoints:  in.RedeemPoints,
				BalancePoints:    customer.PointsBalance,
				InvoiceBaseCents: subtotal - order.DiscountCents + order.ExtraFeeCents,
			})
			redeemPoints, redeemCents = granted.Points, granted.CashCents
		}

		total := subtotal - order.DiscountCents - redeemCents + order.ExtraFeeCents
		if total < 0 {
			total = 0
		}

		declared := toReconcilerPayments(in.Payments)
		// A fully discounted or fully redeemed order owes nothing, so there
		// is no COD row to synthesize.
		if order.Channel == enums.OrderChannelOnline && len(declared) == 0 && total > 0 {
			declared = payments.DefaultCOD(total)
		}
		normalized, err := payments.Reconcile(declared, total, payments.ModeExact)
		if err != nil {
			return err
		}

		branchID, err := s.resolveFulfilmentBranch(ctx, repo, order)
		if err != nil {
			return err
		}

		applied, err := repo.UpdateStatusCAS(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirm, "confirmed_at", now)
		if err != nil {
			return err
		}
		if !applied {
			refreshed, loadErr := repo.FindByID(ctx, order.ID)
			if loadErr != nil {
				return loadErr
			}
			if refreshed.Status == enums.OrderStatusConfirm {
				result = refreshed
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently").
				WithDetails(map[string]any{"status": refreshed.Status.String()})
		}
		flipped = true

		order.Status = enums.OrderStatusConfirm
		order.ConfirmedAt = &now
		order.BranchID = &branchID
		order.SubtotalCents = subtotal
		order.PointsRedeemed = redeemPoints
		order.PointsRedeemCents = redeemCents
		order.TotalCents = total
		order.PaidCents = payments.Sum(normalized)

		// Allocation is computed once. Rows already present mean a previous
		// attempt got this far, so the debit is skipped, not repeated.
		if len(order.Allocations) == 0 {
			allocations, allocErr := s.allocator.Allocate(ctx, tx, order.ID, branchID, toAllocationLines(order.Items))
			if allocErr != nil {
				return allocErr
			}
			order.Allocations = allocations
		}

		if err := repo.AppendPayments(ctx, toPaymentRows(order.ID, normalized)); err != nil {
			return err
		}
		order.Payments = append(order.Payments, toPaymentRows(order.ID, normalized)...)

		if err := s.engine.DebitRedeem(ctx, tx, order, now); err != nil {
			return err
		}
		outcome, settleErr := s.engine.Settle(ctx, tx, order, customer, policy, tiers, now)
		if settleErr != nil {
			return settleErr
		}
		s.metrics.IncSettlement(string(outcome))

		order.Version, err = repo.NextChangeVersion(ctx)
		if err != nil {
			return err
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if flipped {
		s.metrics.IncTransition(enums.OrderStatusConfirm.String())
		if s.logg != nil {
			s.logg.Info(s.logg.WithOrderCode(ctx, result.Code), "order confirmed")
		}
	}
	return result, nil
}

// AppendPayment adds payments to a DEBT order, or to a CONFIRM order that
// still carries an outstanding balance. Paying a DEBT order in full promotes
// it to CONFIRM and settles loyalty at that moment.
func (s *service) AppendPayment(ctx context.Context, orderID uuid.UUID, in AppendPaymentInput) (*models.Order, error) {
	now := time.Now().UTC()

	declared := toReconcilerPayments(in.Payments)
	if len(declared) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one payment is required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// The balance is re-read inside the transaction so the tender is
		// checked against payments that landed after the client last looked.
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is terminal")
		}
		outstanding := order.OutstandingCents()
		if order.Status != enums.OrderStatusDebt && !(order.Status == enums.OrderStatusConfirm && outstanding > 0) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order does not accept additional payments").
				WithDetails(map[string]any{"status": order.Status.String()})
		}
		tendered, err := payments.Reconcile(declared, outstanding, payments.ModeAtMost)
		if err != nil {
			return err
		}

		newPaid := order.PaidCents + payments.Sum(tendered)
		applied, casErr := repo.UpdatePaidCAS(ctx, order.ID, order.PaidCents, newPaid, now)
		if casErr != nil {
			return casErr
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		rows := toPaymentRows(order.ID, tendered)
		if err := repo.AppendPayments(ctx, rows); err != nil {
			return err
		}
		order.Payments = append(order.Payments, rows...)
		order.PaidCents = newPaid

		promoted := false
		if order.Status == enums.OrderStatusDebt && order.PaidCents == order.TotalCents {
			applied, casErr := repo.UpdateStatusCAS(ctx, order.ID, enums.OrderStatusDebt, enums.OrderStatusConfirm, "confirmed_at", now)
			if casErr != nil {
				return casErr
			}
			if !applied {
				return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
			}
			order.Status = enums.OrderStatusConfirm
			order.ConfirmedAt = &now
			promoted = true

			var customer *models.Customer
			if order.CustomerID != nil {
				customer, err = s.customers.WithTx(tx).FindByID(ctx, *order.CustomerID)
				if err != nil {
					return err
				}
			}
			policy, policyErr := s.policies.Policy(ctx)
			if policyErr != nil {
				return policyErr
			}
			tiers, tiersErr := s.policies.Tiers(ctx)
			if tiersErr != nil {
				return tiersErr
			}
			outcome, settleErr := s.engine.Settle(ctx, tx, order, customer, policy, tiers, now)
			if settleErr != nil {
				return settleErr
			}
			s.metrics.IncSettlement(string(outcome))
		}

		order.Version, err = repo.NextChangeVersion(ctx)
		if err != nil {
			return err
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}

		if promoted {
			s.metrics.IncTransition(enums.OrderStatusConfirm.String())
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChangeStatus handles ship, cancel and refund. Cancelling or refunding an
// order credits back every stored allocation and reverses loyalty, each step
// behind its own marker.
func (s *service) ChangeStatus(ctx context.Context, orderID uuid.UUID, in ChangeStatusInput) (*models.Order, error) {
	now := time.Now().UTC()

	target := in.Status
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": string(target)})
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == target {
		return order, nil
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is terminal").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if !transitionAllowed(order.Status, target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
			WithDetails(map[string]any{"from": order.Status.String(), "to": target.String()})
	}

	var result *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, casErr := repo.UpdateStatusCAS(ctx, order.ID, order.Status, target, stampColumnFor(target), now)
		if casErr != nil {
			return casErr
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		order.Status = target
		stampOrder(order, target, now)
		if in.Note != nil {
			order.Note = in.Note
		}

		if target == enums.OrderStatusCancelled || target == enums.OrderStatusRefunded {
			released, relErr := s.allocator.Release(ctx, tx, order.ID)
			if relErr != nil {
				return relErr
			}
			if released > 0 {
				order.Allocations = nil
			}

			outcome, revErr := s.engine.Revert(ctx, tx, order, now)
			if revErr != nil {
				return revErr
			}
			if outcome == loyalty.SettleApplied {
				s.metrics.IncSettlement("reverted")
			}
			if err := s.engine.RefundRedeem(ctx, tx, order, now); err != nil {
				return err
			}
		}

		order.Version, err = repo.NextChangeVersion(ctx)
		if err != nil {
			return err
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(target.String())
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderCode(ctx, result.Code), "order status changed")
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

func (s *service) List(ctx context.Context, in ListInput) ([]models.Order, string, error) {
	rows, err := s.repo.List(ctx, in)
	if err != nil {
		return nil, "", err
	}

	limit := normalizedListLimit(in.Limit)
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = encodeListCursor(last)
	}
	return rows, next, nil
}

func (s *service) ListChanges(ctx context.Context, in ListChangesInput) ([]models.Order, int64, error) {
	if in.SinceVersion < 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "since version must not be negative")
	}
	limit := in.Limit
	if limit <= 0 || limit > s.cfg.ChangesPageSize {
		limit = s.cfg.ChangesPageSize
	}

	rows, err := s.repo.ListChangesSince(ctx, in.SinceVersion, limit)
	if err != nil {
		return nil, 0, err
	}

	latest := in.SinceVersion
	for _, row := range rows {
		if row.Version > latest {
			latest = row.Version
		}
	}
	return rows, latest, nil
}

func (s *service) resolveFulfilmentBranch(ctx context.Context, repo Repository, order *models.Order) (uuid.UUID, error) {
	if order.Channel == enums.OrderChannelOnline {
		branch, err := repo.FindMainBranch(ctx, s.cfg.MainBranchCode)
		if err != nil {
			return uuid.Nil, err
		}
		return branch.ID, nil
	}
	if order.BranchID == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no branch")
	}
	return *order.BranchID, nil
}

func validateCreateInput(in CreateInput, requested enums.OrderStatus) error {
	if !in.Channel.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order channel").
			WithDetails(map[string]any{"channel": string(in.Channel)})
	}

	switch in.Channel {
	case enums.OrderChannelPOS:
		if requested != enums.OrderStatusPending &&
			requested != enums.OrderStatusConfirm &&
			requested != enums.OrderStatusDebt {
			return pkgerrors.New(pkgerrors.CodeValidation, "pos orders start at PENDING, CONFIRM or DEBT").
				WithDetails(map[string]any{"status": requested.String()})
		}
		if in.BranchID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "pos orders require a branch")
		}
	case enums.OrderChannelOnline:
		if requested != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeValidation, "online orders always start PENDING").
				WithDetails(map[string]any{"status": requested.String()})
		}
	}

	if len(in.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for _, item := range in.Items {
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"item_id": item.ItemID, "qty": item.Qty})
		}
	}
	if in.DiscountCents < 0 || in.ExtraFeeCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "money fields must not be negative")
	}

	// A redemption is only resolvable at confirmation; requesting one on a
	// pending or debt order is an error, not a silent no-op.
	if in.RedeemPoints > 0 && requested != enums.OrderStatusConfirm {
		return pkgerrors.New(pkgerrors.CodeValidation, "redemption is only honored at confirmation").
			WithDetails(map[string]any{"status": requested.String()})
	}
	if in.RedeemPoints < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "redeem points must not be negative")
	}
	return nil
}

func reconcileModeFor(status enums.OrderStatus) payments.Mode {
	switch status {
	case enums.OrderStatusConfirm:
		return payments.ModeExact
	case enums.OrderStatusDebt:
		return payments.ModeAtMost
	default:
		return payments.ModeNone
	}
}

func deliveryOrDefault(method enums.DeliveryMethod, channel enums.OrderChannel) enums.DeliveryMethod {
	if method.IsValid() {
		return method
	}
	if channel == enums.OrderChannelOnline {
		return enums.DeliveryMethodDelivery
	}
	return enums.DeliveryMethodPickup
}

func stampColumnFor(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusShipped:
		return "shipped_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	case enums.OrderStatusRefunded:
		return "refunded_at"
	default:
		return ""
	}
}

func stampOrder(order *models.Order, status enums.OrderStatus, now time.Time) {
	switch status {
	case enums.OrderStatusShipped:
		order.ShippedAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	case enums.OrderStatusRefunded:
		order.RefundedAt = &now
	}
}

func buildItems(orderID uuid.UUID, inputs []ItemInput, snapshots map[uuid.UUID]catalog.ItemSnapshot) ([]models.OrderItem, int) {
	items := make([]models.OrderItem, 0, len(inputs))
	subtotal := 0
	for _, input := range inputs {
		snap := snapshots[input.ItemID]
		lineTotal := input.Qty * snap.PriceCents
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        orderID,
			ItemID:         snap.ID,
			SKU:            snap.SKU,
			Name:           snap.Name,
			Qty:            input.Qty,
			UnitPriceCents: snap.PriceCents,
			TotalCents:     lineTotal,
		})
		subtotal += lineTotal
	}
	return items, subtotal
}

func toReconcilerPayments(inputs []PaymentInput) []payments.Payment {
	out := make([]payments.Payment, 0, len(inputs))
	for _, p := range inputs {
		out = append(out, payments.Payment{Method: p.Method, AmountCents: p.AmountCents})
	}
	return out
}

func toPaymentRows(orderID uuid.UUID, tendered []payments.Payment) []models.OrderPayment {
	rows := make([]models.OrderPayment, 0, len(tendered))
	for _, p := range tendered {
		rows = append(rows, models.OrderPayment{
			ID:          uuid.New(),
			OrderID:     orderID,
			Method:      p.Method,
			AmountCents: p.AmountCents,
		})
	}
	return rows
}

func normalizedListLimit(limit int) int {
	return pagination.Clamp(limit)
}

func encodeListCursor(order models.Order) string {
	return pagination.Token{LastCreatedAt: order.CreatedAt, LastID: order.ID}.Encode()
}

func toAllocationLines(items []models.OrderItem) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ItemID: item.ItemID, Qty: item.Qty})
	}
	return lines
}
