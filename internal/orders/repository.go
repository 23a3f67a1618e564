package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
	"github.com/lehaiminh/chainpos-backend/pkg/pagination"
)

// Repository persists orders and the change-log sequence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error

	// UpdateStatusCAS flips the status only when the row still holds the
	// expected one, so two concurrent transitions cannot both win.
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, stampColumn string, now time.Time) (bool, error)

	AppendPayments(ctx context.Context, payments []models.OrderPayment) error

	// UpdatePaidCAS advances paid_cents only from the value the caller read,
	// so two concurrent tenders cannot both count against the same balance.
	UpdatePaidCAS(ctx context.Context, id uuid.UUID, fromPaidCents, toPaidCents int, now time.Time) (bool, error)

	// NextChangeVersion bumps and returns the global change-log counter.
	// Must run inside the same transaction as the order write it versions.
	NextChangeVersion(ctx context.Context) (int64, error)

	List(ctx context.Context, in ListInput) ([]models.Order, error)
	ListChangesSince(ctx context.Context, version int64, limit int) ([]models.Order, error)

	FindBranchByID(ctx context.Context, id uuid.UUID) (*models.Branch, error)
	FindMainBranch(ctx context.Context, code string) (*models.Branch, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the order repository.
func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("orders db required")
	}
	return &repository{db: db}, nil
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("Allocations").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

// Save persists the scalar columns of the order row. Associations are written
// through their own paths (Create, AppendPayments, the allocator).
func (r *repository) Save(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	err := r.db.WithContext(ctx).
		Omit("Items", "Payments", "Allocations").
		Save(order).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}
	return nil
}

func (r *repository) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, stampColumn string, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	if stampColumn != "" {
		updates[stampColumn] = now
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update order status")
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UpdatePaidCAS(ctx context.Context, id uuid.UUID, fromPaidCents, toPaidCents int, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND paid_cents = ?", id, fromPaidCents).
		Updates(map[string]any{"paid_cents": toPaidCents, "updated_at": now})
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update order paid amount")
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) AppendPayments(ctx context.Context, payments []models.OrderPayment) error {
	if len(payments) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&payments).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payments")
	}
	return nil
}

func (r *repository) NextChangeVersion(ctx context.Context) (int64, error) {
	if err := r.db.WithContext(ctx).
		Exec("UPDATE order_change_seq SET value = value + 1 WHERE id = 1").Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump change version")
	}
	var version int64
	if err := r.db.WithContext(ctx).
		Raw("SELECT value FROM order_change_seq WHERE id = 1").
		Scan(&version).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read change version")
	}
	return version, nil
}

func (r *repository) List(ctx context.Context, in ListInput) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items")

	if in.Status != nil {
		query = query.Where("status = ?", *in.Status)
	}
	if in.Channel != nil {
		query = query.Where("channel = ?", *in.Channel)
	}
	if in.BranchID != nil {
		query = query.Where("branch_id = ?", *in.BranchID)
	}

	token, err := pagination.Decode(in.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	if token != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			token.LastCreatedAt, token.LastCreatedAt, token.LastID,
		)
	}

	var out []models.Order
	err = query.
		Order("created_at DESC, id DESC").
		Limit(pagination.FetchSize(in.Limit)).
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return out, nil
}

func (r *repository) ListChangesSince(ctx context.Context, version int64, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	var out []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("version > ?", version).
		Order("version ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order changes")
	}
	return out, nil
}

func (r *repository) FindBranchByID(ctx context.Context, id uuid.UUID) (*models.Branch, error) {
	var branch models.Branch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&branch).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "branch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch")
	}
	return &branch, nil
}

// FindMainBranch resolves the branch that fulfils online orders, preferring
// the is_main flag and falling back to the configured code.
func (r *repository) FindMainBranch(ctx context.Context, code string) (*models.Branch, error) {
	var branch models.Branch
	err := r.db.WithContext(ctx).Where("is_main = ?", true).First(&branch).Error
	if err == nil {
		return &branch, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load main branch")
	}

	err = r.db.WithContext(ctx).Where("code = ?", code).First(&branch).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "main branch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load main branch")
	}
	return &branch, nil
}
