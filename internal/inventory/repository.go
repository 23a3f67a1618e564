package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
)

// Repository persists stock levels and the allocation records that drive
// exact reversal.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	AdjustStock(ctx context.Context, branchID, itemID uuid.UUID, delta int) error
	StockLevel(ctx context.Context, branchID, itemID uuid.UUID) (int, error)

	CreateAllocations(ctx context.Context, allocations []models.StockAllocation) error
	AllocationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockAllocation, error)
	DeleteAllocationsByOrder(ctx context.Context, orderID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the inventory repository.
func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("inventory db required")
	}
	return &repository{db: db}, nil
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// AdjustStock applies a signed delta to the (branch, item) quantity, creating
// the row on first touch. The increment happens inside the upsert so two
// concurrent adjustments cannot lose an update.
func (r *repository) AdjustStock(ctx context.Context, branchID, itemID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	level := models.StockLevel{
		ID:       uuid.New(),
		BranchID: branchID,
		ItemID:   itemID,
		Qty:      delta,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "branch_id"}, {Name: "item_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"qty": gorm.Expr("stock_levels.qty + ?", delta),
			}),
		}).
		Create(&level).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock level")
	}
	return nil
}

func (r *repository) StockLevel(ctx context.Context, branchID, itemID uuid.UUID) (int, error) {
	var level models.StockLevel
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND item_id = ?", branchID, itemID).
		First(&level).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock level")
	}
	return level.Qty, nil
}

func (r *repository) CreateAllocations(ctx context.Context, allocations []models.StockAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&allocations).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock allocations")
	}
	return nil
}

func (r *repository) AllocationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockAllocation, error) {
	var allocations []models.StockAllocation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&allocations).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock allocations")
	}
	return allocations, nil
}

func (r *repository) DeleteAllocationsByOrder(ctx context.Context, orderID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.StockAllocation{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stock allocations")
	}
	return nil
}
