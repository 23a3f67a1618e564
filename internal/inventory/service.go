package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
)

// Line is one (item, quantity) pair to allocate against a branch.
type Line struct {
	ItemID uuid.UUID
	Qty    int
}

// Allocator debits and credits per-branch stock on behalf of an order.
// Allocate never checks availability: negative resulting quantities are legal
// for the sale-branch path. Release applies the exact inverse of the stored
// allocation rows, never a recomputation from order items.
type Allocator interface {
	Allocate(ctx context.Context, tx *gorm.DB, orderID, branchID uuid.UUID, lines []Line) ([]models.StockAllocation, error)
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error)
}

type allocator struct {
	repo Repository
}

// NewAllocator builds the stock allocator.
func NewAllocator(repo Repository) (Allocator, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &allocator{repo: repo}, nil
}

func (a *allocator) Allocate(ctx context.Context, tx *gorm.DB, orderID, branchID uuid.UUID, lines []Line) ([]models.StockAllocation, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	repo := a.repo.WithTx(tx)

	allocations := make([]models.StockAllocation, 0, len(lines))
	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		allocations = append(allocations, models.StockAllocation{
			ID:       uuid.New(),
			OrderID:  orderID,
			BranchID: branchID,
			ItemID:   line.ItemID,
			Qty:      line.Qty,
		})
	}
	if len(allocations) == 0 {
		return nil, nil
	}

	if err := repo.CreateAllocations(ctx, allocations); err != nil {
		return nil, err
	}
	for _, alloc := range allocations {
		if err := repo.AdjustStock(ctx, alloc.BranchID, alloc.ItemID, -alloc.Qty); err != nil {
			return nil, err
		}
	}
	return allocations, nil
}

// Release credits back every stored allocation row for the order and removes
// the rows, so a second release finds nothing to reverse. Returns the number
// of rows reversed.
func (a *allocator) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error) {
	repo := a.repo.WithTx(tx)

	allocations, err := repo.AllocationsByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if len(allocations) == 0 {
		return 0, nil
	}

	for _, alloc := range allocations {
		if err := repo.AdjustStock(ctx, alloc.BranchID, alloc.ItemID, alloc.Qty); err != nil {
			return 0, err
		}
	}
	if err := repo.DeleteAllocationsByOrder(ctx, orderID); err != nil {
		return 0, err
	}
	return len(allocations), nil
}
