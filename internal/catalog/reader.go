package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
)

// ItemSnapshot is the authoritative view of a catalog item at the instant an
// order is created. Client-submitted prices are never consulted.
type ItemSnapshot struct {
	ID         uuid.UUID
	SKU        string
	Name       string
	PriceCents int
}

// Reader resolves catalog items for order creation.
type Reader interface {
	Snapshot(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemSnapshot, error)
}

type reader struct {
	db *gorm.DB
}

// NewReader builds a catalog reader bound to the provided DB.
func NewReader(db *gorm.DB) (Reader, error) {
	if db == nil {
		return nil, fmt.Errorf("catalog db required")
	}
	return &reader{db: db}, nil
}

func (r *reader) Snapshot(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemSnapshot, error) {
	if len(itemIDs) == 0 {
		return map[uuid.UUID]ItemSnapshot{}, nil
	}

	unique := make([]uuid.UUID, 0, len(itemIDs))
	seen := make(map[uuid.UUID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var items []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", unique).Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog items")
	}

	snapshots := make(map[uuid.UUID]ItemSnapshot, len(items))
	for _, item := range items {
		if !item.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item is not sellable").
				WithDetails(map[string]any{"item_id": item.ID})
		}
		snapshots[item.ID] = ItemSnapshot{
			ID:         item.ID,
			SKU:        item.SKU,
			Name:       item.Name,
			PriceCents: item.PriceCents,
		}
	}

	if len(snapshots) != len(unique) {
		missing := make([]uuid.UUID, 0)
		for _, id := range unique {
			if _, ok := snapshots[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown catalog items").
			WithDetails(map[string]any{"item_ids": missing})
	}

	return snapshots, nil
}
