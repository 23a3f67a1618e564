package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
)

// Repository persists customers and their loyalty balances. Point movements
// are single atomic increments so concurrent settlements cannot lose updates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByPhone(ctx context.Context, phone string) (*models.Customer, error)
	UpsertByPhone(ctx context.Context, phone, name string) (*models.Customer, error)
	Save(ctx context.Context, customer *models.Customer) error
	SaveLoyaltyState(ctx context.Context, customer *models.Customer) error

	CreditPoints(ctx context.Context, id uuid.UUID, points int) error
	DebitPointsClamped(ctx context.Context, id uuid.UUID, points int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the customer repository.
func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("customers db required")
	}
	return &repository{db: db}, nil
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return &customer, nil
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&customer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return &customer, nil
}

// UpsertByPhone returns the existing customer for the phone number or creates
// a fresh one. The name only fills an empty field, it never overwrites.
func (r *repository) UpsertByPhone(ctx context.Context, phone, name string) (*models.Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone is required")
	}

	existing, err := r.FindByPhone(ctx, phone)
	if err == nil {
		if existing.Name == "" && name != "" {
			existing.Name = name
			if saveErr := r.Save(ctx, existing); saveErr != nil {
				return nil, saveErr
			}
		}
		return existing, nil
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}

	customer := &models.Customer{
		ID:    uuid.New(),
		Phone: phone,
		Name:  name,
	}
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}
	return customer, nil
}

func (r *repository) Save(ctx context.Context, customer *models.Customer) error {
	if customer == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}
	if err := r.db.WithContext(ctx).Save(customer).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save customer")
	}
	return nil
}

// SaveLoyaltyState writes the tier and spend columns only. The point balance
// is deliberately excluded: it moves via CreditPoints/DebitPointsClamped so an
// in-memory copy can never clobber a concurrent increment.
func (r *repository) SaveLoyaltyState(ctx context.Context, customer *models.Customer) error {
	if customer == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customer.ID).
		Updates(map[string]any{
			"tier_code":           customer.TierCode,
			"tier_starts_at":      customer.TierStartsAt,
			"tier_expires_at":     customer.TierExpiresAt,
			"spend_all_cents":     customer.SpendAllCents,
			"orders_all":          customer.OrdersAll,
			"last_order_at":       customer.LastOrderAt,
			"tier_spend_cents":    customer.TierSpendCents,
			"tier_spend_reset_at": customer.TierSpendResetAt,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save loyalty state")
	}
	return nil
}

func (r *repository) CreditPoints(ctx context.Context, id uuid.UUID, points int) error {
	if points <= 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("points_balance", gorm.Expr("points_balance + ?", points)).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit points")
	}
	return nil
}

// DebitPointsClamped subtracts points without letting the balance go below
// zero. The clamp lives in the SQL expression so the read and write cannot
// interleave with another settlement.
func (r *repository) DebitPointsClamped(ctx context.Context, id uuid.UUID, points int) error {
	if points <= 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("points_balance", gorm.Expr(
			"CASE WHEN points_balance > ? THEN points_balance - ? ELSE 0 END", points, points,
		)).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit points")
	}
	return nil
}
