package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lehaiminh/chainpos-backend/pkg/db/models"
	pkgerrors "github.com/lehaiminh/chainpos-backend/pkg/errors"
	"github.com/lehaiminh/chainpos-backend/pkg/logger"
	"github.com/lehaiminh/chainpos-backend/pkg/redis"
)

// PolicyStore serves the redemption policy singleton and the tier table.
type PolicyStore interface {
	Policy(ctx context.Context) (*models.LoyaltyPolicy, error)
	Tiers(ctx context.Context) ([]models.Tier, error)
}

type dbStore struct {
	db *gorm.DB
}

// NewPolicyStore builds the DB-backed policy store.
func NewPolicyStore(db *gorm.DB) (PolicyStore, error) {
	if db == nil {
		return nil, fmt.Errorf("loyalty db required")
	}
	return &dbStore{db: db}, nil
}

// Policy returns the singleton policy row. A missing row yields the zero
// policy, which disables redemption and earns nothing.
func (s *dbStore) Policy(ctx context.Context) (*models.LoyaltyPolicy, error) {
	var policy models.LoyaltyPolicy
	err := s.db.WithContext(ctx).Order("created_at ASC").First(&policy).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.LoyaltyPolicy{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty policy")
	}
	return &policy, nil
}

func (s *dbStore) Tiers(ctx context.Context) ([]models.Tier, error) {
	var tiers []models.Tier
	if err := s.db.WithContext(ctx).Order("priority ASC").Find(&tiers).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tiers")
	}
	return tiers, nil
}

type cachedStore struct {
	inner PolicyStore
	cache *redis.Client
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedPolicyStore wraps a store with a Redis read-through cache. Cache
// failures degrade to the inner store, they never fail the request.
func NewCachedPolicyStore(inner PolicyStore, cache *redis.Client, ttl time.Duration, logg *logger.Logger) (PolicyStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner policy store required")
	}
	if cache == nil || ttl <= 0 {
		return inner, nil
	}
	return &cachedStore{inner: inner, cache: cache, ttl: ttl, logg: logg}, nil
}

func (s *cachedStore) Policy(ctx context.Context) (*models.LoyaltyPolicy, error) {
	key := s.cache.CacheKey("loyalty", "policy")
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var policy models.LoyaltyPolicy
		if jsonErr := json.Unmarshal([]byte(raw), &policy); jsonErr == nil {
			return &policy, nil
		}
	} else if err != redis.Nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "loyalty policy cache read failed")
	}

	policy, err := s.inner.Policy(ctx)
	if err != nil {
		return nil, err
	}
	if raw, jsonErr := json.Marshal(policy); jsonErr == nil {
		if setErr := s.cache.Set(ctx, key, raw, s.ttl); setErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", setErr.Error()), "loyalty policy cache write failed")
		}
	}
	return policy, nil
}

func (s *cachedStore) Tiers(ctx context.Context) ([]models.Tier, error) {
	key := s.cache.CacheKey("loyalty", "tiers")
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var tiers []models.Tier
		if jsonErr := json.Unmarshal([]byte(raw), &tiers); jsonErr == nil {
			return tiers, nil
		}
	} else if err != redis.Nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "tier cache read failed")
	}

	tiers, err := s.inner.Tiers(ctx)
	if err != nil {
		return nil, err
	}
	if raw, jsonErr := json.Marshal(tiers); jsonErr == nil {
		if setErr := s.cache.Set(ctx, key, raw, s.ttl); setErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", setErr.Error()), "tier cache write failed")
		}
	}
	return tiers, nil
}
