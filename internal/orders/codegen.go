package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehaiminh/chainpos-backend/pkg/enums"
	"github.com/lehaiminh/chainpos-backend/pkg/logger"
	"github.com/lehaiminh/chainpos-backend/pkg/redis"
)

// CodeGenerator issues human-readable, unique order codes.
type CodeGenerator interface {
	NextCode(ctx context.Context, channel enums.OrderChannel, now time.Time) (string, error)
}

type redisCodeGenerator struct {
	cache *redis.Client
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCodeGenerator builds the daily-sequence code generator. Codes look like
// POS-20260901-0042, with the counter restarting each day. When Redis is
// unavailable the generator degrades to a uuid-suffixed code instead of
// failing the sale.
func NewCodeGenerator(cache *redis.Client, ttl time.Duration, logg *logger.Logger) CodeGenerator {
	return &redisCodeGenerator{cache: cache, ttl: ttl, logg: logg}
}

func (g *redisCodeGenerator) NextCode(ctx context.Context, channel enums.OrderChannel, now time.Time) (string, error) {
	prefix := codePrefix(channel)
	day := now.UTC().Format("20060102")

	if g.cache != nil {
		key := g.cache.CounterKey("orders", "code", day)
		seq, err := g.cache.IncrWithTTL(ctx, key, g.ttl)
		if err == nil {
			return fmt.Sprintf("%s-%s-%04d", prefix, day, seq), nil
		}
		if g.logg != nil {
			g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "order code counter unavailable, falling back to uuid suffix")
		}
	}

	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%s-%s", prefix, day, suffix), nil
}

func codePrefix(channel enums.OrderChannel) string {
	if channel == enums.OrderChannelOnline {
		return "ONL"
	}
	return "POS"
}
