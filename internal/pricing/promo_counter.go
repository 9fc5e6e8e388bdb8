package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const promoKeyPrefix = "pricing:promo"

// The counter is seeded from the configuration's currentUses on first use.
// Returns the new count, or -1 when the cap is already reached.
const redeemPromoScript = `
local key = KEYS[1]
local seed = tonumber(ARGV[1])
local maxUses = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local current = tonumber(redis.call("GET", key))
if current == nil or current < seed then
    current = seed
end

if maxUses >= 0 and current >= maxUses then
    return -1
end

current = current + 1
redis.call("SET", key, current)
if ttl > 0 then
    redis.call("PEXPIRE", key, ttl)
end
return current
`

// PromoCounter tracks promotional code redemptions in Redis so concurrent
// redemptions cannot exceed maxUses.
type PromoCounter struct {
	client redis.Cmdable
	script *redis.Script
}

// NewPromoCounter creates a new promo usage counter
func NewPromoCounter(client redis.Cmdable) *PromoCounter {
	return &PromoCounter{
		client: client,
		script: redis.NewScript(redeemPromoScript),
	}
}

// Uses returns the redeemed count for a code, 0 if it was never redeemed
func (p *PromoCounter) Uses(ctx context.Context, configID uuid.UUID, code string) (int64, error) {
	n, err := p.client.Get(ctx, promoKey(configID, code)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read promo usage: %w", err)
	}
	return n, nil
}

// Redeem atomically checks the cap and records one use. maxUses < 0 means uncapped.
func (p *PromoCounter) Redeem(ctx context.Context, configID uuid.UUID, code string, seed int64, maxUses int64, ttl time.Duration) (int64, error) {
	n, err := p.script.Run(ctx, p.client, []string{promoKey(configID, code)},
		seed, maxUses, ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to redeem promo code: %w", err)
	}
	if n < 0 {
		return 0, ErrPromoExhausted
	}
	return n, nil
}

func promoKey(configID uuid.UUID, code string) string {
	return fmt.Sprintf("%s:%s:%s", promoKeyPrefix, configID, strings.ToUpper(strings.TrimSpace(code)))
}
