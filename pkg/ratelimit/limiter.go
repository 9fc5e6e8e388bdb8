package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/richxcame/agency-pricing/pkg/config"
)

// IdentityType represents the subject of a rate limit decision.
type IdentityType int

const (
	// IdentityAnonymous represents unauthenticated traffic keyed by IP address.
	IdentityAnonymous IdentityType = iota
	// IdentityAuthenticated represents authenticated users keyed by user ID.
	IdentityAuthenticated
)

// Rule defines a rate limiting policy for a single identity and endpoint.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result captures the outcome of a rate limiting decision.
type Result struct {
	Allowed    bool
	Remaining  int
	Limit      int
	RetryAfter time.Duration
	ResetAfter time.Duration
}

// Limiter implements a Redis-backed token bucket rate limiter.
type Limiter struct {
	client redis.Cmdable
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// tokens and timestamp live in one hash per bucket; the script refills,
// takes a token if one is available and returns {allowed, tokens, retryAfterMs}.
const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local refillRate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call("HMGET", key, "tokens", "timestamp")
local tokens = tonumber(data[1])
local timestamp = tonumber(data[2])

if tokens == nil then
    tokens = capacity
    timestamp = now
end
if timestamp == nil then
    timestamp = now
end

local delta = now - timestamp
if delta > 0 then
    tokens = math.min(capacity, tokens + (delta * refillRate))
end

local allowed = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
end

redis.call("HSET", key, "tokens", tokens, "timestamp", now)
redis.call("PEXPIRE", key, ttl)

local retryAfter = 0
if allowed == 0 then
    retryAfter = math.ceil((1 - tokens) / refillRate)
end

return {allowed, math.floor(tokens), retryAfter}
`

// NewLimiter creates a new Limiter instance.
func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucketScript),
		now:    time.Now,
	}
}

// Enabled reports whether limits are enforced at all.
func (l *Limiter) Enabled() bool {
	return l.cfg.Enabled
}

// RuleFor determines the effective rule for the provided endpoint and identity type.
func (l *Limiter) RuleFor(endpoint string, identityType IdentityType) Rule {
	rule := Rule{
		Limit:  l.cfg.DefaultLimit,
		Burst:  l.cfg.DefaultBurst,
		Window: l.cfg.Window(),
	}
	if identityType == IdentityAnonymous {
		rule.Limit = l.cfg.AnonymousLimit
		rule.Burst = l.cfg.AnonymousBurst
	}

	if override, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		if override.WindowSeconds > 0 {
			rule.Window = time.Duration(override.WindowSeconds) * time.Second
		}
		limit, burst := override.AuthenticatedLimit, override.AuthenticatedBurst
		if identityType == IdentityAnonymous {
			limit, burst = override.AnonymousLimit, override.AnonymousBurst
		}
		if limit > 0 {
			rule.Limit = limit
		}
		if burst > 0 {
			rule.Burst = burst
		}
	}

	if rule.Burst < 0 {
		rule.Burst = 0
	}
	return rule
}

// Allow takes one token from the bucket identified by endpoint and identity.
func (l *Limiter) Allow(ctx context.Context, endpointKey, identityKey string, rule Rule) (Result, error) {
	if !l.cfg.Enabled || rule.Limit <= 0 {
		return Result{Allowed: true, Remaining: rule.Limit, Limit: rule.Limit}, nil
	}

	windowMillis := rule.Window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = l.cfg.Window().Milliseconds()
	}

	refillRate := float64(rule.Limit) / float64(windowMillis)
	capacity := float64(rule.Limit + rule.Burst)
	key := fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpointKey, identityKey)

	raw, err := l.script.Run(ctx, l.client, []string{key},
		l.now().UnixMilli(), formatFloat(refillRate), formatFloat(capacity), windowMillis*2,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, errors.New("unexpected rate limit script response")
	}

	result := Result{
		Allowed:   toInt(values[0]) == 1,
		Remaining: int(math.Max(0, float64(toInt(values[1])))),
		Limit:     rule.Limit,
	}

	if result.Allowed {
		missing := capacity - float64(result.Remaining)
		result.ResetAfter = time.Duration(math.Ceil(missing/refillRate)) * time.Millisecond
	} else {
		result.RetryAfter = time.Duration(toInt(values[2])) * time.Millisecond
		result.ResetAfter = result.RetryAfter
	}

	return result, nil
}

// WithNow overrides the time source (useful for tests).
func (l *Limiter) WithNow(now func() time.Time) {
	l.now = now
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case string:
		i, _ := strconv.Atoi(v)
		return i
	default:
		return 0
	}
}
