package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/agency-pricing/pkg/common"
	"github.com/richxcame/agency-pricing/pkg/logger"
	"github.com/richxcame/agency-pricing/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimit applies per-route token buckets keyed by user or client IP.
// Limiter failures fail open.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	if limiter == nil || !limiter.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		endpointKey := c.Request.Method + " " + route

		identityType := ratelimit.IdentityAnonymous
		identity := "ip:" + c.ClientIP()
		if userID, err := GetUserID(c); err == nil {
			identityType = ratelimit.IdentityAuthenticated
			identity = "user:" + userID.String()
		}

		rule := limiter.RuleFor(endpointKey, identityType)
		result, err := limiter.Allow(c.Request.Context(), endpointKey, identity, rule)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limit evaluation failed",
				zap.String("endpoint", endpointKey),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(result.ResetAfter.Round(time.Second)/time.Second)))

		if result.Allowed {
			c.Next()
			return
		}

		retrySeconds := int(result.RetryAfter.Round(time.Second) / time.Second)
		if retrySeconds <= 0 {
			retrySeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retrySeconds))

		logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			zap.String("endpoint", endpointKey),
			zap.String("identity", identity),
		)

		common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
		c.Abort()
	}
}
