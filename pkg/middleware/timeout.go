package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/agency-pricing/pkg/common"
	"github.com/richxcame/agency-pricing/pkg/logger"
	"go.uber.org/zap"
)

// RequestTimeout aborts handlers that run longer than d with 504.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return timeout.New(
		timeout.WithTimeout(d),
		timeout.WithResponse(func(c *gin.Context) {
			logger.WarnContext(c.Request.Context(), "request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Duration("timeout", d),
			)
			common.ErrorResponse(c, http.StatusGatewayTimeout, "request timeout")
		}),
	)
}
