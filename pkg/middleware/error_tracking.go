package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/agency-pricing/pkg/common"
	"github.com/richxcame/agency-pricing/pkg/errors"
	"github.com/richxcame/agency-pricing/pkg/logger"
	"go.uber.org/zap"
)

// SentryMiddleware attaches a Sentry hub to every request.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports unexpected request errors and 5xx responses to Sentry.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		errors.AddBreadcrumbForRequest(c.Request.Method, c.Request.URL.Path, statusCode, duration)

		reported := false
		for _, ginErr := range c.Errors {
			if errors.ShouldReportError(ginErr.Err, statusCode) {
				captureError(c, ginErr.Err, statusCode)
				reported = true
			}
		}

		if statusCode >= http.StatusInternalServerError && !reported {
			captureError(c, fmt.Errorf("HTTP %d: %s %s", statusCode, c.Request.Method, c.FullPath()), statusCode)
		}
	}
}

// RecoveryWithSentry recovers from panics, reports them and answers 500.
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				hub := hubFor(c)
				hub.Scope().SetRequest(c.Request)
				hub.Scope().SetContext("panic", map[string]interface{}{
					"value":      fmt.Sprintf("%v", rec),
					"stacktrace": string(debug.Stack()),
				})
				hub.RecoverWithContext(c.Request.Context(), rec)

				logger.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
				)

				common.ErrorResponse(c, http.StatusInternalServerError, "an unexpected error occurred")
				c.Abort()
			}
		}()

		c.Next()
	}
}

func captureError(c *gin.Context, err error, statusCode int) {
	hub := hubFor(c)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("http.method", c.Request.Method)
		scope.SetTag("http.status_code", fmt.Sprintf("%d", statusCode))
		scope.SetTag("endpoint", c.FullPath())
		if correlationID := GetCorrelationID(c); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		if userID, err := GetUserID(c); err == nil {
			scope.SetUser(sentry.User{ID: userID.String(), IPAddress: c.ClientIP()})
		}
		hub.CaptureException(err)
	})
}

func hubFor(c *gin.Context) *sentry.Hub {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}
