package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker is a health check function that returns an error if unhealthy
type Checker func(ctx context.Context) error

// DefaultTimeout bounds every individual check.
const DefaultTimeout = 2 * time.Second

// DatabaseChecker pings PostgreSQL through a database/sql handle.
func DatabaseChecker(db *sql.DB) Checker {
	return func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return nil
	}
}

// Pinger is satisfied by the Redis client wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisChecker pings Redis.
func RedisChecker(client Pinger) Checker {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// ConnectedChecker reports a connection that exposes only a connected flag (NATS).
func ConnectedChecker(name string, connected func() bool) Checker {
	return func(context.Context) error {
		if !connected() {
			return fmt.Errorf("%s is not connected", name)
		}
		return nil
	}
}

// CheckStatus represents the status of a single health check
type CheckStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

// Response represents a health check response
type Response struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

var startTime = time.Now()

// Run executes every check concurrently and reports whether all passed.
func Run(ctx context.Context, checks map[string]Checker) (map[string]CheckStatus, bool) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckStatus, len(checks))
		healthy = true
	)

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)
			status := CheckStatus{Status: "healthy", Duration: time.Since(start).String()}
			if err != nil {
				status.Status = "unhealthy"
				status.Message = err.Error()
			}

			mu.Lock()
			results[name] = status
			if err != nil {
				healthy = false
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	return results, healthy
}

// LivenessHandler answers 200 while the process is serving.
func LivenessHandler(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{
			Status:    "alive",
			Service:   serviceName,
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
		})
	}
}

// ReadinessHandler answers 200 when every dependency check passes, 503 otherwise.
func ReadinessHandler(serviceName, version string, checks map[string]Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, healthy := Run(c.Request.Context(), checks)

		status, code := "ready", http.StatusOK
		if !healthy {
			status, code = "not_ready", http.StatusServiceUnavailable
		}

		c.JSON(code, Response{
			Status:    status,
			Service:   serviceName,
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    results,
		})
	}
}
