package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/richxcame/agency-pricing/pkg/logger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TaskContext holds context values that should be propagated to async tasks
type TaskContext struct {
	CorrelationID string
	SpanContext   trace.SpanContext
	StartTime     time.Time
	TaskName      string
}

// CaptureContext captures the current context values for async propagation
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		SpanContext:   trace.SpanContextFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext creates a detached context carrying the captured values.
// It is not cancelled when the originating request ends.
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	if tc.SpanContext.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, tc.SpanContext)
	}
	return ctx
}

// NewContextWithTimeout creates a new context with timeout and captured values
func (tc TaskContext) NewContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(tc.NewContext(), timeout)
}

// Go runs a function in a goroutine with context propagation and panic recovery
//
// Usage:
//
//	async.Go(ctx, "publish-config-event", func(ctx context.Context) {
//	    bus.Publish(ctx, subject, evt)
//	})
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		newCtx := tc.NewContext()
		fn(newCtx)

		logger.DebugContext(newCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

// GoWithTimeout runs fn in a goroutine with a deadline. fn must honor ctx;
// the error it returns is logged.
func GoWithTimeout(ctx context.Context, taskName string, timeout time.Duration, fn func(ctx context.Context) error) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		newCtx, cancel := tc.NewContextWithTimeout(timeout)
		defer cancel()

		if err := fn(newCtx); err != nil {
			logger.WarnContext(newCtx, "async task failed",
				zap.String("task", tc.TaskName),
				zap.Duration("duration", time.Since(tc.StartTime)),
				zap.Error(err),
			)
			return
		}

		logger.DebugContext(newCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

// recoverWithLogging recovers from panics and logs them with context
func recoverWithLogging(tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(tc.NewContext(), "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
