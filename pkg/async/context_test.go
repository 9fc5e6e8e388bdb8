package async_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/richxcame/agency-pricing/pkg/async"
	"github.com/richxcame/agency-pricing/pkg/logger"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCaptureContext(t *testing.T) {
	correlationID := "test-correlation-123"
	ctx := logger.ContextWithCorrelationID(context.Background(), correlationID)

	tc := async.CaptureContext(ctx, "test-task")

	assert.Equal(t, correlationID, tc.CorrelationID)
	assert.Equal(t, "test-task", tc.TaskName)
	assert.False(t, tc.StartTime.IsZero())
	assert.False(t, tc.SpanContext.IsValid())
}

func TestTaskContext_NewContext(t *testing.T) {
	correlationID := "test-correlation-456"
	ctx := logger.ContextWithCorrelationID(context.Background(), correlationID)

	tc := async.CaptureContext(ctx, "test-task")
	newCtx := tc.NewContext()

	assert.Equal(t, correlationID, logger.CorrelationIDFromContext(newCtx))
}

func TestTaskContext_NewContextCarriesSpan(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	newCtx := async.CaptureContext(ctx, "span-task").NewContext()

	got := trace.SpanContextFromContext(newCtx)
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, sc.SpanID(), got.SpanID())
	assert.True(t, got.IsRemote())
}

func TestTaskContext_NewContextIsDetached(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	tc := async.CaptureContext(parent, "detached")
	cancel()

	assert.NoError(t, tc.NewContext().Err())
}

func TestTaskContext_NewContextWithTimeout(t *testing.T) {
	correlationID := "test-correlation-789"
	ctx := logger.ContextWithCorrelationID(context.Background(), correlationID)

	tc := async.CaptureContext(ctx, "test-task")
	newCtx, cancel := tc.NewContextWithTimeout(100 * time.Millisecond)
	defer cancel()

	assert.Equal(t, correlationID, logger.CorrelationIDFromContext(newCtx))

	select {
	case <-newCtx.Done():
	case <-time.After(200 * time.Millisecond):
		t.Error("Context should have timed out")
	}
}

func TestGo_PropagatesContext(t *testing.T) {
	correlationID := "test-go-correlation"
	ctx := logger.ContextWithCorrelationID(context.Background(), correlationID)

	var capturedID string
	var wg sync.WaitGroup
	wg.Add(1)

	async.Go(ctx, "test-task", func(ctx context.Context) {
		defer wg.Done()
		capturedID = logger.CorrelationIDFromContext(ctx)
	})

	wg.Wait()
	assert.Equal(t, correlationID, capturedID)
}

func TestGo_RecoversPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	prev := logger.SetLogger(zap.New(core))
	defer logger.SetLogger(prev)

	async.Go(context.Background(), "panic-task", func(ctx context.Context) {
		panic("test panic")
	})

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("async task panicked").Len() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGoWithTimeout_TimesOut(t *testing.T) {
	var timedOut bool
	var wg sync.WaitGroup
	wg.Add(1)

	async.GoWithTimeout(context.Background(), "timeout-task", 50*time.Millisecond, func(ctx context.Context) error {
		defer wg.Done()
		select {
		case <-ctx.Done():
			timedOut = true
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	wg.Wait()
	assert.True(t, timedOut)
}

func TestGoWithTimeout_LogsError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := logger.SetLogger(zap.New(core))
	defer logger.SetLogger(prev)

	ctx := logger.ContextWithCorrelationID(context.Background(), "corr-1")
	async.GoWithTimeout(ctx, "publish", time.Second, func(ctx context.Context) error {
		return errors.New("nats unavailable")
	})

	assert.Eventually(t, func() bool {
		entries := logs.FilterMessage("async task failed").All()
		if len(entries) != 1 {
			return false
		}
		return entries[0].ContextMap()["correlation_id"] == "corr-1"
	}, time.Second, 10*time.Millisecond)
}
