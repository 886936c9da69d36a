package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konglinxi/resvizcopilot/internal/messagebus"
)

func zeroSleepEngine(bus *messagebus.Bus) *Engine {
	e := New(Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, bus, nil, nil)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

func TestEngine_SucceedsFirstTry(t *testing.T) {
	e := zeroSleepEngine(nil)
	calls := 0
	err := e.Execute(context.Background(), "task", func(ctx context.Context, attempt int) error {
		calls++
		return nil
	}, ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, e.Stats().Successes)
}

func TestEngine_RetriesRetryableThenSucceeds(t *testing.T) {
	e := zeroSleepEngine(nil)
	calls := 0
	err := e.Execute(context.Background(), "task", func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: errors.New("upstream connection reset")}
		}
		return nil
	}, ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Greater(t, e.Stats().TotalDelay.Nanoseconds(), int64(0))
}

func TestEngine_NonRetryableFailsImmediately(t *testing.T) {
	e := zeroSleepEngine(nil)
	calls := 0
	sentinel := errors.New("missing node: bad-id")
	err := e.Execute(context.Background(), "task", func(ctx context.Context, attempt int) error {
		calls++
		return sentinel
	}, ExecuteOptions{})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, e.Stats().Failures)
}

func TestEngine_ExhaustsRetries(t *testing.T) {
	e := zeroSleepEngine(nil)
	e.cfg.MaxRetries = 2
	calls := 0
	err := e.Execute(context.Background(), "task", func(ctx context.Context, attempt int) error {
		calls++
		return &RetryableError{Err: errors.New("timeout")}
	}, ExecuteOptions{})
	require.Error(t, err)
	assert.True(t, IsExhausted(err))
	assert.Equal(t, 3, calls) // initial + 2 retries
	assert.Equal(t, 1, e.Stats().Failures)
}

func TestEngine_PublishesRollbackAndRetryNotice(t *testing.T) {
	bus := messagebus.NewBus()
	rollbackTarget, err := bus.Publish(messagebus.Patch{
		Role:         messagebus.RolePtr(messagebus.RoleAssistant),
		ContentDelta: "partial",
	})
	require.NoError(t, err)

	e := zeroSleepEngine(bus)
	calls := 0
	runErr := e.Execute(context.Background(), "llm-call", func(ctx context.Context, attempt int) error {
		calls++
		if calls < 2 {
			return &RetryableError{Err: errors.New("connection reset")}
		}
		return nil
	}, ExecuteOptions{RollbackMessageID: rollbackTarget, Publisher: "node-1"})
	require.NoError(t, runErr)

	msg, ok := bus.GetMessage(rollbackTarget)
	require.True(t, ok)
	assert.Empty(t, msg.Content, "rollback should have cleared the target message's content")
	assert.Equal(t, messagebus.StatusGenerating, msg.Status)

	all := bus.GetMessages()
	// rollback target + one retry-notice message appended after it.
	require.Len(t, all, 2)
	assert.Equal(t, "retrying", all[1].Title)
}

func TestEngine_ContextCancellationStopsRetries(t *testing.T) {
	e := zeroSleepEngine(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := e.Execute(ctx, "task", func(ctx context.Context, attempt int) error {
		calls++
		return nil
	}, ExecuteOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}
