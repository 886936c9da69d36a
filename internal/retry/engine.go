// Package retry wraps async tasks with exponential backoff, classifying
// retryable vs fatal errors the way v2/rag's Retryer does, generalized
// here to also drive the message bus's rollback/retry-notice patches.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/konglinxi/resvizcopilot/internal/messagebus"
	"github.com/konglinxi/resvizcopilot/internal/metrics"
)

// Config configures an Engine's backoff schedule.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns the engine's baseline retry/backoff settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Stats accumulates the engine's observability counters: total
// attempts, successes, failures, cumulative delay.
type Stats struct {
	mu         sync.Mutex
	Attempts   int
	Successes  int
	Failures   int
	TotalDelay time.Duration
}

func (s *Stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Attempts: s.Attempts, Successes: s.Successes, Failures: s.Failures, TotalDelay: s.TotalDelay}
}

// Engine executes tasks with retry, publishing rollback and retry-notice
// patches to a messagebus.Bus as it goes.
type Engine struct {
	cfg     Config
	bus     *messagebus.Bus
	metrics *metrics.RetryMetrics
	log     *slog.Logger
	stats   Stats

	// sleep is indirected so tests can run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs an Engine publishing rollback/retry patches to bus.
func New(cfg Config, bus *messagebus.Bus, m *metrics.RetryMetrics, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:     cfg.withDefaults(),
		bus:     bus,
		metrics: m,
		log:     log,
		sleep:   ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stats returns a point-in-time copy of the engine's counters.
func (e *Engine) Stats() Stats { return e.stats.snapshot() }

// Task is the unit of work Execute retries. It must be idempotent across
// retries from the caller's point of view — Execute's only side effect
// between attempts is publishing bus patches and sleeping.
type Task func(ctx context.Context, attempt int) error

// Execute runs task, retrying retryable failures with exponential
// backoff. taskName labels the per-task metrics. rollbackMessageID, if
// non-empty, is rolled back (thinking/content cleared, status reset to
// generating) before each retry attempt. publisher and visibleNodeIDs
// label the retry-notice messages Execute creates.
func (e *Engine) Execute(ctx context.Context, taskName string, task Task, opts ExecuteOptions) error {
	var lastErr error

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		e.stats.mu.Lock()
		e.stats.Attempts++
		e.stats.mu.Unlock()
		e.metrics.ObserveAttempt(taskName)

		err := task(ctx, attempt)
		if err == nil {
			e.stats.mu.Lock()
			e.stats.Successes++
			e.stats.mu.Unlock()
			e.metrics.ObserveSuccess(taskName)
			return nil
		}
		lastErr = err

		if !Classify(err) {
			e.publishErrorNotice(opts, err)
			e.stats.mu.Lock()
			e.stats.Failures++
			e.stats.mu.Unlock()
			e.metrics.ObserveFailure(taskName)
			return err
		}

		if attempt >= e.cfg.MaxRetries {
			e.publishErrorNotice(opts, err)
			e.stats.mu.Lock()
			e.stats.Failures++
			e.stats.mu.Unlock()
			e.metrics.ObserveFailure(taskName)
			return &ExhaustedError{Task: taskName, Attempts: attempt + 1, LastErr: err}
		}

		if opts.RollbackMessageID != "" && e.bus != nil {
			if _, rbErr := e.bus.Publish(messagebus.Patch{
				MessageID: messagebus.Str(opts.RollbackMessageID),
				Rollback:  true,
			}); rbErr != nil {
				e.log.Warn("retry: rollback patch failed", "message_id", opts.RollbackMessageID, "error", rbErr)
			}
		}

		delay := e.calculateDelay(attempt)
		e.stats.mu.Lock()
		e.stats.TotalDelay += delay
		e.stats.mu.Unlock()
		e.metrics.ObserveDelaySeconds(delay.Seconds())

		e.publishRetryNotice(opts, err, attempt, delay)

		e.log.Warn("retry: retrying task", "task", taskName, "attempt", attempt+1, "delay", delay, "error", err)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}

	return lastErr
}

// ExecuteOptions carries the bus-facing bookkeeping Execute needs to
// publish rollback and notice patches for one logical call site.
type ExecuteOptions struct {
	RollbackMessageID string
	Publisher         string
	VisibleNodeIDs    []string
}

func (e *Engine) publishRetryNotice(opts ExecuteOptions, err error, attempt int, delay time.Duration) {
	if e.bus == nil {
		return
	}
	role := messagebus.RolePtr(messagebus.RoleAssistant)
	_, pubErr := e.bus.Publish(messagebus.Patch{
		Role:           role,
		Publisher:      messagebus.Str(opts.Publisher),
		Title:          messagebus.Str("retrying"),
		ContentDelta:   fmt.Sprintf("attempt %d failed (%v), retrying in %s", attempt+1, err, delay),
		VisibleNodeIDs: opts.VisibleNodeIDs,
		Finished:       true,
	})
	if pubErr != nil {
		e.log.Warn("retry: failed to publish retry-notice", "error", pubErr)
	}
}

func (e *Engine) publishErrorNotice(opts ExecuteOptions, err error) {
	if e.bus == nil {
		return
	}
	role := messagebus.RolePtr(messagebus.RoleAssistant)
	_, pubErr := e.bus.Publish(messagebus.Patch{
		Role:           role,
		Publisher:      messagebus.Str(opts.Publisher),
		Title:          messagebus.Str("error"),
		ContentDelta:   err.Error(),
		Finished:       true,
		VisibleNodeIDs: opts.VisibleNodeIDs,
	})
	if pubErr != nil {
		e.log.Warn("retry: failed to publish error-notice", "error", pubErr)
	}
}

func (e *Engine) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * e.cfg.BaseDelay
	if delay > e.cfg.MaxDelay {
		delay = e.cfg.MaxDelay
	}
	return delay
}

// ExhaustedError is returned when Execute runs out of retries on a
// retryable error.
type ExhaustedError struct {
	Task     string
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: exhausted retries after %d attempts: %v", e.Task, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// IsExhausted reports whether err is (or wraps) an ExhaustedError.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
