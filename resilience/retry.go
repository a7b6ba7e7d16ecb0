package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/telemetry"
)

// RetryConfig configures a RetryExecutor's backoff schedule.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// RetryExecutor runs a function under exponential backoff, logging each
// attempt and the final outcome under a component-aware core.Logger. This
// is the logged counterpart to the Router's bare github.com/cenkalti/
// backoff/v5 usage: components that want attempt-by-attempt observability
// (rather than just a pass/fail result) go through a RetryExecutor instead.
type RetryExecutor struct {
	config           *RetryConfig
	logger           core.Logger
	telemetryEnabled bool
}

// NewRetryExecutor builds a RetryExecutor from config (DefaultRetryConfig if
// nil) with a NoOpLogger until SetLogger is called.
func NewRetryExecutor(config *RetryConfig) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryExecutor{
		config: config,
		logger: &core.NoOpLogger{},
	}
}

// SetLogger replaces the executor's logger.
func (e *RetryExecutor) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	e.logger = logger
}

// Execute runs fn, retrying up to config.MaxAttempts times with exponential
// backoff between attempts, under the named operation for log correlation.
func (e *RetryExecutor) Execute(ctx context.Context, operation string, fn func() error) error {
	e.logger.Debug("Starting retry operation", map[string]interface{}{
		"operation":       "retry_start",
		"retry_operation": operation,
		"max_attempts":    e.config.MaxAttempts,
		"initial_delay":   e.config.InitialDelay.String(),
		"backoff_factor":  e.config.BackoffFactor,
	})

	if e.telemetryEnabled {
		telemetry.Counter("retry.attempts", "operation", operation, "attempt_number", "start")
	}

	delay := e.config.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			if attempt > 1 {
				e.logger.Info("retry operation succeeded", map[string]interface{}{
					"operation":       "retry_success",
					"retry_operation": operation,
					"attempt":         attempt,
				})
			}
			if e.telemetryEnabled {
				telemetry.Counter("retry.success", "operation", operation, "final_attempt", fmt.Sprintf("%d", attempt))
			}
			return nil
		} else {
			lastErr = err
		}

		if attempt == e.config.MaxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * e.config.BackoffFactor)
			if delay > e.config.MaxDelay {
				delay = e.config.MaxDelay
			}
		}
		waitDelay := delay
		if e.config.JitterEnabled {
			waitDelay += time.Duration(float64(delay) * 0.1)
		}

		e.logger.Debug("backing off before retry attempt", map[string]interface{}{
			"operation":       "retry_backoff",
			"retry_operation": operation,
			"attempt":         attempt,
			"delay_ms":        waitDelay.Milliseconds(),
			"last_error":      lastErr.Error(),
		})

		timer := time.NewTimer(waitDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	e.logger.Error("retry attempts exhausted", map[string]interface{}{
		"operation":       "retry_exhausted",
		"retry_operation": operation,
		"max_attempts":    e.config.MaxAttempts,
		"last_error":      lastErr.Error(),
	})
	if e.telemetryEnabled {
		telemetry.Counter("retry.failures", "operation", operation, "error_type", fmt.Sprintf("%T", lastErr))
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", e.config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}
