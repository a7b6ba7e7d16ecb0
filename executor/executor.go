// Package executor implements the Async Executor (C6): bounded-concurrency
// fan-out over per-candidate pipeline stages plus a bounded progress-event
// channel, with cooperative cancellation (spec.md §4.6).
//
// Grounded on the teacher's orchestration.TaskWorkerPool (bounded worker
// goroutines, panic recovery, context-driven shutdown) and
// orchestration/instrumentation.go (structured progress events), reworked
// from a queue-consuming worker pool into a per-request fan-out/fan-in
// helper the Orchestrator calls once per stage.
package executor

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/model"
)

// DefaultConcurrency is the default bounded semaphore width for per-stage
// fan-out (spec.md §4.6 "bounded semaphore (default 4)").
const DefaultConcurrency = 4

// DefaultProgressBuffer is the default bounded progress-channel capacity
// (spec.md §5 "the progress channel is bounded (default 64)").
const DefaultProgressBuffer = 64

// Executor runs per-candidate stage work under a bounded semaphore and
// reports progress through a bounded, drop-oldest channel. One Executor is
// constructed per request and is not shared across requests.
type Executor struct {
	concurrency int
	logger      core.Logger

	progress   chan model.ProgressEvent
	progressMu sync.Mutex
	dropped    int64
}

// New constructs an Executor. concurrency <= 0 uses DefaultConcurrency;
// progressBuffer <= 0 uses DefaultProgressBuffer.
func New(concurrency, progressBuffer int, logger core.Logger) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if progressBuffer <= 0 {
		progressBuffer = DefaultProgressBuffer
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Executor{
		concurrency: concurrency,
		logger:      logger,
		progress:    make(chan model.ProgressEvent, progressBuffer),
	}
}

// Progress returns the read-only progress-event stream for this request.
// Consumers must drain it; overflow drops the oldest buffered event rather
// than blocking the producer (spec.md §4.6).
func (e *Executor) Progress() <-chan model.ProgressEvent {
	return e.progress
}

// DroppedEvents returns how many progress events have been dropped due to
// a slow consumer.
func (e *Executor) DroppedEvents() int64 {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	return e.dropped
}

// Emit publishes a progress event, dropping the oldest buffered event (never
// the newest) on overflow.
func (e *Executor) Emit(stage string, progress float64, message string) {
	evt := model.ProgressEvent{Type: "progress", Stage: stage, Progress: progress, Message: message, Timestamp: time.Now()}
	e.progressMu.Lock()
	defer e.progressMu.Unlock()

	select {
	case e.progress <- evt:
		return
	default:
	}

	// Buffer full: drop the oldest then retry once.
	select {
	case <-e.progress:
		e.dropped++
	default:
	}
	select {
	case e.progress <- evt:
	default:
	}
}

// Close closes the progress channel. Call once, after the Orchestrator's
// run completes.
func (e *Executor) Close() {
	close(e.progress)
}

// Run executes fn(ctx, i) for i in [0, n) under a bounded semaphore of
// width e.concurrency, collecting results in input order. A panic in fn is
// recovered and surfaced as an error for that index only, isolating
// per-candidate failures (spec.md §7 "per-candidate errors are isolated").
//
// Once ctx is canceled, Run schedules no further indices (their errs slot
// is ctx.Err()), waits for the tasks already started, and reports
// canceled=true alongside the partial results — callers (Orchestrator) use
// this to implement the "partial result set flagged canceled=true"
// behavior (spec.md §4.6).
func Run[T any](ctx context.Context, e *Executor, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, []error, bool) {
	results := make([]T, n)
	errs := make([]error, n)
	sem := make(chan struct{}, e.concurrency)

	var wg sync.WaitGroup
	canceled := false
	var cancelMu sync.Mutex

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			cancelMu.Lock()
			canceled = true
			cancelMu.Unlock()
		default:
		}

		cancelMu.Lock()
		c := canceled
		cancelMu.Unlock()
		if c {
			errs[i] = ctx.Err()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("executor: task panic", map[string]interface{}{"index": idx, "panic": r, "stack": string(debug.Stack())})
					errs[idx] = &core.FrameworkError{Op: "executor.Run", Kind: "panic", Err: core.ErrRequestFailed}
				}
			}()
			result, err := fn(ctx, idx)
			results[idx] = result
			errs[idx] = err
		}(i)
	}

	wg.Wait()

	cancelMu.Lock()
	defer cancelMu.Unlock()
	return results, errs, canceled || ctx.Err() != nil
}
