// Package orchestrator implements the Workflow Orchestrator (C5) and the
// Enhanced Reasoning Engine (C7): the fixed S0-S_end stage machine that
// runs once per request, delegating per-candidate concurrency to the Async
// Executor and every LLM call to the Agent Functions (spec.md §4.5).
//
// Grounded on the teacher's orchestration.Orchestrator (span/logger/
// telemetry wiring, a ProcessRequest-shaped entrypoint) with the dynamic
// LLM-routing/planning/catalog logic replaced by the spec's fixed stage
// sequence.
package orchestrator

import "time"

// Timeouts holds the per-stage timeout table (spec.md §6).
type Timeouts struct {
	Generate time.Duration
	Evaluate time.Duration
	Advocate time.Duration
	Skeptic  time.Duration
	Improve  time.Duration
	Reeval   time.Duration
	Multidim time.Duration
	Logical  time.Duration
}

// DefaultTimeouts mirrors spec.md §6's documented defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Generate: 60 * time.Second,
		Evaluate: 60 * time.Second,
		Advocate: 90 * time.Second,
		Skeptic:  90 * time.Second,
		Improve:  120 * time.Second,
		Reeval:   60 * time.Second,
		Multidim: 120 * time.Second,
		Logical:  90 * time.Second,
	}
}

// Config configures one Orchestrator run.
type Config struct {
	Timeouts         Timeouts
	Concurrency      int // per-stage bounded semaphore width, spec.md §4.6
	ProgressBuffer   int
	NoveltyThreshold float64 // spec.md §6 "novelty_threshold", default 0.8
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		Timeouts:         DefaultTimeouts(),
		Concurrency:      4,
		ProgressBuffer:   64,
		NoveltyThreshold: 0.8,
	}
}
