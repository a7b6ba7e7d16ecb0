// Package router implements the LLM Router (C3): a request-scoped façade
// over AI providers that applies caching, timeouts, retries, fallback, and
// tracks RouterMetrics (spec.md §4.3).
package router

import (
	"time"

	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/model"
)

// Config is the immutable configuration a Router is constructed with. A
// Router never mutates process-wide state and never reads environment
// variables after construction (spec.md §4.3).
type Config struct {
	PrimaryProvider string // ollama | gemini | auto | mock
	ModelTier       model.ModelTier
	FallbackEnabled bool
	CacheEnabled    bool

	MaxRetries         int
	RetryInitialDelay  time.Duration
	RetryBackoffFactor float64
	RetryMaxDelay      time.Duration
	RequestTimeout     time.Duration

	GeminiAPIKey  string
	OllamaBaseURL string

	Logger    core.Logger
	Telemetry core.Telemetry
}

// DefaultConfig mirrors spec.md §6's documented retry/timeout defaults.
func DefaultConfig() Config {
	return Config{
		PrimaryProvider:    "ollama",
		ModelTier:          model.TierBalanced,
		FallbackEnabled:    true,
		CacheEnabled:       true,
		MaxRetries:         3,
		RetryInitialDelay:  time.Second,
		RetryBackoffFactor: 2.0,
		RetryMaxDelay:      60 * time.Second,
		RequestTimeout:     60 * time.Second,
		OllamaBaseURL:      "http://localhost:11434",
	}
}
