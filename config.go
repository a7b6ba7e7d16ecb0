package madspark

import "github.com/madspark/madspark/core"

// Config is the top-level configuration for a Pipeline: provider selection,
// cache backend, stage timeouts, retry policy, and observability, all
// adapted from core.Config's three-layer (defaults, env, functional-option)
// priority (spec.md §6).
type Config = core.Config

// Option configures a Config at construction time.
type Option = core.Option

// NewConfig builds a Config from defaults, environment variables, then opts,
// in that priority order (core.NewConfig).
func NewConfig(opts ...Option) (*Config, error) {
	return core.NewConfig(opts...)
}

// DefaultConfig returns spec.md §6's documented defaults with no environment
// or option overrides applied.
func DefaultConfig() *Config {
	return core.DefaultConfig()
}

// Re-exported functional options, so callers only need to import the root
// package for the common case.
var (
	WithPrimaryProvider   = core.WithPrimaryProvider
	WithFallbackEnabled   = core.WithFallbackEnabled
	WithCacheEnabled      = core.WithCacheEnabled
	WithCacheBackend      = core.WithCacheBackend
	WithModelTier         = core.WithModelTier
	WithTemperaturePreset = core.WithTemperaturePreset
	WithNumTopCandidates  = core.WithNumTopCandidates
	WithEnhancedReasoning = core.WithEnhancedReasoning
	WithLogicalInference  = core.WithLogicalInference
	WithNoveltyThreshold  = core.WithNoveltyThreshold
	WithRetry             = core.WithRetry
	WithGeminiAPIKey      = core.WithGeminiAPIKey
	WithOllamaBaseURL     = core.WithOllamaBaseURL
	WithTelemetry         = core.WithTelemetry
	WithLogLevel          = core.WithLogLevel
	WithLogFormat         = core.WithLogFormat
	WithConfigFile        = core.WithConfigFile
	WithDevelopmentMode   = core.WithDevelopmentMode
	WithLogger            = core.WithLogger
)
