package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the MadSpark pipeline.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithPrimaryProvider("gemini"),
//	    WithNumTopCandidates(5),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// PrimaryProvider selects the LLM backend: "ollama", "gemini", "auto", "mock".
	PrimaryProvider string `json:"primary_provider" env:"MADSPARK_PRIMARY_PROVIDER" default:"auto"`
	// FallbackEnabled allows the Router to fall back to a secondary provider
	// when the primary is unavailable or exhausts its retries.
	FallbackEnabled bool `json:"fallback_enabled" env:"MADSPARK_FALLBACK_ENABLED" default:"true"`
	// CacheEnabled toggles the Response Cache (C2).
	CacheEnabled bool `json:"cache_enabled" env:"MADSPARK_CACHE_ENABLED" default:"true"`
	// ModelTier selects cost/quality tier: "fast", "balanced", "quality".
	ModelTier string `json:"model_tier" env:"MADSPARK_MODEL_TIER" default:"balanced"`
	// TemperaturePreset: "conservative", "balanced", "creative", "wild".
	TemperaturePreset string `json:"temperature_preset" env:"MADSPARK_TEMPERATURE_PRESET" default:"balanced"`
	// NumTopCandidates bounds how many ideas survive S2 Select into the rest
	// of the pipeline.
	NumTopCandidates int `json:"num_top_candidates" env:"MADSPARK_NUM_TOP_CANDIDATES" default:"3"`
	// Enhanced turns on C7's multi-dimensional scoring stages (S3/S9).
	Enhanced bool `json:"enhanced_reasoning" env:"MADSPARK_ENHANCED" default:"false"`
	// Logical turns on C7's logical-inference stage (S6).
	Logical bool `json:"logical_inference" env:"MADSPARK_LOGICAL" default:"false"`
	// NoveltyThreshold is the Jaccard similarity at or above which S2 Select
	// drops an idea as a near-duplicate of one already kept.
	NoveltyThreshold float64 `json:"novelty_threshold" env:"MADSPARK_NOVELTY_THRESHOLD" default:"0.8"`

	StageTimeouts StageTimeoutsConfig `json:"stage_timeouts"`
	Retry         RetryConfig         `json:"retry"`
	Cache         CacheConfig         `json:"cache"`
	AI            AIProviderConfig    `json:"ai"`
	Telemetry     TelemetryConfig     `json:"telemetry"`
	Logging       LoggingConfig       `json:"logging"`
	Development   DevelopmentConfig   `json:"development"`

	// Logger instance for configuration operations (excluded from JSON).
	logger Logger `json:"-"`
}

// StageTimeoutsConfig holds the per-stage wall-clock budget (spec.md §6).
type StageTimeoutsConfig struct {
	Generate  time.Duration `json:"generate" env:"MADSPARK_TIMEOUT_GENERATE" default:"60s"`
	Evaluate  time.Duration `json:"evaluate" env:"MADSPARK_TIMEOUT_EVALUATE" default:"60s"`
	Advocate  time.Duration `json:"advocate" env:"MADSPARK_TIMEOUT_ADVOCATE" default:"90s"`
	Skeptic   time.Duration `json:"skeptic" env:"MADSPARK_TIMEOUT_SKEPTIC" default:"90s"`
	Improve   time.Duration `json:"improve" env:"MADSPARK_TIMEOUT_IMPROVE" default:"120s"`
	ReEval    time.Duration `json:"reevaluate" env:"MADSPARK_TIMEOUT_REEVAL" default:"60s"`
	MultiDim  time.Duration `json:"multidim" env:"MADSPARK_TIMEOUT_MULTIDIM" default:"120s"`
	Logical   time.Duration `json:"logical" env:"MADSPARK_TIMEOUT_LOGICAL" default:"90s"`
}

// RetryConfig defines the Router's retry/backoff policy (spec.md §6).
// Formula: delay = min(InitialDelay * (BackoffFactor ^ attempt), MaxDelay).
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts" env:"MADSPARK_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialDelay time.Duration `json:"initial_delay" env:"MADSPARK_RETRY_INITIAL_DELAY" default:"1s"`
	BackoffFactor float64      `json:"backoff_factor" env:"MADSPARK_RETRY_BACKOFF_FACTOR" default:"2.0"`
	MaxDelay     time.Duration `json:"max_delay" env:"MADSPARK_RETRY_MAX_DELAY" default:"60s"`
}

// CacheConfig configures the Response Cache (C2) backend.
type CacheConfig struct {
	Backend  string        `json:"backend" env:"MADSPARK_CACHE_BACKEND" default:"disk"` // "disk" or "redis"
	Dir      string        `json:"dir" env:"MADSPARK_CACHE_DIR" default:".madspark_cache"`
	RedisURL string        `json:"redis_url" env:"MADSPARK_CACHE_REDIS_URL,REDIS_URL"`
	TTL      time.Duration `json:"ttl" env:"MADSPARK_CACHE_TTL" default:"168h"`
	MaxEntries int         `json:"max_entries" env:"MADSPARK_CACHE_MAX_ENTRIES" default:"10000"`
}

// AIProviderConfig holds provider credentials and connection settings shared
// by the Router's provider clients.
type AIProviderConfig struct {
	GeminiAPIKey  string        `json:"-" env:"MADSPARK_GEMINI_API_KEY,GEMINI_API_KEY"`
	OllamaBaseURL string        `json:"ollama_base_url" env:"MADSPARK_OLLAMA_BASE_URL" default:"http://localhost:11434"`
	Timeout       time.Duration `json:"timeout" env:"MADSPARK_AI_TIMEOUT" default:"30s"`
}

// TelemetryConfig contains observability configuration for metrics and
// distributed tracing. Optional module — only initialized when Enabled=true.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" env:"MADSPARK_TELEMETRY_ENABLED" default:"false"`
	Endpoint       string  `json:"endpoint" env:"MADSPARK_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string  `json:"service_name" env:"MADSPARK_TELEMETRY_SERVICE_NAME,OTEL_SERVICE_NAME"`
	MetricsEnabled bool    `json:"metrics_enabled" env:"MADSPARK_TELEMETRY_METRICS" default:"true"`
	TracingEnabled bool    `json:"tracing_enabled" env:"MADSPARK_TELEMETRY_TRACING" default:"true"`
	SamplingRate   float64 `json:"sampling_rate" env:"MADSPARK_TELEMETRY_SAMPLING_RATE" default:"1.0"`
	Insecure       bool    `json:"insecure" env:"MADSPARK_TELEMETRY_INSECURE" default:"true"`
}

// LoggingConfig contains logging configuration. Supports structured (JSON)
// and human-readable (text) formats.
type LoggingConfig struct {
	Level      string `json:"level" env:"MADSPARK_LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"MADSPARK_LOG_FORMAT" default:"json"`
	Output     string `json:"output" env:"MADSPARK_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" env:"MADSPARK_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.999999999Z07:00"`
}

// DevelopmentConfig contains settings for local development and testing.
//
// WARNING: Never enable development mode in production.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"MADSPARK_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"MADSPARK_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" env:"MADSPARK_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring the pipeline.
// Options are applied in order and can return an error if the configuration
// is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration matching spec.md §6's documented
// defaults. These can be overridden via environment variables or functional
// options.
func DefaultConfig() *Config {
	return &Config{
		PrimaryProvider:   "auto",
		FallbackEnabled:   true,
		CacheEnabled:      true,
		ModelTier:         "balanced",
		TemperaturePreset: "balanced",
		NumTopCandidates:  3,
		Enhanced:          false,
		Logical:           false,
		NoveltyThreshold:  0.8,
		StageTimeouts: StageTimeoutsConfig{
			Generate: 60 * time.Second,
			Evaluate: 60 * time.Second,
			Advocate: 90 * time.Second,
			Skeptic:  90 * time.Second,
			Improve:  120 * time.Second,
			ReEval:   60 * time.Second,
			MultiDim: 120 * time.Second,
			Logical:  90 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  1 * time.Second,
			BackoffFactor: 2.0,
			MaxDelay:      60 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "disk",
			Dir:        ".madspark_cache",
			TTL:        7 * 24 * time.Hour,
			MaxEntries: 10000,
		},
		AI: AIProviderConfig{
			OllamaBaseURL: "http://localhost:11434",
			Timeout:       30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			MetricsEnabled: true,
			TracingEnabled: true,
			SamplingRate:   1.0,
			Insecure:       true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
		Development: DevelopmentConfig{
			Enabled:      false,
			DebugLogging: false,
			PrettyLogs:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables and validates
// the result. Environment variables take precedence over defaults but are
// overridden by functional options.
func (c *Config) LoadFromEnv() error {
	if c.logger != nil {
		c.logger.Info("loading configuration from environment", map[string]interface{}{
			"config_source": "environment_variables",
		})
	}

	if v := os.Getenv("MADSPARK_PRIMARY_PROVIDER"); v != "" {
		c.PrimaryProvider = v
	}
	if v := os.Getenv("MADSPARK_FALLBACK_ENABLED"); v != "" {
		c.FallbackEnabled = parseBool(v)
	}
	if v := os.Getenv("MADSPARK_CACHE_ENABLED"); v != "" {
		c.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv("MADSPARK_MODEL_TIER"); v != "" {
		c.ModelTier = v
	}
	if v := os.Getenv("MADSPARK_TEMPERATURE_PRESET"); v != "" {
		c.TemperaturePreset = v
	}
	if v := os.Getenv("MADSPARK_NUM_TOP_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NumTopCandidates = n
		} else if c.logger != nil {
			c.logger.Warn("invalid MADSPARK_NUM_TOP_CANDIDATES", map[string]interface{}{"value": v, "error": err})
		}
	}
	if v := os.Getenv("MADSPARK_ENHANCED"); v != "" {
		c.Enhanced = parseBool(v)
	}
	if v := os.Getenv("MADSPARK_LOGICAL"); v != "" {
		c.Logical = parseBool(v)
	}
	if v := os.Getenv("MADSPARK_NOVELTY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.NoveltyThreshold = f
		}
	}

	loadDurationEnv("MADSPARK_TIMEOUT_GENERATE", &c.StageTimeouts.Generate, c.logger)
	loadDurationEnv("MADSPARK_TIMEOUT_EVALUATE", &c.StageTimeouts.Evaluate, c.logger)
	loadDurationEnv("MADSPARK_TIMEOUT_ADVOCATE", &c.StageTimeouts.Advocate, c.logger)
	loadDurationEnv("MADSPARK_TIMEOUT_SKEPTIC", &c.StageTimeouts.Skeptic, c.logger)
	loadDurationEnv("MADSPARK_TIMEOUT_IMPROVE", &c.StageTimeouts.Improve, c.logger)
	loadDurationEnv("MADSPARK_TIMEOUT_REEVAL", &c.StageTimeouts.ReEval, c.logger)
	loadDurationEnv("MADSPARK_TIMEOUT_MULTIDIM", &c.StageTimeouts.MultiDim, c.logger)
	loadDurationEnv("MADSPARK_TIMEOUT_LOGICAL", &c.StageTimeouts.Logical, c.logger)

	if v := os.Getenv("MADSPARK_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxAttempts = n
		}
	}
	loadDurationEnv("MADSPARK_RETRY_INITIAL_DELAY", &c.Retry.InitialDelay, c.logger)
	loadDurationEnv("MADSPARK_RETRY_MAX_DELAY", &c.Retry.MaxDelay, c.logger)
	if v := os.Getenv("MADSPARK_RETRY_BACKOFF_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retry.BackoffFactor = f
		}
	}

	if v := os.Getenv("MADSPARK_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("MADSPARK_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("MADSPARK_CACHE_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	loadDurationEnv("MADSPARK_CACHE_TTL", &c.Cache.TTL, c.logger)
	if v := os.Getenv("MADSPARK_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.MaxEntries = n
		}
	}

	if v := os.Getenv("MADSPARK_GEMINI_API_KEY"); v != "" {
		c.AI.GeminiAPIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.AI.GeminiAPIKey = v
	}
	if v := os.Getenv("MADSPARK_OLLAMA_BASE_URL"); v != "" {
		c.AI.OllamaBaseURL = v
	}
	loadDurationEnv("MADSPARK_AI_TIMEOUT", &c.AI.Timeout, c.logger)

	if v := os.Getenv("MADSPARK_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("MADSPARK_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("MADSPARK_TELEMETRY_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "madspark"
	}

	if v := os.Getenv("MADSPARK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MADSPARK_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv("MADSPARK_DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
	}
	if v := os.Getenv("MADSPARK_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
		if c.Development.DebugLogging {
			c.Logging.Level = "debug"
		}
	}

	if err := c.Validate(); err != nil {
		if c.logger != nil {
			c.logger.Error("configuration validation failed", map[string]interface{}{
				"error":         err.Error(),
				"config_source": "environment_variables",
			})
		}
		return err
	}

	return nil
}

func loadDurationEnv(key string, dst *time.Duration, logger Logger) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid duration in environment variable", map[string]interface{}{key: v, "error": err})
		}
		return
	}
	*dst = d
}

// LoadFromFile loads configuration from a JSON or YAML file. File settings
// override environment variables but are overridden by functional options.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // nosec G304 -- path is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	if c.logger != nil {
		c.logger.Info("configuration file loaded", map[string]interface{}{
			"file_path": cleanPath,
			"format":    ext,
		})
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
// Called automatically by NewConfig but can be called manually after
// mutating a Config directly.
func (c *Config) Validate() error {
	switch c.PrimaryProvider {
	case "ollama", "gemini", "auto", "mock":
	default:
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid primary_provider: %q", c.PrimaryProvider),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.NumTopCandidates < 1 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("num_top_candidates must be >= 1, got %d", c.NumTopCandidates),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.NoveltyThreshold < 0 || c.NoveltyThreshold > 1 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("novelty_threshold must be in [0,1], got %f", c.NoveltyThreshold),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.PrimaryProvider == "gemini" && c.AI.GeminiAPIKey == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "gemini API key is required when primary_provider is \"gemini\"",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Cache.Backend != "disk" && c.Cache.Backend != "redis" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid cache backend: %q", c.Cache.Backend),
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "cache redis_url is required when cache backend is \"redis\"",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "telemetry endpoint is required when telemetry is enabled",
			Err:     ErrMissingConfiguration,
		}
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional options

func WithPrimaryProvider(provider string) Option {
	return func(c *Config) error {
		c.PrimaryProvider = provider
		return nil
	}
}

func WithFallbackEnabled(enabled bool) Option {
	return func(c *Config) error {
		c.FallbackEnabled = enabled
		return nil
	}
}

func WithCacheEnabled(enabled bool) Option {
	return func(c *Config) error {
		c.CacheEnabled = enabled
		return nil
	}
}

func WithCacheBackend(backend, redisURL string) Option {
	return func(c *Config) error {
		c.Cache.Backend = backend
		if redisURL != "" {
			c.Cache.RedisURL = redisURL
		}
		return nil
	}
}

func WithModelTier(tier string) Option {
	return func(c *Config) error {
		c.ModelTier = tier
		return nil
	}
}

func WithTemperaturePreset(preset string) Option {
	return func(c *Config) error {
		c.TemperaturePreset = preset
		return nil
	}
}

func WithNumTopCandidates(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return &FrameworkError{
				Op:      "WithNumTopCandidates",
				Kind:    "config",
				Message: fmt.Sprintf("num_top_candidates must be >= 1, got %d", n),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.NumTopCandidates = n
		return nil
	}
}

func WithEnhancedReasoning(enabled bool) Option {
	return func(c *Config) error {
		c.Enhanced = enabled
		return nil
	}
}

func WithLogicalInference(enabled bool) Option {
	return func(c *Config) error {
		c.Logical = enabled
		return nil
	}
}

func WithNoveltyThreshold(threshold float64) Option {
	return func(c *Config) error {
		c.NoveltyThreshold = threshold
		return nil
	}
}

func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(c *Config) error {
		c.Retry.MaxAttempts = maxAttempts
		c.Retry.InitialDelay = initialDelay
		return nil
	}
}

func WithGeminiAPIKey(key string) Option {
	return func(c *Config) error {
		c.AI.GeminiAPIKey = key
		return nil
	}
}

func WithOllamaBaseURL(url string) Option {
	return func(c *Config) error {
		c.AI.OllamaBaseURL = url
		return nil
	}
}

func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		if c.Telemetry.ServiceName == "" {
			c.Telemetry.ServiceName = "madspark"
		}
		return nil
	}
}

func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// WithLogger sets a logger for configuration operations. If not set,
// NewConfig constructs a ProductionLogger from the resolved LoggingConfig.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in order: defaults, environment variables,
// functional options, then validated.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, "madspark")
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ============================================================================
// ProductionLogger Implementation
// ============================================================================

// ProductionLogger provides layered observability for pipeline operations.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer
	component   string

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		format:         logging.Format,
		output:         output,
		component:      "madspark",
		metricsEnabled: false,
	}
}

// WithComponent returns a logger tagged with the given component, so the
// Router, Orchestrator, Cache, and Executor each log under their own tag
// (madspark/router, madspark/orchestrator, ...).
func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

// GetComponent reports the component tag this logger was built or cloned
// with, so callers (and tests) can confirm WithComponent wiring without
// reaching into unexported state.
func (p *ProductionLogger) GetComponent() string {
	return p.component
}

// EnableMetrics is called by the telemetry module to enable the metrics
// layer once it has registered a MetricsRegistry.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": p.component,
			"message":   msg,
		}

		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s%s\n",
			timestamp, level, p.serviceName, p.component, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitMetric(level, fields, ctx)
	}
}

func (p *ProductionLogger) emitMetric(level string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
		"component", p.component,
	}

	for k, v := range fields {
		switch k {
		case "stage", "status", "error_type", "provider":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "madspark.operations", 1.0, labels...)
	} else {
		emitMetric("madspark.operations", 1.0, labels...)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
