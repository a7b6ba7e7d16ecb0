package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/madspark/madspark/ai"
	"github.com/madspark/madspark/ai/providers/gemini"
	"github.com/madspark/madspark/ai/providers/mock"
	"github.com/madspark/madspark/cache"
	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
	"github.com/madspark/madspark/resilience"
)

// namedClient pairs a provider's label (used in cache keys and error
// reporting) with the core.AIClient that serves it.
type namedClient struct {
	name   string
	client core.AIClient
}

// Router is the LLM Router (C3): a request-scoped façade that applies
// caching, per-call timeout, retry-with-backoff, and primary/fallback
// provider selection around raw AIClient calls, then hands the response to
// the Structured-Output Parser (spec.md §4.3).
//
// A Router is constructed once per workflow run and is not safe to share
// across requests — RouterMetrics belongs to exactly one Request (spec.md
// §3 "never shared across requests").
type Router struct {
	cfg      Config
	primary  namedClient
	fallback *namedClient

	// primaryBreaker short-circuits the retry loop once the primary
	// provider looks unhealthy within this request, instead of burning
	// every retry attempt against a provider that's already down.
	primaryBreaker *resilience.CircuitBreaker

	store  cache.Store
	parser *parser.Parser

	mu      sync.Mutex
	metrics model.RouterMetrics
}

// New constructs a Router from cfg, selecting primary/fallback AI clients
// according to PrimaryProvider (spec.md §4.3):
//
//   - "ollama": local Ollama is primary; Gemini is fallback if
//     FallbackEnabled and a Gemini API key is configured.
//   - "gemini": Gemini is primary, cloud-only — FallbackEnabled is ignored,
//     there is nowhere else to fall back to.
//   - "auto": a local Ollama health check at construction time decides
//     whether Ollama or Gemini becomes primary; the other becomes fallback
//     if FallbackEnabled.
//   - "mock": the mock provider is primary with no fallback, regardless of
//     FallbackEnabled.
func New(cfg Config, store cache.Store, metrics parser.Metrics) (*Router, error) {
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.ModelTier == "" {
		cfg.ModelTier = model.TierBalanced
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	primary, fallback, err := selectProviders(cfg)
	if err != nil {
		return nil, err
	}

	breakerCfg := resilience.DefaultConfig()
	breakerCfg.Name = "router." + primary.name
	breakerCfg.Logger = cfg.Logger
	// A single request issues at most a handful of calls per stage, so the
	// breaker's volume floor must stay low or it never leaves StateClosed
	// within one Router's lifetime.
	breakerCfg.VolumeThreshold = 2
	breakerCfg.SleepWindow = cfg.RequestTimeout
	breaker, err := resilience.NewCircuitBreaker(breakerCfg)
	if err != nil {
		return nil, fmt.Errorf("router.New: construct circuit breaker: %w", err)
	}

	r := &Router{
		cfg:            cfg,
		primary:        primary,
		fallback:       fallback,
		primaryBreaker: breaker,
		store:          store,
		parser:         parser.New(metrics),
		metrics:        model.RouterMetrics{PerStageLatency: make(map[string]int64)},
	}
	return r, nil
}

func selectProviders(cfg Config) (namedClient, *namedClient, error) {
	switch cfg.PrimaryProvider {
	case "", string(ai.ProviderOllama):
		primary := namedClient{name: "ollama", client: ai.NewOllamaClient(cfg.OllamaBaseURL, cfg.Logger)}
		if cfg.FallbackEnabled && cfg.GeminiAPIKey != "" {
			fb := namedClient{name: "gemini", client: gemini.NewClient(cfg.GeminiAPIKey, "", cfg.Logger)}
			return primary, &fb, nil
		}
		return primary, nil, nil

	case string(ai.ProviderGemini):
		if cfg.GeminiAPIKey == "" {
			return namedClient{}, nil, &core.FrameworkError{Op: "router.New", Kind: "config", Err: core.ErrMissingConfiguration}
		}
		primary := namedClient{name: "gemini", client: gemini.NewClient(cfg.GeminiAPIKey, "", cfg.Logger)}
		return primary, nil, nil

	case string(ai.ProviderAuto):
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = DefaultConfig().OllamaBaseURL
		}
		if healthCheckOllama(baseURL) {
			primary := namedClient{name: "ollama", client: ai.NewOllamaClient(baseURL, cfg.Logger)}
			if cfg.FallbackEnabled && cfg.GeminiAPIKey != "" {
				fb := namedClient{name: "gemini", client: gemini.NewClient(cfg.GeminiAPIKey, "", cfg.Logger)}
				return primary, &fb, nil
			}
			return primary, nil, nil
		}
		if cfg.GeminiAPIKey == "" {
			return namedClient{}, nil, &core.FrameworkError{Op: "router.New", Kind: "config", Message: "auto provider: ollama unreachable and no gemini key configured", Err: core.ErrMissingConfiguration}
		}
		primary := namedClient{name: "gemini", client: gemini.NewClient(cfg.GeminiAPIKey, "", cfg.Logger)}
		if cfg.FallbackEnabled {
			fb := namedClient{name: "ollama", client: ai.NewOllamaClient(baseURL, cfg.Logger)}
			return primary, &fb, nil
		}
		return primary, nil, nil

	case string(ai.ProviderMock):
		primary := namedClient{name: "mock", client: mock.NewClient(&ai.AIConfig{Provider: "mock", Logger: cfg.Logger})}
		return primary, nil, nil

	default:
		return namedClient{}, nil, &core.FrameworkError{Op: "router.New", Kind: "config", Message: fmt.Sprintf("unknown primary_provider %q", cfg.PrimaryProvider), Err: core.ErrInvalidConfiguration}
	}
}

// Metrics returns a snapshot of the Router's running counters.
func (r *Router) Metrics() model.RouterMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.metrics
	latency := make(map[string]int64, len(r.metrics.PerStageLatency))
	for k, v := range r.metrics.PerStageLatency {
		latency[k] = v
	}
	snap.PerStageLatency = latency
	return snap
}

// resolveTemperature implements DESIGN.md's Open Question decision #1: the
// wild preset's 1.2 value is only clamped down when the active provider
// reports a MaxTemperature narrower than that — most providers don't report
// one, so wild passes through unclamped by default.
func resolveTemperature(preset model.TemperaturePreset, maxTemperature float32) float32 {
	v := preset.Value()
	if maxTemperature > 0 && v > maxTemperature {
		return maxTemperature
	}
	return v
}

// GenerateStructured performs one cached, retried, schema-validated call
// through the Router (spec.md §4.3's per-call protocol):
//
//  1. compute the cache key and check the Response Cache
//  2. take the per-key in-flight lock to collapse concurrent duplicate calls
//  3. re-check the cache after acquiring the lock (another goroutine may
//     have just populated it)
//  4. invoke the primary provider under RequestTimeout with retry/backoff
//  5. on retry exhaustion, invoke the fallback provider (if configured)
//  6. parse the winning raw response through the Structured-Output Parser
//  7. write the parsed, validated record back to the cache
//  8. update RouterMetrics under the Router's mutex
func (r *Router) GenerateStructured(ctx context.Context, prompt string, schema parser.Schema, options *core.AIOptions) (map[string]interface{}, error) {
	if options == nil {
		options = &core.AIOptions{Temperature: 0.7, MaxTokens: 1000}
	}

	key := cache.Key(r.primary.name, string(r.cfg.ModelTier), schema.Identifier(), prompt, float64(options.Temperature))

	if r.cfg.CacheEnabled && r.store != nil {
		if entry, hit, err := r.store.Get(ctx, key); err == nil && hit {
			var rec map[string]interface{}
			if json.Unmarshal(entry.Value, &rec) == nil {
				r.recordCacheHit()
				return rec, nil
			}
		}

		unlock := r.store.Lock(key)
		defer unlock()

		if entry, hit, err := r.store.Get(ctx, key); err == nil && hit {
			var rec map[string]interface{}
			if json.Unmarshal(entry.Value, &rec) == nil {
				r.recordCacheHit()
				return rec, nil
			}
		}
	}

	raw, usedProvider, err := r.invokeWithFallback(ctx, prompt, options)
	if err != nil {
		return nil, err
	}

	rec, perr := r.parser.ParseOne(raw.Content, schema)
	if perr != nil {
		return nil, perr
	}

	if r.cfg.CacheEnabled && r.store != nil {
		_ = r.store.Put(ctx, key, rec, raw.Usage.PromptTokens, raw.Usage.CompletionTokens)
	}

	r.recordSuccess(usedProvider, raw.Usage)
	return rec, nil
}

// GenerateStructuredBatch is GenerateStructured for prompts that ask the
// provider to return an array of expectedCount records in one call (spec.md
// §4.1 "Batch size invariant" / §4.3 batching to keep API calls O(1) per
// stage).
func (r *Router) GenerateStructuredBatch(ctx context.Context, prompt string, schema parser.Schema, expectedCount int, options *core.AIOptions) ([]map[string]interface{}, error) {
	if options == nil {
		options = &core.AIOptions{Temperature: 0.7, MaxTokens: 2000}
	}

	key := cache.Key(r.primary.name, string(r.cfg.ModelTier), schema.Identifier()+fmt.Sprintf("/batch%d", expectedCount), prompt, float64(options.Temperature))

	if r.cfg.CacheEnabled && r.store != nil {
		unlock := r.store.Lock(key)
		defer unlock()

		if entry, hit, err := r.store.Get(ctx, key); err == nil && hit {
			var recs []map[string]interface{}
			if json.Unmarshal(entry.Value, &recs) == nil {
				r.recordCacheHit()
				return recs, nil
			}
		}
	}

	raw, usedProvider, err := r.invokeWithFallback(ctx, prompt, options)
	if err != nil {
		return nil, err
	}

	recs, perr := r.parser.ParseBatch(raw.Content, schema, expectedCount)
	if perr != nil {
		return nil, perr
	}

	if r.cfg.CacheEnabled && r.store != nil {
		_ = r.store.Put(ctx, key, recs, raw.Usage.PromptTokens, raw.Usage.CompletionTokens)
	}

	r.recordSuccess(usedProvider, raw.Usage)
	return recs, nil
}

// invokeWithFallback runs the primary provider under retry/backoff and, if
// every attempt fails, tries the fallback provider once (no retry on the
// fallback — spec.md §4.3 "fallback fires once").
//
// Retry/backoff itself is github.com/cenkalti/backoff/v5's exponential
// strategy, tuned from Config's RetryInitialDelay/BackoffFactor/
// RetryMaxDelay/MaxRetries. The primary call is additionally wrapped in a
// CircuitBreaker (resilience.CircuitBreaker) so a primary that is clearly
// down trips open and the retry loop gives up immediately instead of
// spending every attempt's backoff delay against a dead provider — the
// request falls through to the fallback (or AllProvidersFailedError) right
// away. This mirrors the "auto" provider's own health-check-then-fallback
// policy, applied per-call instead of once at construction.
func (r *Router) invokeWithFallback(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.RetryInitialDelay
	bo.Multiplier = r.cfg.RetryBackoffFactor
	bo.MaxInterval = r.cfg.RetryMaxDelay

	resp, primaryErr := backoff.Retry(callCtx, func() (*core.AIResponse, error) {
		r.recordAPICall()

		var resp *core.AIResponse
		breakerErr := resilience.ExecuteWithTelemetry(r.primaryBreaker, callCtx, func() error {
			var callErr error
			resp, callErr = r.primary.client.GenerateResponse(callCtx, prompt, options)
			return callErr
		})
		if breakerErr != nil {
			r.recordFailure()
			if errors.Is(breakerErr, core.ErrCircuitBreakerOpen) {
				return nil, backoff.Permanent(breakerErr)
			}
			return nil, breakerErr
		}
		return resp, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(r.cfg.MaxRetries)))
	if primaryErr == nil {
		return resp, r.primary.name, nil
	}

	if core.IsCanceled(primaryErr) || ctx.Err() != nil {
		return nil, "", primaryErr
	}

	if r.fallback == nil {
		return nil, "", &core.AllProvidersFailedError{Providers: []string{r.primary.name}, Errs: []error{primaryErr}}
	}

	r.recordAPICall()
	fbResp, fbErr := r.fallback.client.GenerateResponse(callCtx, prompt, options)
	if fbErr != nil {
		r.recordFailure()
		return nil, "", &core.AllProvidersFailedError{
			Providers: []string{r.primary.name, r.fallback.name},
			Errs:      []error{primaryErr, fbErr},
		}
	}
	return fbResp, r.fallback.name, nil
}

func (r *Router) recordAPICall() {
	r.mu.Lock()
	r.metrics.APICalls++
	r.mu.Unlock()
}

func (r *Router) recordFailure() {
	r.mu.Lock()
	r.metrics.FailedRequests++
	r.mu.Unlock()
}

func (r *Router) recordCacheHit() {
	r.mu.Lock()
	r.metrics.CacheHits++
	r.mu.Unlock()
}

func (r *Router) recordSuccess(providerName string, usage core.TokenUsage) {
	r.mu.Lock()
	r.metrics.TokensIn += int64(usage.PromptTokens)
	r.metrics.TokensOut += int64(usage.CompletionTokens)
	r.mu.Unlock()
}

// StageTimer records wall-clock latency for one pipeline stage into
// RouterMetrics.PerStageLatency (spec.md §3 "per_stage_latency_ms").
func (r *Router) StageTimer(stage string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start).Milliseconds()
		r.mu.Lock()
		r.metrics.PerStageLatency[stage] += elapsed
		r.mu.Unlock()
	}
}
