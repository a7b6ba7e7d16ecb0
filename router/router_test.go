package router

import (
	"context"
	"testing"
	"time"

	"github.com/madspark/madspark/ai"
	"github.com/madspark/madspark/ai/providers/mock"
	"github.com/madspark/madspark/cache"
	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/parser"
	"github.com/madspark/madspark/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBreaker builds a per-provider CircuitBreaker with the same name and
// VolumeThreshold New() uses (keeping the default logger and SleepWindow), for
// tests that construct a Router literal directly instead of going through
// New() (so they can inject mock clients ahead of provider selection).
func testBreaker(t *testing.T, providerName string) *resilience.CircuitBreaker {
	t.Helper()
	cfg := resilience.DefaultConfig()
	cfg.Name = "router." + providerName
	cfg.VolumeThreshold = 2
	cb, err := resilience.NewCircuitBreaker(cfg)
	require.NoError(t, err)
	return cb
}

var evalSchema = parser.Schema{
	Name:          "evaluation",
	Version:       1,
	Required:      []string{"score", "critique"},
	NumericFields: map[string]parser.NumericRange{"score": {Min: 0, Max: 10}},
}

func newMockRouter(t *testing.T, responses []string) (*Router, *mock.Client) {
	t.Helper()
	mc := mock.NewClient(&ai.AIConfig{Provider: "mock"})
	mc.Responses = responses

	store, err := cache.NewDiskStore(t.TempDir(), time.Hour, 0, nil)
	require.NoError(t, err)

	r := &Router{
		cfg:            Config{PrimaryProvider: "mock", ModelTier: "balanced", CacheEnabled: true, MaxRetries: 1, RequestTimeout: 5 * time.Second},
		primary:        namedClient{name: "mock", client: mc},
		primaryBreaker: testBreaker(t, "mock"),
		store:          store,
		parser:         parser.New(nil),
	}
	r.metrics.PerStageLatency = make(map[string]int64)
	return r, mc
}

// Cache idempotence (spec.md §8): an identical second call must not reach
// the provider again and must return the same record.
func TestGenerateStructuredCacheIdempotence(t *testing.T) {
	r, mc := newMockRouter(t, []string{`{"score": 8, "critique": "solid"}`})

	ctx := context.Background()
	opts := &core.AIOptions{Temperature: 0.7}

	rec1, err := r.GenerateStructured(ctx, "evaluate idea X", evalSchema, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, mc.CallCount)

	rec2, err := r.GenerateStructured(ctx, "evaluate idea X", evalSchema, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, mc.CallCount, "second identical call must be served from cache")
	assert.Equal(t, rec1, rec2)
}

// Request isolation (spec.md §8): two Router instances never share metrics
// or cache state even when constructed identically.
func TestRouterMetricsAreIsolatedPerInstance(t *testing.T) {
	r1, _ := newMockRouter(t, []string{`{"score": 5, "critique": "ok"}`})
	r2, _ := newMockRouter(t, []string{`{"score": 9, "critique": "great"}`})

	ctx := context.Background()
	_, err := r1.GenerateStructured(ctx, "topic A", evalSchema, &core.AIOptions{Temperature: 0.5})
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.Metrics().APICalls)
	assert.Equal(t, int64(0), r2.Metrics().APICalls)
}

// Fallback fires once (spec.md §8): when the primary is exhausted by retry
// and a fallback is configured, the fallback is called exactly one time,
// never retried itself.
func TestFallbackFiresOnce(t *testing.T) {
	primary := mock.NewClient(&ai.AIConfig{Provider: "mock"})
	primary.Error = context.DeadlineExceeded

	fallback := mock.NewClient(&ai.AIConfig{Provider: "mock"})
	fallback.Responses = []string{`{"score": 7, "critique": "from fallback"}`}

	store, err := cache.NewDiskStore(t.TempDir(), time.Hour, 0, nil)
	require.NoError(t, err)

	r := &Router{
		cfg:            Config{PrimaryProvider: "mock", ModelTier: "balanced", CacheEnabled: false, MaxRetries: 2, RetryInitialDelay: time.Millisecond, RetryBackoffFactor: 2, RetryMaxDelay: time.Millisecond, RequestTimeout: 5 * time.Second},
		primary:        namedClient{name: "primary", client: primary},
		primaryBreaker: testBreaker(t, "primary"),
		fallback:       &namedClient{name: "fallback", client: fallback},
		store:          store,
		parser:         parser.New(nil),
	}
	r.metrics.PerStageLatency = make(map[string]int64)

	rec, err := r.GenerateStructured(context.Background(), "topic", evalSchema, &core.AIOptions{Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.CallCount)
	assert.Equal(t, float64(7), rec["score"])
}

func TestAllProvidersFailedWithNoFallback(t *testing.T) {
	primary := mock.NewClient(&ai.AIConfig{Provider: "mock"})
	primary.Error = context.DeadlineExceeded

	store, err := cache.NewDiskStore(t.TempDir(), time.Hour, 0, nil)
	require.NoError(t, err)

	r := &Router{
		cfg:            Config{PrimaryProvider: "mock", ModelTier: "balanced", MaxRetries: 1, RequestTimeout: 5 * time.Second},
		primary:        namedClient{name: "primary", client: primary},
		primaryBreaker: testBreaker(t, "primary"),
		store:          store,
		parser:         parser.New(nil),
	}
	r.metrics.PerStageLatency = make(map[string]int64)

	_, err = r.GenerateStructured(context.Background(), "topic", evalSchema, &core.AIOptions{Temperature: 0.7})
	require.Error(t, err)
	var allFailed *core.AllProvidersFailedError
	assert.ErrorAs(t, err, &allFailed)
}

func TestResolveTemperatureClampsOnlyWhenProviderReportsMax(t *testing.T) {
	assert.Equal(t, float32(1.2), resolveTemperature("wild", 0))
	assert.Equal(t, float32(1.0), resolveTemperature("wild", 1.0))
	assert.Equal(t, float32(0.7), resolveTemperature("balanced", 1.0))
}
