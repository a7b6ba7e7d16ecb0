// Package madspark wires the LLM Router (C3), Response Cache (C2), Agent
// Functions (C4), Async Executor (C6), and Workflow Orchestrator (C5/C7)
// into one entrypoint: construct a Pipeline once from a Config, then call
// Run once per Request (spec.md §4.5, §6).
//
// Adapted from the teacher's framework.go: a thin composition root that
// owns shared, request-independent state (the Response Cache, telemetry)
// and builds a fresh Router+Orchestrator per Run, since RouterMetrics must
// never be shared across requests (spec.md §3).
package madspark

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/madspark/madspark/agents"
	"github.com/madspark/madspark/cache"
	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/orchestrator"
	"github.com/madspark/madspark/parser"
	"github.com/madspark/madspark/router"
	"github.com/madspark/madspark/telemetry"
)

// Pipeline owns the long-lived state shared across every Request run
// against the same Config: the Response Cache and the resolved logger.
type Pipeline struct {
	cfg    *core.Config
	store  cache.Store
	logger core.Logger
}

// New constructs a Pipeline from cfg. A nil cfg uses DefaultConfig(). If
// cfg.Telemetry.Enabled, the OpenTelemetry pipeline is initialized and
// registered with core's framework-metrics hook so Router/Cache/Orchestrator
// logging carries request correlation (spec.md §6 "telemetry").
func New(cfg *core.Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, "madspark")

	if cfg.Telemetry.Enabled {
		telCfg := telemetry.Config{
			Enabled:      true,
			ServiceName:  cfg.Telemetry.ServiceName,
			Endpoint:     cfg.Telemetry.Endpoint,
			Provider:     "otel",
			SamplingRate: cfg.Telemetry.SamplingRate,
		}
		if err := telemetry.Initialize(telCfg); err != nil {
			logger.Warn("telemetry initialization failed, continuing without it", map[string]interface{}{"error": err.Error()})
		} else {
			telemetry.EnableFrameworkIntegration(telemetry.NewTelemetryLogger(cfg.Telemetry.ServiceName))
		}
	}

	store, err := newStore(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("madspark: construct cache store: %w", err)
	}

	return &Pipeline{cfg: cfg, store: store, logger: logger}, nil
}

func newStore(cc core.CacheConfig, logger core.Logger) (cache.Store, error) {
	switch cc.Backend {
	case "redis":
		return cache.NewRedisStore(cc.RedisURL, cc.TTL, logger)
	default:
		return cache.NewDiskStore(cc.Dir, cc.TTL, int64(cc.MaxEntries)*10*1024, logger)
	}
}

// Close releases the Pipeline's shared resources (the Redis connection, if
// that backend is configured).
func (p *Pipeline) Close() error {
	if closer, ok := p.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Run executes one full S0-S_end workflow for req (spec.md §4.5). Each call
// builds a fresh Router and Orchestrator so RouterMetrics and cancellation
// state stay request-scoped, sharing only the Pipeline's cache and logger.
//
// If onProgress is non-nil, it is invoked for every ProgressEvent the
// Orchestrator emits (spec.md §4.6), from a dedicated goroutine that exits
// once Run returns.
func (p *Pipeline) Run(ctx context.Context, req model.Request, onProgress func(model.ProgressEvent)) (*model.Result, error) {
	requestID := uuid.NewString()
	ctx = telemetry.WithBaggage(ctx, "request_id", requestID, "topic", req.Topic)
	p.logger.InfoWithContext(ctx, "workflow started", map[string]interface{}{
		"request_id": requestID,
		"enhanced":   req.Enhanced,
		"logical":    req.Logical,
	})

	metrics := &telemetryParserMetrics{}
	r, err := router.New(p.routerConfig(), p.store, metrics)
	if err != nil {
		return nil, fmt.Errorf("madspark: construct router: %w", err)
	}

	orch := orchestrator.New(r, p.orchestratorConfig(), agents.DefaultSafetySettings(), p.logger)

	done := make(chan struct{})
	if onProgress != nil {
		go func() {
			defer close(done)
			for evt := range orch.Progress() {
				onProgress(evt)
			}
		}()
	} else {
		close(done)
	}

	result, err := orch.Run(ctx, req)
	<-done // Progress() is closed by Orchestrator.Run's deferred exec.Close()

	if err != nil {
		p.logger.ErrorWithContext(ctx, "workflow failed", map[string]interface{}{"request_id": requestID, "error": err.Error()})
		return result, err
	}
	p.logger.InfoWithContext(ctx, "workflow finished", map[string]interface{}{
		"request_id": requestID,
		"candidates": len(result.Candidates),
		"canceled":   result.Canceled,
	})
	return result, nil
}

func (p *Pipeline) routerConfig() router.Config {
	cfg := p.cfg
	return router.Config{
		PrimaryProvider:    cfg.PrimaryProvider,
		ModelTier:          model.ModelTier(cfg.ModelTier),
		FallbackEnabled:    cfg.FallbackEnabled,
		CacheEnabled:       cfg.CacheEnabled,
		MaxRetries:         cfg.Retry.MaxAttempts,
		RetryInitialDelay:  cfg.Retry.InitialDelay,
		RetryBackoffFactor: cfg.Retry.BackoffFactor,
		RetryMaxDelay:      cfg.Retry.MaxDelay,
		RequestTimeout:     cfg.AI.Timeout,
		GeminiAPIKey:       cfg.AI.GeminiAPIKey,
		OllamaBaseURL:      cfg.AI.OllamaBaseURL,
		Logger:             p.logger,
	}
}

func (p *Pipeline) orchestratorConfig() orchestrator.Config {
	cfg := p.cfg
	def := orchestrator.DefaultConfig()
	return orchestrator.Config{
		Timeouts: orchestrator.Timeouts{
			Generate: cfg.StageTimeouts.Generate,
			Evaluate: cfg.StageTimeouts.Evaluate,
			Advocate: cfg.StageTimeouts.Advocate,
			Skeptic:  cfg.StageTimeouts.Skeptic,
			Improve:  cfg.StageTimeouts.Improve,
			Reeval:   cfg.StageTimeouts.ReEval,
			Multidim: cfg.StageTimeouts.MultiDim,
			Logical:  cfg.StageTimeouts.Logical,
		},
		Concurrency:      def.Concurrency,
		ProgressBuffer:   def.ProgressBuffer,
		NoveltyThreshold: cfg.NoveltyThreshold,
	}
}

// telemetryParserMetrics adapts the Structured-Output Parser's counters
// (spec.md §4.1's fallback-strategy/clamp/truncate instrumentation) onto
// the telemetry package's global emitters.
type telemetryParserMetrics struct{}

func (telemetryParserMetrics) IncStrategy(name string) {
	telemetry.Counter("madspark.parser.strategy", "strategy", name)
}

func (telemetryParserMetrics) IncClamped() {
	telemetry.Counter("madspark.parser.clamped")
}

func (telemetryParserMetrics) IncTruncated() {
	telemetry.Counter("madspark.parser.truncated")
}

var _ parser.Metrics = telemetryParserMetrics{}
