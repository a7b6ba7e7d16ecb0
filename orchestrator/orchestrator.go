package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/madspark/madspark/agents"
	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/executor"
	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
)

// LLMRouter is the Router surface the Orchestrator depends on. *router.Router
// satisfies it; tests substitute a stub to exercise the stage machine
// without a live provider.
type LLMRouter interface {
	GenerateStructured(ctx context.Context, prompt string, schema parser.Schema, options *core.AIOptions) (map[string]interface{}, error)
	GenerateStructuredBatch(ctx context.Context, prompt string, schema parser.Schema, expectedCount int, options *core.AIOptions) ([]map[string]interface{}, error)
	Metrics() model.RouterMetrics
}

// Orchestrator runs the fixed S0-S_end stage machine once per Request
// (spec.md §4.5). One Orchestrator is constructed per request, sharing its
// Router and Executor by reference with every stage.
type Orchestrator struct {
	router LLMRouter
	exec   *executor.Executor
	cfg    Config
	safety agents.SafetySettings
	logger core.Logger
}

// New constructs an Orchestrator bound to r for the lifetime of one request.
func New(r LLMRouter, cfg Config, safety agents.SafetySettings, logger core.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Orchestrator{
		router: r,
		exec:   executor.New(cfg.Concurrency, cfg.ProgressBuffer, logger),
		cfg:    cfg,
		safety: safety,
		logger: logger,
	}
}

// Progress returns the request's progress-event stream (spec.md §4.6).
func (o *Orchestrator) Progress() <-chan model.ProgressEvent {
	return o.exec.Progress()
}

// Run executes S0 through S_end for req and returns the assembled Result.
// Canceling ctx causes Run to return early with Result.Canceled=true and
// every Candidate populated through its last successfully completed stage
// (spec.md §4.6 cancellation semantics).
func (o *Orchestrator) Run(ctx context.Context, req model.Request) (*model.Result, error) {
	defer o.exec.Close()

	result := &model.Result{StartedAt: time.Now()}
	temperature := req.TemperaturePreset.Value()

	// S0 Generate
	numIdeas := req.NumTopCandidates * 2
	if numIdeas < 10 {
		numIdeas = 10
	}
	o.exec.Emit("generate", 0.0, "generating ideas")
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Generate)
	ideas, err := agents.Generate(genCtx, o.router, req.Topic, req.Context, numIdeas, temperature, o.safety)
	cancel()
	if err != nil || len(ideas) == 0 {
		result.FinishedAt = time.Now()
		if ctx.Err() != nil {
			result.Canceled = true
			return result, nil
		}
		return result, &core.WorkflowError{Stage: "generate", Err: errOrDefault(err)}
	}

	texts := make([]string, len(ideas))
	for i, idea := range ideas {
		texts[i] = idea.Title + ": " + idea.Description
	}

	// S1 Evaluate
	o.exec.Emit("evaluate", 0.1, "evaluating ideas")
	evalCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Evaluate)
	evaluations, err := agents.Evaluate(evalCtx, o.router, texts, req.Topic, req.Context, temperature, o.safety)
	cancel()
	if err != nil {
		result.FinishedAt = time.Now()
		return result, nil // total failure: skip to S_end with empty result (spec.md §4.5 S1)
	}

	// S2 Select
	n := req.NumTopCandidates
	if n <= 0 {
		n = 1
	}
	selected := selectTopN(ideas, evaluations, n, o.cfg.NoveltyThreshold)
	if ctx.Err() != nil {
		result.Canceled = true
		result.FinishedAt = time.Now()
		return result, nil
	}

	candidates := make([]model.Candidate, len(selected))
	candTexts := make([]string, len(selected))
	for i, sel := range selected {
		score := sel.eval.Score
		critique := sel.eval.Critique
		candidates[i] = model.Candidate{Text: texts[sel.ideaIndex], Topic: req.Topic, Context: req.Context, Score: &score, Critique: &critique}
		candTexts[i] = texts[sel.ideaIndex]
	}

	// S3 MultiDimInitial (always)
	o.exec.Emit("multidim_initial", 0.3, "scoring dimensions")
	multiCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Multidim)
	dims, err := agents.EvaluateDimensions(multiCtx, o.router, candTexts, req.Topic, req.Context, temperature, o.safety)
	cancel()
	if err == nil {
		for i := range candidates {
			if i < len(dims) {
				candidates[i].DimensionScores = dims[i]
			}
		}
	}

	// S4 Advocate (if enhanced)
	if req.Enhanced {
		o.exec.Emit("advocate", 0.4, "building advocacy")
		advCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Advocate)
		results, _, canceled := executor.Run(advCtx, o.exec, len(candidates), func(ctx context.Context, i int) (*model.Advocacy, error) {
			return agents.Advocate(ctx, o.router, candidates[i].Text, deref(candidates[i].Critique), req.Topic, req.Context, temperature, o.safety)
		})
		cancel()
		for i, adv := range results {
			candidates[i].Advocacy = adv
		}
		if canceled {
			result.Canceled = true
			result.FinishedAt = time.Now()
			result.Candidates = candidates
			return result, nil
		}
	}

	// S5 Skeptic (if enhanced)
	if req.Enhanced {
		o.exec.Emit("skeptic", 0.5, "building skepticism")
		skepCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Skeptic)
		results, _, canceled := executor.Run(skepCtx, o.exec, len(candidates), func(ctx context.Context, i int) (*model.Skepticism, error) {
			return agents.Skeptic(ctx, o.router, candidates[i].Text, deref(candidates[i].Critique), req.Topic, req.Context, temperature, o.safety)
		})
		cancel()
		for i, skep := range results {
			candidates[i].Skepticism = skep
		}
		if canceled {
			result.Canceled = true
			result.FinishedAt = time.Now()
			result.Candidates = candidates
			return result, nil
		}
	}

	// S6 LogicalInference (if logical)
	if req.Logical {
		o.exec.Emit("logical_inference", 0.6, "running logical inference")
		logCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Logical)
		results, _, _ := executor.Run(logCtx, o.exec, len(candidates), func(ctx context.Context, i int) (*model.InferenceResult, error) {
			return agents.Infer(ctx, o.router, candidates[i].Text, req.Topic, req.AnalysisType, temperature, o.safety)
		})
		cancel()
		for i, inf := range results {
			candidates[i].LogicalInference = inf
		}
	}

	// S7 Improve
	o.exec.Emit("improve", 0.7, "improving candidates")
	impCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Improve)
	improved, _, canceled := executor.Run(impCtx, o.exec, len(candidates), func(ctx context.Context, i int) (*model.ImprovedIdea, error) {
		return agents.Improve(ctx, o.router, candidates[i].Text, deref(candidates[i].Critique), candidates[i].Advocacy, candidates[i].Skepticism, req.Topic, req.Context, temperature, o.safety)
	})
	cancel()
	improvedTexts := make([]string, len(candidates))
	for i, imp := range improved {
		if imp == nil {
			improvedTexts[i] = candidates[i].Text
			continue
		}
		text := imp.Title + ": " + imp.Description
		candidates[i].ImprovedText = &text
		improvedTexts[i] = text
	}
	if canceled {
		result.Canceled = true
		result.FinishedAt = time.Now()
		result.Candidates = candidates
		return result, nil
	}

	// S8 ReEvaluate: swap improved_text in as the evaluated text, preserving
	// the original Candidate.Text (spec.md §4.5 S8 swap+restore discipline).
	o.exec.Emit("reevaluate", 0.8, "re-evaluating improved candidates")
	reevalCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Reeval)
	reEvals, err := agents.Evaluate(reevalCtx, o.router, improvedTexts, req.Topic, req.Context, temperature, o.safety)
	cancel()
	if err == nil {
		for i := range candidates {
			if i >= len(reEvals) || candidates[i].ImprovedText == nil {
				continue
			}
			score := reEvals[i].Score
			critique := reEvals[i].Critique
			candidates[i].ImprovedScore = &score
			candidates[i].ImprovedCritique = &critique
		}
	}

	// S9 MultiDimImproved (always); initial dimension_scores from S3 are
	// preserved alongside improved_dimension_scores (spec.md invariant 2).
	o.exec.Emit("multidim_improved", 0.9, "scoring improved dimensions")
	multiImpCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Multidim)
	improvedDims, err := agents.EvaluateDimensions(multiImpCtx, o.router, improvedTexts, req.Topic, req.Context, temperature, o.safety)
	cancel()
	if err == nil {
		for i := range candidates {
			if i < len(improvedDims) {
				candidates[i].ImprovedDimension = improvedDims[i]
			}
		}
	}

	// S_end Assemble
	o.exec.Emit("assemble", 1.0, "done")
	result.Candidates = candidates
	result.Metrics = o.router.Metrics()
	result.FinishedAt = time.Now()
	return result, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func errOrDefault(err error) error {
	if err != nil {
		return err
	}
	return core.ErrWorkflowFailed
}

type selection struct {
	ideaIndex int
	eval      model.Evaluation
}

// selectTopN implements S2 Select: rank by score desc (tie-break on
// original index asc), then apply the novelty filter, keeping up to n
// (spec.md §4.5 S2).
func selectTopN(ideas []model.Idea, evaluations []model.Evaluation, n int, noveltyThreshold float64) []selection {
	evalByIndex := make(map[int]model.Evaluation, len(evaluations))
	for _, e := range evaluations {
		evalByIndex[e.IdeaIndex] = e
	}

	ranked := make([]int, len(ideas))
	for i := range ideas {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		ea, eb := evalByIndex[ranked[a]], evalByIndex[ranked[b]]
		if ea.Score != eb.Score {
			return ea.Score > eb.Score
		}
		return ranked[a] < ranked[b]
	})

	texts := make([]string, len(ideas))
	for i, idea := range ideas {
		texts[i] = idea.Title + ": " + idea.Description
	}

	kept := applyNoveltyFilter(ranked, texts, n, noveltyThreshold)

	out := make([]selection, len(kept))
	for i, idx := range kept {
		out[i] = selection{ideaIndex: idx, eval: evalByIndex[idx]}
	}
	return out
}
