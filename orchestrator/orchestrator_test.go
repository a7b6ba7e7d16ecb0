package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/madspark/madspark/agents"
	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRouter answers every call with the next canned record for that
// schema name, cycling if it runs out, so test setup doesn't need to know
// exact call counts.
type scriptedRouter struct {
	byName map[string][]map[string]interface{}
	calls  map[string]int
}

func newScriptedRouter() *scriptedRouter {
	return &scriptedRouter{byName: map[string][]map[string]interface{}{}, calls: map[string]int{}}
}

func (s *scriptedRouter) set(name string, recs ...map[string]interface{}) {
	s.byName[name] = recs
}

func (s *scriptedRouter) next(name string) map[string]interface{} {
	recs := s.byName[name]
	if len(recs) == 0 {
		return map[string]interface{}{}
	}
	idx := s.calls[name] % len(recs)
	s.calls[name]++
	return recs[idx]
}

func (s *scriptedRouter) GenerateStructured(ctx context.Context, prompt string, schema parser.Schema, options *core.AIOptions) (map[string]interface{}, error) {
	return s.next(schema.Name), nil
}

func (s *scriptedRouter) GenerateStructuredBatch(ctx context.Context, prompt string, schema parser.Schema, expectedCount int, options *core.AIOptions) ([]map[string]interface{}, error) {
	recs := s.byName[schema.Name]
	if recs == nil {
		recs = []map[string]interface{}{}
	}
	out := make([]map[string]interface{}, expectedCount)
	for i := range out {
		if i < len(recs) {
			out[i] = recs[i]
		} else {
			out[i] = map[string]interface{}{"error": true, "partial_text": "short"}
		}
	}
	return out, nil
}

func (s *scriptedRouter) Metrics() model.RouterMetrics {
	return model.RouterMetrics{PerStageLatency: map[string]int64{}}
}

func dimRecord(v float64) map[string]interface{} {
	return map[string]interface{}{
		"feasibility": v, "innovation": v, "impact": v, "cost_effectiveness": v,
		"scalability": v, "risk_assessment": v, "timeline": v,
	}
}

func basicScript() *scriptedRouter {
	r := newScriptedRouter()
	r.set("idea",
		map[string]interface{}{"index": 0.0, "title": "Urban rooftop garden", "description": "feasible small-space farming"},
	)
	r.set("evaluation", map[string]interface{}{"idea_index": 0.0, "score": 8.0, "critique": "feasible"})
	r.set("dimension_score", dimRecord(7.0))
	r.set("improved_idea", map[string]interface{}{"title": "Urban rooftop garden v2", "description": "improved feasible small-space farming"})
	return r
}

func TestHappyPathProducesOneCandidateWithSevenDimensionKeys(t *testing.T) {
	r := basicScript()
	o := New(r, DefaultConfig(), agents.DefaultSafetySettings(), nil)

	req := model.Request{Topic: "urban farming", Context: "small spaces", NumTopCandidates: 1, TemperaturePreset: model.TemperatureConservative}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	require.NotNil(t, c.Score)
	require.NotNil(t, c.Critique)
	assert.Equal(t, 8.0, *c.Score)
	require.NotNil(t, c.DimensionScores)
	require.NotNil(t, c.ImprovedDimension)
	assert.Nil(t, c.Advocacy)
	assert.Nil(t, c.Skepticism)
	assert.Nil(t, c.LogicalInference)
}

func TestEnhancedAddsAdvocacyAndSkepticism(t *testing.T) {
	r := basicScript()
	r.set("advocacy", map[string]interface{}{
		"strengths":           []interface{}{map[string]interface{}{"title": "low cost", "body": "cheap to start"}},
		"opportunities":       []interface{}{},
		"addressed_concerns":  []interface{}{},
	})
	r.set("skepticism", map[string]interface{}{
		"critical_flaws":           []interface{}{map[string]interface{}{"title": "water access", "body": "rooftops may lack plumbing"}},
		"risks":                    []interface{}{},
		"questionable_assumptions": []interface{}{},
		"missing_considerations":   []interface{}{},
	})

	o := New(r, DefaultConfig(), agents.DefaultSafetySettings(), nil)
	req := model.Request{Topic: "urban farming", Context: "small spaces", NumTopCandidates: 1, TemperaturePreset: model.TemperatureConservative, Enhanced: true}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	require.NotNil(t, c.Advocacy)
	require.NotEmpty(t, c.Advocacy.Strengths)
	require.NotNil(t, c.Skepticism)
	require.NotEmpty(t, c.Skepticism.CriticalFlaws)
}

func TestLogicalAddsInferenceWithConfidenceInRange(t *testing.T) {
	r := basicScript()
	r.set("inference_result", map[string]interface{}{"conclusion": "causally sound", "confidence": 0.7, "chain": []interface{}{"step1", "step2"}})

	o := New(r, DefaultConfig(), agents.DefaultSafetySettings(), nil)
	req := model.Request{Topic: "urban farming", Context: "small spaces", NumTopCandidates: 1, TemperaturePreset: model.TemperatureConservative, Logical: true, AnalysisType: "causal"}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	inf := result.Candidates[0].LogicalInference
	require.NotNil(t, inf)
	assert.GreaterOrEqual(t, inf.Confidence, 0.0)
	assert.LessOrEqual(t, inf.Confidence, 1.0)
	assert.NotEmpty(t, inf.Chain)
}

// Dimension preservation (spec.md §8 property 5): S3 and S9 dimension
// scores survive together.
func TestDimensionPreservationAcrossS9(t *testing.T) {
	r := basicScript()
	o := New(r, DefaultConfig(), agents.DefaultSafetySettings(), nil)
	req := model.Request{Topic: "urban farming", NumTopCandidates: 1, TemperaturePreset: model.TemperatureConservative}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	c := result.Candidates[0]
	require.NotNil(t, c.DimensionScores)
	require.NotNil(t, c.ImprovedDimension)
}

// Determinism at T=0 (spec.md §8 property 1): identical scripted responses
// with a fixed temperature preset produce byte-identical output.
func TestDeterminismWithConservativePreset(t *testing.T) {
	req := model.Request{Topic: "urban farming", Context: "small spaces", NumTopCandidates: 1, TemperaturePreset: model.TemperatureConservative}

	run := func() []byte {
		o := New(basicScript(), DefaultConfig(), agents.DefaultSafetySettings(), nil)
		result, err := o.Run(context.Background(), req)
		require.NoError(t, err)
		result.StartedAt, result.FinishedAt = time.Time{}, time.Time{}
		out, err := json.Marshal(result.Candidates)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, run(), run())
}

// Novelty filter (scenario E5): 5 near-identical ideas + 1 distinct idea,
// N=2 must keep the distinct idea and exactly one representative.
func TestNoveltyFilterCollapsesDuplicateCluster(t *testing.T) {
	r := newScriptedRouter()
	r.set("idea",
		map[string]interface{}{"index": 0.0, "title": "Solar panel kit", "description": "rooftop solar panel installation kit for homes"},
		map[string]interface{}{"index": 1.0, "title": "Solar panel kit", "description": "rooftop solar panel installation kit for homes"},
		map[string]interface{}{"index": 2.0, "title": "Solar panel kit", "description": "rooftop solar panel installation kit for homes"},
		map[string]interface{}{"index": 3.0, "title": "Solar panel kit", "description": "rooftop solar panel installation kit for homes"},
		map[string]interface{}{"index": 4.0, "title": "Solar panel kit", "description": "rooftop solar panel installation kit for homes"},
		map[string]interface{}{"index": 5.0, "title": "Community compost exchange", "description": "neighborhood food waste composting swap program"},
	)
	r.set("evaluation",
		map[string]interface{}{"idea_index": 0.0, "score": 9.0, "critique": "a"},
		map[string]interface{}{"idea_index": 1.0, "score": 8.5, "critique": "b"},
		map[string]interface{}{"idea_index": 2.0, "score": 8.0, "critique": "c"},
		map[string]interface{}{"idea_index": 3.0, "score": 7.5, "critique": "d"},
		map[string]interface{}{"idea_index": 4.0, "score": 7.0, "critique": "e"},
		map[string]interface{}{"idea_index": 5.0, "score": 6.0, "critique": "f"},
	)
	r.set("dimension_score", dimRecord(7.0))
	r.set("improved_idea", map[string]interface{}{"title": "t", "description": "d"})

	o := New(r, DefaultConfig(), agents.DefaultSafetySettings(), nil)
	req := model.Request{Topic: "energy", NumTopCandidates: 2, TemperaturePreset: model.TemperatureConservative}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)

	foundDistinct := false
	for _, c := range result.Candidates {
		if c.Text == "Community compost exchange: neighborhood food waste composting swap program" {
			foundDistinct = true
		}
	}
	assert.True(t, foundDistinct, "distinct idea must survive the novelty filter")
}

// Cancellation timeliness (spec.md §8 property 8 / scenario E6).
func TestCancellationDuringAdvocateReturnsPartialResult(t *testing.T) {
	r := basicScript()
	cfg := DefaultConfig()
	cfg.Timeouts.Advocate = time.Hour // won't fire on its own; we cancel explicitly

	o := New(r, cfg, agents.DefaultSafetySettings(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // simulate cancellation arriving before S4 starts

	req := model.Request{Topic: "urban farming", NumTopCandidates: 1, TemperaturePreset: model.TemperatureConservative, Enhanced: true}
	result, err := o.Run(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Canceled)
}
