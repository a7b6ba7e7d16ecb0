// Package model holds the data entities that flow through the MadSpark
// pipeline: the immutable Request, the per-stage records produced by each
// Agent, and the Candidate that carries them forward from S2 through
// S_end (spec.md §3).
package model

import "time"

// TemperaturePreset is the base sampling temperature knob (spec.md §6).
type TemperaturePreset string

const (
	TemperatureConservative TemperaturePreset = "conservative"
	TemperatureBalanced    TemperaturePreset = "balanced"
	TemperatureCreative    TemperaturePreset = "creative"
	TemperatureWild        TemperaturePreset = "wild"
)

// Value returns the base sampling temperature for the preset.
func (p TemperaturePreset) Value() float32 {
	switch p {
	case TemperatureConservative:
		return 0.3
	case TemperatureCreative:
		return 0.9
	case TemperatureWild:
		return 1.2
	default:
		return 0.7 // balanced
	}
}

// ModelTier maps to a provider-specific model identifier (spec.md §6).
type ModelTier string

const (
	TierFast    ModelTier = "fast"
	TierBalanced ModelTier = "balanced"
	TierQuality  ModelTier = "quality"
)

// Attachment is a multi-modal input reference (spec.md §3 "optional
// multi-modal attachments").
type Attachment struct {
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type"`
}

// Request is the immutable top-level input to one workflow run. It must
// not be mutated once the Orchestrator starts (spec.md §3 "Immutable once
// the workflow starts").
type Request struct {
	Topic             string            `json:"topic"`
	Context           string            `json:"context,omitempty"`
	NumTopCandidates  int               `json:"num_top_candidates"`
	TemperaturePreset TemperaturePreset `json:"temperature_preset"`
	Enhanced          bool              `json:"enhanced"`
	Logical           bool              `json:"logical"`
	Multidimensional  bool              `json:"multidimensional"`
	AnalysisType      string            `json:"analysis_type,omitempty"`
	Attachments       []Attachment      `json:"attachments,omitempty"`
}

// Idea is produced by the Generator agent (spec.md §3).
type Idea struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	KeyFeatures []string `json:"key_features"`
	Category    string   `json:"category"`
}

// Evaluation is produced by the Critic agent, one per Idea (spec.md §3).
type Evaluation struct {
	IdeaIndex int     `json:"idea_index"`
	Score     float64 `json:"score"`
	Critique  string  `json:"critique"`
}

// DimensionScore holds the seven named scoring axes (spec.md §3). Higher
// is always "better" across all seven fields, including RiskAssessment —
// see DESIGN.md's Open Question decision #2 (higher = lower risk).
type DimensionScore struct {
	Feasibility       float64 `json:"feasibility"`
	Innovation        float64 `json:"innovation"`
	Impact            float64 `json:"impact"`
	CostEffectiveness float64 `json:"cost_effectiveness"`
	Scalability       float64 `json:"scalability"`
	RiskAssessment    float64 `json:"risk_assessment"`
	Timeline          float64 `json:"timeline"`
}

// Overall returns the configured weighted mean. Weights default to an
// unweighted average when nil or empty.
func (d DimensionScore) Overall(weights map[string]float64) float64 {
	vals := map[string]float64{
		"feasibility":        d.Feasibility,
		"innovation":         d.Innovation,
		"impact":             d.Impact,
		"cost_effectiveness": d.CostEffectiveness,
		"scalability":        d.Scalability,
		"risk_assessment":    d.RiskAssessment,
		"timeline":           d.Timeline,
	}
	if len(weights) == 0 {
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	}
	var sum, totalWeight float64
	for k, v := range vals {
		w := weights[k]
		sum += v * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}

// InferenceVariant tags the kind of logical inference requested (spec.md §3).
type InferenceVariant string

const (
	InferenceFullChain    InferenceVariant = "full_chain"
	InferenceCausal       InferenceVariant = "causal"
	InferenceConstraint   InferenceVariant = "constraint"
	InferenceContradiction InferenceVariant = "contradiction"
	InferenceImplication  InferenceVariant = "implication"
)

// InferenceResult is produced by the LogicalInferenceEngine agent (spec.md
// §3). On failure Confidence is 0 and Conclusion carries the error message.
type InferenceResult struct {
	Variant    InferenceVariant `json:"variant"`
	Conclusion string           `json:"conclusion"`
	Confidence float64          `json:"confidence"`
	Chain      []string         `json:"chain"`

	// Variant-specific payloads; only the field matching Variant is populated.
	CausalLinks          []string `json:"causal_links,omitempty"`
	Constraints          []string `json:"constraints,omitempty"`
	Contradictions       []string `json:"contradictions,omitempty"`
	ImplicationsDrawn    []string `json:"implications,omitempty"`
}

// Bullet is a {title, body} entry used by Advocacy and Skepticism records.
type Bullet struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Advocacy is produced by the Advocate agent (spec.md §3).
type Advocacy struct {
	Strengths         []Bullet `json:"strengths"`
	Opportunities     []Bullet `json:"opportunities"`
	AddressedConcerns []Bullet `json:"addressed_concerns"`
}

// Skepticism is produced by the Skeptic agent (spec.md §3).
type Skepticism struct {
	CriticalFlaws          []Bullet `json:"critical_flaws"`
	Risks                  []Bullet `json:"risks"`
	QuestionableAssumptions []Bullet `json:"questionable_assumptions"`
	MissingConsiderations  []Bullet `json:"missing_considerations"`
}

// ImprovedIdea is produced by the Improver agent (spec.md §3). The
// Orchestrator concatenates Title+Description into Candidate.ImprovedText.
type ImprovedIdea struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	KeyImprovements     []string `json:"key_improvements"`
	ImplementationSteps []string `json:"implementation_steps"`
	Differentiators     []string `json:"differentiators"`
}

// Candidate is the unit carried forward by the pipeline from S2 onward
// (spec.md §3). Every optional field is a pointer: nil means the stage
// producing it was never requested or skipped; non-nil (even a
// zero-valued struct) means the stage ran and either succeeded or
// produced its documented fallback value.
type Candidate struct {
	Text    string `json:"text"`
	Topic   string `json:"topic"`
	Context string `json:"context,omitempty"`

	Score    *float64 `json:"score,omitempty"`
	Critique *string  `json:"critique,omitempty"`

	DimensionScores *DimensionScore `json:"dimension_scores,omitempty"`

	Advocacy   *Advocacy   `json:"advocacy,omitempty"`
	Skepticism *Skepticism `json:"skepticism,omitempty"`

	LogicalInference *InferenceResult `json:"logical_inference,omitempty"`

	ImprovedText      *string         `json:"improved_text,omitempty"`
	ImprovedScore     *float64        `json:"improved_score,omitempty"`
	ImprovedCritique  *string         `json:"improved_critique,omitempty"`
	ImprovedDimension *DimensionScore `json:"improved_dimension_scores,omitempty"`
}

// RouterMetrics are running counters owned by one Router instance for the
// lifetime of one Request; never shared across requests (spec.md §3).
type RouterMetrics struct {
	APICalls        int64            `json:"api_calls"`
	FailedRequests  int64            `json:"failed_requests"`
	CacheHits       int64            `json:"cache_hits"`
	TokensIn        int64            `json:"tokens_in"`
	TokensOut       int64            `json:"tokens_out"`
	CostEstimate    float64          `json:"cost_estimate"`
	PerStageLatency map[string]int64 `json:"per_stage_latency_ms"`
}

// Result is the top-level output of one workflow run (spec.md §4.5 S_end).
type Result struct {
	Candidates []Candidate   `json:"candidates"`
	Metrics    RouterMetrics `json:"metrics"`
	Canceled   bool          `json:"canceled"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// ProgressEvent is emitted by the Async Executor through a bounded channel
// (spec.md §4.6).
type ProgressEvent struct {
	Type      string    `json:"type"` // "progress" | "done" | "error"
	Stage     string    `json:"stage"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
