package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
)

var dimensionScoreSchema = parser.Schema{
	Name:     "dimension_score",
	Version:  1,
	Required: []string{"feasibility", "innovation", "impact", "cost_effectiveness", "scalability", "risk_assessment", "timeline"},
	NumericFields: map[string]parser.NumericRange{
		"feasibility":        {Min: 0, Max: 10},
		"innovation":         {Min: 0, Max: 10},
		"impact":             {Min: 0, Max: 10},
		"cost_effectiveness": {Min: 0, Max: 10},
		"scalability":        {Min: 0, Max: 10},
		"risk_assessment":    {Min: 0, Max: 10}, // higher = lower risk, DESIGN.md Open Question #2
		"timeline":           {Min: 0, Max: 10},
	},
}

// BuildDimensionEvaluatorPrompt builds the S3/S9 MultiDim prompt: one
// DimensionScore per idea text (spec.md §4.4 DimensionEvaluator row).
func BuildDimensionEvaluatorPrompt(texts []string, topic, contextStr string) (string, parser.Schema) {
	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "%d: %s\n", i, t)
	}

	prompt := fmt.Sprintf(`You are a multi-dimensional scoring agent in a brainstorming pipeline.

Topic: %s
Context: %s

Score each of the following %d ideas on seven dimensions, each 0-10 (10
best; for risk_assessment, 10 means lowest risk). Ideas:
%s

Return a JSON array of %d objects, each with fields: feasibility,
innovation, impact, cost_effectiveness, scalability, risk_assessment,
timeline (all numbers 0-10).

%s

%s

Response (JSON array only, no explanation):`, topic, contextStr, len(texts), b.String(), len(texts), schemaBlock(model.DimensionScore{}), languageDirective)
	return prompt, dimensionScoreSchema
}

// EvaluateDimensions calls the DimensionEvaluator agent, returning exactly
// len(texts) scores in order; a slot that fails to parse is returned as nil
// so the caller can leave dimension_scores absent for that candidate
// (spec.md §4.5 S3 per-candidate failure policy).
func EvaluateDimensions(ctx context.Context, gen generateFunc, texts []string, topic, contextStr string, temperature float32, safety SafetySettings) ([]*model.DimensionScore, error) {
	prompt, schema := BuildDimensionEvaluatorPrompt(texts, topic, contextStr)
	recs, err := gen.GenerateStructuredBatch(ctx, prompt, schema, len(texts), options(temperature, 2000, safety))
	if err != nil {
		return nil, err
	}

	out := make([]*model.DimensionScore, len(texts))
	for i, rec := range recs {
		if rec["error"] == true {
			continue
		}
		out[i] = &model.DimensionScore{
			Feasibility:       toFloat(rec["feasibility"]),
			Innovation:        toFloat(rec["innovation"]),
			Impact:            toFloat(rec["impact"]),
			CostEffectiveness: toFloat(rec["cost_effectiveness"]),
			Scalability:       toFloat(rec["scalability"]),
			RiskAssessment:    toFloat(rec["risk_assessment"]),
			Timeline:          toFloat(rec["timeline"]),
		}
	}
	return out, nil
}
