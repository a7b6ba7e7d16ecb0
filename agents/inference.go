package agents

import (
	"context"
	"fmt"

	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
)

var inferenceResultSchema = parser.Schema{
	Name:          "inference_result",
	Version:       1,
	Required:      []string{"conclusion", "confidence", "chain"},
	NumericFields: map[string]parser.NumericRange{"confidence": {Min: 0, Max: 1, PercentLike: true}},
	StringFields:  map[string]int{"conclusion": 1000},
}

var variantFieldName = map[model.InferenceVariant]string{
	model.InferenceCausal:       "causal_links",
	model.InferenceConstraint:   "constraints",
	model.InferenceContradiction: "contradictions",
	model.InferenceImplication:  "implications",
}

// BuildLogicalInferencePrompt builds the S6 LogicalInference prompt for the
// requested variant (spec.md §4.4 LogicalInferenceEngine row).
func BuildLogicalInferencePrompt(text, topic, analysisType string) (string, parser.Schema) {
	variant := model.InferenceVariant(analysisType)
	if variant == "" {
		variant = model.InferenceFullChain
	}

	var focus string
	switch variant {
	case model.InferenceCausal:
		focus = "Identify the causal links: what causes lead to what effects if this idea is pursued."
	case model.InferenceConstraint:
		focus = "Identify the hard constraints that bound this idea's feasibility."
	case model.InferenceContradiction:
		focus = "Identify any internal contradictions within the idea as described."
	case model.InferenceImplication:
		focus = "Draw out the implications that follow logically if this idea is adopted."
	default:
		focus = "Walk the full chain of reasoning from premises to conclusion for this idea."
	}

	extraField := variantFieldName[variant]
	extraInstruction := ""
	if extraField != "" {
		extraInstruction = fmt.Sprintf(" and a field %q (array of strings) capturing that variant-specific output", extraField)
	}

	prompt := fmt.Sprintf(`You are a logical inference agent in a brainstorming pipeline.

Topic: %s
Idea: %s

%s

Return a JSON object with fields: conclusion (string), confidence (number
0-1), chain (array of strings, each one reasoning step)%s.

%s

%s

Response (JSON object only, no explanation):`, topic, text, focus, extraInstruction, schemaBlock(model.InferenceResult{}), languageDirective)
	return prompt, inferenceResultSchema
}

// Infer calls the LogicalInferenceEngine agent. Failure is represented as
// an InferenceResult with confidence=0 per spec.md §4.5 S6 failure policy
// rather than propagated — the caller decides whether to treat a transport
// error differently.
func Infer(ctx context.Context, gen generateFunc, text, topic, analysisType string, temperature float32, safety SafetySettings) (*model.InferenceResult, error) {
	prompt, schema := BuildLogicalInferencePrompt(text, topic, analysisType)
	rec, err := gen.GenerateStructured(ctx, prompt, schema, options(temperature, 1500, safety))
	if err != nil {
		variant := model.InferenceVariant(analysisType)
		if variant == "" {
			variant = model.InferenceFullChain
		}
		return &model.InferenceResult{Variant: variant, Conclusion: err.Error(), Confidence: 0}, nil
	}

	variant := model.InferenceVariant(analysisType)
	if variant == "" {
		variant = model.InferenceFullChain
	}

	result := &model.InferenceResult{
		Variant:    variant,
		Conclusion: toString(rec["conclusion"]),
		Confidence: toFloat(rec["confidence"]),
		Chain:      toStringSlice(rec["chain"]),
	}

	switch variant {
	case model.InferenceCausal:
		result.CausalLinks = toStringSlice(rec["causal_links"])
	case model.InferenceConstraint:
		result.Constraints = toStringSlice(rec["constraints"])
	case model.InferenceContradiction:
		result.Contradictions = toStringSlice(rec["contradictions"])
	case model.InferenceImplication:
		result.ImplicationsDrawn = toStringSlice(rec["implications"])
	}

	return result, nil
}
