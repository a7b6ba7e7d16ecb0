package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
)

var evaluationSchema = parser.Schema{
	Name:          "evaluation",
	Version:       1,
	Required:      []string{"score", "critique"},
	NumericFields: map[string]parser.NumericRange{"score": {Min: 0, Max: 10}},
	StringFields:  map[string]int{"critique": 1000},
}

// BuildCriticPrompt builds the S1 Evaluate / S8 ReEvaluate prompt: every
// idea text in, one Evaluation per index out (spec.md §4.4 Critic row).
// S8 reuses this unchanged per DESIGN.md's Open Question decision #3 — the
// caller passes improved texts in place of original texts.
func BuildCriticPrompt(texts []string, topic, contextStr string) (string, parser.Schema) {
	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "%d: %s\n", i, t)
	}

	prompt := fmt.Sprintf(`You are a critical evaluation agent in a brainstorming pipeline.

Topic: %s
Context: %s

Evaluate each of the following %d ideas independently on a 0-10 scale (10
best). Ideas:
%s

Return a JSON array of %d objects, each with fields: idea_index (integer,
matching the index above), score (number 0-10), critique (string, 1-3
sentences).

%s

%s

Response (JSON array only, no explanation):`, topic, contextStr, len(texts), b.String(), len(texts), schemaBlock(model.Evaluation{}), languageDirective)
	return prompt, evaluationSchema
}

// Evaluate calls the Critic agent, returning exactly len(texts) Evaluations
// in index order, defaulting a missing/unparsed slot to {score:0,
// critique:"unavailable"} per spec.md §4.5 S1 partial-failure policy.
func Evaluate(ctx context.Context, gen generateFunc, texts []string, topic, contextStr string, temperature float32, safety SafetySettings) ([]model.Evaluation, error) {
	prompt, schema := BuildCriticPrompt(texts, topic, contextStr)
	recs, err := gen.GenerateStructuredBatch(ctx, prompt, schema, len(texts), options(temperature, 2000, safety))
	if err != nil {
		return nil, err
	}

	out := make([]model.Evaluation, len(texts))
	for i, rec := range recs {
		if rec["error"] == true {
			out[i] = model.Evaluation{IdeaIndex: i, Score: 0, Critique: "unavailable"}
			continue
		}
		idx := i
		if v, ok := rec["idea_index"]; ok {
			idx = int(toFloat(v))
		}
		out[i] = model.Evaluation{IdeaIndex: idx, Score: toFloat(rec["score"]), Critique: toString(rec["critique"])}
	}
	return out, nil
}
