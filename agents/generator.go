package agents

import (
	"context"
	"fmt"

	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
)

var ideaSchema = parser.Schema{
	Name:     "idea",
	Version:  1,
	Required: []string{"title", "description"},
	StringFields: map[string]int{
		"description": 2000,
	},
}

// BuildGeneratorPrompt builds the S0 Generate prompt: topic/context in,
// numIdeas distinct Idea records out (spec.md §4.4 Generator row).
func BuildGeneratorPrompt(topic, context string, numIdeas int) (string, parser.Schema) {
	prompt := fmt.Sprintf(`You are an idea-generation agent in a brainstorming pipeline.

Topic: %s
Context: %s

Generate exactly %d distinct ideas addressing the topic. Return a JSON array
of %d objects, each with fields: index (integer, 0-based), title (string),
description (string), key_features (array of strings), category (string).

%s

%s

Response (JSON array only, no explanation):`, topic, context, numIdeas, numIdeas, schemaBlock(model.Idea{}), languageDirective)
	return prompt, ideaSchema
}

// Generate calls the Generator agent through gen and returns the decoded
// Ideas, defaulting missing indices to their slot position.
func Generate(ctx context.Context, gen generateFunc, topic, contextStr string, numIdeas int, temperature float32, safety SafetySettings) ([]model.Idea, error) {
	prompt, schema := BuildGeneratorPrompt(topic, contextStr, numIdeas)
	recs, err := gen.GenerateStructuredBatch(ctx, prompt, schema, numIdeas, options(temperature, 2000, safety))
	if err != nil {
		return nil, err
	}

	ideas := make([]model.Idea, len(recs))
	for i, rec := range recs {
		idx := i
		if v, ok := rec["index"]; ok {
			idx = int(toFloat(v))
		}
		ideas[i] = model.Idea{
			Index:       idx,
			Title:       toString(rec["title"]),
			Description: toString(rec["description"]),
			KeyFeatures: toStringSlice(rec["key_features"]),
			Category:    toString(rec["category"]),
		}
	}
	return ideas, nil
}
