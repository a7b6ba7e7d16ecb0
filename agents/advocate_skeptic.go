package agents

import (
	"context"
	"fmt"

	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
)

var advocacySchema = parser.Schema{
	Name:     "advocacy",
	Version:  1,
	Required: []string{"strengths", "opportunities", "addressed_concerns"},
}

var skepticismSchema = parser.Schema{
	Name:     "skepticism",
	Version:  1,
	Required: []string{"critical_flaws", "risks", "questionable_assumptions", "missing_considerations"},
}

// BuildAdvocatePrompt builds the S4 Advocate prompt (spec.md §4.4 Advocate row).
func BuildAdvocatePrompt(text, critique, topic, contextStr string) (string, parser.Schema) {
	prompt := fmt.Sprintf(`You are an advocacy agent in a brainstorming pipeline. Argue in favor of
the following idea, acknowledging the critique but making the strongest
honest case for it.

Topic: %s
Context: %s
Idea: %s
Critique: %s

Return a JSON object with fields strengths, opportunities, and
addressed_concerns — each an array of {"title": string, "body": string}
bullets.

%s

%s

Response (JSON object only, no explanation):`, topic, contextStr, text, critique, schemaBlock(model.Advocacy{}), languageDirective)
	return prompt, advocacySchema
}

// Advocate calls the Advocate agent. Failure degrades to nil per spec.md
// §4.5 S4 per-candidate failure policy; the caller logs the warning.
func Advocate(ctx context.Context, gen generateFunc, text, critique, topic, contextStr string, temperature float32, safety SafetySettings) (*model.Advocacy, error) {
	prompt, schema := BuildAdvocatePrompt(text, critique, topic, contextStr)
	rec, err := gen.GenerateStructured(ctx, prompt, schema, options(temperature, 1500, safety))
	if err != nil {
		return nil, err
	}
	return &model.Advocacy{
		Strengths:         toBulletSlice(rec["strengths"]),
		Opportunities:     toBulletSlice(rec["opportunities"]),
		AddressedConcerns: toBulletSlice(rec["addressed_concerns"]),
	}, nil
}

// BuildSkepticPrompt builds the S5 Skeptic prompt (spec.md §4.4 Skeptic row).
func BuildSkepticPrompt(text, critique, topic, contextStr string) (string, parser.Schema) {
	prompt := fmt.Sprintf(`You are a skeptical review agent in a brainstorming pipeline. Identify the
strongest honest objections to the following idea.

Topic: %s
Context: %s
Idea: %s
Critique: %s

Return a JSON object with fields critical_flaws, risks,
questionable_assumptions, and missing_considerations — each an array of
{"title": string, "body": string} bullets.

%s

%s

Response (JSON object only, no explanation):`, topic, contextStr, text, critique, schemaBlock(model.Skepticism{}), languageDirective)
	return prompt, skepticismSchema
}

// Skeptic calls the Skeptic agent with the same per-candidate failure
// policy as Advocate.
func Skeptic(ctx context.Context, gen generateFunc, text, critique, topic, contextStr string, temperature float32, safety SafetySettings) (*model.Skepticism, error) {
	prompt, schema := BuildSkepticPrompt(text, critique, topic, contextStr)
	rec, err := gen.GenerateStructured(ctx, prompt, schema, options(temperature, 1500, safety))
	if err != nil {
		return nil, err
	}
	return &model.Skepticism{
		CriticalFlaws:           toBulletSlice(rec["critical_flaws"]),
		Risks:                   toBulletSlice(rec["risks"]),
		QuestionableAssumptions: toBulletSlice(rec["questionable_assumptions"]),
		MissingConsiderations:   toBulletSlice(rec["missing_considerations"]),
	}, nil
}
