package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
)

var improvedIdeaSchema = parser.Schema{
	Name:         "improved_idea",
	Version:      1,
	Required:     []string{"title", "description"},
	StringFields: map[string]int{"description": 2000},
}

// bulletsToLines flattens a Bullet slice into "Title: Body" lines for
// inclusion in a prompt body.
func bulletsToLines(bullets []model.Bullet) string {
	if len(bullets) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, item := range bullets {
		fmt.Fprintf(&b, "- %s: %s\n", item.Title, item.Body)
	}
	return b.String()
}

// BuildImproverPrompt builds the S7 Improve prompt. Improver MUST receive
// topic, context, and the full critic/advocate/skepticism payload — a test
// with a no-topic mock must fail (spec.md §8 property 6).
func BuildImproverPrompt(text, critique string, advocacy *model.Advocacy, skepticism *model.Skepticism, topic, contextStr string) (string, parser.Schema, error) {
	if strings.TrimSpace(topic) == "" {
		return "", parser.Schema{}, errors.New("agents: Improver requires a non-empty topic")
	}

	advocacyText, skepticismText := "(none)", "(none)"
	if advocacy != nil {
		advocacyText = "Strengths:\n" + bulletsToLines(advocacy.Strengths) +
			"\nOpportunities:\n" + bulletsToLines(advocacy.Opportunities) +
			"\nAddressed concerns:\n" + bulletsToLines(advocacy.AddressedConcerns)
	}
	if skepticism != nil {
		skepticismText = "Critical flaws:\n" + bulletsToLines(skepticism.CriticalFlaws) +
			"\nRisks:\n" + bulletsToLines(skepticism.Risks) +
			"\nQuestionable assumptions:\n" + bulletsToLines(skepticism.QuestionableAssumptions) +
			"\nMissing considerations:\n" + bulletsToLines(skepticism.MissingConsiderations)
	}

	prompt := fmt.Sprintf(`You are an improvement agent in a brainstorming pipeline. Rewrite the idea
to address its weaknesses while preserving its core strengths.

Topic: %s
Context: %s
Original idea: %s
Critique: %s
Advocacy:
%s
Skepticism:
%s

Return a JSON object with fields: title (string), description (string),
key_improvements (array of strings), implementation_steps (array of
strings), differentiators (array of strings).

%s

%s

Response (JSON object only, no explanation):`, topic, contextStr, text, critique, advocacyText, skepticismText, schemaBlock(model.ImprovedIdea{}), languageDirective)
	return prompt, improvedIdeaSchema, nil
}

// Improve calls the Improver agent.
func Improve(ctx context.Context, gen generateFunc, text, critique string, advocacy *model.Advocacy, skepticism *model.Skepticism, topic, contextStr string, temperature float32, safety SafetySettings) (*model.ImprovedIdea, error) {
	prompt, schema, err := BuildImproverPrompt(text, critique, advocacy, skepticism, topic, contextStr)
	if err != nil {
		return nil, err
	}
	rec, err := gen.GenerateStructured(ctx, prompt, schema, options(temperature, 2000, safety))
	if err != nil {
		return nil, err
	}
	return &model.ImprovedIdea{
		Title:               toString(rec["title"]),
		Description:         toString(rec["description"]),
		KeyImprovements:     toStringSlice(rec["key_improvements"]),
		ImplementationSteps: toStringSlice(rec["implementation_steps"]),
		Differentiators:     toStringSlice(rec["differentiators"]),
	}, nil
}
