// Package agents implements the Agent Functions (C4): one pair of pure
// functions per role — build(inputs) -> (prompt, schema) — plus a thin
// caller that invokes the Router. Agents never talk to providers directly
// (spec.md §4.4).
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/madspark/madspark/core"
	"github.com/madspark/madspark/model"
	"github.com/madspark/madspark/parser"
)

// languageDirective is appended to every prompt, independent of the LLM's
// default, per spec.md §4.4.
const languageDirective = "Respond in the same natural language as the input topic."

// generateFunc is the Router surface agents depend on — satisfied by
// *router.Router, kept as an interface here so agents don't import router
// and tests can pass a scripted fake in its place.
type generateFunc interface {
	GenerateStructured(ctx context.Context, prompt string, schema parser.Schema, options *core.AIOptions) (map[string]interface{}, error)
	GenerateStructuredBatch(ctx context.Context, prompt string, schema parser.Schema, expectedCount int, options *core.AIOptions) ([]map[string]interface{}, error)
}

// SafetySettings is the shared handler every agent routes provider safety
// configuration through, so no agent hard-codes thresholds (spec.md §4.4).
type SafetySettings struct {
	BlockHarassment bool
	BlockHate       bool
	BlockSexual     bool
	BlockDangerous  bool
}

// DefaultSafetySettings blocks all four standard categories.
func DefaultSafetySettings() SafetySettings {
	return SafetySettings{BlockHarassment: true, BlockHate: true, BlockSexual: true, BlockDangerous: true}
}

func options(temperature float32, maxTokens int, safety SafetySettings) *core.AIOptions {
	// SystemPrompt carries the safety posture as plain-text instructions,
	// so agents never encode thresholds themselves. No provider client maps
	// it onto a dedicated safety_settings request parameter.
	return &core.AIOptions{
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		SystemPrompt: safetyPreamble(safety),
	}
}

func safetyPreamble(s SafetySettings) string {
	var blocks []string
	if s.BlockHarassment {
		blocks = append(blocks, "harassment")
	}
	if s.BlockHate {
		blocks = append(blocks, "hate speech")
	}
	if s.BlockSexual {
		blocks = append(blocks, "sexual content")
	}
	if s.BlockDangerous {
		blocks = append(blocks, "dangerous content")
	}
	if len(blocks) == 0 {
		return ""
	}
	return fmt.Sprintf("Block content categories: %s.", strings.Join(blocks, ", "))
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// schemaReflector generates the JSON Schema embedded in each prompt so the
// provider sees the exact record shape instead of prose alone. Ref-free and
// top-level-expanded so small record types read as one self-contained block.
var schemaReflector = &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}

// schemaBlock renders v's JSON Schema for appending to a prompt. v should be
// a zero value of the target record type (e.g. model.Idea{}).
func schemaBlock(v interface{}) string {
	data, err := json.MarshalIndent(schemaReflector.Reflect(v), "", "  ")
	if err != nil {
		return ""
	}
	return fmt.Sprintf("JSON Schema for each object:\n%s", data)
}

func toBulletSlice(v interface{}) []model.Bullet {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]model.Bullet, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, model.Bullet{Title: toString(m["title"]), Body: toString(m["body"])})
	}
	return out
}
