// Package parser implements the Structured-Output Parser (C1): it turns an
// LLM's raw text response into schema-validated records using a ladder of
// progressively more forgiving decode strategies (spec.md §4.1).
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/madspark/madspark/core"
)

// NumericRange clamps a schema field into [Min, Max]. PercentLike marks a
// field (e.g. "confidence") whose out-of-range values are normalized to
// [0,1] rather than the default [0,10] scale-down rule.
type NumericRange struct {
	Min, Max    float64
	PercentLike bool
}

// Schema describes the shape the Parser validates decoded records against.
// It intentionally stays generic (map-of-rules) rather than a full
// JSON-Schema engine — Router callers (agents package) supply per-agent
// rules and convert the validated map into a typed record afterward.
type Schema struct {
	Name          string
	Version       int
	Required      []string
	NumericFields map[string]NumericRange
	StringFields  map[string]int // field -> max length before truncation
}

// Identifier is the cache-key schema component (DESIGN.md Open Question
// decision #4): bumping Version invalidates old cache entries automatically.
func (s Schema) Identifier() string {
	return fmt.Sprintf("%s/%d", s.Name, s.Version)
}

// Metrics receives parser telemetry counters. Nil-safe: a Parser with no
// Metrics configured simply skips counting.
type Metrics interface {
	IncStrategy(name string)
	IncClamped()
	IncTruncated()
}

var (
	scoreRe   = regexp.MustCompile(`(?i)score\s*[:=]\s*([0-9]+(?:\.[0-9]+)?)`)
	commentRe = regexp.MustCompile(`(?i)comment\s*[:=]\s*(.+)`)
	fenceRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// Parser is an immutable value holding pre-compiled patterns; safe for
// concurrent use across sibling goroutines (spec.md §9 "pre-compile all
// patterns once; hold them in an immutable Parser value").
type Parser struct {
	metrics Metrics
}

// New creates a Parser. metrics may be nil.
func New(metrics Metrics) *Parser {
	return &Parser{metrics: metrics}
}

func (p *Parser) countStrategy(name string) {
	if p.metrics != nil {
		p.metrics.IncStrategy(name)
	}
}

// ParseOne decodes raw text into a single validated record matching schema.
// It fails with *core.ParseError only once every strategy is exhausted.
func (p *Parser) ParseOne(raw string, schema Schema) (map[string]interface{}, error) {
	cleaned := stripFences(raw)
	var attempted []string

	for _, strat := range strategies {
		attempted = append(attempted, strat.name)
		records, ok := strat.fn(cleaned)
		if !ok || len(records) == 0 {
			continue
		}
		rec, warnings := p.validate(records[0], schema)
		if rec == nil {
			continue
		}
		p.countStrategy(strat.name)
		for range warnings {
			// warnings already counted inside validate via metrics
		}
		return rec, nil
	}

	return nil, &core.ParseError{
		Op:         "parser.ParseOne",
		Strategies: attempted,
		Raw:        truncateForError(raw),
		Err:        core.ErrParseFailed,
	}
}

// ParseBatch decodes raw text into exactly expectedCount validated records,
// padding with a sentinel {"error":true,"partial_text":...} record when the
// model returns fewer than expected (spec.md §4.1 "Batch size invariant").
func (p *Parser) ParseBatch(raw string, schema Schema, expectedCount int) ([]map[string]interface{}, error) {
	cleaned := stripFences(raw)
	var attempted []string
	var decoded []map[string]interface{}

	for _, strat := range strategies {
		attempted = append(attempted, strat.name)
		records, ok := strat.fn(cleaned)
		if !ok || len(records) == 0 {
			continue
		}

		var valid []map[string]interface{}
		for _, r := range records {
			rec, _ := p.validate(r, schema)
			if rec != nil {
				valid = append(valid, rec)
			}
		}
		if len(valid) == 0 {
			continue
		}

		p.countStrategy(strat.name)
		decoded = valid
		break
	}

	if decoded == nil {
		return nil, &core.ParseError{
			Op:         "parser.ParseBatch",
			Strategies: attempted,
			Raw:        truncateForError(raw),
			Err:        core.ErrParseFailed,
		}
	}

	return padBatch(decoded, expectedCount, raw), nil
}

func padBatch(decoded []map[string]interface{}, expectedCount int, raw string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, expectedCount)
	for i := 0; i < expectedCount; i++ {
		if i < len(decoded) {
			out = append(out, decoded[i])
			continue
		}
		out = append(out, map[string]interface{}{
			"error":        true,
			"partial_text": truncateForError(raw),
		})
	}
	return out
}

// validate checks required fields, clamps numeric fields into their
// declared (or default [0,10]) range, and truncates overlong strings.
// Returns nil if a required field is missing.
func (p *Parser) validate(rec map[string]interface{}, schema Schema) (map[string]interface{}, []string) {
	for _, field := range schema.Required {
		if _, ok := rec[field]; !ok {
			return nil, nil
		}
	}

	var warnings []string
	out := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		out[k] = v
	}

	for field, rng := range schema.NumericFields {
		raw, ok := out[field]
		if !ok {
			continue
		}
		f, ok := toFloat(raw)
		if !ok {
			continue
		}
		normalized := normalizeNumeric(f, rng)
		if normalized != f {
			warnings = append(warnings, field)
			if p.metrics != nil {
				p.metrics.IncClamped()
			}
		}
		out[field] = normalized
	}

	for field, maxLen := range schema.StringFields {
		raw, ok := out[field]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || len(s) <= maxLen {
			continue
		}
		out[field] = truncate(s, maxLen)
		warnings = append(warnings, field)
		if p.metrics != nil {
			p.metrics.IncTruncated()
		}
	}

	return out, warnings
}

// normalizeNumeric applies the model-scale-mismatch rules from spec.md
// §4.1: a score-like field reported on a 0-100 scale (detected by >Max) is
// divided by 10 before clamping; a percent-like field is divided by 100.
func normalizeNumeric(v float64, rng NumericRange) float64 {
	max := rng.Max
	if max == 0 {
		max = 10
	}
	if rng.PercentLike {
		if v > 1 {
			v = v / 100
		}
	} else if v > max {
		v = v / 10
	}
	if v < rng.Min {
		v = rng.Min
	}
	if v > max {
		v = max
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return s[:max-1] + "…"
}

func truncateForError(s string) string {
	const maxRaw = 2048
	if len(s) <= maxRaw {
		return s
	}
	return s[:maxRaw]
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}
