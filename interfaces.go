package madspark

import (
	"github.com/madspark/madspark/agents"
	"github.com/madspark/madspark/model"
)

// Request, Result, and ProgressEvent are re-exported so callers driving a
// Pipeline don't need a separate import of the model package for the
// common case (spec.md §3).
type (
	Request       = model.Request
	Result        = model.Result
	Candidate     = model.Candidate
	ProgressEvent = model.ProgressEvent
	Attachment    = model.Attachment
)

// TemperaturePreset and ModelTier are re-exported for the same reason.
type (
	TemperaturePreset = model.TemperaturePreset
	ModelTier         = model.ModelTier
)

const (
	TemperatureConservative = model.TemperatureConservative
	TemperatureBalanced     = model.TemperatureBalanced
	TemperatureCreative     = model.TemperatureCreative
	TemperatureWild         = model.TemperatureWild
)

const (
	TierFast     = model.TierFast
	TierBalanced = model.TierBalanced
	TierQuality  = model.TierQuality
)

// SafetySettings is re-exported so callers configuring content-safety
// thresholds don't need to import agents directly.
type SafetySettings = agents.SafetySettings

// DefaultSafetySettings blocks all four standard content categories.
func DefaultSafetySettings() SafetySettings {
	return agents.DefaultSafetySettings()
}
