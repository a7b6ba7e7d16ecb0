package madspark

import "github.com/madspark/madspark/core"

// Sentinel errors re-exported from core, per spec.md §7's documented error
// taxonomy. Compare with errors.Is.
var (
	ErrInvalidConfiguration = core.ErrInvalidConfiguration
	ErrMissingConfiguration = core.ErrMissingConfiguration
	ErrTimeout              = core.ErrTimeout
	ErrContextCanceled      = core.ErrContextCanceled
	ErrMaxRetriesExceeded   = core.ErrMaxRetriesExceeded
	ErrParseFailed          = core.ErrParseFailed
	ErrCacheTypeError       = core.ErrCacheTypeError
	ErrAllProvidersFailed   = core.ErrAllProvidersFailed
	ErrWorkflowFailed       = core.ErrWorkflowFailed
	ErrProviderUnavailable  = core.ErrProviderUnavailable
)

// IsRetryable reports whether err represents a transient failure worth
// retrying at a higher level than the Router's own retry/backoff.
func IsRetryable(err error) bool { return core.IsRetryable(err) }

// IsConfigurationError reports whether err originates from invalid or
// missing Config.
func IsConfigurationError(err error) bool { return core.IsConfigurationError(err) }

// IsCanceled reports whether err represents context cancellation rather
// than a genuine failure.
func IsCanceled(err error) bool { return core.IsCanceled(err) }
