package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/madspark/madspark/core"
)

// Entry is a cached, already-validated record plus its token accounting
// (spec.md §3 "CacheValue").
type Entry struct {
	Value     json.RawMessage `json:"value"`
	TokensIn  int             `json:"tokens_in"`
	TokensOut int             `json:"tokens_out"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the Response Cache contract (spec.md §4.2). Implementations must
// be safe for concurrent Get/Put from sibling goroutines.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, value interface{}, tokensIn, tokensOut int) error
	// Lock returns an unlock function after acquiring the per-key
	// in-flight lock, preventing a cache-stampede fill for the same key.
	Lock(key string) func()
}

// marshalValue serializes value for storage, returning CacheTypeError (not
// a generic error) when the caller handed the cache something that cannot
// round-trip through JSON — spec.md §4.2 says this degrades the operation
// to "no-cache" for that request only, never propagating.
func marshalValue(key string, value interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, &core.CacheTypeError{
			Key:  key,
			Want: "json-serializable value",
			Got:  fmt.Sprintf("%T", value),
		}
	}
	return raw, nil
}
