// Package cache implements the Response Cache (C2): content-addressed,
// process-local memoization of validated agent responses keyed by
// CacheKey (spec.md §4.2).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key computes the hex SHA-256 CacheKey for a provider call (spec.md §3
// "CacheKey"). temperatureBucket should already be rounded by the caller
// (e.g. to two decimal places) so that near-identical temperatures collapse
// onto the same cache entry.
func Key(providerName, modelTier, schemaIdentifier, normalizedPrompt string, temperatureBucket float64) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%.2f", providerName, modelTier, schemaIdentifier, normalizedPrompt, temperatureBucket)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
