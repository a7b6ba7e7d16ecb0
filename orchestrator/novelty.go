package orchestrator

import "strings"

// tokenSet lowercases and splits s into a deduplicated token set for
// Jaccard similarity comparisons.
func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccardSimilarity returns |A∩B| / |A∪B| for two token sets, 0 if both
// are empty (spec.md §4.5 S2 "shallow novelty filter").
func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// applyNoveltyFilter walks ranked (already score-sorted) indices, keeping an
// index only if its Jaccard similarity to every already-kept index is below
// threshold, until n are held or the ranked list is exhausted (spec.md §4.5
// S2, scenario E5).
func applyNoveltyFilter(ranked []int, texts []string, n int, threshold float64) []int {
	tokens := make([]map[string]struct{}, len(texts))
	for i, t := range texts {
		tokens[i] = tokenSet(t)
	}

	var kept []int
	for _, idx := range ranked {
		if len(kept) >= n {
			break
		}
		novel := true
		for _, k := range kept {
			if jaccardSimilarity(tokens[idx], tokens[k]) >= threshold {
				novel = false
				break
			}
		}
		if novel {
			kept = append(kept, idx)
		}
	}

	// Re-fill from the ranked remainder if novelty filtering left us short
	// (spec.md: "then re-fill from the ranked remainder until N held or
	// exhausted").
	if len(kept) < n {
		keptSet := make(map[int]struct{}, len(kept))
		for _, k := range kept {
			keptSet[k] = struct{}{}
		}
		for _, idx := range ranked {
			if len(kept) >= n {
				break
			}
			if _, already := keptSet[idx]; already {
				continue
			}
			kept = append(kept, idx)
		}
	}
	return kept
}
