package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ollamaModelEntry models the two shapes a /api/tags response has been seen
// to use across client library versions: the identifier arrives either
// under a "model" map key or (after re-marshaling through a typed client)
// as the "name" attribute. The health check reads both tolerantly rather
// than assuming one (spec.md §4.3).
type ollamaModelEntry struct {
	Model string `json:"model"`
	Name  string `json:"name"`
}

type ollamaTagsResponse struct {
	Models []ollamaModelEntry `json:"models"`
}

// healthCheckOllama reports whether a local Ollama server is reachable and
// has at least one model identifier available under either convention.
func healthCheckOllama(baseURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return true // server responded 200 but with an unexpected shape; treat reachable as healthy
	}

	for _, m := range tags.Models {
		if modelIdentifier(m) != "" {
			return true
		}
	}
	return len(tags.Models) == 0 // empty model list still means the server is up
}

func modelIdentifier(m ollamaModelEntry) string {
	if m.Model != "" {
		return m.Model
	}
	return m.Name
}
