package nfimport

import (
	"sort"
	"strings"
)

// Suggestion is a scored catalog item candidate for a pending-mapping group.
type Suggestion struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

/// BuildSuggestions scores catalog items against a normalized ingredient name:
// exact match +100, substring containment either direction +50, each shared
// token of length >= 3 +10. Returns the top `limit` by score, ties broken by
// name.
func BuildSuggestions(ingredientName string, items []*Item, limit int) []Suggestion {
	normalized := NormalizeName(ingredientName)
	tokens := strings.Fields(normalized)

	scored := make([]Suggestion, 0)
	for _, item := range items {
		itemNorm := NormalizeName(item.Name)
		score := 0
		if itemNorm == normalized {
			score += 100
		}
		if strings.Contains(itemNorm, normalized) || strings.Contains(normalized, itemNorm) {
			score += 50
		}
		for _, token := range tokens {
			if len(token) >= 3 && strings.Contains(itemNorm, token) {
				score += 10
			}
		}
		if score > 0 {
			scored = append(scored, Suggestion{ID: item.ID, Name: item.Name, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
