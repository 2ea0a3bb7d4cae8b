package nfimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSuggestionsExactMatchFirst(t *testing.T) {
	items := []*Item{
		{ID: "itm_1", Name: "Farinha de Trigo"},
		{ID: "itm_2", Name: "Farinha de Trigo Integral"},
		{ID: "itm_3", Name: "Fermento"},
	}

	suggestions := BuildSuggestions("farinha de trigo", items, 5)

	require.NotEmpty(t, suggestions)
	assert.Equal(t, "itm_1", suggestions[0].ID)
	assert.Greater(t, suggestions[0].Score, suggestions[1].Score)
}

func TestBuildSuggestionsTokenOverlap(t *testing.T) {
	items := []*Item{
		{ID: "itm_1", Name: "Óleo de Soja"},
		{ID: "itm_2", Name: "Vinagre"},
	}

	suggestions := BuildSuggestions("oleo soja refinado", items, 5)

	require.Len(t, suggestions, 1)
	assert.Equal(t, "itm_1", suggestions[0].ID)
}

func TestBuildSuggestionsLimitAndNoMatch(t *testing.T) {
	items := []*Item{
		{ID: "itm_1", Name: "Sal Grosso"},
		{ID: "itm_2", Name: "Sal Fino"},
		{ID: "itm_3", Name: "Sal Marinho"},
	}

	suggestions := BuildSuggestions("sal", items, 2)
	assert.Len(t, suggestions, 2)

	assert.Empty(t, BuildSuggestions("pimenta", items, 5))
}
