package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerson_DisplayFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		person     Person
		wantName   string
		wantHandle string
	}{
		{"all fields", Person{ID: "u1", Name: "Ada", Username: "ada"}, "Ada", "ada"},
		{"no name", Person{ID: "u1", Username: "ada"}, "ada", "ada"},
		{"id only", Person{ID: "u1"}, "Unknown", "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantName, tt.person.DisplayName())
			assert.Equal(t, tt.wantHandle, tt.person.Handle())
		})
	}
}

func TestSearchHistory_PageUsesSnapshotOnly(t *testing.T) {
	h := &SearchHistory{
		ID:             7,
		SearchTitle:    "People at the ⊕",
		SearchSubtitle: "Dune, Tokyo",
		ResultCount:    2,
		Results: []PersonResult{
			{UserID: "a", Score: 3.5},
			{UserID: "b", Score: 0.1},
		},
	}

	page := h.Page()
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.PageSize)
	assert.Equal(t, 2, page.TotalResults)
	assert.False(t, page.HasMore)
	assert.Equal(t, "Dune, Tokyo", page.Subtitle)

	// The page must not alias the stored snapshot.
	page.People[0].Score = 99
	assert.Equal(t, 3.5, h.Results[0].Score)
}

func TestSearchHistory_EmptySnapshotEncodesAsArray(t *testing.T) {
	h := &SearchHistory{}
	data, err := json.Marshal(h.Page())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"people":[]`)
}
