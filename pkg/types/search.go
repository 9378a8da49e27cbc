package types

import "time"

// PersonResult is one rendered row of a search result page.
type PersonResult struct {
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	Username           string  `json:"username"`
	AvatarURL          string  `json:"avatar_url"`
	SharedRefs         int     `json:"shared_refs"`
	Score              float64 `json:"score"`
	PersonalityInsight string  `json:"personality_insight"`
}

// SearchPage is the response of a search, or of a restored history entry.
type SearchPage struct {
	People       []PersonResult `json:"people"`
	TotalResults int            `json:"total_results"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	HasMore      bool           `json:"has_more"`
	Title        string         `json:"title"`
	Subtitle     string         `json:"subtitle"`
}

// SearchHistory is a stored snapshot of a first result page.
// ResultCount always equals len(Results); stores enforce it on write.
type SearchHistory struct {
	ID             int64          `json:"id"`
	UserID         string         `json:"user_id"`
	RefIDs         []string       `json:"ref_ids"`
	RefTitles      []string       `json:"ref_titles"`
	SearchTitle    string         `json:"search_title"`
	SearchSubtitle string         `json:"search_subtitle"`
	ResultCount    int            `json:"result_count"`
	Results        []PersonResult `json:"search_results"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Page rebuilds the result page from the snapshot alone.
func (h *SearchHistory) Page() *SearchPage {
	people := make([]PersonResult, len(h.Results))
	copy(people, h.Results)
	return &SearchPage{
		People:       people,
		TotalResults: h.ResultCount,
		Page:         1,
		PageSize:     len(people),
		HasMore:      false,
		Title:        h.SearchTitle,
		Subtitle:     h.SearchSubtitle,
	}
}
