package handlers

import (
	"github.com/scrypster/refmatch/internal/engine"
	"github.com/scrypster/refmatch/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SearchPeopleRequest is the body of POST /search_people.
// Page and PageSize are pointers so that an omitted value takes the default.
type SearchPeopleRequest struct {
	UserID   string   `json:"user_id"`
	RefIDs   []string `json:"ref_ids"`
	Page     *int     `json:"page,omitempty"`
	PageSize *int     `json:"page_size,omitempty"`
}

// GenerateRefPersonalityRequest is the body of POST /generate-ref-personality.
type GenerateRefPersonalityRequest struct {
	UserID      string `json:"user_id"`
	RefID       string `json:"ref_id"`
	RefTitle    string `json:"ref_title"`
	UserCaption string `json:"user_caption,omitempty"`
}

// RegenerateRefPersonalityRequest is the body of POST /regenerate-ref-personality.
type RegenerateRefPersonalityRequest struct {
	UserID string `json:"user_id"`
	RefID  string `json:"ref_id"`
}

// PersonalitySentenceResponse carries one per-ref sentence.
type PersonalitySentenceResponse struct {
	PersonalitySentence string `json:"personality_sentence"`
}

// UserPersonalityRequest is the body of POST /generate-user-personality.
type UserPersonalityRequest struct {
	UserID    string `json:"user_id"`
	LimitRefs *int   `json:"limit_refs,omitempty"`
}

// VectorRequest is the body of POST /generate-vectors.
type VectorRequest struct {
	Refs []engine.VectorRef `json:"refs"`
}

// HistoryResponse is the body of GET /search-history/{user_id}.
type HistoryResponse struct {
	History []*types.SearchHistory `json:"history"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
