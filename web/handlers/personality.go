package handlers

import (
	"net/http"
	"strings"
)

// GenerateRefPersonality handles POST /generate-ref-personality.
func (h *APIHandlers) GenerateRefPersonality(w http.ResponseWriter, r *http.Request) {
	var req GenerateRefPersonalityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.RefID) == "" || strings.TrimSpace(req.RefTitle) == "" {
		respondError(w, http.StatusBadRequest, "user_id, ref_id and ref_title are required", nil)
		return
	}

	sentence := h.engine.Synthesizer.TagSentence(r.Context(), req.UserID, req.RefID, req.RefTitle, req.UserCaption)
	respondJSON(w, http.StatusOK, PersonalitySentenceResponse{PersonalitySentence: sentence})
}

// RegenerateRefPersonality handles POST /regenerate-ref-personality. The
// caption of the person's most recent item for the ref is used.
func (h *APIHandlers) RegenerateRefPersonality(w http.ResponseWriter, r *http.Request) {
	var req RegenerateRefPersonalityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.RefID) == "" {
		respondError(w, http.StatusBadRequest, "user_id and ref_id are required", nil)
		return
	}

	sentence, err := h.engine.Synthesizer.RegenerateTagSentence(r.Context(), req.UserID, req.RefID)
	if err != nil {
		respondEngineError(w, r, "failed to regenerate ref personality", err)
		return
	}
	respondJSON(w, http.StatusOK, PersonalitySentenceResponse{PersonalitySentence: sentence})
}

// GenerateUserPersonality handles POST /generate-user-personality.
func (h *APIHandlers) GenerateUserPersonality(w http.ResponseWriter, r *http.Request) {
	var req UserPersonalityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	limit := h.limits.CompositeLimit
	if req.LimitRefs != nil {
		limit = *req.LimitRefs
	}

	result, err := h.engine.Synthesizer.Composite(r.Context(), req.UserID, limit)
	if err != nil {
		respondEngineError(w, r, "failed to generate user personality", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
