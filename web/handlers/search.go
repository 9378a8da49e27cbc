package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/scrypster/refmatch/internal/engine"
	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// SearchPeople handles POST /search_people.
func (h *APIHandlers) SearchPeople(w http.ResponseWriter, r *http.Request) {
	var req SearchPeopleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	if len(req.RefIDs) == 0 {
		respondError(w, http.StatusBadRequest, "ref_ids must contain at least one ref", nil)
		return
	}
	if len(req.RefIDs) > h.search.MaxRefIDs {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("ref_ids must contain at most %d refs", h.search.MaxRefIDs), nil)
		return
	}

	page := 1
	if req.Page != nil {
		page = *req.Page
	}
	pageSize := h.search.DefaultPageSize
	if req.PageSize != nil {
		pageSize = *req.PageSize
	}

	result, err := h.engine.Search.Search(r.Context(), engine.SearchRequest{
		UserID:   req.UserID,
		RefIDs:   req.RefIDs,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondEngineError(w, r, "search failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SearchHistory handles GET /search-history/{user_id}?limit=20.
func (h *APIHandlers) SearchHistory(w http.ResponseWriter, r *http.Request) {
	userID := extractID(r, "user_id")
	limit := parseInt(r.URL.Query().Get("limit"), h.search.HistoryLimit)

	history, err := h.engine.Search.ListHistory(r.Context(), userID, limit)
	if err != nil {
		respondEngineError(w, r, "failed to load search history", err)
		return
	}
	if history == nil {
		history = []*types.SearchHistory{}
	}

	respondJSON(w, http.StatusOK, HistoryResponse{History: history})
}

// RestoreSearch handles GET /search-history/{user_id}/restore/{history_id}.
// The response is the stored first page, never a re-run search.
func (h *APIHandlers) RestoreSearch(w http.ResponseWriter, r *http.Request) {
	userID := extractID(r, "user_id")
	id, err := strconv.ParseInt(extractID(r, "history_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "history_id must be an integer", nil)
		return
	}

	result, err := h.engine.Search.Restore(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Search history not found", nil)
			return
		}
		respondEngineError(w, r, "failed to restore search", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
