package handlers

import (
	"net/http"
)

// GenerateVectors handles POST /generate-vectors. Refs that already have a
// vector are skipped; per-ref failures are reported in the body.
func (h *APIHandlers) GenerateVectors(w http.ResponseWriter, r *http.Request) {
	var req VectorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	report := h.engine.Vectors.Generate(r.Context(), req.Refs)
	respondJSON(w, http.StatusOK, report)
}
