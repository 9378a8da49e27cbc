// Package handlers provides the HTTP handlers and middleware of the refmatch API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/scrypster/refmatch/internal/config"
	"github.com/scrypster/refmatch/internal/engine"
	"github.com/scrypster/refmatch/internal/storage"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// APIHandlers contains the HTTP handlers for the refmatch API.
type APIHandlers struct {
	engine *engine.Engine
	search config.SearchConfig
	limits config.PersonalityConfig
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(eng *engine.Engine, cfg *config.Config) *APIHandlers {
	return &APIHandlers{
		engine: eng,
		search: cfg.Search,
		limits: cfg.Personality,
	}
}

// Health handles GET /health.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "Per-ref personality system operational",
	})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", storage.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid JSON: %v", storage.ErrInvalidInput, err)
	}
	return nil
}

// extractID returns a path value from the route pattern.
func extractID(r *http.Request, key string) string {
	return r.PathValue(key)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing else to write.
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}

// respondEngineError maps pipeline errors to status codes.
func respondEngineError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, engine.ErrNoValidTags):
		respondError(w, http.StatusBadRequest, "No valid refs found", nil)
	case errors.Is(err, storage.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("handlers: %s [%s]: %v", message, RequestIDFrom(r.Context()), err)
		respondError(w, http.StatusGatewayTimeout, message, nil)
	default:
		log.Printf("handlers: %s [%s]: %v", message, RequestIDFrom(r.Context()), err)
		respondError(w, http.StatusInternalServerError, message, nil)
	}
}
