// Package server provides HTTP server initialization and lifecycle management
// for the refmatch API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrypster/refmatch/internal/config"
	"github.com/scrypster/refmatch/internal/engine"
	"github.com/scrypster/refmatch/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// NewHandler builds the routed, middleware-wrapped API handler.
// gatherer may be nil, in which case /metrics is not served.
func NewHandler(cfg *config.Config, eng *engine.Engine, gatherer prometheus.Gatherer) http.Handler {
	api := handlers.NewAPIHandlers(eng, cfg)
	search := cfg.Server.SearchTimeout
	synth := cfg.Server.SynthesisTimeout

	mux := http.NewServeMux()
	mux.HandleFunc("POST /search_people", handlers.WithTimeout(search, api.SearchPeople))
	mux.HandleFunc("POST /generate-ref-personality", handlers.WithTimeout(synth, api.GenerateRefPersonality))
	mux.HandleFunc("POST /regenerate-ref-personality", handlers.WithTimeout(synth, api.RegenerateRefPersonality))
	mux.HandleFunc("POST /generate-user-personality", handlers.WithTimeout(synth, api.GenerateUserPersonality))
	mux.HandleFunc("POST /generate-vectors", handlers.WithTimeout(synth, api.GenerateVectors))
	mux.HandleFunc("GET /search-history/{user_id}", handlers.WithTimeout(search, api.SearchHistory))
	mux.HandleFunc("GET /search-history/{user_id}/restore/{history_id}", handlers.WithTimeout(search, api.RestoreSearch))
	mux.HandleFunc("GET /health", api.Health)

	if gatherer != nil && cfg.Server.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	var limiter *handlers.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}

	// Wrap the mux with rate limiting, request IDs, then security headers.
	handler := handlers.RateLimitMiddleware(mux, limiter)
	handler = handlers.RequestIDMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	return handler
}

// Server is a running HTTP server.
type Server struct {
	addr string
	done chan struct{}
}

// Addr returns the address being listened on (useful for testing with port 0).
func (s *Server) Addr() string { return s.addr }

// Done is closed once the server has shut down.
func (s *Server) Done() <-chan struct{} { return s.done }

// Start listens on the configured address and serves handler until ctx is
// cancelled, then shuts down gracefully within cfg.Server.ShutdownTimeout.
func Start(ctx context.Context, cfg *config.Config, handler http.Handler) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// WriteTimeout must outlast the slowest route budget.
	writeTimeout := cfg.Server.SynthesisTimeout + 5*time.Second
	if cfg.Server.SearchTimeout > cfg.Server.SynthesisTimeout {
		writeTimeout = cfg.Server.SearchTimeout + 5*time.Second
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{addr: listener.Addr().String(), done: make(chan struct{})}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server: serve error: %v", err)
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
	}()

	log.Printf("server: listening on %s", s.addr)
	return s, nil
}
