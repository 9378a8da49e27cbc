package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/refmatch/web/handlers"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRateLimitMiddleware_AllowsNormalRate(t *testing.T) {
	limiter := handlers.NewRateLimiter(10, 20) // 10 req/s, burst 20
	handler := handlers.RateLimitMiddleware(http.HandlerFunc(okHandler), limiter)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/search_people", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitMiddleware_RejectsBurstOverflow(t *testing.T) {
	limiter := handlers.NewRateLimiter(0.001, 1)
	handler := handlers.RateLimitMiddleware(http.HandlerFunc(okHandler), limiter)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/search_people", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/search_people", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	handler := handlers.RateLimitMiddleware(http.HandlerFunc(okHandler), nil)
	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := handlers.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handlers.RequestIDFrom(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(handlers.RequestIDHeader))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(handlers.RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get(handlers.RequestIDHeader))
}

func TestWithTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := handlers.WithTimeout(time.Minute, func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	})

	handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	handlers.WithTimeout(0, func(w http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	})(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	assert.False(t, ok)
}
