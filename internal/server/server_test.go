package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/refmatch/internal/config"
	"github.com/scrypster/refmatch/internal/engine"
	"github.com/scrypster/refmatch/internal/llm"
	"github.com/scrypster/refmatch/internal/server"
	"github.com/scrypster/refmatch/internal/storage/sqlite"
	"github.com/scrypster/refmatch/pkg/types"
)

type echoGenerator struct{ calls int }

func (g *echoGenerator) Complete(_ context.Context, p llm.Prompt) (string, error) {
	g.calls++
	if p.Name == llm.PromptComposite {
		return "a composite", nil
	}
	if c := p.Field("caption"); c != "" {
		return p.Field("title") + " / " + c, nil
	}
	return "about " + p.Field("title"), nil
}

func (g *echoGenerator) GetModel() string { return "echo" }

type unitEmbedder struct{}

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }
func (unitEmbedder) GetModel() string                                 { return "unit" }

type testEnv struct {
	url   string
	store *sqlite.Store
	gen   *echoGenerator
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			SearchTimeout:    5 * time.Second,
			SynthesisTimeout: 5 * time.Second,
			EnableMetrics:    true,
		},
		Search: config.SearchConfig{
			MaxRefIDs:       12,
			DefaultPageSize: 20,
			MaxPageSize:     50,
			HistoryLimit:    20,
		},
		Personality: config.PersonalityConfig{CompositeLimit: 12},
	}
}

// startTestServer serves the API over an in-memory SQLite store.
func startTestServer(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err, "failed to create in-memory SQLite store")
	t.Cleanup(func() { _ = store.Close() })

	reg := prometheus.NewRegistry()
	gen := &echoGenerator{}
	eng := engine.New(store, gen, unitEmbedder{}, engine.Config{Rand: rand.New(rand.NewSource(1))}, engine.NewMetrics(reg))

	ts := httptest.NewServer(server.NewHandler(cfg, eng, reg))
	t.Cleanup(ts.Close)
	return &testEnv{url: ts.URL, store: store, gen: gen}
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, tag := range []types.Tag{{ID: "dune", Title: "Dune"}, {ID: "tokyo", Title: "Tokyo"}, {ID: "jazz", Title: "Jazz"}} {
		tag := tag
		require.NoError(t, e.store.UpsertTag(ctx, &tag))
	}
	for i := 0; i < 25; i++ {
		require.NoError(t, e.store.UpsertPerson(ctx, &types.Person{ID: fmt.Sprintf("u%02d", i), Name: fmt.Sprintf("User %d", i)}))
	}
	require.NoError(t, e.store.UpsertPerson(ctx, &types.Person{ID: "me", Username: "me"}))
	require.NoError(t, e.store.AddItem(ctx, &types.Item{UserID: "u01", TagID: "dune", Caption: "read it twice"}))
	require.NoError(t, e.store.AddItem(ctx, &types.Item{UserID: "u01", TagID: "jazz"}))
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			r = strings.NewReader(s)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			r = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, e.url+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	env := startTestServer(t, testConfig())

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var health map[string]string
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}

func TestSearchPeople(t *testing.T) {
	env := startTestServer(t, testConfig())
	env.seed(t)

	resp, body := env.do(t, http.MethodPost, "/search_people", map[string]interface{}{
		"user_id": "me", "ref_ids": []string{"dune", "tokyo"}, "page_size": 10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var page types.SearchPage
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 25, page.TotalResults)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Len(t, page.People, 10)
	assert.True(t, page.HasMore)
	assert.Equal(t, "People at the ⊕", page.Title)
	assert.Equal(t, "Dune, Tokyo", page.Subtitle)
	for _, p := range page.People {
		assert.NotEqual(t, "me", p.UserID)
		assert.Equal(t, engine.DefaultPersonality, p.PersonalityInsight)
	}

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &raw))
	person := raw["people"].([]interface{})[0].(map[string]interface{})
	for _, key := range []string{"user_id", "name", "username", "avatar_url", "shared_refs", "score", "personality_insight"} {
		assert.Contains(t, person, key)
	}
}

func TestSearchPeople_DefaultsPageSize(t *testing.T) {
	env := startTestServer(t, testConfig())
	env.seed(t)

	resp, body := env.do(t, http.MethodPost, "/search_people", map[string]interface{}{
		"user_id": "me", "ref_ids": []string{"dune"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page types.SearchPage
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 20, page.PageSize)
	assert.Len(t, page.People, 20)
}

func TestSearchPeople_BadRequests(t *testing.T) {
	env := startTestServer(t, testConfig())
	env.seed(t)

	tooMany := make([]string, 13)
	for i := range tooMany {
		tooMany[i] = "dune"
	}

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", `{"user_id": `},
		{"empty body", ""},
		{"missing user", map[string]interface{}{"ref_ids": []string{"dune"}}},
		{"no refs", map[string]interface{}{"user_id": "me", "ref_ids": []string{}}},
		{"too many refs", map[string]interface{}{"user_id": "me", "ref_ids": tooMany}},
		{"unknown refs", map[string]interface{}{"user_id": "me", "ref_ids": []string{"nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/search_people", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

			var errResp map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &errResp))
			assert.NotEmpty(t, errResp["error"])
			assert.Equal(t, "Bad Request", errResp["code"])
		})
	}

	resp, _ := env.do(t, http.MethodGet, "/search_people", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSearchHistoryAndRestore(t *testing.T) {
	env := startTestServer(t, testConfig())
	env.seed(t)

	resp, body := env.do(t, http.MethodPost, "/search_people", map[string]interface{}{
		"user_id": "me", "ref_ids": []string{"dune", "jazz"}, "page_size": 5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var original types.SearchPage
	require.NoError(t, json.Unmarshal(body, &original))

	resp, body = env.do(t, http.MethodGet, "/search-history/me?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history struct {
		History []types.SearchHistory `json:"history"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history.History, 1)
	entry := history.History[0]
	assert.Equal(t, []string{"dune", "jazz"}, entry.RefIDs)
	assert.Equal(t, []string{"Dune", "Jazz"}, entry.RefTitles)
	assert.Equal(t, 5, entry.ResultCount)
	assert.Len(t, entry.Results, 5)

	path := fmt.Sprintf("/search-history/me/restore/%d", entry.ID)
	_, first := env.do(t, http.MethodGet, path, nil)
	for i := 0; i < 3; i++ {
		resp, again := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, string(first), string(again))
	}

	var restored types.SearchPage
	require.NoError(t, json.Unmarshal(first, &restored))
	assert.Equal(t, original.People, restored.People)
	assert.Equal(t, 5, restored.TotalResults)
	assert.Equal(t, 5, restored.PageSize)
	assert.False(t, restored.HasMore)

	resp, _ = env.do(t, http.MethodGet, fmt.Sprintf("/search-history/someone/restore/%d", entry.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/search-history/me/restore/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/search-history/nobody", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"history":[]}`, string(body))
}

func TestGenerateRefPersonality(t *testing.T) {
	env := startTestServer(t, testConfig())
	env.seed(t)

	resp, body := env.do(t, http.MethodPost, "/generate-ref-personality", map[string]string{
		"user_id": "u01", "ref_id": "dune", "ref_title": "Dune", "user_caption": "read it twice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"personality_sentence":"Dune / read it twice"}`, string(body))

	resp, _ = env.do(t, http.MethodPost, "/generate-ref-personality", map[string]string{"user_id": "u01"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegenerateRefPersonality(t *testing.T) {
	env := startTestServer(t, testConfig())
	env.seed(t)

	resp, body := env.do(t, http.MethodPost, "/regenerate-ref-personality", map[string]string{"user_id": "u01", "ref_id": "dune"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"personality_sentence":"Dune / read it twice"}`, string(body))

	resp, _ = env.do(t, http.MethodPost, "/regenerate-ref-personality", map[string]string{"user_id": "u01", "ref_id": "tokyo"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateUserPersonality(t *testing.T) {
	env := startTestServer(t, testConfig())
	env.seed(t)

	resp, body := env.do(t, http.MethodPost, "/generate-user-personality", map[string]interface{}{"user_id": "u01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Personality string   `json:"personality"`
		RefIDsUsed  []string `json:"ref_ids_used"`
		RefCount    int      `json:"ref_count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "a composite", out.Personality)
	assert.ElementsMatch(t, []string{"dune", "jazz"}, out.RefIDsUsed)
	assert.Equal(t, 2, out.RefCount)

	resp, body = env.do(t, http.MethodPost, "/generate-user-personality", map[string]interface{}{"user_id": "u05", "limit_refs": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, engine.PlaceholderPersonality, out.Personality)
	assert.Empty(t, out.RefIDsUsed)

	// The stored composite now shows up in search results.
	_, body = env.do(t, http.MethodPost, "/search_people", map[string]interface{}{"user_id": "me", "ref_ids": []string{"dune"}, "page_size": 50})
	var page types.SearchPage
	require.NoError(t, json.Unmarshal(body, &page))
	found := false
	for _, p := range page.People {
		if p.UserID == "u01" {
			found = true
			assert.Equal(t, "a composite", p.PersonalityInsight)
		}
	}
	assert.True(t, found)
}

func TestGenerateVectors(t *testing.T) {
	env := startTestServer(t, testConfig())

	refs := map[string]interface{}{"refs": []map[string]string{
		{"id": "dune", "title": "Dune", "type": "book"},
		{"id": "tokyo", "title": "Tokyo", "type": "place"},
	}}
	resp, body := env.do(t, http.MethodPost, "/generate-vectors", refs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"generated":2,"errors":[]}`, string(body))

	resp, body = env.do(t, http.MethodPost, "/generate-vectors", refs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"generated":0,"errors":[]}`, string(body), "existing vectors are skipped")
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t, testConfig())
	env.seed(t)
	env.do(t, http.MethodPost, "/search_people", map[string]interface{}{"user_id": "me", "ref_ids": []string{"dune"}})

	resp, body := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "refmatch_searches_total 1")
	assert.Contains(t, string(body), `refmatch_history_writes_total{outcome="inserted"} 1`)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 2
	env := startTestServer(t, cfg)

	codes := make([]int, 3)
	for i := range codes {
		resp, _ := env.do(t, http.MethodGet, "/health", nil)
		codes[i] = resp.StatusCode
	}
	assert.Equal(t, []int{200, 200, http.StatusTooManyRequests}, codes)
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := server.Start(ctx, cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
