package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrypster/refmatch/internal/llm"
	"github.com/scrypster/refmatch/internal/storage/sqlite"
	"github.com/scrypster/refmatch/pkg/types"
)

var errUpstream = errors.New("upstream unavailable")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubGenerator answers every prompt with text derived from its fields.
type stubGenerator struct {
	mu      sync.Mutex
	prompts []llm.Prompt
	err     error
	failOn  map[string]bool
}

func (g *stubGenerator) Complete(_ context.Context, p llm.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if g.err != nil || g.failOn[p.Name] {
		return "", errUpstream
	}
	if p.Name == llm.PromptComposite {
		return "composite of " + p.Field("sentence_count"), nil
	}
	if c := p.Field("caption"); c != "" {
		return fmt.Sprintf("%s: %s", p.Field("title"), c), nil
	}
	return "sentence about " + p.Field("title"), nil
}

func (g *stubGenerator) GetModel() string { return "stub-chat" }

func (g *stubGenerator) calls(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.prompts {
		if name == "" || p.Name == name {
			n++
		}
	}
	return n
}

func (g *stubGenerator) last() llm.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

// stubEmbedder returns a fixed vector per text, or [1, 0] by default.
type stubEmbedder struct {
	mu      sync.Mutex
	texts   []string
	vectors map[string][]float32
	err     error
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (e *stubEmbedder) GetModel() string { return "stub-embedding" }

func (e *stubEmbedder) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

func newTestStore(t *testing.T, clock *fakeClock) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	if clock != nil {
		store.SetClock(clock.Now)
	}
	return store
}

type fixture struct {
	store  *sqlite.Store
	clock  *fakeClock
	gen    *stubGenerator
	embed  *stubEmbedder
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	store := newTestStore(t, clock)
	gen := &stubGenerator{}
	embed := &stubEmbedder{}
	e := New(store, gen, embed, Config{Rand: rand.New(rand.NewSource(7))}, nil)
	e.History.SetClock(clock.Now)
	return &fixture{store: store, clock: clock, gen: gen, embed: embed, engine: e}
}

func (f *fixture) tag(t *testing.T, id, title string, vec ...float32) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.UpsertTag(ctx, &types.Tag{ID: id, Title: title}))
	if len(vec) > 0 {
		require.NoError(t, f.store.StoreTagVector(ctx, &types.TagVector{TagID: id, Title: title, Embedding: vec, Model: "stub-embedding"}))
	}
}

func (f *fixture) person(t *testing.T, id string, tagIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.UpsertPerson(ctx, &types.Person{ID: id, Name: strings.ToUpper(id), Username: id}))
	for _, tagID := range tagIDs {
		f.item(t, id, tagID, "")
	}
}

// item adds a tag to a person one minute after the previous write.
func (f *fixture) item(t *testing.T, userID, tagID, caption string) {
	t.Helper()
	f.clock.Advance(time.Minute)
	require.NoError(t, f.store.AddItem(context.Background(), &types.Item{UserID: userID, TagID: tagID, Caption: caption}))
}

func (f *fixture) people(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.person(t, fmt.Sprintf("p%02d", i))
	}
}
