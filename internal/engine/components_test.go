package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

func ptr(v float64) *float64 { return &v }

func TestScoringPolicy(t *testing.T) {
	p := DefaultScoringPolicy()

	tests := []struct {
		name  string
		exact int
		sim   *float64
		want  float64
	}{
		{"baseline only", 0, nil, 0.1},
		{"exact with baseline", 2, nil, 6.1},
		{"exact with similarity", 1, ptr(0.42), 3.42},
		{"negative similarity clamps", 0, ptr(-0.7), 0},
		{"negative offset by exact", 1, ptr(-0.5), 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, p.Score(tt.exact, tt.sim), 1e-9)
		})
	}
	assert.InDelta(t, 0.1, p.Similarity(nil), 1e-9)
	assert.InDelta(t, 0.5, p.Similarity(ptr(0.5)), 1e-9)
}

type fakeRanker struct {
	rows  []*types.RankedPerson
	err   error
	query storage.RankQuery
}

func (r *fakeRanker) RankPeople(_ context.Context, q storage.RankQuery) ([]*types.RankedPerson, error) {
	r.query = q
	return r.rows, r.err
}

func threeTags() []*types.Tag {
	return []*types.Tag{{ID: "a", Title: "Dune"}, {ID: "b", Title: "Tokyo"}, {ID: "c", Title: "Jazz"}, {ID: "d", Title: "Chess"}}
}

func TestVectorRetriever_MapsRows(t *testing.T) {
	ranker := &fakeRanker{rows: []*types.RankedPerson{
		{Person: types.Person{ID: "me"}, ExactMatches: 3},
		{Person: types.Person{ID: "u1", Name: "Ana", Username: "ana"}, ExactMatches: 2, Similarity: ptr(0.5)},
		{Person: types.Person{ID: "u2", Username: "bo"}, ExactMatches: 1},
		{Person: types.Person{ID: "u3"}, Similarity: ptr(0.3)},
	}}
	embed := &stubEmbedder{}
	r := NewVectorRetriever(ranker, embed, DefaultScoringPolicy(), 2, nil)

	out := r.Candidates(context.Background(), CandidateQuery{UserID: "me", Tags: threeTags()})

	assert.Equal(t, []string{"Dune Tokyo Jazz Chess"}, embed.calls())
	assert.Equal(t, []string{"a", "b", "c"}, ranker.query.TagIDs, "only the first three tags rank")
	assert.Equal(t, "me", ranker.query.UserID)
	assert.Equal(t, 2, ranker.query.Limit)

	require.Len(t, out, 2, "truncated to limit, searcher dropped")
	assert.Equal(t, Candidate{UserID: "u1", Name: "Ana", Username: "ana", ExactMatches: 2, Similarity: 0.5, Score: 6.5}, out[0])
	assert.Equal(t, "bo", out[1].Name)
	assert.Equal(t, "bo", out[1].Username)
	assert.InDelta(t, 0.1, out[1].Similarity, 1e-9)
	assert.InDelta(t, 3.1, out[1].Score, 1e-9)
}

func TestVectorRetriever_Degrades(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	ranker := &fakeRanker{err: fmt.Errorf("relation does not exist")}
	r := NewVectorRetriever(ranker, &stubEmbedder{}, DefaultScoringPolicy(), 0, m)
	out := r.Candidates(context.Background(), CandidateQuery{UserID: "me", Tags: threeTags()})
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Degradations.WithLabelValues("vector_ranking")))

	embed := &stubEmbedder{err: errUpstream}
	r = NewVectorRetriever(&fakeRanker{}, embed, DefaultScoringPolicy(), 0, m)
	assert.Empty(t, r.Candidates(context.Background(), CandidateQuery{UserID: "me", Tags: threeTags()}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Degradations.WithLabelValues("vector_embedding")))

	embed = &stubEmbedder{}
	r = NewVectorRetriever(&fakeRanker{}, embed, DefaultScoringPolicy(), 0, m)
	assert.Empty(t, r.Candidates(context.Background(), CandidateQuery{UserID: "me", Tags: threeTags()[:2]}))
	assert.Empty(t, embed.calls())
}

func TestDiversityFiller_SamplesWithoutReplacement(t *testing.T) {
	f := newFixture(t)
	f.people(t, 30)
	f.person(t, "me")

	filler := NewDiversityFiller(f.store, DefaultScoringPolicy(), 10, rand.New(rand.NewSource(1)), nil)
	out := filler.Candidates(context.Background(), CandidateQuery{UserID: "me", Exclude: []string{"p00", "p01"}})

	require.Len(t, out, 10)
	seen := map[string]bool{}
	for _, c := range out {
		assert.False(t, seen[c.UserID], "duplicate %s", c.UserID)
		seen[c.UserID] = true
		assert.NotContains(t, []string{"me", "p00", "p01"}, c.UserID)
		assert.Equal(t, 0, c.ExactMatches)
		assert.InDelta(t, 0.1, c.Score, 1e-9)
	}

	again := NewDiversityFiller(f.store, DefaultScoringPolicy(), 10, rand.New(rand.NewSource(1)), nil)
	assert.Equal(t, out, again.Candidates(context.Background(), CandidateQuery{UserID: "me", Exclude: []string{"p00", "p01"}}), "same seed, same sample")

	small := NewDiversityFiller(f.store, DefaultScoringPolicy(), 100, nil, nil)
	assert.Len(t, small.Candidates(context.Background(), CandidateQuery{UserID: "me"}), 30)
}

type countingReader struct{ calls atomic.Int32 }

func (r *countingReader) Get(_ context.Context, userID string) string {
	r.calls.Add(1)
	return "about " + userID
}

func TestAssembler_StableOrderAndPaging(t *testing.T) {
	reader := &countingReader{}
	a := NewAssembler(reader, 4, 0)

	vector := []Candidate{{UserID: "v1", Score: 3.5}, {UserID: "v2", Score: 0.1}, {UserID: "v3", Score: 6.2}}
	filler := []Candidate{{UserID: "f1", Score: 0.1}, {UserID: "f2", Score: 0.1}}

	page := a.Assemble(context.Background(), [][]Candidate{vector, filler}, []string{"Dune", "Tokyo"}, 1, 10)
	ids := make([]string, len(page.People))
	for i, p := range page.People {
		ids[i] = p.UserID
		assert.Equal(t, "about "+p.UserID, p.PersonalityInsight)
	}
	assert.Equal(t, []string{"v3", "v1", "v2", "f1", "f2"}, ids, "ties keep input order")
	assert.Equal(t, "Dune, Tokyo", page.Subtitle)
	assert.False(t, page.HasMore)

	for i := 1; i < len(page.People); i++ {
		assert.GreaterOrEqual(t, page.People[i-1].Score, page.People[i].Score)
	}

	page = a.Assemble(context.Background(), [][]Candidate{vector, filler}, nil, 2, 2)
	require.Len(t, page.People, 2)
	assert.Equal(t, "v2", page.People[0].UserID)
	assert.True(t, page.HasMore)
	assert.Equal(t, int32(7), reader.calls.Load(), "personality read only for the page window")
}

func TestVectorGenerator_Generate(t *testing.T) {
	f := newFixture(t)
	f.tag(t, "a", "Dune", 1, 0)
	require.NoError(t, f.store.UpsertTag(context.Background(), &types.Tag{ID: "b", Title: "Old", Meta: map[string]interface{}{"k": "v"}}))
	ctx := context.Background()
	g := f.engine.Vectors

	report := g.Generate(ctx, []VectorRef{
		{ID: "a", Title: "Dune", Type: "book"},
		{ID: "b", Title: "Tokyo", Type: "place"},
		{ID: "c", Title: "Jazz"},
		{ID: "", Title: "broken"},
	})

	assert.Equal(t, 2, report.Generated)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Error generating vector for ref")
	assert.Equal(t, []string{"Tokyo place", "Jazz"}, f.embed.calls(), "existing vectors are skipped")

	tags, err := f.store.GetTags(ctx, []string{"b", "c"})
	require.NoError(t, err)
	require.Contains(t, tags, "b")
	assert.Equal(t, "Old", tags["b"].Title, "catalog title is not rewritten")
	assert.Empty(t, tags["b"].Type)
	assert.Equal(t, "v", tags["b"].Meta["k"])
	assert.NotContains(t, tags, "c", "unknown refs are not added to the catalog")

	has, err := f.store.HasTagVector(ctx, "c")
	require.NoError(t, err)
	assert.True(t, has)

	_, err = f.engine.Search.Search(ctx, SearchRequest{UserID: "me", RefIDs: []string{"c"}})
	assert.ErrorIs(t, err, ErrNoValidTags, "a vector alone does not make a ref resolvable")
}

func TestVectorGenerator_Backfill(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.tag(t, fmt.Sprintf("t%d", i), fmt.Sprintf("T%d", i))
	}
	ctx := context.Background()

	report, err := f.engine.Vectors.Backfill(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Generated)
	assert.Empty(t, report.Errors)

	missing, err := f.store.ListTagsWithoutVectors(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, missing)

	f.tag(t, "t9", "T9")
	f.embed.err = errUpstream
	report, err = f.engine.Vectors.Backfill(ctx, 3)
	require.NoError(t, err, "a batch without progress ends the run")
	assert.Zero(t, report.Generated)
	assert.Len(t, report.Errors, 1)
}

func TestRefresher_RefreshAll(t *testing.T) {
	f := newFixture(t)
	f.tag(t, "a", "A")
	f.tag(t, "b", "B")
	f.person(t, "alice", "a", "b")
	f.person(t, "bob", "a")
	f.person(t, "carol")
	ctx := context.Background()

	report, err := f.engine.Refresher.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, &RefreshReport{People: 3, Refreshed: 2, Skipped: 1}, report)

	assert.Equal(t, "composite of 2", f.engine.Personalities.Get(ctx, "alice"))
	assert.Equal(t, "sentence about A", f.engine.Personalities.Get(ctx, "bob"))
	assert.Equal(t, DefaultPersonality, f.engine.Personalities.Get(ctx, "carol"))

	f.gen.failOn = map[string]bool{"composite": true}
	report, err = f.engine.Refresher.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fallbacks)
}

func TestRefresher_StartStop(t *testing.T) {
	f := newFixture(t)
	r := f.engine.Refresher

	assert.Error(t, r.Start(context.Background(), 0))
	require.NoError(t, r.Start(context.Background(), 1<<40))
	assert.Error(t, r.Start(context.Background(), 1<<40), "already started")
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.degraded("x")
		m.candidates("vector", 3)
		m.llmCall("p", "ok")
		m.personalityRead("hit")
		m.historyWrite("inserted")
		m.vectorGenerated()
		m.CircuitStateChanged("openai-chat", "closed", "open")
	})
}

func TestMetrics_CircuitState(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.CircuitStateChanged("openai-chat", "closed", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitState.WithLabelValues("openai-chat")))
	m.CircuitStateChanged("openai-chat", "half-open", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitState.WithLabelValues("openai-chat")))
}
