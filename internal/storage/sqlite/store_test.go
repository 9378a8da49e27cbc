package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// newTestStore creates an in-memory SQLite store with a controllable clock.
func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() { _ = store.Close() })

	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)
	return store, clock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func seedTag(t *testing.T, s *Store, id, title string) {
	t.Helper()
	require.NoError(t, s.UpsertTag(context.Background(), &types.Tag{ID: id, Title: title}))
}

func seedPerson(t *testing.T, s *Store, id, name string) {
	t.Helper()
	require.NoError(t, s.UpsertPerson(context.Background(), &types.Person{ID: id, Name: name, Username: id + "_handle"}))
}

func seedItem(t *testing.T, s *Store, userID, tagID, caption string, at time.Time) {
	t.Helper()
	require.NoError(t, s.AddItem(context.Background(), &types.Item{UserID: userID, TagID: tagID, Caption: caption, CreatedAt: at}))
}

func TestNewStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refmatch.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())

	// Reopening applies the idempotent schema again.
	store, err = NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestPathFromDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ""},
		{"", ""},
		{"/tmp/refmatch.db", "/tmp/refmatch.db"},
		{"file:/tmp/refmatch.db?mode=rwc", "/tmp/refmatch.db"},
		{"file:/tmp/refmatch.db?_pragma=busy_timeout(5000)", "/tmp/refmatch.db"},
		{"file:refmatch.db", "refmatch.db"},
		{"file::memory:?cache=shared", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PathFromDSN(tt.dsn), tt.dsn)
	}
}

func TestTags_UpsertAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTag(ctx, &types.Tag{ID: "t1", Title: "Dune", Type: "book", Meta: map[string]interface{}{"year": float64(1965)}}))
	require.NoError(t, s.UpsertTag(ctx, &types.Tag{ID: "t1", Title: "Dune (novel)", Type: "book"}))
	seedTag(t, s, "t2", "Tokyo")

	tags, err := s.GetTags(ctx, []string{"t1", "t2", "missing"})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Dune (novel)", tags["t1"].Title)
	assert.Nil(t, tags["t1"].Meta)
	assert.Equal(t, "Tokyo", tags["t2"].Title)

	empty, err := s.GetTags(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTags_InvalidInput(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.UpsertTag(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.UpsertTag(ctx, &types.Tag{Title: "x"}), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.UpsertTag(ctx, &types.Tag{ID: "x"}), storage.ErrInvalidInput)
}

func TestTagVectors(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	seedTag(t, s, "t1", "Dune")
	clock.Advance(time.Second)
	seedTag(t, s, "t2", "Tokyo")

	has, err := s.HasTagVector(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, has)

	missing, err := s.ListTagsWithoutVectors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "t1", missing[0].ID)

	require.NoError(t, s.StoreTagVector(ctx, &types.TagVector{TagID: "t1", Title: "Dune", Embedding: []float32{1, 0}, Model: "test"}))

	has, err = s.HasTagVector(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, has)

	missing, err = s.ListTagsWithoutVectors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "t2", missing[0].ID)

	err = s.StoreTagVector(ctx, &types.TagVector{TagID: "t2", Model: "test"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPeople_ListExcluding(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		seedPerson(t, s, id, "Name "+id)
	}
	require.NoError(t, s.UpsertPerson(ctx, &types.Person{ID: "a", Name: "Renamed"}))

	people, err := s.ListPeopleExcluding(ctx, []string{"b"})
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "a", people[0].ID)
	assert.Equal(t, "Renamed", people[0].Name)
	assert.Equal(t, "c", people[1].ID)

	ids, err := s.ListPersonIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestItems_RecentAssociationsUseLatestCaption(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seedTag(t, s, "dune", "Dune")
	seedTag(t, s, "tokyo", "Tokyo")
	seedTag(t, s, "jazz", "Jazz")

	seedItem(t, s, "u1", "dune", "first read", base)
	seedItem(t, s, "u1", "tokyo", "", base.Add(time.Hour))
	seedItem(t, s, "u1", "dune", "", base.Add(2*time.Hour))
	seedItem(t, s, "u1", "jazz", "late nights", base.Add(3*time.Hour))
	seedItem(t, s, "u1", "unknown-tag", "", base.Add(4*time.Hour))
	seedItem(t, s, "u2", "dune", "other person", base.Add(5*time.Hour))

	assocs, err := s.ListRecentTagAssociations(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, assocs, 3)
	assert.Equal(t, "jazz", assocs[0].TagID)
	assert.Equal(t, "late nights", assocs[0].Caption)
	assert.Equal(t, "dune", assocs[1].TagID)
	assert.Equal(t, "", assocs[1].Caption, "most recent item governs the caption")
	assert.Equal(t, "tokyo", assocs[2].TagID)

	limited, err := s.ListRecentTagAssociations(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	latest, err := s.GetLatestTagAssociation(ctx, "u1", "dune")
	require.NoError(t, err)
	assert.Equal(t, "Dune", latest.Title)
	assert.Equal(t, "", latest.Caption)

	_, err = s.GetLatestTagAssociation(ctx, "u1", "never")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRankPeople(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"me", "two", "one", "vec", "none"} {
		seedPerson(t, s, id, id)
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		seedTag(t, s, id, "Tag "+id)
	}
	require.NoError(t, s.StoreTagVector(ctx, &types.TagVector{TagID: "d", Embedding: []float32{1, 0}, Model: "m"}))
	require.NoError(t, s.StoreTagVector(ctx, &types.TagVector{TagID: "a", Embedding: []float32{0, 1}, Model: "m"}))

	seedItem(t, s, "me", "a", "", at)
	seedItem(t, s, "two", "a", "", at)
	seedItem(t, s, "two", "b", "", at)
	seedItem(t, s, "two", "b", "again", at.Add(time.Minute))
	seedItem(t, s, "one", "c", "", at)
	seedItem(t, s, "vec", "d", "", at)

	ranked, err := s.RankPeople(ctx, storage.RankQuery{
		UserID:    "me",
		TagIDs:    []string{"a", "b", "c"},
		Embedding: []float32{1, 0},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "two", ranked[0].ID)
	assert.Equal(t, 2, ranked[0].ExactMatches, "duplicate items count once")
	require.NotNil(t, ranked[0].Similarity)
	assert.InDelta(t, 0.0, *ranked[0].Similarity, 1e-9)

	assert.Equal(t, "one", ranked[1].ID)
	assert.Equal(t, 1, ranked[1].ExactMatches)
	assert.Nil(t, ranked[1].Similarity)

	assert.Equal(t, "vec", ranked[2].ID)
	assert.Equal(t, 0, ranked[2].ExactMatches)
	require.NotNil(t, ranked[2].Similarity)
	assert.InDelta(t, 1.0, *ranked[2].Similarity, 1e-9)

	limited, err := s.RankPeople(ctx, storage.RankQuery{
		UserID: "me", TagIDs: []string{"a", "b", "c"}, Embedding: []float32{1, 0}, Limit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = s.RankPeople(ctx, storage.RankQuery{UserID: "me", TagIDs: []string{"a"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPersonalities(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTagPersonality(ctx, &types.TagPersonality{UserID: "u1", TagID: "a", Sentence: "first"}))
	clock.Advance(time.Second)
	require.NoError(t, s.UpsertTagPersonality(ctx, &types.TagPersonality{UserID: "u1", TagID: "b", Sentence: "second"}))
	clock.Advance(time.Second)
	require.NoError(t, s.UpsertTagPersonality(ctx, &types.TagPersonality{UserID: "u1", TagID: "a", Sentence: "rewritten"}))

	got, err := s.GetTagPersonalities(ctx, "u1", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rewritten", got["a"].Sentence)

	recent, err := s.ListRecentTagPersonalities(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2, "upserts overwrite rather than accumulate")
	assert.Equal(t, "a", recent[0].TagID)

	_, err = s.GetPersonPersonality(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.UpsertPersonPersonality(ctx, &types.PersonPersonality{
		UserID: "u1", Summary: "old", RefIDsUsed: []string{"a"}, RefCount: 1,
	}))
	require.NoError(t, s.UpsertPersonPersonality(ctx, &types.PersonPersonality{
		UserID: "u1", Summary: "new", RefIDsUsed: []string{"b", "a"}, RefCount: 2,
	}))

	composite, err := s.GetPersonPersonality(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", composite.Summary)
	assert.Equal(t, []string{"b", "a"}, composite.RefIDsUsed)
	assert.Equal(t, 2, composite.RefCount)
}

func TestHistory_InsertUpdateListGet(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	h := &types.SearchHistory{
		UserID:         "u1",
		RefIDs:         []string{"a", "b"},
		RefTitles:      []string{"Dune", "Tokyo"},
		SearchTitle:    "People at the ⊕",
		SearchSubtitle: "Dune, Tokyo",
		ResultCount:    42,
		Results:        []types.PersonResult{{UserID: "p1", Name: "P", Score: 3.2}},
	}
	require.NoError(t, s.InsertHistory(ctx, h))
	assert.NotZero(t, h.ID)
	assert.Equal(t, 1, h.ResultCount, "count follows the snapshot")
	created := h.CreatedAt

	recent, err := s.FindRecentHistory(ctx, "u1", created.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 1)

	clock.Advance(10 * time.Minute)
	h.Results = append(h.Results, types.PersonResult{UserID: "p2", Score: 0.1})
	require.NoError(t, s.UpdateHistory(ctx, h))

	got, err := s.GetHistory(ctx, h.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ResultCount)
	assert.Len(t, got.Results, 2)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.After(created))

	_, err = s.GetHistory(ctx, h.ID, "someone-else")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	other := &types.SearchHistory{ID: h.ID, UserID: "someone-else"}
	assert.ErrorIs(t, s.UpdateHistory(ctx, other), storage.ErrNotFound)

	clock.Advance(2 * time.Hour)
	second := &types.SearchHistory{UserID: "u1", SearchTitle: "later"}
	require.NoError(t, s.InsertHistory(ctx, second))

	list, err := s.ListHistory(ctx, "u1", storage.HistoryListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	list, err = s.ListHistory(ctx, "u1", storage.HistoryListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	recent, err = s.FindRecentHistory(ctx, "u1", clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)
}
