// Package storage provides composable storage interfaces for refmatch.
//
// The storage layer is split into small interfaces, one per table family, so
// that engine components depend only on what they read or write. Backends
// (SQLite and PostgreSQL) implement all of them behind Store.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/refmatch/pkg/types"
)

// TagStore reads and writes the tag catalog.
type TagStore interface {
	// UpsertTag creates a tag or refreshes its title, type and meta.
	UpsertTag(ctx context.Context, tag *types.Tag) error

	// GetTags returns the tags that exist among ids, keyed by ID.
	// Unknown IDs are omitted; the result is never nil.
	GetTags(ctx context.Context, ids []string) (map[string]*types.Tag, error)

	// ListTagsWithoutVectors returns up to limit tags that have no stored
	// embedding, oldest first.
	ListTagsWithoutVectors(ctx context.Context, limit int) ([]*types.Tag, error)
}

// VectorStore caches tag embeddings.
type VectorStore interface {
	// HasTagVector reports whether an embedding is stored for the tag.
	HasTagVector(ctx context.Context, tagID string) (bool, error)

	// StoreTagVector inserts or replaces the embedding for a tag.
	StoreTagVector(ctx context.Context, vec *types.TagVector) error
}

// PersonStore reads and writes people.
type PersonStore interface {
	// UpsertPerson creates a person or refreshes the display fields.
	UpsertPerson(ctx context.Context, person *types.Person) error

	// ListPeopleExcluding returns every person whose ID is not in exclude.
	ListPeopleExcluding(ctx context.Context, exclude []string) ([]*types.Person, error)

	// ListPersonIDs returns all person IDs, ordered.
	ListPersonIDs(ctx context.Context) ([]string, error)
}

// ItemStore records which tags people hold.
type ItemStore interface {
	// AddItem records that a person added a tag, optionally with a caption.
	AddItem(ctx context.Context, item *types.Item) error

	// ListRecentTagAssociations returns the person's tags, one entry per tag
	// carrying its most recent item, newest first, capped at limit (0 means all).
	ListRecentTagAssociations(ctx context.Context, userID string, limit int) ([]*types.TagAssociation, error)

	// GetLatestTagAssociation returns the most recent item for the pair.
	// Returns ErrNotFound when the person never added the tag.
	GetLatestTagAssociation(ctx context.Context, userID, tagID string) (*types.TagAssociation, error)
}

// Ranker runs the candidate ranking procedure: exact tag overlap first,
// then the best cosine similarity between the query vector and any of the
// person's tag vectors.
type Ranker interface {
	RankPeople(ctx context.Context, q RankQuery) ([]*types.RankedPerson, error)
}

// PersonalityStore caches generated personality text.
type PersonalityStore interface {
	// UpsertTagPersonality inserts or overwrites the sentence for (user, tag).
	UpsertTagPersonality(ctx context.Context, p *types.TagPersonality) error

	// GetTagPersonalities returns the stored sentences for the user among
	// tagIDs, keyed by tag ID.
	GetTagPersonalities(ctx context.Context, userID string, tagIDs []string) (map[string]*types.TagPersonality, error)

	// ListRecentTagPersonalities returns up to limit sentences for the user,
	// most recently updated first.
	ListRecentTagPersonalities(ctx context.Context, userID string, limit int) ([]*types.TagPersonality, error)

	// UpsertPersonPersonality inserts or overwrites the composite summary.
	UpsertPersonPersonality(ctx context.Context, p *types.PersonPersonality) error

	// GetPersonPersonality returns the stored composite summary.
	// Returns ErrNotFound when none exists.
	GetPersonPersonality(ctx context.Context, userID string) (*types.PersonPersonality, error)
}

// HistoryStore persists search history snapshots.
type HistoryStore interface {
	// FindRecentHistory returns the user's entries created at or after since,
	// newest first.
	FindRecentHistory(ctx context.Context, userID string, since time.Time) ([]*types.SearchHistory, error)

	// InsertHistory stores a new entry and sets its ID.
	InsertHistory(ctx context.Context, h *types.SearchHistory) error

	// UpdateHistory overwrites the snapshot of an existing entry.
	// Returns ErrNotFound when the entry does not exist.
	UpdateHistory(ctx context.Context, h *types.SearchHistory) error

	// ListHistory returns the user's entries, newest first by creation time.
	ListHistory(ctx context.Context, userID string, opts HistoryListOptions) ([]*types.SearchHistory, error)

	// GetHistory returns one entry owned by userID.
	// Returns ErrNotFound when it does not exist or belongs to someone else.
	GetHistory(ctx context.Context, id int64, userID string) (*types.SearchHistory, error)
}

// Store is the full storage surface a backend provides.
type Store interface {
	TagStore
	VectorStore
	PersonStore
	ItemStore
	Ranker
	PersonalityStore
	HistoryStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
