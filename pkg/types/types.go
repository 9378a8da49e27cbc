// Package types defines the core data structures for refmatch: people, the
// interest tags ("refs") they collect, the personality text synthesized from
// those tags, and the search history snapshots served back on restore.
package types

import "time"

// Person is someone who can be searched for. Identity is immutable; display
// fields are refreshed by the upstream sync.
type Person struct {
	ID        string    `json:"user_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the name shown in results: name, then username, then "Unknown".
func (p Person) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Username != "" {
		return p.Username
	}
	return "Unknown"
}

// Handle returns the username used for navigation, falling back to the person ID.
func (p Person) Handle() string {
	if p.Username != "" {
		return p.Username
	}
	return p.ID
}

// Tag is an interest entity a person can add (book, place, activity, ...).
// The API calls these "refs".
type Tag struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Type      string                 `json:"type,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// TagVector is the cached embedding of a tag.
type TagVector struct {
	TagID     string    `json:"ref_id"`
	Title     string    `json:"title"`
	Embedding []float32 `json:"-"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Item links a person to a tag, optionally with a personal caption.
// Several items may exist for the same pair; the most recent one wins.
type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TagID     string    `json:"ref_id"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TagAssociation is the most recent item for a (person, tag) pair joined with
// the tag title.
type TagAssociation struct {
	TagID     string
	Title     string
	Caption   string
	CreatedAt time.Time
}

// RankedPerson is one row produced by the store's ranking procedure.
// Similarity is nil when none of the person's tags carry an embedding.
type RankedPerson struct {
	Person
	ExactMatches int
	Similarity   *float64
}
