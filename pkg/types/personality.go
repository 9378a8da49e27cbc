package types

import "time"

// TagPersonality is the one-sentence reading of what a single tag reveals
// about a person. Keyed by (UserID, TagID) and overwritten on regeneration.
type TagPersonality struct {
	UserID    string    `json:"user_id"`
	TagID     string    `json:"ref_id"`
	Sentence  string    `json:"personality_sentence"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PersonPersonality is the composite summary synthesized from a person's
// most recent tag sentences. RefIDsUsed keeps the order the sentences were used in.
type PersonPersonality struct {
	UserID     string    `json:"user_id"`
	Summary    string    `json:"personality_summary"`
	RefIDsUsed []string  `json:"ref_ids_used"`
	RefCount   int       `json:"ref_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
