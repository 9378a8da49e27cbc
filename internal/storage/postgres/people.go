package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// UpsertPerson creates a person or refreshes the display fields.
func (s *Store) UpsertPerson(ctx context.Context, person *types.Person) error {
	if person == nil {
		return storage.ErrInvalidInput
	}
	if person.ID == "" {
		return fmt.Errorf("%w: person ID is required", storage.ErrInvalidInput)
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO people (id, name, username, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, person.ID, person.Name, person.Username, person.AvatarURL).Scan(&person.CreatedAt, &person.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert person: %w", err)
	}
	return nil
}

// ListPeopleExcluding returns every person whose ID is not in exclude, ordered by ID.
func (s *Store) ListPeopleExcluding(ctx context.Context, exclude []string) ([]*types.Person, error) {
	if exclude == nil {
		exclude = []string{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, username, avatar_url, created_at, updated_at
		FROM people
		WHERE NOT (id = ANY($1))
		ORDER BY id
	`, pq.Array(exclude))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list people: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var people []*types.Person
	for rows.Next() {
		var p types.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Username, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan person: %w", err)
		}
		people = append(people, &p)
	}
	return people, rows.Err()
}

// ListPersonIDs returns all person IDs, ordered.
func (s *Store) ListPersonIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM people ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list person IDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan person ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddItem records that a person added a tag. A missing ID is generated.
func (s *Store) AddItem(ctx context.Context, item *types.Item) error {
	if item == nil {
		return storage.ErrInvalidInput
	}
	if item.UserID == "" || item.TagID == "" {
		return fmt.Errorf("%w: user ID and tag ID are required", storage.ErrInvalidInput)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	var createdAt sql.NullTime
	if !item.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: item.CreatedAt, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO items (id, user_id, tag_id, caption, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		RETURNING created_at
	`, item.ID, item.UserID, item.TagID, item.Caption, createdAt).Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to add item: %w", err)
	}
	return nil
}

// ListRecentTagAssociations returns the person's distinct tags, newest first,
// each carrying the caption of its most recent item.
func (s *Store) ListRecentTagAssociations(ctx context.Context, userID string, limit int) ([]*types.TagAssociation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag_id, title, caption, created_at
		FROM (
			SELECT DISTINCT ON (i.tag_id) i.tag_id, t.title, i.caption, i.created_at, i.seq
			FROM items i
			JOIN tags t ON t.id = i.tag_id
			WHERE i.user_id = $1
			ORDER BY i.tag_id, i.created_at DESC, i.seq DESC
		) latest
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, userID, nullableLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list tag associations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assocs []*types.TagAssociation
	for rows.Next() {
		var a types.TagAssociation
		if err := rows.Scan(&a.TagID, &a.Title, &a.Caption, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan tag association: %w", err)
		}
		assocs = append(assocs, &a)
	}
	return assocs, rows.Err()
}

// GetLatestTagAssociation returns the most recent item for the pair.
func (s *Store) GetLatestTagAssociation(ctx context.Context, userID, tagID string) (*types.TagAssociation, error) {
	var a types.TagAssociation
	err := s.db.QueryRowContext(ctx, `
		SELECT i.tag_id, t.title, i.caption, i.created_at
		FROM items i
		JOIN tags t ON t.id = i.tag_id
		WHERE i.user_id = $1 AND i.tag_id = $2
		ORDER BY i.created_at DESC, i.seq DESC
		LIMIT 1
	`, userID, tagID).Scan(&a.TagID, &a.Title, &a.Caption, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get tag association: %w", err)
	}
	return &a, nil
}
