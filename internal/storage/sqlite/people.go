package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

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

	now := s.timestamp()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO people (id, name, username, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			username = excluded.username,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`, person.ID, person.Name, person.Username, person.AvatarURL,
		formatTime(person.CreatedAt), formatTime(person.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert person: %w", err)
	}
	return nil
}

// ListPeopleExcluding returns every person whose ID is not in exclude, ordered by ID.
func (s *Store) ListPeopleExcluding(ctx context.Context, exclude []string) ([]*types.Person, error) {
	query := "SELECT id, name, username, avatar_url, created_at, updated_at FROM people"
	if len(exclude) > 0 {
		query += fmt.Sprintf(" WHERE id NOT IN (%s)", placeholders(len(exclude)))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, stringArgs(exclude)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	var people []*types.Person
	for rows.Next() {
		var (
			p                    types.Person
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Username, &p.AvatarURL, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		people = append(people, &p)
	}
	return people, rows.Err()
}

// ListPersonIDs returns all person IDs, ordered.
func (s *Store) ListPersonIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM people ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list person IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan person ID: %w", err)
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
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.timestamp()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, user_id, tag_id, caption, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, item.ID, item.UserID, item.TagID, item.Caption, formatTime(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	return nil
}

// latestItemFilter keeps only the most recent item of each (user, tag) pair.
const latestItemFilter = `
	i.rowid = (
		SELECT i2.rowid FROM items i2
		WHERE i2.user_id = i.user_id AND i2.tag_id = i.tag_id
		ORDER BY i2.created_at DESC, i2.rowid DESC
		LIMIT 1
	)`

// ListRecentTagAssociations returns the person's distinct tags, newest first,
// each carrying the caption of its most recent item.
func (s *Store) ListRecentTagAssociations(ctx context.Context, userID string, limit int) ([]*types.TagAssociation, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.tag_id, t.title, i.caption, i.created_at
		FROM items i
		JOIN tags t ON t.id = i.tag_id
		WHERE i.user_id = ? AND `+latestItemFilter+`
		ORDER BY i.created_at DESC, i.rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag associations: %w", err)
	}
	defer rows.Close()

	var assocs []*types.TagAssociation
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		assocs = append(assocs, a)
	}
	return assocs, rows.Err()
}

// GetLatestTagAssociation returns the most recent item for the pair.
func (s *Store) GetLatestTagAssociation(ctx context.Context, userID, tagID string) (*types.TagAssociation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT i.tag_id, t.title, i.caption, i.created_at
		FROM items i
		JOIN tags t ON t.id = i.tag_id
		WHERE i.user_id = ? AND i.tag_id = ?
		ORDER BY i.created_at DESC, i.rowid DESC
		LIMIT 1
	`, userID, tagID)

	a, err := scanAssociation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return a, err
}

func scanAssociation(row rowScanner) (*types.TagAssociation, error) {
	var (
		a         types.TagAssociation
		createdAt string
	)
	if err := row.Scan(&a.TagID, &a.Title, &a.Caption, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan tag association: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}
