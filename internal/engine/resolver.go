package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// ErrNoValidTags is returned when none of the requested tag IDs exist.
var ErrNoValidTags = errors.New("no valid refs found")

// TagResolver validates requested tag IDs against the catalog.
type TagResolver struct {
	tags storage.TagStore
}

// NewTagResolver creates a resolver over the tag catalog.
func NewTagResolver(tags storage.TagStore) *TagResolver {
	return &TagResolver{tags: tags}
}

// Resolve returns the known tags in request order, without duplicates.
// Unknown IDs are logged and dropped. If nothing resolves it returns
// ErrNoValidTags.
func (r *TagResolver) Resolve(ctx context.Context, ids []string) ([]*types.Tag, error) {
	found, err := r.tags.GetTags(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refs: %w", err)
	}

	seen := make(map[string]bool, len(ids))
	resolved := make([]*types.Tag, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		tag, ok := found[id]
		if !ok {
			log.Printf("engine: ref %s not found in catalog", id)
			continue
		}
		resolved = append(resolved, tag)
	}

	if len(resolved) == 0 {
		return nil, ErrNoValidTags
	}
	return resolved, nil
}

func tagIDs(tags []*types.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

func tagTitles(tags []*types.Tag) []string {
	titles := make([]string, len(tags))
	for i, t := range tags {
		titles[i] = t.Title
	}
	return titles
}
