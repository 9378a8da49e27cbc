package engine

import (
	"context"
	"errors"
	"log"

	"github.com/scrypster/refmatch/internal/storage"
)

// DefaultPersonality is shown for people without a stored composite summary.
const DefaultPersonality = "Someone with interesting and diverse tastes"

// PersonalityCache is the read path for composite summaries. It never
// calls the generative service.
type PersonalityCache struct {
	store   storage.PersonalityStore
	metrics *Metrics
}

// NewPersonalityCache creates a cache over the personality store.
func NewPersonalityCache(store storage.PersonalityStore, metrics *Metrics) *PersonalityCache {
	return &PersonalityCache{store: store, metrics: metrics}
}

// Get returns the stored summary for the person, or DefaultPersonality.
func (c *PersonalityCache) Get(ctx context.Context, userID string) string {
	p, err := c.store.GetPersonPersonality(ctx, userID)
	switch {
	case err == nil && p.Summary != "":
		c.metrics.personalityRead("hit")
		return p.Summary
	case err == nil, errors.Is(err, storage.ErrNotFound):
		c.metrics.personalityRead("miss")
	default:
		log.Printf("engine: personality read for %s failed: %v", userID, err)
		c.metrics.personalityRead("error")
	}
	return DefaultPersonality
}
