package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// DefaultDedupWindow is how long repeated searches collapse into one entry.
const DefaultDedupWindow = time.Hour

// HistoryRecorder writes, lists and restores search history snapshots.
//
// Record reads the person's recent entries and then updates or inserts.
// Two concurrent first-page searches may both insert; the duplicate is
// harmless and accepted.
type HistoryRecorder struct {
	store   storage.HistoryStore
	window  time.Duration
	now     func() time.Time
	metrics *Metrics
}

// NewHistoryRecorder creates a recorder. A window of 0 uses DefaultDedupWindow.
func NewHistoryRecorder(store storage.HistoryStore, window time.Duration, metrics *Metrics) *HistoryRecorder {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &HistoryRecorder{store: store, window: window, now: time.Now, metrics: metrics}
}

// SetClock replaces the clock used for the dedup window (tests only).
func (h *HistoryRecorder) SetClock(now func() time.Time) {
	h.now = now
}

// Record stores the first page of a search. A person's entry created within
// the dedup window is overwritten in place. Failures are logged, never returned.
func (h *HistoryRecorder) Record(ctx context.Context, userID string, tags []*types.Tag, page *types.SearchPage) {
	entry := &types.SearchHistory{
		UserID:         userID,
		RefIDs:         tagIDs(tags),
		RefTitles:      tagTitles(tags),
		SearchTitle:    page.Title,
		SearchSubtitle: page.Subtitle,
		Results:        append([]types.PersonResult(nil), page.People...),
	}

	outcome, err := h.write(ctx, entry)
	if err != nil {
		log.Printf("engine: saving search history for %s failed: %v", userID, err)
		h.metrics.historyWrite("failed")
		return
	}
	h.metrics.historyWrite(outcome)
}

func (h *HistoryRecorder) write(ctx context.Context, entry *types.SearchHistory) (string, error) {
	recent, err := h.store.FindRecentHistory(ctx, entry.UserID, h.now().Add(-h.window))
	if err != nil {
		return "", fmt.Errorf("failed to find recent history: %w", err)
	}

	if len(recent) > 0 {
		entry.ID = recent[0].ID
		err := h.store.UpdateHistory(ctx, entry)
		if err == nil {
			return "updated", nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
		entry.ID = 0
	}

	if err := h.store.InsertHistory(ctx, entry); err != nil {
		return "", err
	}
	return "inserted", nil
}

// List returns the person's entries, newest first.
func (h *HistoryRecorder) List(ctx context.Context, userID string, limit int) ([]*types.SearchHistory, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	return h.store.ListHistory(ctx, userID, storage.HistoryListOptions{Limit: limit})
}

// Restore rebuilds a stored result page from its snapshot alone. Returns
// storage.ErrNotFound when the entry is missing or owned by someone else.
func (h *HistoryRecorder) Restore(ctx context.Context, userID string, id int64) (*types.SearchPage, error) {
	entry, err := h.store.GetHistory(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return entry.Page(), nil
}
