package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/time/rate"

	"github.com/scrypster/refmatch/internal/storage"
)

// RefreshReport summarizes one pass over every person.
type RefreshReport struct {
	People    int `json:"people"`
	Refreshed int `json:"refreshed"`
	Skipped   int `json:"skipped"`
	Fallbacks int `json:"fallbacks"`
	Failed    int `json:"failed"`
}

// Refresher regenerates composite personalities for everyone, paced by a
// rate limiter, either once or on a schedule.
type Refresher struct {
	people  storage.PersonStore
	synth   *Synthesizer
	limit   int
	limiter *rate.Limiter

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

// NewRefresher creates a refresher that starts at most perSecond
// regenerations per second. limit is the composite tag limit.
func NewRefresher(people storage.PersonStore, synth *Synthesizer, limit int, perSecond float64) *Refresher {
	l := rate.Inf
	if perSecond > 0 {
		l = rate.Limit(perSecond)
	}
	return &Refresher{
		people:  people,
		synth:   synth,
		limit:   limit,
		limiter: rate.NewLimiter(l, 1),
	}
}

// RefreshAll regenerates every person's composite. People without tags are
// skipped; per-person failures are counted and the pass continues.
func (r *Refresher) RefreshAll(ctx context.Context) (*RefreshReport, error) {
	ids, err := r.people.ListPersonIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}

	report := &RefreshReport{People: len(ids)}
	for _, id := range ids {
		if err := r.limiter.Wait(ctx); err != nil {
			return report, err
		}

		res, err := r.synth.Composite(ctx, id, r.limit)
		switch {
		case err != nil:
			log.Printf("engine: refreshing personality for %s failed: %v", id, err)
			report.Failed++
		case res.Status == CompositePlaceholder:
			report.Skipped++
		case res.Status == CompositeFallback:
			report.Fallbacks++
		default:
			report.Refreshed++
		}
	}

	log.Printf("engine: personality refresh done: %d people, %d refreshed, %d skipped, %d fallbacks, %d failed",
		report.People, report.Refreshed, report.Skipped, report.Fallbacks, report.Failed)
	return report, nil
}

// Start runs RefreshAll every interval until Stop. Overlapping runs are
// rescheduled rather than stacked.
func (r *Refresher) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler != nil {
		return fmt.Errorf("refresher already started")
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := r.RefreshAll(ctx); err != nil {
				log.Printf("engine: scheduled personality refresh failed: %v", err)
			}
		}),
		gocron.WithName("personality-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule personality refresh: %w", err)
	}

	s.Start()
	r.scheduler = s
	log.Printf("engine: personality refresh scheduled every %s", interval)
	return nil
}

// Stop shuts the scheduler down, waiting for a running pass to finish.
func (r *Refresher) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler == nil {
		return nil
	}
	err := r.scheduler.Shutdown()
	r.scheduler = nil
	return err
}
