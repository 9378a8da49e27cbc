package engine

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/scrypster/refmatch/internal/storage"
)

// DefaultFillerTarget is how many diversity candidates a search asks for.
const DefaultFillerTarget = 50

// DiversityFiller proposes a uniform random sample of people so that
// thin result pools still fill a page.
type DiversityFiller struct {
	people  storage.PersonStore
	policy  ScoringPolicy
	target  int
	metrics *Metrics

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDiversityFiller creates a filler. A nil rng is seeded from the clock.
func NewDiversityFiller(people storage.PersonStore, policy ScoringPolicy, target int, rng *rand.Rand, metrics *Metrics) *DiversityFiller {
	if target < 1 {
		target = DefaultFillerTarget
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &DiversityFiller{
		people:  people,
		policy:  policy,
		target:  target,
		rng:     rng,
		metrics: metrics,
	}
}

// Candidates samples up to the target number of people other than the
// searcher and q.Exclude, without replacement.
func (f *DiversityFiller) Candidates(ctx context.Context, q CandidateQuery) []Candidate {
	exclude := make([]string, 0, len(q.Exclude)+1)
	exclude = append(exclude, q.UserID)
	exclude = append(exclude, q.Exclude...)

	pool, err := f.people.ListPeopleExcluding(ctx, exclude)
	if err != nil {
		log.Printf("engine: diversity filler failed: %v", err)
		f.metrics.degraded("diversity_filler")
		return []Candidate{}
	}

	n := f.target
	if n > len(pool) {
		n = len(pool)
	}

	f.mu.Lock()
	for i := 0; i < n; i++ {
		j := i + f.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	f.mu.Unlock()

	out := make([]Candidate, n)
	for i, p := range pool[:n] {
		c := candidateFromPerson(*p)
		c.Similarity = f.policy.BaselineSimilarity
		c.Score = f.policy.Score(0, nil)
		out[i] = c
	}

	f.metrics.candidates("diversity", n)
	return out
}

var _ CandidateSource = (*DiversityFiller)(nil)
