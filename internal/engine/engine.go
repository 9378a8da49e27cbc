// Package engine implements the people-matching pipeline: tag resolution,
// candidate retrieval, result assembly, personality synthesis and search
// history.
package engine

import (
	"math/rand"
	"time"

	"github.com/scrypster/refmatch/internal/llm"
	"github.com/scrypster/refmatch/internal/storage"
)

// Config tunes the pipeline. Zero values take the package defaults.
type Config struct {
	VectorLimit            int
	FillerTarget           int
	MaxPageSize            int
	PersonalityConcurrency int
	DedupWindow            time.Duration
	CompositeLimit         int
	RefreshPerSecond       float64
	Scoring                ScoringPolicy

	// Rand drives the diversity filler; nil seeds from the clock.
	Rand *rand.Rand
}

// Engine bundles the services the API and CLI use.
type Engine struct {
	Search        *SearchService
	Synthesizer   *Synthesizer
	Personalities *PersonalityCache
	Vectors       *VectorGenerator
	Refresher     *Refresher
	History       *HistoryRecorder
}

// New wires every component over one store and the two generators.
// metrics may be nil.
func New(store storage.Store, gen llm.TextGenerator, embedder llm.EmbeddingGenerator, cfg Config, metrics *Metrics) *Engine {
	policy := cfg.Scoring
	if policy == (ScoringPolicy{}) {
		policy = DefaultScoringPolicy()
	}
	compositeLimit := cfg.CompositeLimit
	if compositeLimit < 1 {
		compositeLimit = DefaultCompositeLimit
	}

	cache := NewPersonalityCache(store, metrics)
	synth := NewSynthesizer(store, store, gen, metrics)
	history := NewHistoryRecorder(store, cfg.DedupWindow, metrics)

	search := NewSearchService(
		NewTagResolver(store),
		[]CandidateSource{
			NewVectorRetriever(store, embedder, policy, cfg.VectorLimit, metrics),
			NewDiversityFiller(store, policy, cfg.FillerTarget, cfg.Rand, metrics),
		},
		NewAssembler(cache, cfg.PersonalityConcurrency, cfg.MaxPageSize),
		history,
		metrics,
	)

	return &Engine{
		Search:        search,
		Synthesizer:   synth,
		Personalities: cache,
		Vectors:       NewVectorGenerator(store, store, embedder, metrics),
		Refresher:     NewRefresher(store, synth, compositeLimit, cfg.RefreshPerSecond),
		History:       history,
	}
}
