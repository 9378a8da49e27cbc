package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the matching pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Searches         prometheus.Counter
	SearchDuration   prometheus.Histogram
	Candidates       *prometheus.CounterVec
	Degradations     *prometheus.CounterVec
	LLMCalls         *prometheus.CounterVec
	PersonalityReads *prometheus.CounterVec
	HistoryWrites    *prometheus.CounterVec
	VectorsGenerated prometheus.Counter
	CircuitState     *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Searches: f.NewCounter(prometheus.CounterOpts{
			Name: "refmatch_searches_total",
			Help: "Total number of people searches served",
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "refmatch_search_duration_seconds",
			Help:    "People search latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),
		Candidates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refmatch_candidates_total",
			Help: "Candidates produced by source",
		}, []string{"source"}),
		Degradations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refmatch_degradations_total",
			Help: "Upstream failures absorbed by a component",
		}, []string{"component"}),
		LLMCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refmatch_llm_calls_total",
			Help: "Generative calls by prompt and outcome",
		}, []string{"prompt", "outcome"}),
		PersonalityReads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refmatch_personality_reads_total",
			Help: "Composite personality cache lookups by result",
		}, []string{"result"}),
		HistoryWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refmatch_history_writes_total",
			Help: "Search history writes by outcome",
		}, []string{"outcome"}),
		VectorsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "refmatch_vectors_generated_total",
			Help: "Tag embeddings generated and stored",
		}),
		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "refmatch_llm_circuit_open",
			Help: "1 when the named LLM circuit breaker is not closed",
		}, []string{"name"}),
	}
}

func (m *Metrics) observeSearch(start time.Time) {
	if m == nil {
		return
	}
	m.Searches.Inc()
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) candidates(source string, n int) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) degraded(component string) {
	if m == nil {
		return
	}
	m.Degradations.WithLabelValues(component).Inc()
}

func (m *Metrics) llmCall(prompt, outcome string) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(prompt, outcome).Inc()
}

func (m *Metrics) personalityRead(result string) {
	if m == nil {
		return
	}
	m.PersonalityReads.WithLabelValues(result).Inc()
}

func (m *Metrics) historyWrite(outcome string) {
	if m == nil {
		return
	}
	m.HistoryWrites.WithLabelValues(outcome).Inc()
}

func (m *Metrics) vectorGenerated() {
	if m == nil {
		return
	}
	m.VectorsGenerated.Inc()
}

// CircuitStateChanged matches llm.CircuitBreakerConfig.OnStateChange.
func (m *Metrics) CircuitStateChanged(name, _, to string) {
	if m == nil {
		return
	}
	v := 0.0
	if to != "closed" {
		v = 1
	}
	m.CircuitState.WithLabelValues(name).Set(v)
}
