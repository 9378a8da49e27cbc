package engine

// ScoringPolicy turns ranking signals into a candidate score:
// exact × ExactMatchWeight + similarity, never below zero.
type ScoringPolicy struct {
	// ExactMatchWeight multiplies the number of selected tags a person holds.
	ExactMatchWeight float64

	// BaselineSimilarity stands in for similarity when none is known,
	// and is the score of every diversity candidate.
	BaselineSimilarity float64
}

// DefaultScoringPolicy returns weight 3 and baseline 0.1.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{ExactMatchWeight: 3, BaselineSimilarity: 0.1}
}

// Score combines the signals. A nil similarity uses the baseline.
func (p ScoringPolicy) Score(exact int, similarity *float64) float64 {
	sim := p.BaselineSimilarity
	if similarity != nil {
		sim = *similarity
	}
	score := float64(exact)*p.ExactMatchWeight + sim
	if score < 0 {
		return 0
	}
	return score
}

// Similarity resolves a nullable similarity against the baseline.
func (p ScoringPolicy) Similarity(similarity *float64) float64 {
	if similarity == nil {
		return p.BaselineSimilarity
	}
	return *similarity
}
