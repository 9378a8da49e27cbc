package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScoringConfig holds the candidate scoring policy.
type ScoringConfig struct {
	ExactMatchWeight   float64 // Weight per shared ref (default: 3)
	BaselineSimilarity float64 // Similarity assumed when none is known (default: 0.1)
	File               string  // Optional YAML policy file
}

// scoringFile is the YAML layout of a policy file. Absent keys keep the
// current values.
type scoringFile struct {
	ExactMatchWeight   *float64 `yaml:"exact_match_weight"`
	BaselineSimilarity *float64 `yaml:"baseline_similarity"`
}

// LoadFile overrides the policy with values from a YAML file:
//
//	exact_match_weight: 3
//	baseline_similarity: 0.1
func (s *ScoringConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read scoring file: %w", err)
	}

	var f scoringFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: failed to parse scoring file %s: %w", path, err)
	}

	if f.ExactMatchWeight != nil {
		s.ExactMatchWeight = *f.ExactMatchWeight
	}
	if f.BaselineSimilarity != nil {
		s.BaselineSimilarity = *f.BaselineSimilarity
	}
	s.File = path
	return nil
}

// Validate checks the weights are usable.
func (s ScoringConfig) Validate() error {
	if s.ExactMatchWeight < 0 {
		return errors.New("exact match weight must not be negative")
	}
	if s.BaselineSimilarity < 0 || s.BaselineSimilarity > 1 {
		return errors.New("baseline similarity must be between 0 and 1")
	}
	return nil
}
