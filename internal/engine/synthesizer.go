package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/scrypster/refmatch/internal/llm"
	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// Fixed personality texts.
const (
	FallbackTagSentence    = "Someone with interesting and thoughtful tastes"
	PlaceholderPersonality = "This person's interests are still being discovered."
	FallbackComposite      = "This person has diverse and interesting tastes."
)

// Composite summary limits.
const (
	DefaultCompositeLimit = 12
	MaxCompositeLimit     = 50
)

// Composite outcomes.
const (
	CompositePlaceholder = "placeholder"
	CompositeSingle      = "single"
	CompositeSynthesized = "synthesized"
	CompositeFallback    = "fallback"
)

// CompositeResult is the outcome of composite synthesis.
type CompositeResult struct {
	Personality string   `json:"personality"`
	RefIDsUsed  []string `json:"ref_ids_used"`
	RefCount    int      `json:"ref_count"`
	Status      string   `json:"-"`
}

// Synthesizer is the write path for personality text: one sentence per
// (person, tag) and one composite summary per person.
type Synthesizer struct {
	items   storage.ItemStore
	store   storage.PersonalityStore
	gen     llm.TextGenerator
	metrics *Metrics
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(items storage.ItemStore, store storage.PersonalityStore, gen llm.TextGenerator, metrics *Metrics) *Synthesizer {
	return &Synthesizer{items: items, store: store, gen: gen, metrics: metrics}
}

// TagSentence generates and stores the sentence for one (person, tag).
// The prompt depends on the caption: with a caption it describes the note;
// without one it builds on the person's recent sentences when any exist.
// A generative failure returns FallbackTagSentence, which is not stored.
func (s *Synthesizer) TagSentence(ctx context.Context, userID, tagID, title, caption string) string {
	sentence, _ := s.tagSentence(ctx, userID, tagID, title, caption)
	return sentence
}

// tagSentence reports false when the sentence is FallbackTagSentence.
func (s *Synthesizer) tagSentence(ctx context.Context, userID, tagID, title, caption string) (string, bool) {
	var prompt llm.Prompt
	switch {
	case strings.TrimSpace(caption) != "":
		prompt = llm.TagCaptionPrompt(title, caption)
	default:
		existing, err := s.store.ListRecentTagPersonalities(ctx, userID, llm.MaxContextSentences)
		if err != nil {
			log.Printf("engine: reading context sentences for %s failed: %v", userID, err)
			existing = nil
		}
		if len(existing) > 0 {
			// Prompt lists sentences oldest first.
			sentences := make([]string, 0, len(existing))
			for i := len(existing) - 1; i >= 0; i-- {
				sentences = append(sentences, existing[i].Sentence)
			}
			prompt = llm.TagContextPrompt(title, sentences)
		} else {
			prompt = llm.TagBarePrompt(title)
		}
	}

	sentence, err := s.gen.Complete(ctx, prompt)
	if err != nil {
		log.Printf("engine: %s sentence for %s/%s failed: %v", prompt.Name, userID, tagID, err)
		s.metrics.llmCall(prompt.Name, "error")
		return FallbackTagSentence, false
	}
	s.metrics.llmCall(prompt.Name, "ok")

	if err := s.store.UpsertTagPersonality(ctx, &types.TagPersonality{
		UserID:   userID,
		TagID:    tagID,
		Sentence: sentence,
	}); err != nil {
		log.Printf("engine: storing sentence for %s/%s failed: %v", userID, tagID, err)
		s.metrics.degraded("tag_personality_write")
	}
	return sentence, true
}

// RegenerateTagSentence rebuilds the sentence for a pair from the most
// recent item the person added for that tag. Returns storage.ErrNotFound
// when the person never added it.
func (s *Synthesizer) RegenerateTagSentence(ctx context.Context, userID, tagID string) (string, error) {
	assoc, err := s.items.GetLatestTagAssociation(ctx, userID, tagID)
	if err != nil {
		return "", fmt.Errorf("failed to find ref %s for user %s: %w", tagID, userID, err)
	}
	return s.TagSentence(ctx, userID, tagID, assoc.Title, assoc.Caption), nil
}

// Composite synthesizes the person's summary from their most recent tags,
// reusing stored sentences and generating missing ones. limit is clamped to
// [1, MaxCompositeLimit]; values below 1 use DefaultCompositeLimit.
func (s *Synthesizer) Composite(ctx context.Context, userID string, limit int) (*CompositeResult, error) {
	if limit < 1 {
		limit = DefaultCompositeLimit
	}
	if limit > MaxCompositeLimit {
		limit = MaxCompositeLimit
	}

	assocs, err := s.items.ListRecentTagAssociations(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list refs for user %s: %w", userID, err)
	}
	if len(assocs) == 0 {
		return &CompositeResult{
			Personality: PlaceholderPersonality,
			RefIDsUsed:  []string{},
			Status:      CompositePlaceholder,
		}, nil
	}

	ids := make([]string, len(assocs))
	for i, a := range assocs {
		ids[i] = a.TagID
	}

	cached, err := s.store.GetTagPersonalities(ctx, userID, ids)
	if err != nil {
		log.Printf("engine: reading cached sentences for %s failed: %v", userID, err)
		cached = map[string]*types.TagPersonality{}
	}

	sentences := make([]string, 0, len(assocs))
	generated := true
	for _, a := range assocs {
		if p, ok := cached[a.TagID]; ok && p.Sentence != "" {
			sentences = append(sentences, p.Sentence)
			continue
		}
		sentence, ok := s.tagSentence(ctx, userID, a.TagID, a.Title, a.Caption)
		sentences = append(sentences, sentence)
		generated = generated && ok
	}

	result := &CompositeResult{RefIDsUsed: ids, RefCount: len(ids)}
	if len(sentences) == 1 {
		result.Personality = sentences[0]
		if !generated {
			// A fallback sentence is never stored as the composite.
			result.Status = CompositeFallback
			return result, nil
		}
		result.Status = CompositeSingle
	} else {
		prompt := llm.CompositePrompt(sentences)
		summary, err := s.gen.Complete(ctx, prompt)
		if err != nil {
			log.Printf("engine: composite for %s failed: %v", userID, err)
			s.metrics.llmCall(prompt.Name, "error")
			result.Personality = FallbackComposite
			result.Status = CompositeFallback
			return result, nil
		}
		s.metrics.llmCall(prompt.Name, "ok")
		result.Personality = summary
		result.Status = CompositeSynthesized
	}

	if err := s.store.UpsertPersonPersonality(ctx, &types.PersonPersonality{
		UserID:     userID,
		Summary:    result.Personality,
		RefIDsUsed: ids,
		RefCount:   len(ids),
	}); err != nil {
		log.Printf("engine: storing composite for %s failed: %v", userID, err)
		s.metrics.degraded("person_personality_write")
	}
	return result, nil
}
