package llm

import "fmt"

// Prompt names, also used as metric labels.
const (
	PromptTagCaption = "tag_caption"
	PromptTagContext = "tag_context"
	PromptTagBare    = "tag_bare"
	PromptComposite  = "composite"
)

// MaxContextSentences caps how many existing sentences inform a new one.
const MaxContextSentences = 10

const (
	tagSentenceSystem = "You generate concise, insightful personality observations based on someone's interests and personal context. Focus on character traits and compatibility factors."
	compositeSystem   = "You synthesize personality insights into cohesive character descriptions."

	tagSentenceMaxTokens = 60
	compositeMaxTokens   = 120
	defaultTemperature   = 0.7
)

// TagCaptionPrompt asks what a tag plus the person's own note reveal.
func TagCaptionPrompt(title, caption string) Prompt {
	subject := fmt.Sprintf("%q with their note: %q", title, caption)
	return Prompt{
		Name:   PromptTagCaption,
		System: tagSentenceSystem,
		Sections: []Section{
			{Text: fmt.Sprintf("A user added %s to their personal interests.", subject)},
			{
				Text: "Write ONE personality-revealing sentence about this person based on their relationship to this interest and their personal perspective. Focus on:",
				Bullets: []string{
					"What this choice and their personal note reveal about their character/vibe",
					"Their likely approach to life or mindset",
					"Traits that would matter for compatibility",
				},
			},
		},
		Fields:      map[string]string{"title": title, "caption": caption},
		MaxTokens:   tagSentenceMaxTokens,
		Temperature: defaultTemperature,
	}
}

// TagContextPrompt asks how a tag without a note fits traits already
// established by earlier sentences. Only the last MaxContextSentences are used.
func TagContextPrompt(title string, existing []string) Prompt {
	if len(existing) > MaxContextSentences {
		existing = existing[len(existing)-MaxContextSentences:]
	}
	return Prompt{
		Name:   PromptTagContext,
		System: tagSentenceSystem,
		Sections: []Section{
			{Text: fmt.Sprintf("A user added %q to their interests but didn't add a personal note.", title)},
			{Text: fmt.Sprintf("Based on their existing personality traits and the associations someone with these traits would have with %q, write ONE sentence about this person's relationship to this topic.", title)},
			{Heading: "EXISTING PERSONALITY INSIGHTS", Bullets: existing},
			{
				Text: fmt.Sprintf("Write a sentence about this person's relationship to %q based on:\n"+
					"1. The associations you can make about someone who likes this topic\n"+
					"2. Their established personality patterns from the insights above\n"+
					"3. How this new interest fits their overall character", title),
			},
			{Text: "Focus on personality traits that would matter for compatibility, not just the interest itself."},
		},
		Fields:      map[string]string{"title": title, "context_count": fmt.Sprint(len(existing))},
		MaxTokens:   tagSentenceMaxTokens,
		Temperature: defaultTemperature,
	}
}

// TagBarePrompt asks what choosing the tag alone reveals.
func TagBarePrompt(title string) Prompt {
	return Prompt{
		Name:   PromptTagBare,
		System: tagSentenceSystem,
		Sections: []Section{
			{Text: fmt.Sprintf("A user added %q to their personal interests.", title)},
			{
				Text: "Write ONE personality-revealing sentence about this person based on their relationship to this interest. Focus on:",
				Bullets: []string{
					"What this choice reveals about their character/vibe",
					"Their likely approach to life or mindset",
					"Traits that would matter for compatibility",
				},
			},
		},
		Fields:      map[string]string{"title": title},
		MaxTokens:   tagSentenceMaxTokens,
		Temperature: defaultTemperature,
	}
}

// CompositePrompt asks for 2-3 sentences synthesizing per-tag sentences.
func CompositePrompt(sentences []string) Prompt {
	return Prompt{
		Name:   PromptComposite,
		System: compositeSystem,
		Sections: []Section{
			{Text: "Based on these personality insights about someone, write 2-3 sentences describing their overall personality and character. Focus on their core traits, mindset, and what kind of person they are."},
			{Heading: "PERSONALITY INSIGHTS", Bullets: sentences},
			{Text: "Synthesize these into a cohesive personality description that captures their essence and would be useful for compatibility matching."},
		},
		Fields:      map[string]string{"sentence_count": fmt.Sprint(len(sentences))},
		MaxTokens:   compositeMaxTokens,
		Temperature: defaultTemperature,
	}
}
