package llm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptRender(t *testing.T) {
	p := Prompt{Sections: []Section{
		{Text: "intro"},
		{Heading: "LIST", Bullets: []string{"a", "b"}},
		{Text: "focus:", Bullets: []string{"c"}},
		{},
	}}
	assert.Equal(t, "intro\n\nLIST:\n• a\n• b\n\nfocus:\n• c", p.Render())
}

func TestTagCaptionPrompt(t *testing.T) {
	p := TagCaptionPrompt("Jazz", "late nights at the club")

	assert.Equal(t, PromptTagCaption, p.Name)
	assert.Equal(t, "Jazz", p.Field("title"))
	assert.Equal(t, "late nights at the club", p.Field("caption"))
	assert.Equal(t, 60, p.MaxTokens)
	assert.InDelta(t, 0.7, p.Temperature, 1e-6)

	text := p.Render()
	assert.Contains(t, text, `"Jazz" with their note: "late nights at the club"`)
	assert.Contains(t, text, "Write ONE personality-revealing sentence")
	assert.Contains(t, text, "• Traits that would matter for compatibility")
}

func TestTagContextPrompt_UsesLastTenSentences(t *testing.T) {
	existing := make([]string, 12)
	for i := range existing {
		existing[i] = fmt.Sprintf("sentence %02d", i)
	}

	p := TagContextPrompt("Hiking", existing)
	text := p.Render()

	assert.Equal(t, PromptTagContext, p.Name)
	assert.Equal(t, "10", p.Field("context_count"))
	assert.NotContains(t, text, "sentence 00")
	assert.NotContains(t, text, "sentence 01")
	assert.Contains(t, text, "• sentence 02")
	assert.Contains(t, text, "• sentence 11")
	assert.Contains(t, text, "EXISTING PERSONALITY INSIGHTS:\n• sentence 02")
	assert.Contains(t, text, "didn't add a personal note")
}

func TestTagBarePrompt(t *testing.T) {
	p := TagBarePrompt("Chess")
	assert.Equal(t, PromptTagBare, p.Name)
	assert.Empty(t, p.Field("caption"))
	assert.Contains(t, p.Render(), `A user added "Chess" to their personal interests.`)
}

func TestCompositePrompt(t *testing.T) {
	p := CompositePrompt([]string{"Curious.", "Patient."})

	assert.Equal(t, PromptComposite, p.Name)
	assert.Equal(t, 120, p.MaxTokens)
	assert.Equal(t, "2", p.Field("sentence_count"))
	assert.True(t, strings.Contains(p.Render(), "PERSONALITY INSIGHTS:\n• Curious.\n• Patient."))
	assert.Contains(t, p.Render(), "2-3 sentences")
}
