package llm

import "strings"

// Section is one block of a prompt: an optional heading, free text and an
// optional bullet list.
type Section struct {
	Heading string
	Text    string
	Bullets []string
}

// Prompt is a structured chat prompt. Fields records the values the
// template was resolved with so tests can assert on them without parsing
// the rendered text.
type Prompt struct {
	Name        string
	System      string
	Sections    []Section
	Fields      map[string]string
	MaxTokens   int
	Temperature float32
}

// Render returns the user message: sections separated by blank lines.
func (p Prompt) Render() string {
	blocks := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		var b strings.Builder
		if s.Heading != "" {
			b.WriteString(s.Heading)
			b.WriteString(":\n")
		}
		b.WriteString(s.Text)
		for i, bullet := range s.Bullets {
			if i > 0 || s.Text != "" {
				b.WriteString("\n")
			}
			b.WriteString("• ")
			b.WriteString(bullet)
		}
		if b.Len() > 0 {
			blocks = append(blocks, b.String())
		}
	}
	return strings.Join(blocks, "\n\n")
}

// Field returns a resolved template value, or "" when unset.
func (p Prompt) Field(name string) string {
	if p.Fields == nil {
		return ""
	}
	return p.Fields[name]
}
