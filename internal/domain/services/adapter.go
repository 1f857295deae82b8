package services

import (
	"strings"
	"unicode"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// maxExtractiveSummary bounds summaries built without a model.
const maxExtractiveSummary = 240

// EntityText renders the canonical text embedded and summarized for an entity:
// one "Field: value" line per non-empty field, in declaration order.
func EntityText(e entities.SourceEntity) string {
	var b strings.Builder
	for _, f := range e.TextFields() {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(fieldLabel(f.Name))
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}

// EntityLabel returns the display name of an entity, falling back to its ID.
func EntityLabel(e entities.SourceEntity) string {
	for _, f := range e.TextFields() {
		if f.Name == "name" || f.Name == "title" {
			if v := strings.TrimSpace(f.Value); v != "" {
				return v
			}
		}
	}
	return e.Ref().ID
}

// ExtractiveSummary builds a short summary from the entity's own text: its
// label followed by the first sentence of the first descriptive field.
func ExtractiveSummary(e entities.SourceEntity) string {
	label := EntityLabel(e)
	for _, f := range e.TextFields() {
		if f.Name == "name" || f.Name == "title" {
			continue
		}
		if s := firstSentence(f.Value); s != "" {
			return truncate(label+": "+s, maxExtractiveSummary)
		}
	}
	return truncate(label, maxExtractiveSummary)
}

func firstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			next := i + 1
			if next >= len(text) || text[next] == ' ' {
				return text[:next]
			}
		}
	}
	return text
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRightFunc(string(runes[:limit-1]), unicode.IsSpace) + "…"
}

func fieldLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
