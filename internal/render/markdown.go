package render

import (
	"strings"

	"deckforge/app/internal/deck"
)

// Header is the fixed front matter every generated document starts with.
const Header = "---\nmarp: true\ntheme: default\nsize: 16:9\npaginate: true\n---\n\n"

// AssembleMarkdown builds the full deck document: front matter, title slide, then one block per slide.
func AssembleMarkdown(slides []deck.Slide, meta deck.Meta) string {
	var b strings.Builder
	b.WriteString(Header)

	b.WriteString(deck.SlideSeparator)
	b.WriteString("\n\n# ")
	b.WriteString(singleLine(meta.Title))
	b.WriteString("\n\n")
	if subtitle := singleLine(meta.Subtitle); subtitle != "" {
		b.WriteString("## ")
		b.WriteString(subtitle)
		b.WriteString("\n\n")
	}

	for _, slide := range slides {
		b.WriteString(slide.Markdown())
	}

	return b.String()
}

// singleLine keeps title slide text on one line so it can never contain a separator.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SplitSlides splits a deck document on separator lines and drops blank segments.
// For documents built by AssembleMarkdown, segment 0 is the front matter and segment 1
// the title slide.
func SplitSlides(markdown string) []string {
	normalized := strings.ReplaceAll(markdown, "\r\n", "\n")

	segments := make([]string, 0, 8)
	var current []string
	flush := func() {
		segment := strings.TrimSpace(strings.Join(current, "\n"))
		if segment != "" {
			segments = append(segments, segment)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(normalized, "\n") {
		if strings.TrimRight(line, " \t") == deck.SlideSeparator {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return segments
}
