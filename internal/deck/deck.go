package deck

import (
	"context"
	"strings"
)

// SlideSeparator is the line that delimits slides in the markdown document.
const SlideSeparator = "---"

// Slide is a single generated slide in presentation order.
type Slide struct {
	Title string
	Body  string
}

// Markdown returns the slide block: separator, level-1 title heading and bullet body.
func (s Slide) Markdown() string {
	var b strings.Builder
	b.WriteString(SlideSeparator)
	b.WriteString("\n\n# ")
	b.WriteString(s.Title)
	b.WriteString("\n\n")
	b.WriteString(s.Body)
	b.WriteString("\n\n")
	return b.String()
}

// Meta carries the deck-level metadata consumed by the renderer.
type Meta struct {
	Title       string
	Subtitle    string
	HeaderImage []byte
	FooterText  string
}

// Request describes a single deck generation request.
type Request struct {
	Topic         string
	SlideCount    int
	Subtitle      string
	Filename      string
	FooterText    string
	HeaderImage   []byte
	Document      []byte
	ReferenceText string
}

// Deck is the terminal artifact of a generation request.
type Deck struct {
	ID       string
	Topic    string
	Filename string
	Outline  []string
	Slides   []Slide
	Markdown string
	HTML     string
	Warnings []string
}

// Completer is the opaque text-completion service.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Limiter paces calls to the completion service.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Renderer turns generated slides into the markdown and HTML documents.
type Renderer interface {
	RenderDeck(slides []Slide, meta Meta) (markdown string, html string, err error)
}

// MetaValidator is implemented by renderers that can reject deck metadata up front,
// before any completion is requested.
type MetaValidator interface {
	ValidateMeta(meta Meta) error
}

// Extractor returns plain text from an uploaded reference document.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}
