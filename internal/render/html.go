package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"deckforge/app/internal/deck"
)

// frontMatter is the subset of the deck header the HTML view honours.
type frontMatter struct {
	Marp     bool   `yaml:"marp"`
	Theme    string `yaml:"theme"`
	Size     string `yaml:"size"`
	Paginate *bool  `yaml:"paginate"`
}

// Renderer converts deck markdown into a self-contained HTML document.
type Renderer struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	document *template.Template
}

var (
	_ deck.Renderer      = (*Renderer)(nil)
	_ deck.MetaValidator = (*Renderer)(nil)
)

type slideView struct {
	Content template.HTML
	Counter string
}

type documentView struct {
	Title      string
	Theme      string
	TitleSlide template.HTML
	HeaderURI  template.URL
	FooterText string
	Slides     []slideView
}

// NewRenderer builds a Renderer with a GFM parser and a slide-content sanitiser.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
			),
		),
		policy:   newSlidePolicy(),
		document: template.Must(template.New("deck").Parse(documentTemplate)),
	}
}

func newSlidePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()

	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("p", "br", "hr")
	p.AllowElements("strong", "b", "em", "i", "del", "s")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("blockquote", "pre", "code")
	p.AllowAttrs("href").OnElements("a")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	return p
}

// RenderDeck assembles the markdown document and renders it to HTML.
func (r *Renderer) RenderDeck(slides []deck.Slide, meta deck.Meta) (string, string, error) {
	markdown := AssembleMarkdown(slides, meta)

	html, err := r.RenderHTML(markdown, meta)
	if err != nil {
		return "", "", err
	}

	return markdown, html, nil
}

// ValidateMeta rejects metadata RenderDeck would refuse, such as a header image that is not an image.
func (r *Renderer) ValidateMeta(meta deck.Meta) error {
	_, err := headerImageURI(meta.HeaderImage)
	return err
}

// RenderHTML renders a deck document. Identical input always yields identical output.
func (r *Renderer) RenderHTML(markdown string, meta deck.Meta) (string, error) {
	segments := SplitSlides(markdown)
	if len(segments) < 2 {
		return "", &deck.ValidationError{Field: "markdown", Reason: "document has no front matter and title slide"}
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(segments[0]), &fm); err != nil {
		return "", eris.Wrap(err, "parsing deck front matter")
	}

	headerURI, err := headerImageURI(meta.HeaderImage)
	if err != nil {
		return "", err
	}

	titleSlide, err := r.convert(segments[1])
	if err != nil {
		return "", eris.Wrap(err, "rendering title slide")
	}

	content := segments[2:]
	paginate := fm.Paginate == nil || *fm.Paginate
	view := documentView{
		Title:      singleLine(meta.Title),
		Theme:      themeOrDefault(fm.Theme),
		TitleSlide: titleSlide,
		HeaderURI:  headerURI,
		FooterText: strings.TrimSpace(meta.FooterText),
		Slides:     make([]slideView, 0, len(content)),
	}

	for i, segment := range content {
		rendered, err := r.convert(segment)
		if err != nil {
			return "", eris.Wrapf(err, "rendering slide %d", i+1)
		}

		slide := slideView{Content: rendered}
		if paginate {
			slide.Counter = fmt.Sprintf("%d / %d", i+1, len(content))
		}
		view.Slides = append(view.Slides, slide)
	}

	var buf bytes.Buffer
	if err := r.document.Execute(&buf, view); err != nil {
		return "", eris.Wrap(err, "executing deck template")
	}

	return buf.String(), nil
}

func (r *Renderer) convert(segment string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(segment), &buf); err != nil {
		return "", err
	}

	// bluemonday output is safe to embed as-is
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

func headerImageURI(image []byte) (template.URL, error) {
	if len(image) == 0 {
		return "", nil
	}

	mime := mimetype.Detect(image)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", &deck.ValidationError{
			Field:  "header image",
			Reason: fmt.Sprintf("expected an image, detected %s", mime.String()),
		}
	}

	// the URI is built from sniffed image bytes only
	return template.URL(DataURI(mime.String(), image)), nil
}

func themeOrDefault(theme string) string {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "default"
	}
	return theme
}

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { margin: 0; font-family: "Helvetica Neue", Arial, sans-serif; background: #eef0f3; color: #1f2328; }
.deck-title { padding: 2rem 3rem; text-align: center; }
.deck-title h1 { margin: 0 0 0.5rem; font-size: 2.4rem; }
.deck-title h2 { margin: 0; font-weight: normal; color: #57606a; }
.slides-container { display: flex; overflow-x: auto; scroll-snap-type: x mandatory; scroll-behavior: smooth; }
.marp-slide { flex: 0 0 100%; scroll-snap-align: start; box-sizing: border-box; aspect-ratio: 16 / 9; max-height: 90vh; display: flex; flex-direction: column; background: #fff; border: 1px solid #d0d7de; }
.slide-header { height: 12%; background: #f6f8fa; display: flex; align-items: center; justify-content: flex-end; padding: 0 2rem; }
.slide-header img { max-height: 80%; }
.slide-content { flex: 1; padding: 1.5rem 3rem; overflow: hidden; }
.slide-content h1 { font-size: 2rem; margin-top: 0; }
.slide-content li { font-size: 1.3rem; margin: 0.5rem 0; }
.slide-footer { height: 8%; display: flex; align-items: center; justify-content: space-between; padding: 0 2rem; background: #f6f8fa; font-size: 0.9rem; color: #57606a; }
.slide-nav { display: flex; justify-content: center; gap: 1rem; padding: 1rem; }
.slide-nav button { padding: 0.5rem 1.5rem; font-size: 1rem; cursor: pointer; }
</style>
</head>
<body class="theme-{{.Theme}}">
<section class="deck-title">
{{.TitleSlide}}
</section>
<div class="slides-container" id="slides">
{{- range .Slides}}
<section class="marp-slide">
<div class="slide-header">{{if $.HeaderURI}}<img src="{{$.HeaderURI}}" alt="header">{{end}}</div>
<div class="slide-content">
{{.Content}}
</div>
<div class="slide-footer"><span class="footer-text">{{$.FooterText}}</span>{{if .Counter}}<span class="slide-counter">{{.Counter}}</span>{{end}}</div>
</section>
{{- end}}
</div>
<nav class="slide-nav">
<button type="button" onclick="scrollSlides(-1)">Previous</button>
<button type="button" onclick="scrollSlides(1)">Next</button>
</nav>
<script>
function scrollSlides(direction) {
  var container = document.getElementById("slides");
  container.scrollLeft += direction * container.clientWidth;
}
</script>
</body>
</html>
`
