package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"deckforge/app/internal/deck"
)

func photosynthesisSlides() []deck.Slide {
	return []deck.Slide{
		{Title: "Introduction to Photosynthesis", Body: "- Plants convert light into chemical energy\n- Happens in chloroplasts"},
		{Title: "Light Reactions", Body: "- Water is split\n- Oxygen is released"},
		{Title: "Conclusion", Body: "- Photosynthesis sustains life on Earth"},
	}
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 200, G: 30, B: 30, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func parseDocument(t *testing.T, document string) *html.Node {
	t.Helper()

	root, err := html.Parse(strings.NewReader(document))
	require.NoError(t, err)
	return root
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, field := range strings.Fields(attr.Val) {
			if field == class {
				return true
			}
		}
	}
	return false
}

func findByClass(root *html.Node, class string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			found = append(found, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return found
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestAssembleMarkdownLayout(t *testing.T) {
	t.Parallel()

	markdown := AssembleMarkdown(photosynthesisSlides(), deck.Meta{Title: "Photosynthesis", Subtitle: "How plants eat"})

	assert.True(t, strings.HasPrefix(markdown, Header))
	assert.Contains(t, markdown, "---\n\n# Photosynthesis\n\n## How plants eat\n\n")
	assert.Contains(t, markdown, "---\n\n# Light Reactions\n\n- Water is split\n- Oxygen is released\n\n")
	assert.Equal(t, 6, strings.Count(markdown, "---\n"))

	segments := SplitSlides(markdown)
	require.Len(t, segments, 5)
	assert.True(t, strings.HasPrefix(segments[0], "marp: true"))
	assert.Equal(t, "# Photosynthesis\n\n## How plants eat", segments[1])
	assert.Len(t, segments[2:], len(photosynthesisSlides()))
}

func TestAssembleMarkdownOmitsEmptySubtitle(t *testing.T) {
	t.Parallel()

	markdown := AssembleMarkdown(nil, deck.Meta{Title: "Photosynthesis"})

	assert.Equal(t, Header+"---\n\n# Photosynthesis\n\n", markdown)
	assert.Len(t, SplitSlides(markdown), 2)
}

func TestSplitSlidesIgnoresBlankSegmentsAndCRLF(t *testing.T) {
	t.Parallel()

	segments := SplitSlides("---\r\nmarp: true\r\n---\r\n\r\n---\r\n\r\n---\r\n# One\r\n--- \r\n# Two\r\n")

	assert.Equal(t, []string{"marp: true", "# One", "# Two"}, segments)
}

func TestRenderDeckProducesOrderedSlidesWithCounters(t *testing.T) {
	t.Parallel()

	renderer := NewRenderer()
	markdown, document, err := renderer.RenderDeck(photosynthesisSlides(), deck.Meta{Title: "Photosynthesis", FooterText: "Biology 101"})
	require.NoError(t, err)
	require.NotEmpty(t, markdown)

	root := parseDocument(t, document)
	slides := findByClass(root, "marp-slide")
	require.Len(t, slides, 3)

	for i, slide := range slides {
		counters := findByClass(slide, "slide-counter")
		require.Len(t, counters, 1)
		assert.Equal(t, []string{"1 / 3", "2 / 3", "3 / 3"}[i], textContent(counters[0]))

		content := findByClass(slide, "slide-content")
		require.Len(t, content, 1)
		assert.True(t, strings.HasPrefix(textContent(content[0]), photosynthesisSlides()[i].Title))

		footers := findByClass(slide, "footer-text")
		require.Len(t, footers, 1)
		assert.Equal(t, "Biology 101", textContent(footers[0]))
	}

	titles := findByClass(root, "deck-title")
	require.Len(t, titles, 1)
	assert.Equal(t, "Photosynthesis", textContent(titles[0]))
	assert.Contains(t, document, "function scrollSlides(direction)")
}

func TestRenderHTMLIsDeterministic(t *testing.T) {
	t.Parallel()

	renderer := NewRenderer()
	meta := deck.Meta{Title: "Photosynthesis", HeaderImage: tinyPNG(t), FooterText: "Biology"}
	markdown := AssembleMarkdown(photosynthesisSlides(), meta)

	first, err := renderer.RenderHTML(markdown, meta)
	require.NoError(t, err)
	second, err := renderer.RenderHTML(markdown, meta)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderHTMLHeaderImage(t *testing.T) {
	t.Parallel()

	renderer := NewRenderer()
	slides := photosynthesisSlides()

	_, withImage, err := renderer.RenderDeck(slides, deck.Meta{Title: "Photosynthesis", HeaderImage: tinyPNG(t)})
	require.NoError(t, err)

	for _, header := range findByClass(parseDocument(t, withImage), "slide-header") {
		img := header.FirstChild
		require.NotNil(t, img)
		assert.Equal(t, "img", img.Data)
		assert.True(t, strings.HasPrefix(attr(img, "src"), "data:image/png;base64,"))
	}

	_, withoutImage, err := renderer.RenderDeck(slides, deck.Meta{Title: "Photosynthesis"})
	require.NoError(t, err)

	headers := findByClass(parseDocument(t, withoutImage), "slide-header")
	require.Len(t, headers, 3)
	for _, header := range headers {
		assert.Nil(t, header.FirstChild)
	}
}

func TestRenderHTMLRejectsNonImageHeader(t *testing.T) {
	t.Parallel()

	_, _, err := NewRenderer().RenderDeck(photosynthesisSlides(), deck.Meta{Title: "Photosynthesis", HeaderImage: []byte("plain text, not an image")})

	var validationErr *deck.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "header image", validationErr.Field)
}

func TestValidateMetaChecksHeaderImage(t *testing.T) {
	t.Parallel()

	renderer := NewRenderer()
	require.NoError(t, renderer.ValidateMeta(deck.Meta{Title: "Photosynthesis"}))
	require.NoError(t, renderer.ValidateMeta(deck.Meta{Title: "Photosynthesis", HeaderImage: tinyPNG(t)}))

	err := renderer.ValidateMeta(deck.Meta{Title: "Photosynthesis", HeaderImage: []byte("plain text, not an image")})
	var validationErr *deck.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "header image", validationErr.Field)
}

func TestRenderDeckKeepsMultilineTitleOnTitleSlide(t *testing.T) {
	t.Parallel()

	slides := photosynthesisSlides()
	meta := deck.Meta{Title: "Photosynthesis\n---\nInjected", Subtitle: "Light\r\n---\r\nand sugar"}

	markdown, document, err := NewRenderer().RenderDeck(slides, meta)
	require.NoError(t, err)

	segments := SplitSlides(markdown)
	require.Len(t, segments[2:], len(slides), "expected %d content segments", len(slides))
	assert.Equal(t, "# Photosynthesis --- Injected\n\n## Light --- and sugar", segments[1])

	rendered := findByClass(parseDocument(t, document), "marp-slide")
	require.Len(t, rendered, len(slides))
	assert.NotContains(t, document, "1 / 4")
}

func TestRenderHTMLEscapesFooterAndSanitisesContent(t *testing.T) {
	t.Parallel()

	slides := []deck.Slide{{Title: "Safety", Body: "- <script>alert(1)</script>\n- [link](javascript:alert(2))"}}
	_, document, err := NewRenderer().RenderDeck(slides, deck.Meta{Title: "Safety", FooterText: "<b>Bio</b> & co"})
	require.NoError(t, err)

	assert.NotContains(t, document, "<script>alert")
	assert.NotContains(t, document, "javascript:alert")
	assert.NotContains(t, document, "<b>Bio</b>")

	footers := findByClass(parseDocument(t, document), "footer-text")
	require.Len(t, footers, 1)
	assert.Equal(t, "<b>Bio</b> & co", textContent(footers[0]))
}

func TestRenderHTMLHonoursPaginateFalse(t *testing.T) {
	t.Parallel()

	markdown := AssembleMarkdown(photosynthesisSlides(), deck.Meta{Title: "Photosynthesis"})
	markdown = strings.Replace(markdown, "paginate: true", "paginate: false", 1)

	document, err := NewRenderer().RenderHTML(markdown, deck.Meta{Title: "Photosynthesis"})
	require.NoError(t, err)

	root := parseDocument(t, document)
	assert.Len(t, findByClass(root, "marp-slide"), 3)
	assert.Empty(t, findByClass(root, "slide-counter"))
}

func TestRenderHTMLRejectsDocumentWithoutTitleSlide(t *testing.T) {
	t.Parallel()

	_, err := NewRenderer().RenderHTML("just text", deck.Meta{})

	var validationErr *deck.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}
