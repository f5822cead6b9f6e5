package templates

// DefaultFooterNote is shown in the shared layout when a page does not supply custom text.
const DefaultFooterNote = "Decks are generated by a language model. Review every slide before presenting it."

// DeckSummaryView is one archived deck in the recent decks listing.
type DeckSummaryView struct {
	Topic       string
	SlideCount  int
	CreatedAt   string
	PreviewURL  string
	MarkdownURL string
	HTMLURL     string
	Warnings    []string
}

// HomePageData contains dynamic values rendered on the landing page.
type HomePageData struct {
	Title      string
	DeckCount  int
	Decks      []DeckSummaryView
	FooterNote string
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Title       string
	StatusLabel string
	Message     string
}
