package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// RawHTML returns a templ component that writes the provided HTML without escaping.
func RawHTML(html string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := io.WriteString(w, html)
		return err
	})
}

func footerOrDefault(note string) string {
	if note == "" {
		return DefaultFooterNote
	}
	return note
}

func deckCountLabel(count int) string {
	return fmt.Sprintf("%d decks generated so far.", count)
}
