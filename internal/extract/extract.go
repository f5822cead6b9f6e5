package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"deckforge/app/internal/deck"
)

const (
	// DefaultMaxBytes caps uploaded reference documents.
	DefaultMaxBytes int64 = 20 << 20

	formatPDF   = "pdf"
	formatXLSX  = "xlsx"
	formatHTML  = "html"
	formatText  = "text"
	mimePDF     = "application/pdf"
	mimeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeZip     = "application/zip"
	mimeHTML    = "text/html"
	mimeText    = "text/plain"
	unsupported = ""
)

// Options configures an Extractor.
type Options struct {
	MaxBytes int64
	Logger   *logrus.Logger
}

// Extractor turns uploaded PDF, XLSX, HTML and plain text documents into plain text.
type Extractor struct {
	maxBytes int64
	html     *md.Converter
	logger   *logrus.Logger
}

// New constructs an Extractor.
func New(opts Options) *Extractor {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Extractor{
		maxBytes: maxBytes,
		html:     md.NewConverter("", true, nil),
		logger:   logger,
	}
}

// Format reports the document format Extract would use for data, or "" when unsupported.
func Format(data []byte) string {
	return formatOf(mimetype.Detect(data))
}

func formatOf(mime *mimetype.MIME) string {
	switch {
	case mime.Is(mimePDF):
		return formatPDF
	// office documents are zip archives and sniffing their entries is heuristic
	case mime.Is(mimeXLSX), mime.Is(mimeZip):
		return formatXLSX
	case mime.Is(mimeHTML):
		return formatHTML
	}

	for m := mime; m != nil; m = m.Parent() {
		if m.Is(mimeText) {
			return formatText
		}
	}

	return unsupported
}

// Extract returns the NFC-normalised text of data. Every failure is a *deck.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &deck.ExtractionError{Err: err}
	}
	if len(data) == 0 {
		return "", &deck.ExtractionError{Err: eris.New("document is empty")}
	}
	if int64(len(data)) > e.maxBytes {
		return "", &deck.ExtractionError{Err: eris.Errorf("document is %d bytes, limit is %d", len(data), e.maxBytes)}
	}

	mime := mimetype.Detect(data)
	format := formatOf(mime)

	var (
		text string
		err  error
	)
	switch format {
	case formatPDF:
		text, err = extractPDF(data)
	case formatXLSX:
		text, err = extractXLSX(data)
	case formatHTML:
		text, err = e.html.ConvertString(string(data))
	case formatText:
		text = string(data)
	default:
		return "", &deck.ExtractionError{Format: mime.String(), Err: eris.New("unsupported document type")}
	}
	if err != nil {
		return "", &deck.ExtractionError{Format: format, Err: err}
	}

	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return "", &deck.ExtractionError{Format: format, Err: eris.New("document contains no text")}
	}

	e.logger.WithFields(logrus.Fields{
		"format": format,
		"bytes":  len(data),
		"runes":  len([]rune(text)),
	}).Debug("reference document extracted")

	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed objects
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = eris.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrap(err, "opening pdf")
	}

	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}

		content, err := page.GetPlainText(fonts)
		if err != nil {
			return "", eris.Wrapf(err, "reading pdf page %d", i)
		}
		if trimmed := strings.TrimSpace(content); trimmed != "" {
			pages = append(pages, trimmed)
		}
	}

	return strings.Join(pages, "\n"), nil
}

func extractXLSX(data []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", eris.Wrap(err, "opening spreadsheet")
	}
	defer func() { _ = file.Close() }()

	var b strings.Builder
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return "", eris.Wrapf(err, "reading sheet %q", sheet)
		}
		if len(rows) == 0 {
			continue
		}

		fmt.Fprintf(&b, "%s\n", sheet)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	return b.String(), nil
}
