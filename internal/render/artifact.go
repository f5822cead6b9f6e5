package render

import (
	"encoding/base64"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	defaultStem       = "presentation"
	MarkdownMediaType = "text/markdown; charset=utf-8"
	HTMLMediaType     = "text/html; charset=utf-8"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Artifact is a downloadable rendering of a deck.
type Artifact struct {
	Filename  string
	MediaType string
	Data      []byte
}

// DataURI encodes the artifact as a base64 data URI.
func (a Artifact) DataURI() string {
	return DataURI(a.MediaType, a.Data)
}

// DataURI returns data as a base64 data URI of the given media type.
func DataURI(mediaType string, data []byte) string {
	return "data:" + strings.ReplaceAll(mediaType, " ", "") + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// MarkdownArtifact wraps a deck document as a downloadable .md file named after stem.
func MarkdownArtifact(stem, markdown string) Artifact {
	return Artifact{
		Filename:  FilenameStem(stem) + ".md",
		MediaType: MarkdownMediaType,
		Data:      []byte(markdown),
	}
}

// HTMLArtifact wraps a rendered deck as a downloadable .html file named after stem.
func HTMLArtifact(stem, html string) Artifact {
	return Artifact{
		Filename:  FilenameStem(stem) + ".html",
		MediaType: HTMLMediaType,
		Data:      []byte(html),
	}
}

// FilenameStem reduces a user-supplied name to a safe file stem without directory or extension.
func FilenameStem(raw string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, `\`, "/"))
	if trimmed == "" {
		return defaultStem
	}

	base := filepath.Base(trimmed)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}

	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._-")
	if base == "" {
		return defaultStem
	}

	return base
}
