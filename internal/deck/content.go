package deck

import (
	"regexp"
	"strings"
)

// Position is the place of a slide in the deck, which selects its prompt.
type Position int

const (
	PositionFirst Position = iota
	PositionMiddle
	PositionLast
)

func (p Position) String() string {
	switch p {
	case PositionFirst:
		return "first"
	case PositionLast:
		return "last"
	default:
		return "middle"
	}
}

// positionOf maps a zero-based index to its positional policy. A single slide counts as first.
func positionOf(index, total int) Position {
	switch {
	case index == 0:
		return PositionFirst
	case index == total-1:
		return PositionLast
	default:
		return PositionMiddle
	}
}

var boilerplateLabels = []string{
	"Key Points:",
	"Features:",
	"* Title:",
	"* Text:",
	"Title:",
	"Text:",
}

var (
	bulletMarkerPattern = regexp.MustCompile(`^(?:[-*+•]|\d+[.)])\s+`)
	headingPattern      = regexp.MustCompile(`^#{1,6}\s+`)
)

// cleanSlideContent normalises a raw completion into "- " bullet lines.
func cleanSlideContent(raw, title string) (string, error) {
	content := strings.ReplaceAll(raw, "\r\n", "\n")
	content = stripCodeFence(strings.TrimSpace(content))
	for _, label := range boilerplateLabels {
		content = strings.ReplaceAll(content, label, "")
	}

	normalizedTitle := normalizeForCompare(title)
	bullets := make([]string, 0, 4)

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || thematicBreakRegex.MatchString(trimmed) {
			continue
		}
		if preamblePattern.MatchString(trimmed) && strings.HasSuffix(trimmed, ":") {
			continue
		}

		if headingPattern.MatchString(trimmed) {
			heading := strings.TrimSpace(headingPattern.ReplaceAllString(trimmed, ""))
			if heading == "" || normalizeForCompare(heading) == normalizedTitle {
				continue
			}
			trimmed = heading
		}

		text := strings.TrimSpace(bulletMarkerPattern.ReplaceAllString(trimmed, ""))
		if text == "" {
			continue
		}
		bullets = append(bullets, "- "+text)
	}

	if len(bullets) == 0 {
		return "", &ValidationError{Field: "slide content", Reason: "model returned no bullet points for " + quote(title)}
	}

	return strings.Join(bullets, "\n"), nil
}

func normalizeForCompare(value string) string {
	value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), "*_\"'"))
	return strings.ToLower(value)
}

func quote(value string) string {
	return "'" + value + "'"
}
