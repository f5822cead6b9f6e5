package deck

import (
	"fmt"
	"regexp"
	"strings"
)

// OutlinePolicy decides what happens when the model returns a different number of titles.
type OutlinePolicy string

const (
	// OutlineEnforce rejects an outline whose length differs from the requested slide count.
	OutlineEnforce OutlinePolicy = "enforce"
	// OutlineTrust accepts whatever non-empty outline the model produced.
	OutlineTrust OutlinePolicy = "trust"
)

// ParseOutlinePolicy maps a configuration value to an OutlinePolicy.
func ParseOutlinePolicy(raw string) (OutlinePolicy, error) {
	switch OutlinePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OutlineEnforce:
		return OutlineEnforce, nil
	case OutlineTrust:
		return OutlineTrust, nil
	default:
		return "", &ValidationError{Field: "outline policy", Reason: fmt.Sprintf("unknown value %q", raw)}
	}
}

var (
	listMarkerPattern  = regexp.MustCompile(`^(?:[-*+•]|\d+[.)]|#{1,6})\s+`)
	slideLabelPattern  = regexp.MustCompile(`(?i)^slide\s+\d+\s*[:.\-–]\s*`)
	preamblePattern    = regexp.MustCompile(`(?i)^(?:here\s+(?:are|is)|sure\b|certainly\b|below\s+(?:are|is))`)
	thematicBreakRegex = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})$`)
)

// parseOutline turns a raw completion into slide titles.
func parseOutline(raw string, expected int, policy OutlinePolicy) ([]string, error) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = stripCodeFence(strings.TrimSpace(normalized))

	titles := make([]string, 0, expected)
	for _, line := range strings.Split(normalized, "\n") {
		title := cleanOutlineLine(line)
		if title == "" {
			continue
		}
		titles = append(titles, title)
	}

	if len(titles) == 0 {
		return nil, &ValidationError{Field: "outline", Reason: "model returned no slide titles"}
	}

	if policy != OutlineTrust && len(titles) != expected {
		return nil, &ValidationError{
			Field:  "outline",
			Reason: fmt.Sprintf("model returned %d slide titles, expected %d", len(titles), expected),
		}
	}

	return titles, nil
}

func cleanOutlineLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || thematicBreakRegex.MatchString(trimmed) {
		return ""
	}
	if preamblePattern.MatchString(trimmed) && strings.HasSuffix(trimmed, ":") {
		return ""
	}

	for {
		stripped := listMarkerPattern.ReplaceAllString(trimmed, "")
		stripped = slideLabelPattern.ReplaceAllString(stripped, "")
		stripped = strings.TrimSpace(stripped)
		if stripped == trimmed {
			break
		}
		trimmed = stripped
	}

	trimmed = strings.TrimSpace(strings.Trim(trimmed, "*_"))
	trimmed = strings.TrimSpace(strings.Trim(trimmed, `"'`))
	return trimmed
}

// stripCodeFence removes a surrounding ``` fence the model sometimes adds.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}

	body := content[3:]
	newline := strings.IndexByte(body, '\n')
	if newline == -1 {
		return content
	}
	body = body[newline+1:]

	trimmedBody := strings.TrimRight(body, " \t\r\n")
	if !strings.HasSuffix(trimmedBody, "```") {
		return content
	}

	trimmedBody = strings.TrimRight(trimmedBody[:len(trimmedBody)-3], " \t\r\n")
	return strings.TrimSpace(trimmedBody)
}
