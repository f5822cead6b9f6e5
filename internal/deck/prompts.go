package deck

import (
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
)

// Prompts holds the text/template sources used to build every completion prompt.
type Prompts struct {
	Outline          string `toml:"outline"`
	Draft            string `toml:"draft"`
	Divide           string `toml:"divide"`
	First            string `toml:"first"`
	Middle           string `toml:"middle"`
	Last             string `toml:"last"`
	SummarizeChunk   string `toml:"summarize_chunk"`
	CombineSummaries string `toml:"combine_summaries"`
}

// PromptData is the value every prompt template is executed against.
type PromptData struct {
	Topic         string
	SlideCount    int
	MaxTitleWords int
	Reference     string
	Draft         string
	Title         string
	Position      int
	Total         int
	Text          string
}

const defaultMaxTitleWords = 6

const (
	defaultOutlinePrompt = `Create the slide titles for a presentation on '{{.Topic}}'.
{{if .Reference}}Use this document summary as reference:
{{.Reference}}
{{end}}Requirements:
1. Return exactly {{.SlideCount}} slide titles, one per line.
2. Each title has at most {{.MaxTitleWords}} words.
3. Each title covers a distinct aspect of {{.Topic}}.
4. The first title introduces the topic and the last one concludes it.
5. Do not number the titles, label them as 'Slide X', or add any other text.`

	defaultDraftPrompt = `Create a detailed outline for a presentation on '{{.Topic}}' with {{.SlideCount}} distinct sections.
{{if .Reference}}Use this document summary as reference:
{{.Reference}}
{{end}}Requirements:
1. Each section covers a unique aspect of {{.Topic}}.
2. Sections flow logically from introduction to conclusion.
3. Focus on key concepts, practical applications and important insights.
4. Do not include presentation instructions or slide formatting notes.
5. Do not repeat content across sections.`

	defaultDividePrompt = `Transform this outline into exactly {{.SlideCount}} slide titles about {{.Topic}}:

{{.Draft}}

Requirements:
1. Return one title per line and nothing else.
2. Each title has at most {{.MaxTitleWords}} words and focuses on a single concept.
3. Maintain a logical flow between slides.
4. Do not number or label slides as 'Slide X'.`

	defaultFirstPrompt = `Write the opening slide of a presentation on '{{.Topic}}'. The slide title is '{{.Title}}'.
{{if .Reference}}Reference material:
{{.Reference}}
{{end}}Requirements:
1. Give 2-4 bullet points that introduce the topic and frame why it matters.
2. Start every bullet with '- ' and keep each bullet on a single line.
3. Do not add a heading, preamble, or phrases like 'Key Points:'.`

	defaultMiddlePrompt = `Write slide {{.Position}} of {{.Total}} in a presentation on '{{.Topic}}'. The slide title is '{{.Title}}'.
{{if .Reference}}Reference material:
{{.Reference}}
{{end}}Requirements:
1. Give 2-4 key points that relate directly to '{{.Title}}'.
2. Start every bullet with '- ' and keep each bullet on a single line.
3. Avoid repeating content from other slides.
4. Do not add a heading, preamble, or phrases like 'Key Points:' or 'Features:'.`

	defaultLastPrompt = `Write the closing slide of a presentation on '{{.Topic}}'. The slide title is '{{.Title}}'.
{{if .Reference}}Reference material:
{{.Reference}}
{{end}}Requirements:
1. Give 2-4 bullet points that conclude the presentation and summarise the main takeaways.
2. Start every bullet with '- ' and keep each bullet on a single line.
3. Do not add a heading, preamble, or phrases like 'Key Points:'.`

	defaultSummarizeChunkPrompt = `Write a concise summary of the following text. Keep every distinct fact and concept.

{{.Text}}

CONCISE SUMMARY:`

	defaultCombineSummariesPrompt = `The following are summaries of consecutive parts of one document. Combine them into a single concise summary that preserves coverage of every topic.

{{.Text}}

CONCISE SUMMARY:`
)

// DefaultPrompts returns the built-in prompt templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Outline:          defaultOutlinePrompt,
		Draft:            defaultDraftPrompt,
		Divide:           defaultDividePrompt,
		First:            defaultFirstPrompt,
		Middle:           defaultMiddlePrompt,
		Last:             defaultLastPrompt,
		SummarizeChunk:   defaultSummarizeChunkPrompt,
		CombineSummaries: defaultCombineSummariesPrompt,
	}
}

// LoadPrompts reads a TOML file and overlays its non-empty entries on the defaults.
func LoadPrompts(path string) (Prompts, error) {
	prompts := DefaultPrompts()

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return prompts, nil
	}

	var overrides Prompts
	if _, err := toml.DecodeFile(trimmed, &overrides); err != nil {
		return Prompts{}, eris.Wrapf(err, "decoding prompts file: %s", trimmed)
	}

	prompts = prompts.merge(overrides)
	if _, err := prompts.compile(); err != nil {
		return Prompts{}, err
	}

	return prompts, nil
}

func (p Prompts) merge(overrides Prompts) Prompts {
	pick := func(current, override string) string {
		if strings.TrimSpace(override) == "" {
			return current
		}
		return override
	}

	return Prompts{
		Outline:          pick(p.Outline, overrides.Outline),
		Draft:            pick(p.Draft, overrides.Draft),
		Divide:           pick(p.Divide, overrides.Divide),
		First:            pick(p.First, overrides.First),
		Middle:           pick(p.Middle, overrides.Middle),
		Last:             pick(p.Last, overrides.Last),
		SummarizeChunk:   pick(p.SummarizeChunk, overrides.SummarizeChunk),
		CombineSummaries: pick(p.CombineSummaries, overrides.CombineSummaries),
	}
}

type promptSet struct {
	outline          *template.Template
	draft            *template.Template
	divide           *template.Template
	first            *template.Template
	middle           *template.Template
	last             *template.Template
	summarizeChunk   *template.Template
	combineSummaries *template.Template
}

func (p Prompts) compile() (*promptSet, error) {
	set := &promptSet{}
	sources := []struct {
		name   string
		source string
		target **template.Template
	}{
		{"outline", p.Outline, &set.outline},
		{"draft", p.Draft, &set.draft},
		{"divide", p.Divide, &set.divide},
		{"first", p.First, &set.first},
		{"middle", p.Middle, &set.middle},
		{"last", p.Last, &set.last},
		{"summarize_chunk", p.SummarizeChunk, &set.summarizeChunk},
		{"combine_summaries", p.CombineSummaries, &set.combineSummaries},
	}

	for _, src := range sources {
		if strings.TrimSpace(src.source) == "" {
			return nil, eris.Errorf("prompt template %s is empty", src.name)
		}
		tmpl, err := template.New(src.name).Option("missingkey=error").Parse(src.source)
		if err != nil {
			return nil, eris.Wrapf(err, "parsing prompt template %s", src.name)
		}
		*src.target = tmpl
	}

	return set, nil
}

func executePrompt(tmpl *template.Template, data PromptData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", eris.Wrapf(err, "executing prompt template %s", tmpl.Name())
	}
	return strings.TrimSpace(b.String()), nil
}
