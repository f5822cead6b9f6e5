package deck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMinSlides    = 1
	defaultMaxSlides    = 30
	defaultConcurrency  = 1
	defaultCallTimeout  = 60 * time.Second
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100

	// combined map summaries longer than combineFactor chunks are summarised again.
	combineFactor     = 4
	maxSummaryRounds  = 4
	extractionWarning = "The reference document could not be processed and was ignored"
)

// Options configures a Pipeline.
type Options struct {
	Completer        Completer
	SummaryCompleter Completer
	Renderer         Renderer
	Extractor        Extractor
	Limiter          Limiter
	Logger           *logrus.Logger
	Prompts          Prompts

	MinSlides      int
	MaxSlides      int
	OutlinePolicy  OutlinePolicy
	TwoPassOutline bool
	Concurrency    int
	CallTimeout    time.Duration
	ChunkSize      int
	ChunkOverlap   int

	NewID func() string
}

// Pipeline plans, writes and renders a deck. It holds no per-request state.
type Pipeline struct {
	completer        Completer
	summaryCompleter Completer
	renderer         Renderer
	extractor        Extractor
	limiter          Limiter
	logger           *logrus.Logger
	prompts          *promptSet

	minSlides      int
	maxSlides      int
	outlinePolicy  OutlinePolicy
	twoPassOutline bool
	concurrency    int
	callTimeout    time.Duration
	chunkSize      int
	chunkOverlap   int
	newID          func() string
}

// NewPipeline validates the collaborators and applies defaults.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Completer == nil {
		return nil, eris.New("completer is required")
	}
	if opts.Renderer == nil {
		return nil, eris.New("renderer is required")
	}

	prompts := opts.Prompts
	if prompts == (Prompts{}) {
		prompts = DefaultPrompts()
	} else {
		prompts = DefaultPrompts().merge(prompts)
	}
	compiled, err := prompts.compile()
	if err != nil {
		return nil, eris.Wrap(err, "compiling prompts")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	p := &Pipeline{
		completer:        opts.Completer,
		summaryCompleter: opts.SummaryCompleter,
		renderer:         opts.Renderer,
		extractor:        opts.Extractor,
		limiter:          opts.Limiter,
		logger:           logger,
		prompts:          compiled,
		minSlides:        positiveOr(opts.MinSlides, defaultMinSlides),
		maxSlides:        positiveOr(opts.MaxSlides, defaultMaxSlides),
		outlinePolicy:    opts.OutlinePolicy,
		twoPassOutline:   opts.TwoPassOutline,
		concurrency:      positiveOr(opts.Concurrency, defaultConcurrency),
		callTimeout:      opts.CallTimeout,
		chunkSize:        positiveOr(opts.ChunkSize, defaultChunkSize),
		chunkOverlap:     opts.ChunkOverlap,
		newID:            opts.NewID,
	}

	if p.summaryCompleter == nil {
		p.summaryCompleter = p.completer
	}
	if p.outlinePolicy == "" {
		p.outlinePolicy = OutlineEnforce
	}
	if p.callTimeout <= 0 {
		p.callTimeout = defaultCallTimeout
	}
	if opts.ChunkOverlap == 0 && opts.ChunkSize == 0 {
		p.chunkOverlap = defaultChunkOverlap
	}
	if p.chunkOverlap < 0 || p.chunkOverlap >= p.chunkSize {
		return nil, eris.Errorf("chunk overlap must be in [0, %d), got %d", p.chunkSize, p.chunkOverlap)
	}
	if p.minSlides > p.maxSlides {
		return nil, eris.Errorf("minimum slide count %d exceeds maximum %d", p.minSlides, p.maxSlides)
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}

	return p, nil
}

// ValidateSlideCount reports whether count lies inside the configured bounds.
func (p *Pipeline) ValidateSlideCount(count int) error {
	if count < p.minSlides || count > p.maxSlides {
		return &ValidationError{
			Field:  "slide count",
			Reason: fmt.Sprintf("%d is outside the allowed range %d-%d", count, p.minSlides, p.maxSlides),
		}
	}
	return nil
}

// Generate runs the whole pipeline for one request. On any failure other than document
// extraction it returns no deck.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Deck, error) {
	topic := singleLine(req.Topic)
	if topic == "" {
		return nil, &ValidationError{Field: "topic", Reason: "topic is required"}
	}
	if err := p.ValidateSlideCount(req.SlideCount); err != nil {
		return nil, err
	}

	meta := Meta{
		Title:       topic,
		Subtitle:    singleLine(req.Subtitle),
		HeaderImage: req.HeaderImage,
		FooterText:  req.FooterText,
	}
	if validator, ok := p.renderer.(MetaValidator); ok {
		if err := validator.ValidateMeta(meta); err != nil {
			return nil, err
		}
	}

	result := &Deck{
		ID:       p.newID(),
		Topic:    topic,
		Filename: req.Filename,
	}
	fields := logrus.Fields{"deck_id": result.ID, "topic": topic, "slide_count": req.SlideCount}
	start := time.Now()

	reference := strings.TrimSpace(req.ReferenceText)
	if len(req.Document) > 0 {
		text, err := p.extractReference(ctx, req.Document)
		if err != nil {
			p.logError(fields, err, "reference document ignored")
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", extractionWarning, err))
		} else {
			reference = strings.TrimSpace(reference + "\n" + text)
		}
	}

	summary := ""
	if reference != "" {
		var err error
		summary, err = p.SummarizeReference(ctx, reference)
		if err != nil {
			p.logError(fields, err, "summarising reference text")
			return nil, eris.Wrap(err, "summarising reference text")
		}
	}

	outline, err := p.PlanOutline(ctx, topic, req.SlideCount, summary)
	if err != nil {
		p.logError(fields, err, "planning outline")
		return nil, eris.Wrap(err, "planning outline")
	}
	result.Outline = outline

	slides, err := p.GenerateSlides(ctx, topic, outline, summary)
	if err != nil {
		p.logError(fields, err, "generating slides")
		return nil, eris.Wrap(err, "generating slides")
	}
	result.Slides = slides

	markdown, html, err := p.renderer.RenderDeck(slides, meta)
	if err != nil {
		p.logError(fields, err, "rendering deck")
		return nil, eris.Wrap(err, "rendering deck")
	}
	result.Markdown = markdown
	result.HTML = html

	p.logger.WithFields(fields).WithFields(logrus.Fields{
		"slides":      len(slides),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("deck generated")

	return result, nil
}

// PlanOutline asks the model for slideCount slide titles about topic.
func (p *Pipeline) PlanOutline(ctx context.Context, topic string, slideCount int, reference string) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &ValidationError{Field: "topic", Reason: "topic is required"}
	}
	if slideCount <= 0 {
		return nil, &ValidationError{Field: "slide count", Reason: "slide count must be positive"}
	}

	data := PromptData{
		Topic:         topic,
		SlideCount:    slideCount,
		MaxTitleWords: defaultMaxTitleWords,
		Reference:     strings.TrimSpace(reference),
	}

	var (
		prompt string
		err    error
	)
	if p.twoPassOutline {
		var draftPrompt, draft string
		if draftPrompt, err = executePrompt(p.prompts.draft, data); err != nil {
			return nil, err
		}
		if draft, err = p.complete(ctx, p.completer, "outline draft", draftPrompt); err != nil {
			return nil, err
		}
		data.Draft = strings.TrimSpace(draft)
		prompt, err = executePrompt(p.prompts.divide, data)
	} else {
		prompt, err = executePrompt(p.prompts.outline, data)
	}
	if err != nil {
		return nil, err
	}

	response, err := p.complete(ctx, p.completer, "outline", prompt)
	if err != nil {
		return nil, err
	}

	return parseOutline(response, slideCount, p.outlinePolicy)
}

// GenerateSlide writes the bullet content for the slide at zero-based index out of total.
func (p *Pipeline) GenerateSlide(ctx context.Context, topic, title string, index, total int, reference string) (Slide, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Slide{}, &ValidationError{Field: "slide title", Reason: "title is empty"}
	}
	if total <= 0 || index < 0 || index >= total {
		return Slide{}, &ValidationError{Field: "slide position", Reason: fmt.Sprintf("index %d out of %d slides", index, total)}
	}

	position := positionOf(index, total)
	tmpl := p.prompts.middle
	switch position {
	case PositionFirst:
		tmpl = p.prompts.first
	case PositionLast:
		tmpl = p.prompts.last
	}

	prompt, err := executePrompt(tmpl, PromptData{
		Topic:     strings.TrimSpace(topic),
		Title:     title,
		Position:  index + 1,
		Total:     total,
		Reference: strings.TrimSpace(reference),
	})
	if err != nil {
		return Slide{}, err
	}

	response, err := p.complete(ctx, p.completer, fmt.Sprintf("slide %d (%s)", index+1, position), prompt)
	if err != nil {
		return Slide{}, err
	}

	body, err := cleanSlideContent(response, title)
	if err != nil {
		return Slide{}, err
	}

	return Slide{Title: title, Body: body}, nil
}

// GenerateSlides produces one slide per title, keeping outline order regardless of concurrency.
func (p *Pipeline) GenerateSlides(ctx context.Context, topic string, titles []string, reference string) ([]Slide, error) {
	if len(titles) == 0 {
		return nil, &ValidationError{Field: "outline", Reason: "no slide titles to generate"}
	}

	slides := make([]Slide, len(titles))
	err := p.forEach(ctx, len(titles), func(ctx context.Context, i int) error {
		slide, err := p.GenerateSlide(ctx, topic, titles[i], i, len(titles), reference)
		if err != nil {
			return eris.Wrapf(err, "generating slide %d", i+1)
		}
		slides[i] = slide
		return nil
	})
	if err != nil {
		return nil, err
	}

	return slides, nil
}

// SummarizeReference condenses text with a map-reduce pass over overlapping chunks.
func (p *Pipeline) SummarizeReference(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	chunks, err := ChunkText(text, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return "", err
	}

	for round := 1; ; round++ {
		summaries := make([]string, len(chunks))
		err := p.forEach(ctx, len(chunks), func(ctx context.Context, i int) error {
			prompt, err := executePrompt(p.prompts.summarizeChunk, PromptData{Text: chunks[i]})
			if err != nil {
				return err
			}
			summary, err := p.complete(ctx, p.summaryCompleter, fmt.Sprintf("summary chunk %d", i+1), prompt)
			if err != nil {
				return err
			}
			summaries[i] = strings.TrimSpace(summary)
			return nil
		})
		if err != nil {
			return "", err
		}

		if len(summaries) == 1 {
			return summaries[0], nil
		}

		joined := strings.Join(summaries, "\n\n")
		if round >= maxSummaryRounds || utf8.RuneCountInString(joined) <= p.chunkSize*combineFactor {
			prompt, err := executePrompt(p.prompts.combineSummaries, PromptData{Text: joined})
			if err != nil {
				return "", err
			}
			combined, err := p.complete(ctx, p.summaryCompleter, "summary combine", prompt)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(combined), nil
		}

		chunks, err = ChunkText(joined, p.chunkSize, p.chunkOverlap)
		if err != nil {
			return "", err
		}
	}
}

func (p *Pipeline) extractReference(ctx context.Context, document []byte) (string, error) {
	if p.extractor == nil {
		return "", &ExtractionError{Err: eris.New("reference documents are not supported")}
	}

	text, err := p.extractor.Extract(ctx, document)
	if err != nil {
		var extractionErr *ExtractionError
		if errors.As(err, &extractionErr) {
			return "", err
		}
		return "", &ExtractionError{Err: err}
	}

	return text, nil
}

// complete performs one completion call: cancellation check, pacing, per-call timeout.
func (p *Pipeline) complete(ctx context.Context, completer Completer, op, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrapf(err, "%s canceled", op)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", eris.Wrapf(err, "waiting for rate limiter before %s", op)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	start := time.Now()
	response, err := completer.Complete(callCtx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", eris.Wrapf(ctxErr, "%s canceled", op)
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &TimeoutError{Op: op, After: p.callTimeout}
		}
		return "", &ServiceError{Op: op, Err: err}
	}

	p.logger.WithFields(logrus.Fields{
		"op":          op,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("completion call finished")

	return response, nil
}

// forEach runs fn for 0..n-1, sequentially or with bounded concurrency. The first error
// cancels the remaining calls.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if p.concurrency <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)
	for i := 0; i < n; i++ {
		group.Go(func() error {
			return fn(groupCtx, i)
		})
	}
	return group.Wait()
}

func (p *Pipeline) logError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}
	p.logger.WithFields(fields).WithField("error", err.Error()).Error(message)
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

// singleLine collapses whitespace runs, line breaks included, into single spaces.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
