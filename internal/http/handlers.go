package http

import (
	"context"
	"errors"
	"fmt"
	"mime"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"deckforge/app/internal/archive"
	"deckforge/app/internal/db"
	"deckforge/app/internal/deck"
	"deckforge/app/internal/http/templates"
	"deckforge/app/internal/render"
)

const (
	htmlContentType      = "text/html; charset=utf-8"
	healthPath           = "/healthz"
	homeListLimit        = 20
	errorFallbackMessage = "We couldn't process your request right now."
	createdAtLayout      = "2006-01-02 15:04 MST"
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type fileResponse struct {
	Status             int
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

type createDeckInput struct {
	Body struct {
		Topic         string `json:"topic" doc:"Presentation topic"`
		SlideCount    int    `json:"slide_count" doc:"Number of content slides"`
		Subtitle      string `json:"subtitle,omitempty" doc:"Optional subtitle for the title slide"`
		Filename      string `json:"filename,omitempty" doc:"Download file stem; directories and extensions are stripped"`
		FooterText    string `json:"footer_text,omitempty" doc:"Text shown in every slide footer"`
		HeaderImage   []byte `json:"header_image,omitempty" doc:"Base64 encoded image shown in every slide header"`
		Document      []byte `json:"document,omitempty" doc:"Base64 encoded PDF, XLSX, HTML or text reference document"`
		ReferenceText string `json:"reference_text,omitempty" doc:"Plain reference text to ground the deck"`
	}
}

type deckLinks struct {
	Preview  string `json:"preview"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

type deckView struct {
	ID              string    `json:"id"`
	Topic           string    `json:"topic"`
	Filename        string    `json:"filename"`
	SlideCount      int       `json:"slide_count"`
	Outline         []string  `json:"outline"`
	Markdown        string    `json:"markdown"`
	HTML            string    `json:"html"`
	MarkdownDataURI string    `json:"markdown_data_uri"`
	HTMLDataURI     string    `json:"html_data_uri"`
	Warnings        []string  `json:"warnings"`
	Links           deckLinks `json:"links"`
}

type createDeckOutput struct {
	Status int
	Body   deckView
}

type deckSummary struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Filename   string    `json:"filename"`
	SlideCount int       `json:"slide_count"`
	Outline    []string  `json:"outline"`
	Warnings   []string  `json:"warnings"`
	CreatedAt  time.Time `json:"created_at"`
	Links      deckLinks `json:"links"`
}

type listDecksInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Maximum number of decks to return"`
}

type listDecksOutput struct {
	Body struct {
		Decks []deckSummary `json:"decks"`
	}
}

type deckIDInput struct {
	ID string `path:"id"`
}

type downloadInput struct {
	ID     string `path:"id"`
	Format string `path:"format" enum:"md,html"`
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerHomeRoute() {
	huma.Get(s.api, "/", s.homeHandler, htmlOperation("Recent decks", stdhttp.StatusInternalServerError))
}

func (s *Server) registerCreateDeckRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-deck",
		Method:        stdhttp.MethodPost,
		Path:          "/decks",
		Summary:       "Generate a slide deck",
		DefaultStatus: stdhttp.StatusCreated,
		MaxBodyBytes:  s.maxBodyBytes,
		Errors: []int{
			stdhttp.StatusBadRequest,
			stdhttp.StatusTooManyRequests,
			stdhttp.StatusInternalServerError,
			stdhttp.StatusBadGateway,
			stdhttp.StatusGatewayTimeout,
		},
	}, s.createDeckHandler)
}

func (s *Server) registerListDecksRoute() {
	huma.Get(s.api, "/decks", s.listDecksHandler, func(op *huma.Operation) {
		op.Summary = "List recently generated decks"
	})
}

func (s *Server) registerPreviewRoute() {
	huma.Get(s.api, "/decks/{id}/preview", s.previewHandler, htmlOperation(
		"Preview a generated deck",
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerDownloadRoute() {
	huma.Get(s.api, "/decks/{id}/download/{format}", s.downloadHandler, func(op *huma.Operation) {
		op.Summary = "Download a generated deck as markdown or HTML"
	})
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, healthPath, s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) homeHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	records, err := s.archive.List(ctx, homeListLimit)
	if err != nil {
		s.recordError(ctx, err, "listing decks for home page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't load the recent decks right now.")
	}

	total, err := s.archive.Count(ctx)
	if err != nil {
		s.recordError(ctx, err, "counting decks for home page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't load the recent decks right now.")
	}

	data := templates.HomePageData{
		Title:     "Deckforge",
		DeckCount: int(total),
		Decks:     make([]templates.DeckSummaryView, 0, len(records)),
	}
	for _, record := range records {
		links := linksFor(record.ID)
		data.Decks = append(data.Decks, templates.DeckSummaryView{
			Topic:       record.Topic,
			SlideCount:  record.SlideCount,
			CreatedAt:   record.CreatedAt.UTC().Format(createdAtLayout),
			PreviewURL:  links.Preview,
			MarkdownURL: links.Markdown,
			HTMLURL:     links.HTML,
			Warnings:    record.WarningList(),
		})
	}

	body, err := renderComponent(ctx, templates.HomePage(data))
	if err != nil {
		s.recordError(ctx, err, "rendering home page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render the homepage.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) createDeckHandler(ctx context.Context, input *createDeckInput) (*createDeckOutput, error) {
	req := deck.Request{
		Topic:         input.Body.Topic,
		SlideCount:    input.Body.SlideCount,
		Subtitle:      input.Body.Subtitle,
		Filename:      render.FilenameStem(input.Body.Filename),
		FooterText:    input.Body.FooterText,
		HeaderImage:   input.Body.HeaderImage,
		Document:      input.Body.Document,
		ReferenceText: input.Body.ReferenceText,
	}

	generated, err := s.archive.Generate(ctx, req)
	if err != nil {
		return nil, s.apiError(ctx, err, "generating deck", logrus.Fields{"topic": strings.TrimSpace(req.Topic)})
	}

	mdArtifact := render.MarkdownArtifact(generated.Filename, generated.Markdown)
	htmlArtifact := render.HTMLArtifact(generated.Filename, generated.HTML)

	out := &createDeckOutput{Status: stdhttp.StatusCreated}
	out.Body = deckView{
		ID:              generated.ID,
		Topic:           generated.Topic,
		Filename:        render.FilenameStem(generated.Filename),
		SlideCount:      len(generated.Slides),
		Outline:         nonNil(generated.Outline),
		Markdown:        generated.Markdown,
		HTML:            generated.HTML,
		MarkdownDataURI: mdArtifact.DataURI(),
		HTMLDataURI:     htmlArtifact.DataURI(),
		Warnings:        nonNil(generated.Warnings),
		Links:           linksFor(generated.ID),
	}

	return out, nil
}

func (s *Server) listDecksHandler(ctx context.Context, input *listDecksInput) (*listDecksOutput, error) {
	records, err := s.archive.List(ctx, input.Limit)
	if err != nil {
		return nil, s.apiError(ctx, err, "listing decks", nil)
	}

	out := &listDecksOutput{}
	out.Body.Decks = make([]deckSummary, 0, len(records))
	for _, record := range records {
		out.Body.Decks = append(out.Body.Decks, deckSummary{
			ID:         record.ID,
			Topic:      record.Topic,
			Filename:   record.Filename,
			SlideCount: record.SlideCount,
			Outline:    nonNil(record.OutlineTitles()),
			Warnings:   nonNil(record.WarningList()),
			CreatedAt:  record.CreatedAt.UTC(),
			Links:      linksFor(record.ID),
		})
	}

	return out, nil
}

func (s *Server) previewHandler(ctx context.Context, input *deckIDInput) (*htmlResponse, error) {
	id := strings.TrimSpace(input.ID)
	record, err := s.archive.Get(ctx, id)
	if err != nil {
		status, message := classifyError(err)
		fields := logrus.Fields{"deck_id": id}
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "loading deck preview", fields)
		} else {
			s.logWarning(ctx, err, "loading deck preview", fields)
		}
		return s.renderErrorResponse(ctx, status, message)
	}

	body, err := renderComponent(ctx, templates.RawHTML(record.HTML))
	if err != nil {
		s.recordError(ctx, err, "rendering deck preview", logrus.Fields{"deck_id": id})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render this deck.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) downloadHandler(ctx context.Context, input *downloadInput) (*fileResponse, error) {
	id := strings.TrimSpace(input.ID)
	record, err := s.archive.Get(ctx, id)
	if err != nil {
		return nil, s.apiError(ctx, err, "loading deck for download", logrus.Fields{"deck_id": id})
	}

	var artifact render.Artifact
	switch input.Format {
	case "md":
		artifact = render.MarkdownArtifact(record.Filename, record.Markdown)
	case "html":
		artifact = render.HTMLArtifact(record.Filename, record.HTML)
	default:
		return nil, huma.Error400BadRequest(fmt.Sprintf("unsupported format %q", input.Format))
	}

	return &fileResponse{
		Status:             stdhttp.StatusOK,
		ContentType:        artifact.MediaType,
		ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}),
		Body:               artifact.Data,
	}, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	if err := db.Ping(ctx, s.db); err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	return resp, nil
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func linksFor(id string) deckLinks {
	base := "/decks/" + url.PathEscape(id)
	return deckLinks{
		Preview:  base + "/preview",
		Markdown: base + "/download/md",
		HTML:     base + "/download/html",
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// classifyError maps domain failures to an HTTP status and a message safe to show callers.
func classifyError(err error) (int, string) {
	if err == nil {
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}

	var (
		validationErr *deck.ValidationError
		timeoutErr    *deck.TimeoutError
		serviceErr    *deck.ServiceError
		extractionErr *deck.ExtractionError
	)

	switch {
	case errors.As(err, &validationErr):
		return stdhttp.StatusBadRequest, validationErr.Error()
	case eris.Is(err, archive.ErrDeckNotFound):
		return stdhttp.StatusNotFound, "We couldn't find that deck."
	case errors.As(err, &timeoutErr):
		return stdhttp.StatusGatewayTimeout, "The language model took too long to respond. Please try again."
	case errors.As(err, &serviceErr):
		return stdhttp.StatusBadGateway, "The language model service failed. Please try again later."
	case errors.As(err, &extractionErr):
		return stdhttp.StatusUnprocessableEntity, extractionErr.Error()
	case errors.Is(err, context.Canceled):
		return stdhttp.StatusServiceUnavailable, "The request was canceled before the deck was finished."
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}

// apiError records err and converts it into a Huma problem response.
func (s *Server) apiError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	status, detail := classifyError(err)
	if status >= stdhttp.StatusInternalServerError {
		s.recordError(ctx, err, message, fields)
	} else {
		s.logWarning(ctx, err, message, fields)
	}
	return huma.NewError(status, detail)
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) (*htmlResponse, error) {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	title := fmt.Sprintf("%s • Deckforge", label)
	template := templates.ErrorPage(templates.ErrorPageData{
		Title:       title,
		StatusLabel: label,
		Message:     message,
	})

	body, err := renderComponent(ctx, template)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, message))
		return newHTMLResponse(status, fallback), nil
	}

	return newHTMLResponse(status, body), nil
}

func (s *Server) logWarning(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil || s.logger == nil {
		return
	}

	entry := s.logger.WithField("error", err.Error())
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	entry.Warn(message)
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
