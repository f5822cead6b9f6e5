package http

import (
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"deckforge/app/internal/archive"
	"deckforge/app/internal/ratelimit"
)

const defaultMaxBodyBytes int64 = 32 << 20

// Options configures the HTTP server wiring.
type Options struct {
	Archive      archive.Service
	Database     *gorm.DB
	Logger       *logrus.Logger
	SentryHub    *sentry.Hub
	RateLimiter  RateLimiterSettings
	CORSOrigins  []string
	MaxBodyBytes int64
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma and templ components.
type Server struct {
	api          huma.API
	mux          *stdhttp.ServeMux
	handler      stdhttp.Handler
	archive      archive.Service
	logger       *logrus.Logger
	sentry       *sentry.Hub
	db           *gorm.DB
	rateLimiter  *ratelimit.RateLimiter
	maxBodyBytes int64
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Archive == nil {
		return nil, eris.New("archive service is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Deckforge", "1.0.0")
	config.Info.Description = "Generates slide decks from a topic using a language model."

	api := humago.New(mux, config)

	srv := &Server{
		api:          api,
		mux:          mux,
		archive:      opts.Archive,
		logger:       opts.Logger,
		sentry:       opts.SentryHub,
		db:           opts.Database,
		rateLimiter:  ratelimit.NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
		maxBodyBytes: opts.MaxBodyBytes,
	}
	if srv.maxBodyBytes <= 0 {
		srv.maxBodyBytes = defaultMaxBodyBytes
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	srv.handler = mux
	if len(opts.CORSOrigins) > 0 {
		srv.handler = cors.New(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Accept"},
			ExposedHeaders: []string{"X-Request-ID", "Content-Disposition", "Retry-After"},
			MaxAge:         600,
		}).Handler(mux)
	}

	return srv, nil
}

// Handler exposes the HTTP handler for wiring into the application, with CORS applied when configured.
func (s *Server) Handler() stdhttp.Handler {
	return s.handler
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops the rate limiter's background pruning.
func (s *Server) Close() {
	s.rateLimiter.Close()
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerHomeRoute()
	s.registerCreateDeckRoute()
	s.registerListDecksRoute()
	s.registerPreviewRoute()
	s.registerDownloadRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.handler.ServeHTTP(w, r)
}
