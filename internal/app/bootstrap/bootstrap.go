package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"deckforge/app/internal/archive"
	"deckforge/app/internal/config"
	"deckforge/app/internal/db"
	"deckforge/app/internal/deck"
	"deckforge/app/internal/extract"
	apphttp "deckforge/app/internal/http"
	"deckforge/app/internal/llm"
	"deckforge/app/internal/ratelimit"
	"deckforge/app/internal/render"
)

// llmLimiterKey names the shared token bucket every completion call draws from.
const llmLimiterKey = "llm"

// Completers holds the completion services the pipeline talks to.
type Completers struct {
	Slides  deck.Completer
	Summary deck.Completer
}

// Dependencies are the already-initialised ambient services Build wires together.
type Dependencies struct {
	Config    *config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	// Completers overrides the OpenAI-compatible client when set.
	Completers *Completers
}

// Result holds the composed application.
type Result struct {
	Pipeline   *deck.Pipeline
	Archive    archive.Service
	HTTPServer *apphttp.Server
	Database   *gorm.DB
	Cleanup    func() error
}

// NewCompleters builds the slide and summary completers from configuration.
func NewCompleters(cfg *config.Config, logger *logrus.Logger) (Completers, error) {
	if len(cfg.LLMModels) == 0 {
		return Completers{}, eris.New("LLM_MODELS must include at least one model name")
	}

	client, err := llm.NewClient(llm.ClientOptions{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMEndpoint,
		Logger:  logger,
	})
	if err != nil {
		return Completers{}, eris.Wrap(err, "creating llm client")
	}

	slides, err := llm.NewCompleter(llm.CompleterOptions{
		Client:      client,
		Model:       cfg.ModelSlides(),
		Temperature: cfg.Generation.Temperature,
	})
	if err != nil {
		return Completers{}, eris.Wrap(err, "initialising slide completer")
	}

	summary, err := llm.NewCompleter(llm.CompleterOptions{
		Client:      client,
		Model:       cfg.ModelSummary(),
		Temperature: cfg.Generation.Temperature,
	})
	if err != nil {
		return Completers{}, eris.Wrap(err, "initialising summary completer")
	}

	return Completers{Slides: slides, Summary: summary}, nil
}

// NewLimiter builds the pacing applied before every completion call: a token
// bucket followed by the batch pause.
func NewLimiter(gen config.Generation) deck.Limiter {
	var chain ratelimit.Chain

	if gen.RequestsPerSecond > 0 && gen.Burst > 0 {
		bucket := ratelimit.NewRateLimiter(gen.Burst, gen.RequestsPerSecond, 0)
		chain = append(chain, bucket.For(llmLimiterKey))
	}

	if gen.BatchSize > 0 && gen.BatchPause > 0 {
		chain = append(chain, ratelimit.NewBatchPacer(gen.BatchSize, gen.BatchPause))
	}

	if len(chain) == 0 {
		return nil
	}
	return chain
}

// BuildPipeline composes the deck pipeline from configuration and completers.
func BuildPipeline(cfg *config.Config, logger *logrus.Logger, completers Completers) (*deck.Pipeline, error) {
	if completers.Slides == nil {
		return nil, eris.New("slide completer is required")
	}

	var prompts deck.Prompts
	if cfg.Generation.PromptsPath != "" {
		loaded, err := deck.LoadPrompts(cfg.Generation.PromptsPath)
		if err != nil {
			return nil, eris.Wrap(err, "loading prompts")
		}
		prompts = loaded
	}

	policy, err := deck.ParseOutlinePolicy(cfg.Generation.OutlinePolicy)
	if err != nil {
		return nil, eris.Wrap(err, "parsing outline policy")
	}

	pipeline, err := deck.NewPipeline(deck.Options{
		Completer:        completers.Slides,
		SummaryCompleter: completers.Summary,
		Renderer:         render.NewRenderer(),
		Extractor:        extract.New(extract.Options{Logger: logger}),
		Limiter:          NewLimiter(cfg.Generation),
		Logger:           logger,
		Prompts:          prompts,
		MinSlides:        cfg.Generation.MinSlides,
		MaxSlides:        cfg.Generation.MaxSlides,
		OutlinePolicy:    policy,
		TwoPassOutline:   cfg.Generation.TwoPassOutline,
		Concurrency:      cfg.Generation.Concurrency,
		CallTimeout:      cfg.Generation.CallTimeout,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating deck pipeline")
	}

	return pipeline, nil
}

// Build composes the deckforge application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	if deps.Config == nil {
		return Result{}, eris.New("configuration is required")
	}
	cfg := deps.Config

	gormDB, err := db.Open(db.Options{Path: cfg.DBPath, Logger: deps.Logger})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := db.Close(gormDB); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := archive.Migrate(ctx, gormDB, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running archive migrations"))
	}

	repo, err := archive.NewRepository(gormDB, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating deck repository"))
	}

	var completers Completers
	if deps.Completers != nil {
		completers = *deps.Completers
	} else {
		completers, err = NewCompleters(cfg, deps.Logger)
		if err != nil {
			return closeOnError(err)
		}
	}

	pipeline, err := BuildPipeline(cfg, deps.Logger, completers)
	if err != nil {
		return closeOnError(err)
	}

	archiveService, err := archive.NewService(repo, pipeline, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating archive service"))
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Archive:     archiveService,
		Database:    gormDB,
		Logger:      deps.Logger,
		SentryHub:   deps.SentryHub,
		CORSOrigins: cfg.CORSOrigins,
		RateLimiter: apphttp.RateLimiterSettings{
			Burst:             cfg.RateLimit.Burst,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			ClientTTL:         cfg.RateLimit.TTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		httpServer.Close()
		return db.Close(gormDB)
	}

	return Result{
		Pipeline:   pipeline,
		Archive:    archiveService,
		HTTPServer: httpServer,
		Database:   gormDB,
		Cleanup:    cleanup,
	}, nil
}
