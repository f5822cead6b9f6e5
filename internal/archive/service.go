package archive

import (
	"context"
	"errors"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"deckforge/app/internal/deck"
)

// Generator produces a deck from a request. *deck.Pipeline satisfies it.
type Generator interface {
	Generate(ctx context.Context, req deck.Request) (*deck.Deck, error)
}

// Service generates decks and keeps them available for download.
type Service interface {
	Generate(ctx context.Context, req deck.Request) (*deck.Deck, error)
	Get(ctx context.Context, id string) (*DeckRecord, error)
	List(ctx context.Context, limit int) ([]DeckRecord, error)
	Count(ctx context.Context) (int64, error)
}

type service struct {
	repo      Repository
	generator Generator
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// ErrDeckNotFound indicates no archived deck has the requested id.
var ErrDeckNotFound = eris.New("deck not found")

// PersistenceWarning is attached to a deck that was generated but could not be archived.
const PersistenceWarning = "The deck could not be saved; download links will not be available"

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// NewService wires the archive service with its dependencies.
func NewService(repo Repository, generator Generator, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("deck repository is required")
	}
	if generator == nil {
		return nil, eris.New("deck generator is required")
	}

	return &service{
		repo:      repo,
		generator: generator,
		logger:    logger,
		sentryHub: hub,
	}, nil
}

func (s *service) Generate(ctx context.Context, req deck.Request) (*deck.Deck, error) {
	topic := strings.TrimSpace(req.Topic)
	fields := logrus.Fields{"topic": topic, "slide_count": req.SlideCount}

	generated, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.recordError(fields, err, "generating deck")
		return nil, eris.Wrapf(err, "generating deck: %s", topic)
	}

	if err := s.repo.Create(ctx, newRecord(generated)); err != nil {
		fields["deck_id"] = generated.ID
		s.recordError(fields, err, "persisting generated deck")
		generated.Warnings = append(generated.Warnings, PersistenceWarning)
		return generated, nil
	}

	return generated, nil
}

func (s *service) Get(ctx context.Context, id string) (*DeckRecord, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, &deck.ValidationError{Field: "deck id", Reason: "must not be empty"}
	}

	record, err := s.repo.GetByID(ctx, trimmed)
	if err != nil {
		s.recordError(logrus.Fields{"deck_id": trimmed}, err, "retrieving deck from repository")
		return nil, eris.Wrapf(err, "retrieving deck: %s", trimmed)
	}

	if record == nil {
		return nil, eris.Wrapf(ErrDeckNotFound, "retrieving deck: %s", trimmed)
	}

	return record, nil
}

func (s *service) List(ctx context.Context, limit int) ([]DeckRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		s.recordError(logrus.Fields{"limit": limit}, err, "listing recent decks")
		return nil, eris.Wrap(err, "listing recent decks")
	}

	return records, nil
}

func (s *service) Count(ctx context.Context) (int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		s.recordError(nil, err, "counting archived decks")
		return 0, eris.Wrap(err, "counting archived decks")
	}

	return count, nil
}

// recordError logs the failure and reports it to Sentry. Caller mistakes and
// cancellations are logged at warning level and never reach Sentry.
func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	expected := isExpected(err)

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		if expected {
			entry.Warn(message)
		} else {
			entry.Error(message)
		}
	}

	if s.sentryHub != nil && !expected {
		s.sentryHub.CaptureException(err)
	}
}

func isExpected(err error) bool {
	var validationErr *deck.ValidationError
	if errors.As(err, &validationErr) {
		return true
	}
	return errors.Is(err, context.Canceled)
}
