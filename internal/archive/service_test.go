package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"

	"deckforge/app/internal/deck"
)

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)

	if _, err := NewService(nil, &stubGenerator{}, nil, nil); err == nil {
		t.Fatalf("expected error when repository is nil")
	}
	if _, err := NewService(repo, nil, nil, nil); err == nil {
		t.Fatalf("expected error when generator is nil")
	}
}

func TestServiceGeneratePersistsDeck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)
	generator := &stubGenerator{deck: sampleDeck("deck-42")}

	service, err := NewService(repo, generator, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	generated, err := service.Generate(ctx, deck.Request{Topic: " Photosynthesis ", SlideCount: 2})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if generated.ID != "deck-42" {
		t.Fatalf("expected deck id deck-42, got %q", generated.ID)
	}
	if generator.calls != 1 {
		t.Fatalf("expected generator to be invoked once, got %d", generator.calls)
	}

	stored, err := service.Get(ctx, " deck-42 ")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Markdown != generated.Markdown {
		t.Fatalf("expected stored markdown %q, got %q", generated.Markdown, stored.Markdown)
	}
	if stored.SlideCount != 2 {
		t.Fatalf("expected slide count 2, got %d", stored.SlideCount)
	}
	if stored.Filename != "photosynthesis" {
		t.Fatalf("expected filename photosynthesis, got %q", stored.Filename)
	}

	listed, err := service.List(ctx, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "deck-42" {
		t.Fatalf("expected listed deck deck-42, got %#v", listed)
	}
}

func TestServiceGeneratePropagatesGeneratorError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)
	cause := &deck.ServiceError{Op: "outline", Err: errStub("boom")}
	generator := &stubGenerator{err: cause}

	service, err := NewService(repo, generator, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	if _, err := service.Generate(ctx, deck.Request{Topic: "Delta", SlideCount: 3}); err == nil {
		t.Fatalf("expected error from generator to be propagated")
	} else {
		var serviceErr *deck.ServiceError
		if !errors.As(err, &serviceErr) {
			t.Fatalf("expected ServiceError in chain, got %v", err)
		}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing persisted when generation fails, got %d", count)
	}
}

func TestServiceGenerateKeepsDeckWhenPersistenceFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &failingRepository{err: errStub("disk full")}
	generator := &stubGenerator{deck: sampleDeck("deck-7")}

	service, err := NewService(repo, generator, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	generated, err := service.Generate(ctx, deck.Request{Topic: "Photosynthesis", SlideCount: 2})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if len(generated.Warnings) != 1 || generated.Warnings[0] != PersistenceWarning {
		t.Fatalf("expected persistence warning, got %v", generated.Warnings)
	}
}

func TestServiceGetMissingDeck(t *testing.T) {
	t.Parallel()

	repo := setupRepository(t)
	service, err := NewService(repo, &stubGenerator{}, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	_, err = service.Get(context.Background(), "unknown")
	if !eris.Is(err, ErrDeckNotFound) {
		t.Fatalf("expected ErrDeckNotFound, got %v", err)
	}

	_, err = service.Get(context.Background(), "  ")
	var validationErr *deck.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for blank id, got %v", err)
	}
}

func TestServiceListClampsLimit(t *testing.T) {
	t.Parallel()

	repo := &failingRepository{}
	service, err := NewService(repo, &stubGenerator{}, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	if _, err := service.List(context.Background(), 1000); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if repo.capturedLimit != maxListLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxListLimit, repo.capturedLimit)
	}
}

func TestServiceCountIncludesDecksBeyondListLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupRepository(t)
	service, err := NewService(repo, &stubGenerator{}, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	total := defaultListLimit + 5
	for i := 0; i < total; i++ {
		if err := repo.Create(ctx, newRecord(sampleDeck(fmt.Sprintf("deck-%02d", i)))); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	count, err := service.Count(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != int64(total) {
		t.Fatalf("expected %d decks, got %d", total, count)
	}

	failing, err := NewService(&failingRepository{err: errStub("disk full")}, &stubGenerator{}, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	if _, err := failing.Count(ctx); err == nil {
		t.Fatalf("expected error from failing repository")
	}
}

func sampleDeck(id string) *deck.Deck {
	return &deck.Deck{
		ID:       id,
		Topic:    "Photosynthesis",
		Filename: "photosynthesis",
		Outline:  []string{"Light", "Sugar"},
		Slides: []deck.Slide{
			{Title: "Light", Body: "- Photons"},
			{Title: "Sugar", Body: "- Glucose"},
		},
		Markdown: "---\nmarp: true\n---\n\n# Light",
		HTML:     "<html><body>Light</body></html>",
	}
}

type stubGenerator struct {
	deck  *deck.Deck
	err   error
	calls int
}

var _ Generator = (*stubGenerator)(nil)

func (s *stubGenerator) Generate(ctx context.Context, req deck.Request) (*deck.Deck, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.deck
	return &copied, nil
}

type failingRepository struct {
	err           error
	capturedLimit int
}

var _ Repository = (*failingRepository)(nil)

func (r *failingRepository) Create(ctx context.Context, record *DeckRecord) error {
	return r.err
}

func (r *failingRepository) GetByID(ctx context.Context, id string) (*DeckRecord, error) {
	return nil, r.err
}

func (r *failingRepository) ListRecent(ctx context.Context, limit int) ([]DeckRecord, error) {
	r.capturedLimit = limit
	return nil, r.err
}

func (r *failingRepository) Count(ctx context.Context) (int64, error) {
	return 0, r.err
}
