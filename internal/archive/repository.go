package archive

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository defines persistence operations for generated decks.
type Repository interface {
	Create(ctx context.Context, record *DeckRecord) error
	GetByID(ctx context.Context, id string) (*DeckRecord, error)
	ListRecent(ctx context.Context, limit int) ([]DeckRecord, error)
	Count(ctx context.Context) (int64, error)
}

// GormRepository persists decks using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// listColumns leaves out the document bodies, which list views never show.
var listColumns = []string{"id", "topic", "filename", "slide_count", "outline", "warnings", "created_at", "updated_at"}

// Create inserts a new deck record.
func (r *GormRepository) Create(ctx context.Context, record *DeckRecord) error {
	if record == nil {
		return eris.New("deck record is nil")
	}

	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		return eris.New("deck id is required")
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		r.logError(logrus.Fields{"deck_id": record.ID}, err, "creating deck record")
		return eris.Wrapf(err, "creating deck record: %s", record.ID)
	}

	return nil
}

// GetByID returns the deck with the provided id or nil when not found.
func (r *GormRepository) GetByID(ctx context.Context, id string) (*DeckRecord, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, eris.New("deck id is required")
	}

	var record DeckRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"deck_id": trimmed}, err, "fetching deck by id")
		return nil, eris.Wrapf(err, "fetching deck by id: %s", trimmed)
	}

	return &record, nil
}

// ListRecent returns up to limit decks, newest first, without their document bodies.
func (r *GormRepository) ListRecent(ctx context.Context, limit int) ([]DeckRecord, error) {
	var records []DeckRecord

	query := r.db.WithContext(ctx).Select(listColumns).Order("created_at DESC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&records).Error; err != nil {
		r.logError(logrus.Fields{"limit": limit}, err, "listing recent decks")
		return nil, eris.Wrap(err, "listing recent decks")
	}

	return records, nil
}

// Count returns the number of archived decks.
func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&DeckRecord{}).Count(&count).Error; err != nil {
		r.logError(nil, err, "counting decks")
		return 0, eris.Wrap(err, "counting decks")
	}
	return count, nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
