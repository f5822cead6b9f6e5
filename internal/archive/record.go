package archive

import (
	"strings"
	"time"

	"deckforge/app/internal/deck"
)

// DeckRecord is a generated deck persisted for later download.
type DeckRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Topic      string    `gorm:"size:512;not null;index:idx_decks_topic"`
	Filename   string    `gorm:"size:255;not null"`
	SlideCount int       `gorm:"not null"`
	Outline    string    `gorm:"type:text;not null"`
	Markdown   string    `gorm:"type:text;not null"`
	HTML       string    `gorm:"type:text;not null"`
	Warnings   string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index:idx_decks_created_at"`
	UpdatedAt  time.Time
}

// TableName defines the table name for the DeckRecord model.
func (DeckRecord) TableName() string {
	return "decks"
}

func newRecord(d *deck.Deck) *DeckRecord {
	return &DeckRecord{
		ID:         d.ID,
		Topic:      d.Topic,
		Filename:   d.Filename,
		SlideCount: len(d.Slides),
		Outline:    strings.Join(d.Outline, "\n"),
		Markdown:   d.Markdown,
		HTML:       d.HTML,
		Warnings:   strings.Join(d.Warnings, "\n"),
	}
}

// OutlineTitles returns the stored slide titles in order.
func (r DeckRecord) OutlineTitles() []string {
	return splitLines(r.Outline)
}

// WarningList returns the warnings recorded while the deck was generated.
func (r DeckRecord) WarningList() []string {
	return splitLines(r.Warnings)
}

func splitLines(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return strings.Split(value, "\n")
}
