// Package library persists books, chapters, segments, and translation jobs
// through the remote store.
package library

import (
	"errors"
	"time"

	"github.com/versobook/verso/internal/extract"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("library: not found")

// BookStatus is the lifecycle state of an imported book.
type BookStatus string

const (
	BookDraft       BookStatus = "draft"
	BookTranslating BookStatus = "translating"
	BookReady       BookStatus = "ready"
	BookError       BookStatus = "error"
)

// Book is one imported document.
type Book struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	OriginalTitle  string     `json:"original_title"`
	Author         string     `json:"author,omitempty"`
	SourceLanguage string     `json:"source_language"`
	TargetLanguage string     `json:"target_language"`
	Status         BookStatus `json:"status"`
	TotalChapters  int        `json:"total_chapters"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Chapter is one spine-ordered unit of a book. Produced once at import and
// never mutated by the pipeline except for its display title.
type Chapter struct {
	ID            string `json:"id"`
	BookID        string `json:"book_id"`
	Number        int    `json:"number"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	RawMarkup     string `json:"raw_markup,omitempty"`
}

// TranslatedSegment is the durable output row for one segment, keyed by
// (chapter, address) so retries upsert instead of duplicating.
type TranslatedSegment struct {
	ChapterID        string `json:"chapter_id"`
	Address          string `json:"address"`
	OriginalText     string `json:"original_text"`
	OriginalFragment string `json:"original_fragment"`
	TranslatedText   string `json:"translated_text"`
	OrderIndex       int    `json:"order_index"`
}

// JobStatus is the translation job state machine's state.
type JobStatus string

const (
	JobPending            JobStatus = "pending"
	JobExtractingGlossary JobStatus = "extracting_glossary"
	JobTranslating        JobStatus = "translating"
	JobCompleted          JobStatus = "completed"
	JobError              JobStatus = "error"
)

// TranslationJob is the checkpoint record for one book's translation run.
// CurrentItemOffset is only meaningful against the CurrentChapter it was
// recorded with; CompletedChapters never decreases.
type TranslationJob struct {
	BookID            string            `json:"book_id"`
	TotalChapters     int               `json:"total_chapters"`
	CompletedChapters int               `json:"completed_chapters"`
	CurrentChapter    int               `json:"current_chapter"`
	CurrentItemOffset int               `json:"current_item_offset"`
	Glossary          map[string]string `json:"glossary,omitempty"`
	GlossaryExtracted bool              `json:"glossary_extracted"`
	TitleTranslated   bool              `json:"title_translated"`
	TranslatedTitle   string            `json:"translated_title,omitempty"`
	Status            JobStatus         `json:"status"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// SegmentCache is the per-chapter extraction blob, written at import and
// dropped once the chapter's translated rows exist.
type SegmentCache struct {
	ChapterID string            `json:"chapter_id"`
	BookID    string            `json:"book_id"`
	Segments  []extract.Segment `json:"segments"`
}
