package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/versobook/verso/internal/extract"
	"github.com/versobook/verso/internal/store"
)

// Store persists library records through the remote store client.
type Store struct {
	db     *store.Client
	logger *slog.Logger
}

// NewStore creates a library store.
func NewStore(db *store.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Books

// CreateBook inserts a book record.
func (s *Store) CreateBook(ctx context.Context, b *Book) error {
	_, err := s.db.Run(ctx,
		`INSERT INTO books (id, title, original_title, author, source_language, target_language, status, total_chapters, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.OriginalTitle, b.Author, b.SourceLanguage, b.TargetLanguage,
		string(b.Status), b.TotalChapters, b.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetBook returns a book by ID, or ErrNotFound.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	row, err := s.db.First(ctx, `SELECT * FROM books WHERE id = ?`, id)
	if errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return parseBook(row), nil
}

// UpdateBookStatus transitions a book's lifecycle state.
func (s *Store) UpdateBookStatus(ctx context.Context, id string, status BookStatus) error {
	_, err := s.db.Run(ctx, `UPDATE books SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// UpdateBookTitle sets the book's display title.
func (s *Store) UpdateBookTitle(ctx context.Context, id, title string) error {
	_, err := s.db.Run(ctx, `UPDATE books SET title = ? WHERE id = ?`, title, id)
	return err
}

// Chapters

// CreateChapters inserts chapter records in one batch.
func (s *Store) CreateChapters(ctx context.Context, chapters []*Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	stmts := make([]store.Statement, 0, len(chapters))
	for _, ch := range chapters {
		stmts = append(stmts, store.Statement{
			SQL: `INSERT INTO chapters (id, book_id, number, title, original_title, raw_markup)
			      VALUES (?, ?, ?, ?, ?, ?)`,
			Params: []any{ch.ID, ch.BookID, ch.Number, ch.Title, ch.OriginalTitle, ch.RawMarkup},
		})
	}
	if _, err := s.db.Batch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to create chapters: %w", err)
	}
	return nil
}

// ListChapters returns a book's chapters ordered by number. Raw markup is not
// loaded; the pipeline reads segments from the cache blobs instead.
func (s *Store) ListChapters(ctx context.Context, bookID string) ([]*Chapter, error) {
	rows, err := s.db.All(ctx,
		`SELECT id, book_id, number, title, original_title FROM chapters WHERE book_id = ? ORDER BY number ASC`,
		bookID)
	if err != nil {
		return nil, err
	}
	chapters := make([]*Chapter, 0, len(rows))
	for _, row := range rows {
		chapters = append(chapters, parseChapter(row))
	}
	return chapters, nil
}

// UpdateChapterTitle sets a chapter's display title.
func (s *Store) UpdateChapterTitle(ctx context.Context, chapterID, title string) error {
	_, err := s.db.Run(ctx, `UPDATE chapters SET title = ? WHERE id = ?`, title, chapterID)
	return err
}

// Segment caches

// SaveSegmentCache stores a chapter's extracted segments as one JSON blob.
func (s *Store) SaveSegmentCache(ctx context.Context, bookID, chapterID string, segments []extract.Segment) error {
	blob, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}
	_, err = s.db.Run(ctx,
		`INSERT INTO segment_cache (chapter_id, book_id, segments) VALUES (?, ?, ?)
		 ON CONFLICT (chapter_id) DO UPDATE SET segments = excluded.segments`,
		chapterID, bookID, string(blob))
	if err != nil {
		return fmt.Errorf("failed to save segment cache: %w", err)
	}
	return nil
}

// LoadSegmentCache returns a chapter's extracted segments. A chapter with no
// cache row has no translatable content and yields an empty slice.
func (s *Store) LoadSegmentCache(ctx context.Context, chapterID string) ([]extract.Segment, error) {
	row, err := s.db.First(ctx, `SELECT segments FROM segment_cache WHERE chapter_id = ?`, chapterID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var segments []extract.Segment
	if err := json.Unmarshal([]byte(asString(row["segments"])), &segments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segment cache for chapter %s: %w", chapterID, err)
	}
	return segments, nil
}

// DeleteSegmentCaches drops all of a book's cache blobs after completion.
func (s *Store) DeleteSegmentCaches(ctx context.Context, bookID string) error {
	_, err := s.db.Run(ctx, `DELETE FROM segment_cache WHERE book_id = ?`, bookID)
	return err
}

// Translated segments

// UpsertSegment writes a translated segment keyed by (chapter, address), so a
// retried translation overwrites instead of duplicating.
func (s *Store) UpsertSegment(ctx context.Context, seg *TranslatedSegment) error {
	_, err := s.db.Run(ctx,
		`INSERT INTO translated_segments (chapter_id, address, original_text, original_fragment, translated_text, order_index)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (chapter_id, address) DO UPDATE SET
		   translated_text = excluded.translated_text,
		   original_text = excluded.original_text,
		   original_fragment = excluded.original_fragment,
		   order_index = excluded.order_index`,
		seg.ChapterID, seg.Address, seg.OriginalText, seg.OriginalFragment, seg.TranslatedText, seg.OrderIndex)
	if err != nil {
		return fmt.Errorf("failed to upsert translated segment: %w", err)
	}
	return nil
}

// ListSegments returns a chapter's translated segments in order.
func (s *Store) ListSegments(ctx context.Context, chapterID string) ([]*TranslatedSegment, error) {
	rows, err := s.db.All(ctx,
		`SELECT * FROM translated_segments WHERE chapter_id = ? ORDER BY order_index ASC`, chapterID)
	if err != nil {
		return nil, err
	}
	segs := make([]*TranslatedSegment, 0, len(rows))
	for _, row := range rows {
		segs = append(segs, parseTranslatedSegment(row))
	}
	return segs, nil
}

// Jobs

// CreateJob inserts the checkpoint record for a book.
func (s *Store) CreateJob(ctx context.Context, job *TranslationJob) error {
	glossary, err := marshalGlossary(job.Glossary)
	if err != nil {
		return err
	}
	_, err = s.db.Run(ctx,
		`INSERT INTO translation_jobs (book_id, total_chapters, completed_chapters, current_chapter, current_item_offset,
		   glossary, glossary_extracted, title_translated, translated_title, status, error_message, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.BookID, job.TotalChapters, job.CompletedChapters, job.CurrentChapter, job.CurrentItemOffset,
		glossary, boolToInt(job.GlossaryExtracted), boolToInt(job.TitleTranslated),
		job.TranslatedTitle, string(job.Status), job.ErrorMessage, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob returns the checkpoint record for a book, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, bookID string) (*TranslationJob, error) {
	row, err := s.db.First(ctx, `SELECT * FROM translation_jobs WHERE book_id = ?`, bookID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("job for book %s: %w", bookID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return parseJob(row)
}

// SaveJob writes the full checkpoint record. This is the durable contract
// between orchestrator runs; it must never partially apply, so all fields go
// in one statement.
func (s *Store) SaveJob(ctx context.Context, job *TranslationJob) error {
	glossary, err := marshalGlossary(job.Glossary)
	if err != nil {
		return err
	}
	_, err = s.db.Run(ctx,
		`UPDATE translation_jobs SET
		   total_chapters = ?, completed_chapters = ?, current_chapter = ?, current_item_offset = ?,
		   glossary = ?, glossary_extracted = ?, title_translated = ?, translated_title = ?,
		   status = ?, error_message = ?, updated_at = ?
		 WHERE book_id = ?`,
		job.TotalChapters, job.CompletedChapters, job.CurrentChapter, job.CurrentItemOffset,
		glossary, boolToInt(job.GlossaryExtracted), boolToInt(job.TitleTranslated), job.TranslatedTitle,
		string(job.Status), job.ErrorMessage, time.Now().UTC().Format(time.RFC3339), job.BookID)
	if err != nil {
		return fmt.Errorf("failed to save job checkpoint: %w", err)
	}
	return nil
}

func marshalGlossary(glossary map[string]string) (string, error) {
	if glossary == nil {
		glossary = map[string]string{}
	}
	b, err := json.Marshal(glossary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal glossary: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
