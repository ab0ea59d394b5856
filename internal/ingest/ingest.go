// Package ingest imports an EPUB into the library: the book record, its
// chapters, per-chapter segment caches, and a pending translation job.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/versobook/verso/internal/epub"
	"github.com/versobook/verso/internal/extract"
	"github.com/versobook/verso/internal/library"
)

// Catalog is the persistence surface the importer writes through.
type Catalog interface {
	CreateBook(ctx context.Context, b *library.Book) error
	CreateChapters(ctx context.Context, chapters []*library.Chapter) error
	SaveSegmentCache(ctx context.Context, bookID, chapterID string, segments []extract.Segment) error
	CreateJob(ctx context.Context, job *library.TranslationJob) error
}

// Request contains the parameters for importing an EPUB.
type Request struct {
	EPUBPath   string
	Title      string // optional override; defaults to OPF metadata, then filename
	SourceLang string
	TargetLang string
	Logger     *slog.Logger
}

// Result describes a completed import.
type Result struct {
	BookID   string
	Title    string
	Author   string
	Chapters int
	Segments int
}

// Ingest parses the EPUB, extracts segments per chapter, collapses duplicate
// chapter content, and persists everything with a pending translation job.
func Ingest(ctx context.Context, cat Catalog, extractor *extract.Extractor, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	if req.SourceLang == "" || req.TargetLang == "" {
		return nil, fmt.Errorf("source and target languages are required")
	}
	if _, err := os.Stat(req.EPUBPath); err != nil {
		return nil, fmt.Errorf("epub not found: %s", req.EPUBPath)
	}

	doc, err := epub.Open(req.EPUBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read epub: %w", err)
	}
	for _, w := range doc.Warnings {
		log.Warn("epub anomaly", "path", req.EPUBPath, "detail", w)
	}

	title := req.Title
	if title == "" {
		title = doc.Metadata.Title
	}
	if title == "" {
		title = deriveTitle(req.EPUBPath)
	}

	bookID := uuid.New().String()
	log.Info("starting import", "title", title, "chapters", len(doc.Chapters))

	chapters, caches, segmentCount := splitChapters(bookID, doc.Chapters, extractor, log)
	if len(chapters) == 0 {
		return nil, fmt.Errorf("epub has no usable chapters")
	}

	book := &library.Book{
		ID:             bookID,
		Title:          title,
		OriginalTitle:  title,
		Author:         doc.Metadata.Author,
		SourceLanguage: req.SourceLang,
		TargetLanguage: req.TargetLang,
		Status:         library.BookDraft,
		TotalChapters:  len(chapters),
		CreatedAt:      time.Now().UTC(),
	}
	if err := cat.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	if err := cat.CreateChapters(ctx, chapters); err != nil {
		return nil, fmt.Errorf("failed to create chapters: %w", err)
	}
	for _, ch := range chapters {
		if err := cat.SaveSegmentCache(ctx, bookID, ch.ID, caches[ch.ID]); err != nil {
			return nil, fmt.Errorf("failed to cache segments for chapter %d: %w", ch.Number, err)
		}
	}
	if err := cat.CreateJob(ctx, &library.TranslationJob{
		BookID:        bookID,
		TotalChapters: len(chapters),
		Status:        library.JobPending,
	}); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	log.Info("import complete",
		"book_id", bookID, "chapters", len(chapters), "segments", segmentCount)

	return &Result{
		BookID:   bookID,
		Title:    title,
		Author:   doc.Metadata.Author,
		Chapters: len(chapters),
		Segments: segmentCount,
	}, nil
}

// splitChapters extracts each chapter's segments and drops chapters whose
// flattened content duplicates an earlier one, renumbering the survivors.
func splitChapters(bookID string, in []epub.Chapter, extractor *extract.Extractor, log *slog.Logger) ([]*library.Chapter, map[string][]extract.Segment, int) {
	var chapters []*library.Chapter
	caches := make(map[string][]extract.Segment)
	seen := make(map[string]bool)
	total := 0

	for _, ch := range in {
		segments := extractor.Extract(ch.Markup, ch.Bounds)

		if len(segments) > 0 {
			fp := extract.Fingerprint(segments)
			if seen[fp] {
				log.Debug("dropping duplicate chapter content", "title", ch.Title, "path", ch.Path)
				continue
			}
			seen[fp] = true
		}

		row := &library.Chapter{
			ID:            uuid.New().String(),
			BookID:        bookID,
			Number:        len(chapters) + 1,
			Title:         ch.Title,
			OriginalTitle: ch.Title,
			RawMarkup:     ch.Markup,
		}
		chapters = append(chapters, row)
		caches[row.ID] = segments
		total += len(segments)
	}

	return chapters, caches, total
}

// deriveTitle extracts a fallback title from the EPUB filename.
func deriveTitle(epubPath string) string {
	base := filepath.Base(epubPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
