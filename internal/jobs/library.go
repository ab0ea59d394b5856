package jobs

import (
	"context"

	"github.com/versobook/verso/internal/extract"
	"github.com/versobook/verso/internal/library"
)

// Library is the persistence surface the orchestrator depends on.
// *library.Store implements it against the remote store; tests use the
// in-memory implementation.
type Library interface {
	GetBook(ctx context.Context, id string) (*library.Book, error)
	UpdateBookStatus(ctx context.Context, id string, status library.BookStatus) error
	UpdateBookTitle(ctx context.Context, id, title string) error

	ListChapters(ctx context.Context, bookID string) ([]*library.Chapter, error)
	UpdateChapterTitle(ctx context.Context, chapterID, title string) error

	LoadSegmentCache(ctx context.Context, chapterID string) ([]extract.Segment, error)
	DeleteSegmentCaches(ctx context.Context, bookID string) error

	UpsertSegment(ctx context.Context, seg *library.TranslatedSegment) error

	GetJob(ctx context.Context, bookID string) (*library.TranslationJob, error)
	SaveJob(ctx context.Context, job *library.TranslationJob) error
}
