package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/versobook/verso/internal/extract"
	"github.com/versobook/verso/internal/library"
)

// MemoryLibrary is an in-memory Library used in tests and dry runs. It is
// safe for concurrent use and mimics the store's upsert semantics.
type MemoryLibrary struct {
	mu       sync.Mutex
	books    map[string]*library.Book
	chapters map[string][]*library.Chapter // keyed by book ID
	caches   map[string][]extract.Segment  // keyed by chapter ID
	segments map[string]*library.TranslatedSegment
	jobs     map[string]*library.TranslationJob
}

// NewMemoryLibrary creates an empty in-memory library.
func NewMemoryLibrary() *MemoryLibrary {
	return &MemoryLibrary{
		books:    make(map[string]*library.Book),
		chapters: make(map[string][]*library.Chapter),
		caches:   make(map[string][]extract.Segment),
		segments: make(map[string]*library.TranslatedSegment),
		jobs:     make(map[string]*library.TranslationJob),
	}
}

// PutBook stores a book record.
func (m *MemoryLibrary) PutBook(book *library.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *book
	m.books[book.ID] = &cp
}

// PutChapter stores a chapter record.
func (m *MemoryLibrary) PutChapter(ch *library.Chapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ch
	m.chapters[ch.BookID] = append(m.chapters[ch.BookID], &cp)
}

// PutSegmentCache stores a chapter's extracted segments.
func (m *MemoryLibrary) PutSegmentCache(chapterID string, segments []extract.Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[chapterID] = append([]extract.Segment(nil), segments...)
}

// PutJob stores a job record.
func (m *MemoryLibrary) PutJob(job *library.TranslationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.BookID] = &cp
}

func (m *MemoryLibrary) GetBook(ctx context.Context, id string) (*library.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return nil, library.ErrNotFound
	}
	cp := *book
	return &cp, nil
}

func (m *MemoryLibrary) UpdateBookStatus(ctx context.Context, id string, status library.BookStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return library.ErrNotFound
	}
	book.Status = status
	return nil
}

func (m *MemoryLibrary) UpdateBookTitle(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return library.ErrNotFound
	}
	book.Title = title
	return nil
}

func (m *MemoryLibrary) ListChapters(ctx context.Context, bookID string) ([]*library.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*library.Chapter, 0, len(m.chapters[bookID]))
	for _, ch := range m.chapters[bookID] {
		cp := *ch
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryLibrary) UpdateChapterTitle(ctx context.Context, chapterID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chs := range m.chapters {
		for _, ch := range chs {
			if ch.ID == chapterID {
				ch.Title = title
				return nil
			}
		}
	}
	return library.ErrNotFound
}

func (m *MemoryLibrary) LoadSegmentCache(ctx context.Context, chapterID string) ([]extract.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cached, ok := m.caches[chapterID]
	if !ok {
		return nil, nil
	}
	return append([]extract.Segment(nil), cached...), nil
}

func (m *MemoryLibrary) DeleteSegmentCaches(ctx context.Context, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.chapters[bookID] {
		delete(m.caches, ch.ID)
	}
	return nil
}

func (m *MemoryLibrary) UpsertSegment(ctx context.Context, seg *library.TranslatedSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *seg
	m.segments[seg.ChapterID+"\x00"+seg.Address] = &cp
	return nil
}

// Segment returns the stored translated segment, if any.
func (m *MemoryLibrary) Segment(chapterID, address string) (*library.TranslatedSegment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seg, ok := m.segments[chapterID+"\x00"+address]
	if !ok {
		return nil, false
	}
	cp := *seg
	return &cp, true
}

// SegmentCount returns how many translated segments are stored.
func (m *MemoryLibrary) SegmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.segments)
}

func (m *MemoryLibrary) GetJob(ctx context.Context, bookID string) (*library.TranslationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[bookID]
	if !ok {
		return nil, fmt.Errorf("job for book %s: %w", bookID, library.ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryLibrary) SaveJob(ctx context.Context, job *library.TranslationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.BookID]; !ok {
		return fmt.Errorf("job for book %s: %w", job.BookID, library.ErrNotFound)
	}
	cp := *job
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[job.BookID] = &cp
	return nil
}

var _ Library = (*MemoryLibrary)(nil)
