package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/versobook/verso/internal/extract"
	"github.com/versobook/verso/internal/glossary"
	"github.com/versobook/verso/internal/library"
	"github.com/versobook/verso/internal/providers"
	"github.com/versobook/verso/internal/translate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// echoRespond answers glossary requests with a fixed mapping and translation
// requests with a "fr:" prefix on the source text.
func echoRespond(req *providers.ChatRequest) (string, error) {
	if strings.Contains(req.Messages[0].Content, "glossaries") {
		return `{"Napoleon": "Napoléon"}`, nil
	}
	return "fr:" + requestedText(req), nil
}

func requestedText(req *providers.ChatRequest) string {
	content := req.Messages[len(req.Messages)-1].Content
	if idx := strings.Index(content, "Translate this text:\n"); idx >= 0 {
		return content[idx+len("Translate this text:\n"):]
	}
	return content
}

type fixture struct {
	lib    *MemoryLibrary
	client *providers.MockClient
	orch   *Orchestrator
}

// newFixture seeds a two-chapter book (3 and 2 segments) with a pending job.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	lib := NewMemoryLibrary()
	lib.PutBook(&library.Book{
		ID:             "book-1",
		Title:          "War and Peace",
		OriginalTitle:  "War and Peace",
		SourceLanguage: "English",
		TargetLanguage: "French",
		Status:         library.BookDraft,
		TotalChapters:  2,
	})
	lib.PutChapter(&library.Chapter{ID: "ch-1", BookID: "book-1", Number: 1, OriginalTitle: "Chapter One"})
	lib.PutChapter(&library.Chapter{ID: "ch-2", BookID: "book-1", Number: 2, OriginalTitle: "Chapter Two"})
	lib.PutSegmentCache("ch-1", []extract.Segment{
		{Address: "p[1]", PlainText: "Napoleon marched east.", OrderIndex: 0},
		{Address: "p[2]", PlainText: "The army followed.", OrderIndex: 1},
		{Address: "p[3]", PlainText: "Winter was coming.", OrderIndex: 2},
	})
	lib.PutSegmentCache("ch-2", []extract.Segment{
		{Address: "p[1]", PlainText: "Moscow burned.", OrderIndex: 0},
		{Address: "p[2]", PlainText: "The retreat began.", OrderIndex: 1},
	})
	lib.PutJob(&library.TranslationJob{
		BookID:        "book-1",
		TotalChapters: 2,
		Status:        library.JobPending,
	})

	client := providers.NewMockClient()
	client.RespondFunc = echoRespond

	tr := translate.NewTranslator(client, translate.Config{Model: "test-model", Logger: testLogger()})
	gl := glossary.NewExtractor(client, glossary.Config{Model: "test-model", Logger: testLogger()})
	orch := NewOrchestrator(lib, tr, gl, OrchestratorConfig{Logger: testLogger()})

	return &fixture{lib: lib, client: client, orch: orch}
}

func TestOrchestratorRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.orch.Run(ctx, "book-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	t.Run("job completed", func(t *testing.T) {
		job, err := f.lib.GetJob(ctx, "book-1")
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status != library.JobCompleted {
			t.Errorf("status = %q, want %q", job.Status, library.JobCompleted)
		}
		if job.CompletedChapters != 2 {
			t.Errorf("completed chapters = %d, want 2", job.CompletedChapters)
		}
		if !job.GlossaryExtracted {
			t.Error("glossary not marked extracted")
		}
		if job.Glossary["Napoleon"] != "Napoléon" {
			t.Errorf("glossary = %v, want Napoleon entry", job.Glossary)
		}
	})

	t.Run("book ready with translated title", func(t *testing.T) {
		book, err := f.lib.GetBook(ctx, "book-1")
		if err != nil {
			t.Fatalf("GetBook: %v", err)
		}
		if book.Status != library.BookReady {
			t.Errorf("book status = %q, want %q", book.Status, library.BookReady)
		}
		if book.Title != "fr:War and Peace" {
			t.Errorf("book title = %q", book.Title)
		}
	})

	t.Run("all segments upserted", func(t *testing.T) {
		if got := f.lib.SegmentCount(); got != 5 {
			t.Fatalf("segment count = %d, want 5", got)
		}
		seg, ok := f.lib.Segment("ch-1", "p[1]")
		if !ok {
			t.Fatal("segment ch-1 p[1] missing")
		}
		if seg.TranslatedText != "fr:Napoleon marched east." {
			t.Errorf("translated = %q", seg.TranslatedText)
		}
		if seg.OriginalText != "Napoleon marched east." {
			t.Errorf("original = %q", seg.OriginalText)
		}
	})

	t.Run("chapter titles translated", func(t *testing.T) {
		chapters, err := f.lib.ListChapters(ctx, "book-1")
		if err != nil {
			t.Fatalf("ListChapters: %v", err)
		}
		if chapters[0].Title != "fr:Chapter One" {
			t.Errorf("chapter 1 title = %q", chapters[0].Title)
		}
		if chapters[1].Title != "fr:Chapter Two" {
			t.Errorf("chapter 2 title = %q", chapters[1].Title)
		}
	})

	t.Run("segment caches dropped", func(t *testing.T) {
		for _, id := range []string{"ch-1", "ch-2"} {
			segments, err := f.lib.LoadSegmentCache(ctx, id)
			if err != nil {
				t.Fatalf("LoadSegmentCache(%s): %v", id, err)
			}
			if segments != nil {
				t.Errorf("cache for %s still present", id)
			}
		}
	})
}

func TestOrchestratorResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Checkpoint says chapter 1 is done and chapter 2 stopped after its
	// first segment.
	f.lib.PutJob(&library.TranslationJob{
		BookID:            "book-1",
		TotalChapters:     2,
		CompletedChapters: 1,
		CurrentChapter:    2,
		CurrentItemOffset: 1,
		Glossary:          map[string]string{"Napoleon": "Napoléon"},
		GlossaryExtracted: true,
		TitleTranslated:   true,
		Status:            library.JobTranslating,
	})

	if err := f.orch.Run(ctx, "book-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, req := range f.client.Requests() {
		text := requestedText(req)
		if strings.Contains(text, "Napoleon marched east") || strings.Contains(text, "Moscow burned") {
			t.Errorf("checkpointed segment retranslated: %q", text)
		}
	}

	job, err := f.lib.GetJob(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != library.JobCompleted {
		t.Errorf("status = %q, want %q", job.Status, library.JobCompleted)
	}
	if job.CompletedChapters != 2 {
		t.Errorf("completed chapters = %d, want 2", job.CompletedChapters)
	}

	if _, ok := f.lib.Segment("ch-2", "p[2]"); !ok {
		t.Error("resumed segment ch-2 p[2] not upserted")
	}
}

func TestOrchestratorSegmentFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.client.RespondFunc = func(req *providers.ChatRequest) (string, error) {
		if strings.Contains(req.Messages[0].Content, "glossaries") {
			return `{}`, nil
		}
		if strings.Contains(requestedText(req), "The army followed") {
			return "", errors.New("backend unavailable")
		}
		return "fr:" + requestedText(req), nil
	}

	if err := f.orch.Run(ctx, "book-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, err := f.lib.GetJob(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != library.JobCompleted {
		t.Fatalf("status = %q, want %q", job.Status, library.JobCompleted)
	}

	seg, ok := f.lib.Segment("ch-1", "p[2]")
	if !ok {
		t.Fatal("failed segment not recorded")
	}
	if seg.TranslatedText != DefaultPlaceholder {
		t.Errorf("translated = %q, want placeholder", seg.TranslatedText)
	}

	good, ok := f.lib.Segment("ch-1", "p[3]")
	if !ok || good.TranslatedText != "fr:Winter was coming." {
		t.Errorf("segment after failure = %+v", good)
	}
}

func TestOrchestratorCompletedIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.lib.PutJob(&library.TranslationJob{
		BookID:        "book-1",
		TotalChapters: 2,
		Status:        library.JobCompleted,
	})

	if err := f.orch.Run(ctx, "book-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := f.client.RequestCount(); n != 0 {
		t.Errorf("request count = %d, want 0", n)
	}
}

func TestOrchestratorUnknownBook(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Run(context.Background(), "nope")
	if !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestOrchestratorInfrastructureFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A job claiming more chapters than exist surfaces as a missing chapter.
	f.lib.PutJob(&library.TranslationJob{
		BookID:        "book-1",
		TotalChapters: 3,
		Status:        library.JobPending,
	})

	err := f.orch.Run(ctx, "book-1")
	if err == nil {
		t.Fatal("expected error for missing chapter")
	}

	job, getErr := f.lib.GetJob(ctx, "book-1")
	if getErr != nil {
		t.Fatalf("GetJob: %v", getErr)
	}
	if job.Status != library.JobError {
		t.Errorf("status = %q, want %q", job.Status, library.JobError)
	}
	if job.ErrorMessage == "" {
		t.Error("error message not recorded")
	}

	book, getErr := f.lib.GetBook(ctx, "book-1")
	if getErr != nil {
		t.Fatalf("GetBook: %v", getErr)
	}
	if book.Status != library.BookError {
		t.Errorf("book status = %q, want %q", book.Status, library.BookError)
	}
}

// offsetRecorder captures the CurrentItemOffset of every job save so the
// checkpoint cadence is observable.
type offsetRecorder struct {
	*MemoryLibrary
	offsets []int
}

func (r *offsetRecorder) SaveJob(ctx context.Context, job *library.TranslationJob) error {
	r.offsets = append(r.offsets, job.CurrentItemOffset)
	return r.MemoryLibrary.SaveJob(ctx, job)
}

func TestOrchestratorCheckpointCadence(t *testing.T) {
	lib := NewMemoryLibrary()
	lib.PutBook(&library.Book{
		ID:             "book-1",
		SourceLanguage: "English",
		TargetLanguage: "French",
		TotalChapters:  1,
	})
	lib.PutChapter(&library.Chapter{ID: "ch-1", BookID: "book-1", Number: 1})

	segments := make([]extract.Segment, 25)
	for i := range segments {
		segments[i] = extract.Segment{
			Address:    fmt.Sprintf("p[%d]", i+1),
			PlainText:  fmt.Sprintf("Paragraph number %d.", i+1),
			OrderIndex: i,
		}
	}
	lib.PutSegmentCache("ch-1", segments)
	lib.PutJob(&library.TranslationJob{BookID: "book-1", TotalChapters: 1, Status: library.JobPending})

	rec := &offsetRecorder{MemoryLibrary: lib}
	client := providers.NewMockClient()
	client.RespondFunc = echoRespond
	tr := translate.NewTranslator(client, translate.Config{Model: "m", Logger: testLogger()})
	gl := glossary.NewExtractor(client, glossary.Config{Model: "m", Logger: testLogger()})
	orch := NewOrchestrator(rec, tr, gl, OrchestratorConfig{CheckpointInterval: 10, Logger: testLogger()})

	if err := orch.Run(context.Background(), "book-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var mid []int
	for _, off := range rec.offsets {
		if off > 0 {
			mid = append(mid, off)
		}
	}
	if len(mid) != 2 || mid[0] != 10 || mid[1] != 20 {
		t.Errorf("mid-chapter checkpoints = %v, want [10 20]", mid)
	}
}
