// Package jobs drives the resumable translation pipeline: the phase state
// machine, checkpoint persistence, and sequencing across chapters and
// segments.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/versobook/verso/internal/glossary"
	"github.com/versobook/verso/internal/library"
	"github.com/versobook/verso/internal/translate"
)

const (
	// DefaultCheckpointInterval is how many segments are translated between
	// offset checkpoint writes. It bounds both write volume and the work
	// replayed after an unclean restart; tune via config, not here.
	DefaultCheckpointInterval = 10

	// DefaultPlaceholder is persisted for a segment whose translation
	// permanently failed. Upsert semantics let a later re-run replace it.
	DefaultPlaceholder = "[translation unavailable]"
)

// Orchestrator owns the translation job state machine. Phases run strictly
// in order: glossary extraction, title translation, then the chapter loop.
// Only one run per book may be active; Service enforces that.
type Orchestrator struct {
	lib        Library
	translator *translate.Translator
	glossary   *glossary.Extractor
	logger     *slog.Logger

	checkpointEvery int
	placeholder     string
}

// OrchestratorConfig holds orchestrator settings.
type OrchestratorConfig struct {
	CheckpointInterval int
	Placeholder        string
	Logger             *slog.Logger
}

// NewOrchestrator creates a job orchestrator.
func NewOrchestrator(lib Library, tr *translate.Translator, gl *glossary.Extractor, cfg OrchestratorConfig) *Orchestrator {
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = DefaultCheckpointInterval
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		lib:             lib,
		translator:      tr,
		glossary:        gl,
		logger:          cfg.Logger,
		checkpointEvery: cfg.CheckpointInterval,
		placeholder:     cfg.Placeholder,
	}
}

// Run executes the job for a book from its last checkpoint. Re-entry on a
// completed job is a no-op. Any infrastructure failure marks the job and the
// book error and propagates, so a caller-level retry policy can resubmit;
// resubmission is safe because of the checkpoint/upsert discipline.
func (o *Orchestrator) Run(ctx context.Context, bookID string) error {
	return o.run(ctx, bookID, nil)
}

func (o *Orchestrator) run(ctx context.Context, bookID string, tracker *Tracker) error {
	job, err := o.lib.GetJob(ctx, bookID)
	if err != nil {
		return err
	}
	if job.Status == library.JobCompleted {
		o.logger.Info("job already completed", "book_id", bookID)
		tracker.Update(job)
		return nil
	}

	book, err := o.lib.GetBook(ctx, bookID)
	if err != nil {
		return err
	}

	log := o.logger.With("book_id", bookID)
	log.Info("translation run starting",
		"status", job.Status,
		"completed_chapters", job.CompletedChapters,
		"total_chapters", job.TotalChapters,
	)

	if err := o.runPhases(ctx, book, job, tracker, log); err != nil {
		job.Status = library.JobError
		job.ErrorMessage = err.Error()
		if saveErr := o.lib.SaveJob(ctx, job); saveErr != nil {
			log.Error("failed to persist error state", "error", saveErr)
		}
		if bookErr := o.lib.UpdateBookStatus(ctx, bookID, library.BookError); bookErr != nil {
			log.Error("failed to mark book error", "error", bookErr)
		}
		tracker.Update(job)
		return err
	}

	tracker.Update(job)
	return nil
}

// runPhases executes the glossary, title, chapter, and completion phases.
// Every returned error is an infrastructure failure; backend failures on
// individual segments or titles never surface from here.
func (o *Orchestrator) runPhases(ctx context.Context, book *library.Book, job *library.TranslationJob, tracker *Tracker, log *slog.Logger) error {
	if err := o.lib.UpdateBookStatus(ctx, book.ID, library.BookTranslating); err != nil {
		return fmt.Errorf("failed to mark book translating: %w", err)
	}

	chapters, err := o.lib.ListChapters(ctx, book.ID)
	if err != nil {
		return fmt.Errorf("failed to list chapters: %w", err)
	}

	if err := o.glossaryPhase(ctx, book, job, chapters, tracker, log); err != nil {
		return err
	}
	if err := o.titlePhase(ctx, book, job, log); err != nil {
		return err
	}
	if err := o.chapterLoop(ctx, book, job, chapters, tracker, log); err != nil {
		return err
	}

	// Completion: translated rows are durable now; the per-chapter
	// extraction blobs have served their purpose.
	if err := o.lib.UpdateBookStatus(ctx, book.ID, library.BookReady); err != nil {
		return fmt.Errorf("failed to mark book ready: %w", err)
	}
	if err := o.lib.DeleteSegmentCaches(ctx, book.ID); err != nil {
		return fmt.Errorf("failed to drop segment caches: %w", err)
	}

	job.Status = library.JobCompleted
	job.ErrorMessage = ""
	if err := o.lib.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist completion: %w", err)
	}

	log.Info("translation run completed", "chapters", job.CompletedChapters)
	return nil
}

// glossaryPhase extracts the document-wide glossary once per job. It is
// all-or-nothing: no mid-extraction checkpoints.
func (o *Orchestrator) glossaryPhase(ctx context.Context, book *library.Book, job *library.TranslationJob, chapters []*library.Chapter, tracker *Tracker, log *slog.Logger) error {
	if job.GlossaryExtracted {
		return nil
	}

	job.Status = library.JobExtractingGlossary
	if err := o.lib.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to enter glossary phase: %w", err)
	}
	tracker.Update(job)

	var texts []string
	for _, ch := range chapters {
		segments, err := o.lib.LoadSegmentCache(ctx, ch.ID)
		if err != nil {
			return fmt.Errorf("failed to load segments for chapter %d: %w", ch.Number, err)
		}
		for _, seg := range segments {
			texts = append(texts, seg.PlainText)
		}
	}

	job.Glossary = o.glossary.Extract(ctx, texts, book.SourceLanguage, book.TargetLanguage)
	job.GlossaryExtracted = true
	job.Status = library.JobTranslating
	job.CurrentChapter = 1
	job.CurrentItemOffset = 0
	if err := o.lib.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to checkpoint glossary: %w", err)
	}
	tracker.Update(job)
	return nil
}

// titlePhase translates the book's title. A backend failure leaves the phase
// unfinished so the next run retries it; it never aborts the job.
func (o *Orchestrator) titlePhase(ctx context.Context, book *library.Book, job *library.TranslationJob, log *slog.Logger) error {
	if job.TitleTranslated || book.OriginalTitle == "" {
		return nil
	}

	translated, err := o.translator.Translate(ctx, translate.Request{
		Text:       book.OriginalTitle,
		SourceLang: book.SourceLanguage,
		TargetLang: book.TargetLanguage,
		Glossary:   job.Glossary,
	})
	if err != nil || translated == "" {
		log.Warn("book title translation failed, keeping original", "error", err)
		return nil
	}

	if err := o.lib.UpdateBookTitle(ctx, book.ID, translated); err != nil {
		return fmt.Errorf("failed to persist book title: %w", err)
	}
	job.TranslatedTitle = translated
	job.TitleTranslated = true
	if err := o.lib.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to checkpoint title: %w", err)
	}
	return nil
}

// chapterLoop translates chapters in ascending number from the checkpointed
// position. Work already checkpointed past is never repeated.
func (o *Orchestrator) chapterLoop(ctx context.Context, book *library.Book, job *library.TranslationJob, chapters []*library.Chapter, tracker *Tracker, log *slog.Logger) error {
	job.Status = library.JobTranslating

	byNumber := make(map[int]*library.Chapter, len(chapters))
	for _, ch := range chapters {
		byNumber[ch.Number] = ch
	}

	// The offset is only meaningful against the chapter it was recorded
	// with; capture both before the loop mutates them.
	resumeChapter := job.CurrentChapter
	resumeOffset := job.CurrentItemOffset
	if resumeChapter < 1 {
		resumeChapter = 1
	}

	for num := resumeChapter; num <= job.TotalChapters; num++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		chapter, ok := byNumber[num]
		if !ok {
			return fmt.Errorf("chapter %d missing for book %s", num, book.ID)
		}

		startOffset := 0
		if num == resumeChapter && resumeOffset > 0 {
			startOffset = resumeOffset
			log.Info("resuming mid-chapter", "chapter", num, "offset", startOffset)
		}

		if err := o.translateChapter(ctx, book, job, chapter, startOffset, tracker, log); err != nil {
			return err
		}

		job.CompletedChapters++
		job.CurrentChapter = num + 1
		job.CurrentItemOffset = 0
		if err := o.lib.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to checkpoint chapter %d: %w", num, err)
		}
		tracker.Update(job)
	}

	return nil
}

// translateChapter translates one chapter's segments from startOffset,
// upserting results and periodically checkpointing the offset. A segment
// whose translation fails gets the placeholder and the loop continues.
func (o *Orchestrator) translateChapter(ctx context.Context, book *library.Book, job *library.TranslationJob, chapter *library.Chapter, startOffset int, tracker *Tracker, log *slog.Logger) error {
	segments, err := o.lib.LoadSegmentCache(ctx, chapter.ID)
	if err != nil {
		return fmt.Errorf("failed to load segments for chapter %d: %w", chapter.Number, err)
	}
	if len(segments) == 0 {
		log.Info("chapter has no translatable content", "chapter", chapter.Number)
		return nil
	}

	for i := startOffset; i < len(segments); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		seg := segments[i]
		var surrounding string
		if i > 0 {
			surrounding = segments[i-1].PlainText
		}

		translated, err := o.translator.Translate(ctx, translate.Request{
			Text:       seg.PlainText,
			SourceLang: book.SourceLanguage,
			TargetLang: book.TargetLanguage,
			Glossary:   job.Glossary,
			Context:    surrounding,
		})
		if err != nil {
			log.Warn("segment translation failed, recording placeholder",
				"chapter", chapter.Number, "address", seg.Address, "error", err)
			translated = o.placeholder
		}

		if err := o.lib.UpsertSegment(ctx, &library.TranslatedSegment{
			ChapterID:        chapter.ID,
			Address:          seg.Address,
			OriginalText:     seg.PlainText,
			OriginalFragment: seg.FormattedFragment,
			TranslatedText:   translated,
			OrderIndex:       seg.OrderIndex,
		}); err != nil {
			return fmt.Errorf("failed to upsert segment %s: %w", seg.Address, err)
		}

		// Periodic offset checkpoint; every segment would double the write
		// volume for little replay savings.
		if (i+1)%o.checkpointEvery == 0 && i+1 < len(segments) {
			job.CurrentItemOffset = i + 1
			if err := o.lib.SaveJob(ctx, job); err != nil {
				return fmt.Errorf("failed to checkpoint offset: %w", err)
			}
			tracker.Update(job)
		}
	}

	o.translateChapterTitle(ctx, book, job, chapter, log)
	return nil
}

// translateChapterTitle is best-effort: a failure leaves the original title.
func (o *Orchestrator) translateChapterTitle(ctx context.Context, book *library.Book, job *library.TranslationJob, chapter *library.Chapter, log *slog.Logger) {
	if chapter.OriginalTitle == "" {
		return
	}

	translated, err := o.translator.Translate(ctx, translate.Request{
		Text:       chapter.OriginalTitle,
		SourceLang: book.SourceLanguage,
		TargetLang: book.TargetLanguage,
		Glossary:   job.Glossary,
	})
	if err != nil || translated == "" {
		log.Warn("chapter title translation failed, keeping original",
			"chapter", chapter.Number, "error", err)
		return
	}

	if err := o.lib.UpdateChapterTitle(ctx, chapter.ID, translated); err != nil {
		log.Warn("failed to persist chapter title", "chapter", chapter.Number, "error", err)
	}
}
