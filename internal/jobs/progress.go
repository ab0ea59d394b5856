package jobs

import (
	"sync"

	"github.com/versobook/verso/internal/library"
)

// Progress is the user-visible snapshot of a translation job.
type Progress struct {
	BookID            string            `json:"book_id"`
	Status            library.JobStatus `json:"status"`
	TotalChapters     int               `json:"total_chapters"`
	CompletedChapters int               `json:"completed_chapters"`
	CurrentChapter    int               `json:"current_chapter"`
	Running           bool              `json:"running"`
	ErrorMessage      string            `json:"error_message,omitempty"`
}

// Tracker holds the live progress of an active run. A nil tracker is valid
// and ignores updates, so the orchestrator never branches on its presence.
type Tracker struct {
	mu       sync.Mutex
	progress Progress
}

// NewTracker creates a tracker seeded from the persisted job row.
func NewTracker(job *library.TranslationJob) *Tracker {
	t := &Tracker{}
	t.progress = progressFromJob(job)
	t.progress.Running = true
	return t
}

// Update refreshes the snapshot from the job record.
func (t *Tracker) Update(job *library.TranslationJob) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	running := t.progress.Running
	t.progress = progressFromJob(job)
	t.progress.Running = running
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.Running = false
}

func progressFromJob(job *library.TranslationJob) Progress {
	return Progress{
		BookID:            job.BookID,
		Status:            job.Status,
		TotalChapters:     job.TotalChapters,
		CompletedChapters: job.CompletedChapters,
		CurrentChapter:    job.CurrentChapter,
		ErrorMessage:      job.ErrorMessage,
	}
}
