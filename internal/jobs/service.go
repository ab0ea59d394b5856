package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/versobook/verso/internal/library"
)

// Service is the job control surface consumed by CLI/HTTP wrappers. It
// enforces the single-active-run guard per book with a process-local
// registry; a multi-host deployment needs a distributed lease instead.
type Service struct {
	mu     sync.Mutex
	active map[string]*Tracker

	orch   *Orchestrator
	lib    Library
	logger *slog.Logger
}

// NewService creates the job control service.
func NewService(orch *Orchestrator, lib Library, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		active: make(map[string]*Tracker),
		orch:   orch,
		lib:    lib,
		logger: logger,
	}
}

// Start launches a translation run in the background and returns the
// current progress immediately. Starting a book that is already running or
// completed is a no-op that returns the existing progress.
func (s *Service) Start(ctx context.Context, bookID string) (Progress, error) {
	job, err := s.lib.GetJob(ctx, bookID)
	if err != nil {
		return Progress{}, err
	}
	if job.Status == library.JobCompleted {
		return progressFromJob(job), nil
	}

	s.mu.Lock()
	if tracker, ok := s.active[bookID]; ok {
		s.mu.Unlock()
		return tracker.Snapshot(), nil
	}
	tracker := NewTracker(job)
	s.active[bookID] = tracker
	s.mu.Unlock()

	// The run outlives the caller's request context; only process
	// termination cancels it, and checkpoints make that safe.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.release(bookID, tracker)
		if err := s.orch.run(runCtx, bookID, tracker); err != nil {
			s.logger.Error("translation run failed", "book_id", bookID, "error", err)
		}
	}()

	return tracker.Snapshot(), nil
}

// Run executes a translation run synchronously, with the same
// single-active-run guard as Start. Used by the CLI.
func (s *Service) Run(ctx context.Context, bookID string) (Progress, error) {
	job, err := s.lib.GetJob(ctx, bookID)
	if err != nil {
		return Progress{}, err
	}
	if job.Status == library.JobCompleted {
		return progressFromJob(job), nil
	}

	s.mu.Lock()
	if tracker, ok := s.active[bookID]; ok {
		s.mu.Unlock()
		return tracker.Snapshot(), nil
	}
	tracker := NewTracker(job)
	s.active[bookID] = tracker
	s.mu.Unlock()
	defer s.release(bookID, tracker)

	runErr := s.orch.run(ctx, bookID, tracker)
	return tracker.Snapshot(), runErr
}

// Status returns in-memory progress when a run is active, otherwise the
// persisted job row.
func (s *Service) Status(ctx context.Context, bookID string) (Progress, error) {
	s.mu.Lock()
	tracker, ok := s.active[bookID]
	s.mu.Unlock()
	if ok {
		return tracker.Snapshot(), nil
	}

	job, err := s.lib.GetJob(ctx, bookID)
	if err != nil {
		return Progress{}, err
	}
	return progressFromJob(job), nil
}

func (s *Service) release(bookID string, tracker *Tracker) {
	tracker.finish()
	s.mu.Lock()
	delete(s.active, bookID)
	s.mu.Unlock()
}
