package worker

import (
	"context"
	"errors"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	expiredBatchSize   = 100
	finalizeRetries    = 3
	finalizeRetryDelay = 200 * time.Millisecond
)

// ExpiredSessionLister finds sessions whose time window has elapsed but
// whose end timestamp is still unset.
type ExpiredSessionLister interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error)
}

// SessionFinalizer ends a session on the server's authority.
type SessionFinalizer interface {
	End(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.ExamSession, error)
}

// DeadlineWorker periodically sweeps for sessions that ran out of time and
// finalizes them server-side, so a closed browser cannot leave an attempt
// open forever.
type DeadlineWorker struct {
	sessions  ExpiredSessionLister
	finalizer SessionFinalizer
	interval  time.Duration
	log       zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(
	sessions ExpiredSessionLister,
	finalizer SessionFinalizer,
	interval time.Duration,
	log zerolog.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		sessions:  sessions,
		finalizer: finalizer,
		interval:  interval,
		log:       log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Deadline worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Deadline worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep finalizes every expired session it can find in this pass. A session
// that keeps failing is left for the next tick; the conditional end write
// makes retrying harmless.
func (w *DeadlineWorker) sweep(ctx context.Context) {
	expired, err := w.sessions.ListExpired(ctx, time.Now(), expiredBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("List expired sessions failed")
		return
	}
	if len(expired) == 0 {
		return
	}

	finalized := 0
	for _, s := range expired {
		if ctx.Err() != nil {
			return
		}
		if w.finalize(ctx, s.ID) {
			finalized++
		}
	}

	w.log.Info().
		Int("expired", len(expired)).
		Int("finalized", finalized).
		Msg("Deadline sweep completed")
}

func (w *DeadlineWorker) finalize(ctx context.Context, sessionID uuid.UUID) bool {
	var lastErr error
	for attempt := 0; attempt < finalizeRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(finalizeRetryDelay << (attempt - 1))
		}
		// Student 0: acting on server authority, no ownership check.
		_, err := w.finalizer.End(ctx, sessionID, 0)
		if err == nil {
			return true
		}
		if errors.Is(err, service.ErrEndInProgress) {
			// Someone else (likely the student's own end request) is
			// finalizing right now. That counts as done.
			return true
		}
		lastErr = err
	}

	w.log.Error().Err(lastErr).
		Str("session_id", sessionID.String()).
		Msg("Finalize failed, leaving for next sweep")
	return false
}
