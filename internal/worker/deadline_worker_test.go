package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeLister struct {
	mu      sync.Mutex
	expired []model.ExamSession
}

func (f *fakeLister) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ExamSession, len(f.expired))
	copy(out, f.expired)
	return out, nil
}

type fakeFinalizer struct {
	mu       sync.Mutex
	ended    map[uuid.UUID]int
	failures map[uuid.UUID]int
	errOnce  map[uuid.UUID]error
}

func newFakeFinalizer() *fakeFinalizer {
	return &fakeFinalizer{
		ended:    make(map[uuid.UUID]int),
		failures: make(map[uuid.UUID]int),
		errOnce:  make(map[uuid.UUID]error),
	}
}

func (f *fakeFinalizer) End(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if studentID != 0 {
		return nil, errors.New("sweep must bypass ownership with student 0")
	}
	if n := f.failures[sessionID]; n > 0 {
		f.failures[sessionID] = n - 1
		return nil, errors.New("transient failure")
	}
	if err, ok := f.errOnce[sessionID]; ok {
		delete(f.errOnce, sessionID)
		return nil, err
	}
	f.ended[sessionID]++
	return &model.ExamSession{ID: sessionID}, nil
}

func TestSweepFinalizesExpiredSessions(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	lister := &fakeLister{expired: []model.ExamSession{{ID: a}, {ID: b}}}
	finalizer := newFakeFinalizer()
	w := NewDeadlineWorker(lister, finalizer, time.Minute, zerolog.Nop())

	w.sweep(context.Background())

	if finalizer.ended[a] != 1 || finalizer.ended[b] != 1 {
		t.Errorf("ended counts = %d/%d, want 1/1", finalizer.ended[a], finalizer.ended[b])
	}
}

func TestSweepRetriesTransientFailures(t *testing.T) {
	id := uuid.New()
	lister := &fakeLister{expired: []model.ExamSession{{ID: id}}}
	finalizer := newFakeFinalizer()
	finalizer.failures[id] = 2
	w := NewDeadlineWorker(lister, finalizer, time.Minute, zerolog.Nop())

	w.sweep(context.Background())

	if finalizer.ended[id] != 1 {
		t.Errorf("ended count = %d, want 1 after retries", finalizer.ended[id])
	}
}

func TestSweepTreatsInProgressEndAsDone(t *testing.T) {
	id := uuid.New()
	lister := &fakeLister{expired: []model.ExamSession{{ID: id}}}
	finalizer := newFakeFinalizer()
	finalizer.errOnce[id] = service.ErrEndInProgress
	w := NewDeadlineWorker(lister, finalizer, time.Minute, zerolog.Nop())

	w.sweep(context.Background())

	// The racing manual end owns the finalization; the sweep must not
	// keep retrying behind it.
	if finalizer.ended[id] != 0 {
		t.Errorf("ended count = %d, want 0", finalizer.ended[id])
	}
}

func TestSweepGivesUpAfterRetriesAndLeavesForNextPass(t *testing.T) {
	id := uuid.New()
	lister := &fakeLister{expired: []model.ExamSession{{ID: id}}}
	finalizer := newFakeFinalizer()
	finalizer.failures[id] = finalizeRetries + 5
	w := NewDeadlineWorker(lister, finalizer, time.Minute, zerolog.Nop())

	w.sweep(context.Background())
	if finalizer.ended[id] != 0 {
		t.Fatalf("ended count = %d, want 0 while failures persist", finalizer.ended[id])
	}

	// Next pass succeeds once the failure clears.
	finalizer.mu.Lock()
	finalizer.failures[id] = 0
	finalizer.mu.Unlock()
	w.sweep(context.Background())
	if finalizer.ended[id] != 1 {
		t.Errorf("ended count = %d, want 1 on the next sweep", finalizer.ended[id])
	}
}
