package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeAnswerStore struct {
	answers map[int64]int64 // questionID -> selected option
	fail    error
	calls   int
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{answers: make(map[int64]int64)}
}

func (f *fakeAnswerStore) UpsertAnswer(ctx context.Context, a *model.StudentAnswer) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.answers[a.QuestionID] = a.SelectedOptionID
	return nil
}

func (f *fakeAnswerStore) DeleteAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	delete(f.answers, questionID)
	return nil
}

func newTestAnswerWorker(store AnswerStore) *AnswerWorker {
	return &AnswerWorker{store: store, log: zerolog.Nop()}
}

func mustMarshal(t *testing.T, p AnswerPayload) []byte {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestPersistAppliesSavesAndClearsInOrder(t *testing.T) {
	store := newFakeAnswerStore()
	w := newTestAnswerWorker(store)
	ctx := context.Background()
	sessionID := uuid.New().String()
	at := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	save := mustMarshal(t, AnswerPayload{
		SessionID: sessionID, QuestionID: 101, SelectedOptionID: 202, AnsweredAt: at,
	})
	clearItem := mustMarshal(t, AnswerPayload{
		SessionID: sessionID, QuestionID: 101, AnsweredAt: at.Add(time.Second), Cleared: true,
	})

	if err := w.persist(ctx, save); err != nil {
		t.Fatalf("persist save: %v", err)
	}
	if got := store.answers[101]; got != 202 {
		t.Fatalf("selected option = %d, want 202", got)
	}

	// A clear queued after a save must leave the question unanswered.
	if err := w.persist(ctx, clearItem); err != nil {
		t.Fatalf("persist clear: %v", err)
	}
	if _, ok := store.answers[101]; ok {
		t.Error("answer still present after a queued clear")
	}
}

func TestPersistDropsMalformedItems(t *testing.T) {
	store := newFakeAnswerStore()
	w := newTestAnswerWorker(store)
	ctx := context.Background()

	// Neither item may reach the store, and neither may be requeued.
	if err := w.persist(ctx, []byte("{not json")); err != nil {
		t.Errorf("malformed json: err = %v, want nil (drop)", err)
	}
	badID := mustMarshal(t, AnswerPayload{SessionID: "not-a-uuid", QuestionID: 101, SelectedOptionID: 202})
	if err := w.persist(ctx, badID); err != nil {
		t.Errorf("bad session id: err = %v, want nil (drop)", err)
	}
	if store.calls != 0 {
		t.Errorf("store calls = %d, want 0", store.calls)
	}
}

func TestPersistSurfacesStoreErrorsForRequeue(t *testing.T) {
	store := newFakeAnswerStore()
	store.fail = errors.New("connection refused")
	w := newTestAnswerWorker(store)

	item := mustMarshal(t, AnswerPayload{
		SessionID: uuid.New().String(), QuestionID: 101, SelectedOptionID: 202, AnsweredAt: time.Now(),
	})
	if err := w.persist(context.Background(), item); err == nil {
		t.Error("store failure swallowed; item would be lost instead of requeued")
	}
}
