package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/config"
	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerStore is the persistence surface the worker writes through.
// *repository.ExamSessionRepository implements it.
type AnswerStore interface {
	UpsertAnswer(ctx context.Context, a *model.StudentAnswer) error
	DeleteAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) error
}

// AnswerWorker consumes the answer queue and applies selections (and
// clears) to PostgreSQL. Queue order is FIFO per session, and saved items
// carry the moment the student made the selection, so a delayed write with
// an earlier timestamp cannot overwrite a fresher selection.
type AnswerWorker struct {
	store AnswerStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(store AnswerStore, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "answer_worker").Logger(),
	}
}

// AnswerPayload is one queued answer operation: a selection, or a clear
// when Cleared is set.
type AnswerPayload struct {
	SessionID        string    `json:"session_id"`
	QuestionID       int64     `json:"question_id"`
	SelectedOptionID int64     `json:"selected_option_id,omitempty"`
	AnsweredAt       time.Time `json:"answered_at"`
	Cleared          bool      `json:"cleared,omitempty"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Answer worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Answer worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Answer worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.persist(ctx, []byte(result[1])); err != nil {
		w.log.Error().Err(err).Msg("Persist error, requeueing")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AnswerWorker) persist(ctx context.Context, raw []byte) error {
	var p AnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// Malformed item, drop it rather than requeue forever.
		w.log.Error().Err(err).Str("raw", string(raw)).Msg("Unmarshal error, dropping item")
		return nil
	}

	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		w.log.Error().Err(err).Str("session_id", p.SessionID).Msg("Bad session id, dropping item")
		return nil
	}

	if p.Cleared {
		return w.store.DeleteAnswer(ctx, sessionID, p.QuestionID)
	}

	return w.store.UpsertAnswer(ctx, &model.StudentAnswer{
		SessionID:        sessionID,
		QuestionID:       p.QuestionID,
		SelectedOptionID: p.SelectedOptionID,
		AnsweredAt:       p.AnsweredAt,
	})
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}
		if err := w.persist(ctx, []byte(result)); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			continue
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining answers")
	}
}
