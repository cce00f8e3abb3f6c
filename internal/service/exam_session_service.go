package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Session domain errors.
var (
	ErrExamNotStarted    = errors.New("exam has not started yet")
	ErrExamNotAvailable  = errors.New("exam is not available")
	ErrSessionNotFound   = errors.New("exam session not found")
	ErrNotSessionOwner   = errors.New("session belongs to another student")
	ErrSessionEnded      = errors.New("exam session has already ended")
	ErrQuestionNotInExam = errors.New("question does not belong to this exam")
	ErrOptionMismatch    = errors.New("option does not belong to this question")
	ErrEndInProgress     = errors.New("session finalization already in progress")
)

// SessionStore is the persistence surface the session lifecycle needs.
// *repository.ExamSessionRepository implements it.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByExamAndStudent(ctx context.Context, examID int64, studentID int) (*model.ExamSession, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.ExamSessionSummary, error)
	UpsertAnswer(ctx context.Context, a *model.StudentAnswer) error
	DeleteAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) error
	End(ctx context.Context, sessionID uuid.UUID, at time.Time) (time.Time, bool, error)
}

// ExamStore reads exam metadata. *repository.ExamRepository implements it.
type ExamStore interface {
	GetByID(ctx context.Context, id int64) (*model.Exam, error)
}

// ExamPayloadSource serves the student view of a published exam's
// questions. *ExamService implements it, backed by the Redis payload cache
// with a PostgreSQL fallback.
type ExamPayloadSource interface {
	GetExamPayload(ctx context.Context, examID int64) (*model.ExamPayload, error)
}

// EndGuard serializes session finalization between the manual end path and
// the deadline sweep so only the first caller issues the end write.
type EndGuard interface {
	// TryBegin reports whether this caller won the right to finalize.
	TryBegin(ctx context.Context, sessionID uuid.UUID) (bool, error)
	// Finish releases the guard after the end write resolved.
	Finish(ctx context.Context, sessionID uuid.UUID) error
}

// ExamSessionService drives one attempt from started to ended: starting,
// loading, answer upserts and deletes, and the one-way end transition.
type ExamSessionService struct {
	sessions SessionStore
	exams    ExamStore
	payloads ExamPayloadSource
	guard    EndGuard
	log      zerolog.Logger

	now func() time.Time
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessions SessionStore,
	exams ExamStore,
	payloads ExamPayloadSource,
	guard EndGuard,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		sessions: sessions,
		exams:    exams,
		payloads: payloads,
		guard:    guard,
		log:      log.With().Str("component", "exam_session_service").Logger(),
		now:      time.Now,
	}
}

// IsActive reports whether the session accepts answers at the given moment:
// no end timestamp and the scheduled window has not elapsed. The stored
// end_time and the server clock are authoritative; any client-side remaining
// time display is a hint only.
func IsActive(s *model.ExamSession, now time.Time) bool {
	return !s.Ended() && now.Before(s.WindowEnd())
}

// RemainingSeconds derives the whole seconds left in the session's window,
// floored at zero. Zero for ended sessions.
func RemainingSeconds(s *model.ExamSession, now time.Time) int64 {
	if s.Ended() {
		return 0
	}
	rem := s.WindowEnd().Sub(now)
	if rem <= 0 {
		return 0
	}
	return int64(rem / time.Second)
}

// Start begins (or resumes) the student's attempt at an exam. The exam must
// be PUBLISHED with its scheduled start at or before now. Starting twice is
// idempotent: the existing session is returned, including for concurrent
// starts racing on the unique (exam, student) constraint.
func (s *ExamSessionService) Start(ctx context.Context, studentID int, examID int64) (*model.ExamSession, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		// An exam that does not exist is indistinguishable from one the
		// student may not see.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}
	if s.now().Before(exam.StartTime) {
		return nil, ErrExamNotStarted
	}

	existing, err := s.sessions.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		return s.withQuestions(ctx, existing)
	}

	session := &model.ExamSession{
		ExamID:          examID,
		StudentID:       studentID,
		NameRus:         exam.NameRus,
		NameKaz:         exam.NameKaz,
		DurationMinutes: exam.DurationMinutes,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a concurrent start; the other writer's row is ours too.
			existing, fetchErr := s.sessions.GetByExamAndStudent(ctx, examID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, fetch failed: %w", fetchErr)
			}
			return s.withQuestions(ctx, existing)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int64("exam_id", examID).
		Int("student_id", studentID).
		Msg("Session started")

	return s.withQuestions(ctx, session)
}

// Get loads the full session (questions and answers) for its owner. Safe to
// call repeatedly; used both to resume an in-progress attempt and to view a
// completed one.
func (s *ExamSessionService) Get(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.ExamSession, error) {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	return s.withQuestions(ctx, session)
}

// List returns the student's session summaries, without question detail.
func (s *ExamSessionService) List(ctx context.Context, studentID int) ([]model.ExamSessionSummary, error) {
	return s.sessions.ListByStudent(ctx, studentID)
}

// CheckAnswer validates a selection without persisting it: the session is
// owned and still active, the question belongs to the exam, the option
// belongs to the question. The live stream runs this before queueing the
// write for asynchronous persistence.
func (s *ExamSessionService) CheckAnswer(ctx context.Context, sessionID uuid.UUID, studentID int, questionID, optionID int64) error {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return err
	}
	if !IsActive(session, s.now()) {
		return ErrSessionEnded
	}
	return s.validateOption(ctx, session.ExamID, questionID, optionID)
}

// CheckMutable verifies the owned session still accepts answer mutations.
func (s *ExamSessionService) CheckMutable(ctx context.Context, sessionID uuid.UUID, studentID int) error {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return err
	}
	if !IsActive(session, s.now()) {
		return ErrSessionEnded
	}
	return nil
}

// SaveAnswer upserts the selected option for one question. At most one
// answer exists per (session, question): a new selection replaces the
// previous one. Rejected once the session is inactive.
func (s *ExamSessionService) SaveAnswer(ctx context.Context, sessionID uuid.UUID, studentID int, questionID, optionID int64) error {
	if err := s.CheckAnswer(ctx, sessionID, studentID, questionID, optionID); err != nil {
		return err
	}
	return s.sessions.UpsertAnswer(ctx, &model.StudentAnswer{
		SessionID:        sessionID,
		QuestionID:       questionID,
		SelectedOptionID: optionID,
		AnsweredAt:       s.now(),
	})
}

// DeleteAnswer removes the answer for one question. Idempotent: deleting an
// unanswered question succeeds without effect.
func (s *ExamSessionService) DeleteAnswer(ctx context.Context, sessionID uuid.UUID, studentID int, questionID int64) error {
	if err := s.CheckMutable(ctx, sessionID, studentID); err != nil {
		return err
	}
	return s.sessions.DeleteAnswer(ctx, sessionID, questionID)
}

// End finalizes the session, either by the student's confirmation or by the
// deadline sweep (studentID 0 skips the ownership check). Ending is
// one-way: the first caller's timestamp sticks and every later call gets it
// back. The guard keeps the manual and timeout paths from both issuing the
// end write when they race in the same instant.
func (s *ExamSessionService) End(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.ExamSession, error) {
	session, err := s.loadOwned(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if session.Ended() {
		return s.withQuestions(ctx, session)
	}

	won, err := s.guard.TryBegin(ctx, sessionID)
	if err != nil {
		// Guard unavailable: the conditional end write below is still
		// one-way on its own, so proceed rather than strand the session.
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("End guard unavailable")
	} else if !won {
		return nil, ErrEndInProgress
	}
	defer func() {
		if ferr := s.guard.Finish(context.WithoutCancel(ctx), sessionID); ferr != nil {
			s.log.Warn().Err(ferr).Str("session_id", sessionID.String()).Msg("End guard release failed")
		}
	}()

	// A timed-out session is recorded as ending at its scheduled window
	// end, not at whenever the sweep got to it.
	at := s.now()
	if windowEnd := session.WindowEnd(); at.After(windowEnd) {
		at = windowEnd
	}

	endTime, changed, err := s.sessions.End(ctx, sessionID, at)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	session.EndTime = &endTime

	if changed {
		s.log.Info().
			Str("session_id", sessionID.String()).
			Time("end_time", endTime).
			Msg("Session ended")
	}

	return s.withQuestions(ctx, session)
}

func (s *ExamSessionService) loadOwned(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if studentID != 0 && session.StudentID != studentID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

// withQuestions attaches the exam's questions to the session, served from
// the cached student payload. The payload never carries correct-option
// designations, and published exams are immutable, so the cache is safe to
// read for the session's whole lifetime.
func (s *ExamSessionService) withQuestions(ctx context.Context, session *model.ExamSession) (*model.ExamSession, error) {
	payload, err := s.payloads.GetExamPayload(ctx, session.ExamID)
	if err != nil {
		return nil, fmt.Errorf("exam payload: %w", err)
	}
	session.Questions = append([]model.QuestionForStudent(nil), payload.Questions...)
	if session.Answers == nil {
		session.Answers = []model.StudentAnswer{}
	}
	return session, nil
}

func (s *ExamSessionService) validateOption(ctx context.Context, examID, questionID, optionID int64) error {
	payload, err := s.payloads.GetExamPayload(ctx, examID)
	if err != nil {
		return fmt.Errorf("exam payload: %w", err)
	}
	for _, q := range payload.Questions {
		if q.ID != questionID {
			continue
		}
		for _, o := range q.Options {
			if o.ID == optionID {
				return nil
			}
		}
		return ErrOptionMismatch
	}
	return ErrQuestionNotInExam
}
