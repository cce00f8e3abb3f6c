package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionResult is one row of the admin per-exam results listing.
type SessionResult struct {
	SessionID     uuid.UUID  `json:"session_id"`
	StudentID     int        `json:"student_id"`
	FirstName     string     `json:"firstname"`
	LastName      string     `json:"lastname"`
	School        string     `json:"school"`
	Grade         int        `json:"grade"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime"`
	AnsweredCount int        `json:"answeredCount"`
}

// ExamSessionRepository handles exam session and answer data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionSelect = `
	SELECT s.id, s.exam_id, s.student_id, e.name_rus, e.name_kaz,
	       e.duration_minutes, s.start_time, s.end_time
	FROM exam_sessions s
	JOIN exams e ON s.exam_id = e.id`

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.NameRus, &s.NameKaz,
		&s.DurationMinutes, &s.StartTime, &s.EndTime)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new exam session. The UNIQUE (exam_id, student_id)
// constraint plus ON CONFLICT DO NOTHING makes concurrent starts collapse
// to a single attempt; the caller refetches on pgx.ErrNoRows.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, start_time`,
		s.ExamID, s.StudentID,
	).Scan(&s.ID, &s.StartTime)
}

// GetByID retrieves a session with its answers.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, sessionSelect+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if s.Answers, err = r.listAnswers(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByExamAndStudent retrieves the session for an exam-student pair.
func (r *ExamSessionRepository) GetByExamAndStudent(ctx context.Context, examID int64, studentID int) (*model.ExamSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		sessionSelect+` WHERE s.exam_id = $1 AND s.student_id = $2`, examID, studentID))
	if err != nil {
		return nil, err
	}
	if s.Answers, err = r.listAnswers(ctx, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ExamSessionRepository) listAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.StudentAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, selected_option_id, answered_at
		 FROM student_answers
		 WHERE session_id = $1
		 ORDER BY question_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.StudentAnswer
	for rows.Next() {
		var a model.StudentAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.SelectedOptionID, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListByStudent retrieves session summaries for a student, newest first.
func (r *ExamSessionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ExamSessionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.exam_id, e.name_rus, e.name_kaz, e.duration_minutes, s.start_time, s.end_time
		 FROM exam_sessions s
		 JOIN exams e ON s.exam_id = e.id
		 WHERE s.student_id = $1
		 ORDER BY s.start_time DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.ExamSessionSummary
	for rows.Next() {
		var sm model.ExamSessionSummary
		if err := rows.Scan(&sm.ID, &sm.ExamID, &sm.NameRus, &sm.NameKaz,
			&sm.DurationMinutes, &sm.StartTime, &sm.EndTime); err != nil {
			return nil, err
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

// UpsertAnswer writes the selected option for one question. The predicate on
// answered_at makes concurrent writes to the same question last-write-wins:
// a delayed older write cannot overwrite a newer selection.
func (r *ExamSessionRepository) UpsertAnswer(ctx context.Context, a *model.StudentAnswer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO student_answers (session_id, question_id, selected_option_id, answered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET selected_option_id = EXCLUDED.selected_option_id,
		     answered_at = EXCLUDED.answered_at
		 WHERE student_answers.answered_at <= EXCLUDED.answered_at`,
		a.SessionID, a.QuestionID, a.SelectedOptionID, a.AnsweredAt)
	return err
}

// DeleteAnswer removes the answer for one question. Deleting an answer that
// does not exist is not an error.
func (r *ExamSessionRepository) DeleteAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM student_answers WHERE session_id = $1 AND question_id = $2`,
		sessionID, questionID)
	return err
}

// End sets the session's end time if and only if it is not already set, and
// returns the authoritative end time either way. The conditional UPDATE is
// what makes ending one-way: a second caller gets the first caller's
// timestamp back, never a new one.
func (r *ExamSessionRepository) End(ctx context.Context, sessionID uuid.UUID, at time.Time) (time.Time, bool, error) {
	var endTime time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions SET end_time = $1
		 WHERE id = $2 AND end_time IS NULL
		 RETURNING end_time`,
		at, sessionID,
	).Scan(&endTime)
	if err == nil {
		return endTime, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, err
	}

	// Already ended (or missing). Read the stored end time.
	var stored *time.Time
	err = r.pool.QueryRow(ctx,
		`SELECT end_time FROM exam_sessions WHERE id = $1`, sessionID,
	).Scan(&stored)
	if err != nil {
		return time.Time{}, false, err
	}
	if stored == nil {
		return time.Time{}, false, errors.New("session end lost update race but has no end time")
	}
	return *stored, false, nil
}

// ListExpired returns sessions whose scheduled window has elapsed while
// end_time is still NULL. Used by the deadline sweep.
func (r *ExamSessionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		sessionSelect+`
		 WHERE s.end_time IS NULL
		   AND s.start_time + make_interval(mins => e.duration_minutes) <= $1
		 ORDER BY s.start_time
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListByExam retrieves per-student results for an exam with pagination.
func (r *ExamSessionRepository) ListByExam(ctx context.Context, examID int64, limit, offset int) ([]SessionResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE exam_id = $1`, examID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, st.id, st.firstname, st.lastname, st.school, st.grade,
		        s.start_time, s.end_time,
		        (SELECT COUNT(*) FROM student_answers a WHERE a.session_id = s.id)
		 FROM exam_sessions s
		 JOIN students st ON s.student_id = st.id
		 WHERE s.exam_id = $1
		 ORDER BY st.lastname, st.firstname
		 LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var sr SessionResult
		if err := rows.Scan(&sr.SessionID, &sr.StudentID, &sr.FirstName, &sr.LastName,
			&sr.School, &sr.Grade, &sr.StartTime, &sr.EndTime, &sr.AnsweredCount); err != nil {
			return nil, 0, err
		}
		results = append(results, sr)
	}
	return results, total, rows.Err()
}
