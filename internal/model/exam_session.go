package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamSession is one student's timed attempt at an exam. EndTime is nil
// while the attempt is in progress; once set it is never cleared or
// changed. Ending a session is a one-way transition.
type ExamSession struct {
	ID              uuid.UUID            `json:"id"`
	ExamID          int64                `json:"examTestId"`
	StudentID       int                  `json:"student_id"`
	NameRus         string               `json:"nameRus"`
	NameKaz         string               `json:"nameKaz"`
	DurationMinutes int                  `json:"durationInMinutes"`
	StartTime       time.Time            `json:"startTime"`
	EndTime         *time.Time           `json:"endTime,omitempty"`
	Questions       []QuestionForStudent `json:"questions,omitempty"`
	Answers         []StudentAnswer      `json:"studentAnswers"`
}

// Ended reports whether the session's end timestamp has been set.
func (s *ExamSession) Ended() bool {
	return s.EndTime != nil
}

// WindowEnd is the scheduled end of the attempt: start plus duration.
func (s *ExamSession) WindowEnd() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// StudentAnswer is the currently selected option for one question within a
// session. There is at most one per (session, question) pair; a new
// selection replaces the previous one.
type StudentAnswer struct {
	SessionID        uuid.UUID `json:"studentExamSessionId"`
	QuestionID       int64     `json:"questionId"`
	SelectedOptionID int64     `json:"selectedOptionId"`
	AnsweredAt       time.Time `json:"answeredAt"`
}

// ExamSessionSummary is the lightweight session shape for list views,
// without question or answer detail.
type ExamSessionSummary struct {
	ID              uuid.UUID  `json:"id"`
	ExamID          int64      `json:"examTestId"`
	NameRus         string     `json:"nameRus"`
	NameKaz         string     `json:"nameKaz"`
	DurationMinutes int        `json:"durationInMinutes"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
}

// StartSessionRequest is the payload for starting an attempt.
type StartSessionRequest struct {
	ExamTestID int64 `json:"examTestId" binding:"required"`
}

// AnswerRequest is the shared payload for answer upsert and delete.
type AnswerRequest struct {
	SessionID  uuid.UUID `json:"studentExamSessionId" binding:"required"`
	QuestionID int64     `json:"questionId" binding:"required"`
	// SelectedOptionID is required for updates, ignored for deletes.
	SelectedOptionID int64 `json:"selectedOptionId"`
}
