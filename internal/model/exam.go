package model

import (
	"time"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam is an authored olympiad test: bilingual metadata, a scheduled start
// and duration, and an ordered set of questions. Published exams are
// read-only; question edits are allowed only while the exam is DRAFT.
type Exam struct {
	ID              int64      `json:"id"`
	NameRus         string     `json:"nameRus"`
	NameKaz         string     `json:"nameKaz"`
	TypeRus         string     `json:"typeRus"`
	TypeKaz         string     `json:"typeKaz"`
	CategoryID      *int64     `json:"categoryId,omitempty"`
	AuthorID        int        `json:"author_id"`
	StartTime       time.Time  `json:"startTime"`
	DurationMinutes int        `json:"durationInMinutes"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Category groups exams for the admin listing views.
type Category struct {
	ID      int64  `json:"id"`
	NameRus string `json:"nameRus"`
	NameKaz string `json:"nameKaz"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	NameRus         string    `json:"nameRus" binding:"required,min=3,max=255"`
	NameKaz         string    `json:"nameKaz" binding:"required,min=3,max=255"`
	TypeRus         string    `json:"typeRus" binding:"omitempty,max=100"`
	TypeKaz         string    `json:"typeKaz" binding:"omitempty,max=100"`
	CategoryID      *int64    `json:"categoryId" binding:"omitempty"`
	StartTime       time.Time `json:"startTime" binding:"required"`
	DurationMinutes int       `json:"durationInMinutes" binding:"required,min=1,max=480"`
}

// UpdateExamRequest is the payload for updating a DRAFT exam.
type UpdateExamRequest struct {
	NameRus         string     `json:"nameRus" binding:"omitempty,min=3,max=255"`
	NameKaz         string     `json:"nameKaz" binding:"omitempty,min=3,max=255"`
	TypeRus         string     `json:"typeRus" binding:"omitempty,max=100"`
	TypeKaz         string     `json:"typeKaz" binding:"omitempty,max=100"`
	CategoryID      *int64     `json:"categoryId" binding:"omitempty"`
	StartTime       *time.Time `json:"startTime" binding:"omitempty"`
	DurationMinutes *int       `json:"durationInMinutes" binding:"omitempty,min=1,max=480"`
}

// ExamPayload is the Redis-cached exam snapshot served to students.
// It never contains correct option identifiers.
type ExamPayload struct {
	ExamID          int64                `json:"exam_id"`
	NameRus         string               `json:"nameRus"`
	NameKaz         string               `json:"nameKaz"`
	StartTime       time.Time            `json:"startTime"`
	DurationMinutes int                  `json:"durationInMinutes"`
	Questions       []QuestionForStudent `json:"questions"`
}
