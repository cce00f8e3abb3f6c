package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ErrBadCorrectIndex signals a correctOptionIndex outside the options slice.
var ErrBadCorrectIndex = errors.New("correct option index out of range")

// QuestionService handles question authoring on DRAFT exams.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	examRepo     *repository.ExamRepository
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(
	questionRepo *repository.QuestionRepository,
	examRepo *repository.ExamRepository,
	log zerolog.Logger,
) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		examRepo:     examRepo,
		log:          log.With().Str("component", "question_service").Logger(),
	}
}

// ListByExam returns all questions of an exam, correct options included.
// Admin use only.
func (s *QuestionService) ListByExam(ctx context.Context, examID int64) ([]model.Question, error) {
	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// Add creates a question with its options on a DRAFT exam.
func (s *QuestionService) Add(ctx context.Context, examID int64, req *model.AddQuestionRequest) (*model.Question, error) {
	if err := s.requireDraft(ctx, examID); err != nil {
		return nil, err
	}
	if req.CorrectOptionIndex < 0 || req.CorrectOptionIndex >= len(req.Options) {
		return nil, ErrBadCorrectIndex
	}

	q := buildQuestion(examID, req)
	if err := s.questionRepo.CreateWithOptions(ctx, q, req.CorrectOptionIndex); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// Update replaces a question's text and options wholesale on a DRAFT exam.
func (s *QuestionService) Update(ctx context.Context, examID, questionID int64, req *model.UpdateQuestionRequest) (*model.Question, error) {
	if err := s.requireDraft(ctx, examID); err != nil {
		return nil, err
	}
	if req.CorrectOptionIndex < 0 || req.CorrectOptionIndex >= len(req.Options) {
		return nil, ErrBadCorrectIndex
	}

	existing, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	if existing.ExamID != examID {
		return nil, ErrQuestionNotInExam
	}

	q := buildQuestion(examID, req)
	q.ID = questionID
	if err := s.questionRepo.ReplaceWithOptions(ctx, q, req.CorrectOptionIndex); err != nil {
		return nil, fmt.Errorf("replace question: %w", err)
	}
	return q, nil
}

// Delete removes a question from a DRAFT exam.
func (s *QuestionService) Delete(ctx context.Context, examID, questionID int64) error {
	if err := s.requireDraft(ctx, examID); err != nil {
		return err
	}

	existing, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return fmt.Errorf("get question: %w", err)
	}
	if existing.ExamID != examID {
		return ErrQuestionNotInExam
	}

	return s.questionRepo.Delete(ctx, questionID)
}

func (s *QuestionService) requireDraft(ctx context.Context, examID int64) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return nil
}

func buildQuestion(examID int64, req *model.AddQuestionRequest) *model.Question {
	q := &model.Question{
		ExamID:   examID,
		TextRus:  req.TextRus,
		TextKaz:  req.TextKaz,
		OrderNum: req.OrderNum,
		Options:  make([]model.Option, len(req.Options)),
	}
	for i, opt := range req.Options {
		q.Options[i] = model.Option{
			TextRus:  opt.TextRus,
			TextKaz:  opt.TextKaz,
			OrderNum: i,
		}
	}
	return q
}
