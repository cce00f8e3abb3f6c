package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dauka12/olympiad-backend/internal/config"
	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/repository"
	"github.com/Dauka12/olympiad-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exam authoring domain errors.
var (
	ErrExamNotDraft = errors.New("exam status is not DRAFT")
	ErrNoQuestions  = errors.New("exam has no questions, cannot publish")
)

// ExamService handles exam authoring, publishing, and the Redis payload
// cache that serves students the question set without correct options.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam.
func (s *ExamService) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// List retrieves exams with pagination, optionally filtered by category.
func (s *ExamService) List(ctx context.Context, categoryID *int64, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListPaginated(ctx, categoryID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return exams, pagination, nil
}

// ListCategories returns all exam categories.
func (s *ExamService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.examRepo.ListCategories(ctx)
}

// Create inserts a new exam as DRAFT.
func (s *ExamService) Create(ctx context.Context, exam *model.Exam) error {
	exam.Status = model.ExamStatusDraft
	return s.examRepo.Create(ctx, exam)
}

// Update applies changes to a DRAFT exam. Published exams are immutable.
func (s *ExamService) Update(ctx context.Context, id int64, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	if req.NameRus != "" {
		exam.NameRus = req.NameRus
	}
	if req.NameKaz != "" {
		exam.NameKaz = req.NameKaz
	}
	if req.TypeRus != "" {
		exam.TypeRus = req.TypeRus
	}
	if req.TypeKaz != "" {
		exam.TypeKaz = req.TypeKaz
	}
	if req.CategoryID != nil {
		exam.CategoryID = req.CategoryID
	}
	if req.StartTime != nil {
		exam.StartTime = *req.StartTime
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}

	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// Delete removes a DRAFT exam.
func (s *ExamService) Delete(ctx context.Context, id int64) error {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return s.examRepo.Delete(ctx, id)
}

// Publish transitions a DRAFT exam to PUBLISHED and warms its payload
// cache. After this the exam and its questions are read-only.
func (s *ExamService) Publish(ctx context.Context, examID int64) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Int64("exam_id", examID).Msg("Exam published")
	return nil
}

// WarmExamCache loads an exam's student payload from PostgreSQL into Redis.
// The payload carries no correct-option identifiers.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	payload := model.ExamPayload{
		ExamID:          exam.ID,
		NameRus:         exam.NameRus,
		NameKaz:         exam.NameKaz,
		StartTime:       exam.StartTime,
		DurationMinutes: exam.DurationMinutes,
		Questions:       make([]model.QuestionForStudent, len(questions)),
	}
	for i, q := range questions {
		payload.Questions[i] = q.ForStudent()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().Int64("exam_id", exam.ID).Int("questions", len(questions)).Msg("Exam cache warmed")
	return nil
}

// GetExamPayload returns the cached student payload, falling back to
// PostgreSQL on a cache miss and self-healing the cache.
func (s *ExamService) GetExamPayload(ctx context.Context, examID int64) (*model.ExamPayload, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID)).Result()
	if err == nil {
		payload := &model.ExamPayload{}
		if err := json.Unmarshal([]byte(raw), payload); err == nil {
			return payload, nil
		}
		// Corrupt cache entry; rebuild below.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload from cache: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if err := s.WarmExamCache(ctx, exam); err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	payload := &model.ExamPayload{
		ExamID:          exam.ID,
		NameRus:         exam.NameRus,
		NameKaz:         exam.NameKaz,
		StartTime:       exam.StartTime,
		DurationMinutes: exam.DurationMinutes,
		Questions:       make([]model.QuestionForStudent, len(questions)),
	}
	for i, q := range questions {
		payload.Questions[i] = q.ForStudent()
	}
	return payload, nil
}

// PrewarmAllCaches loads every published exam's payload into Redis.
// Called once on startup before accepting traffic.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().Err(err).Int64("exam_id", exams[i].ID).Msg("Prewarm failed for exam")
		}
	}

	s.log.Info().Int("count", len(exams)).Msg("Exam caches prewarmed")
	return nil
}
