package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dauka12/olympiad-backend/internal/middleware"
	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/repository"
	"github.com/Dauka12/olympiad-backend/internal/response"
	"github.com/Dauka12/olympiad-backend/internal/service"
	"github.com/Dauka12/olympiad-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// ExamHandler handles the admin exam authoring endpoints.
type ExamHandler struct {
	examService *service.ExamService
	sessionRepo *repository.ExamSessionRepository
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, sessionRepo *repository.ExamSessionRepository) *ExamHandler {
	return &ExamHandler{examService: examService, sessionRepo: sessionRepo}
}

// List godoc
// GET /api/v1/admin/exams?page=&per_page=&category_id=
func (h *ExamHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	var categoryID *int64
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		categoryID = &id
	}

	exams, pagination, err := h.examService.List(c.Request.Context(), categoryID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, exams, pagination)
}

// Get godoc
// GET /api/v1/admin/exams/:exam_id
func (h *ExamHandler) Get(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, exam)
}

// Create godoc
// POST /api/v1/admin/exams
// Creates a new exam as DRAFT, owned by the calling admin.
func (h *ExamHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam := &model.Exam{
		NameRus:         req.NameRus,
		NameKaz:         req.NameKaz,
		TypeRus:         req.TypeRus,
		TypeKaz:         req.TypeKaz,
		CategoryID:      req.CategoryID,
		AuthorID:        claims.UserID,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	}

	if err := h.examService.Create(c.Request.Context(), exam); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, exam)
}

// Update godoc
// PUT /api/v1/admin/exams/:exam_id
// Updates a DRAFT exam. Published exams are immutable.
func (h *ExamHandler) Update(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), examID, &req)
	if err != nil {
		h.failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, exam)
}

// Delete godoc
// DELETE /api/v1/admin/exams/:exam_id
func (h *ExamHandler) Delete(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID); err != nil {
		h.failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Publish godoc
// POST /api/v1/admin/exams/:exam_id/publish
// Publishes a DRAFT exam with at least one question and warms its cache.
func (h *ExamHandler) Publish(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	if err := h.examService.Publish(c.Request.Context(), examID); err != nil {
		h.failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.ExamStatusPublished})
}

// ListCategories godoc
// GET /api/v1/admin/categories
func (h *ExamHandler) ListCategories(c *gin.Context) {
	categories, err := h.examService.ListCategories(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}

	response.Success(c, http.StatusOK, categories)
}

// Results godoc
// GET /api/v1/admin/exams/:exam_id/results?page=&per_page=
// Lists every student's session for the exam with answered counts.
func (h *ExamHandler) Results(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	results, total, err := h.sessionRepo.ListByExam(c.Request.Context(), examID, perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if results == nil {
		results = []repository.SessionResult{}
	}

	response.SuccessWithPagination(c, http.StatusOK, results, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

func (h *ExamHandler) failExam(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotDraft)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
