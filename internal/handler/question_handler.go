package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/response"
	"github.com/Dauka12/olympiad-backend/internal/service"
	"github.com/Dauka12/olympiad-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// QuestionHandler handles admin question authoring on DRAFT exams.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// List godoc
// GET /api/v1/admin/exams/:exam_id/questions
// Returns all questions of an exam, correct options included.
func (h *QuestionHandler) List(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	questions, err := h.questionService.ListByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, questions)
}

// Add godoc
// POST /api/v1/admin/exams/:exam_id/questions
func (h *QuestionHandler) Add(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), examID, &req)
	if err != nil {
		h.failQuestion(c, err)
		return
	}

	response.Success(c, http.StatusCreated, question)
}

// Update godoc
// PUT /api/v1/admin/exams/:exam_id/questions/:question_id
// Replaces the question's text and options wholesale.
func (h *QuestionHandler) Update(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}
	questionID, ok := parseID(c, "question_id")
	if !ok {
		return
	}

	var req model.UpdateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), examID, questionID, &req)
	if err != nil {
		h.failQuestion(c, err)
		return
	}

	response.Success(c, http.StatusOK, question)
}

// Delete godoc
// DELETE /api/v1/admin/exams/:exam_id/questions/:question_id
func (h *QuestionHandler) Delete(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}
	questionID, ok := parseID(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), examID, questionID); err != nil {
		h.failQuestion(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func (h *QuestionHandler) failQuestion(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotDraft)
	case errors.Is(err, service.ErrBadCorrectIndex):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"correctOptionIndex": "Index must point at one of the submitted options."})
	case errors.Is(err, service.ErrQuestionNotInExam):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
