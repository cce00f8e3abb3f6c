package handler

import (
	"errors"
	"net/http"

	"github.com/Dauka12/olympiad-backend/internal/middleware"
	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/response"
	"github.com/Dauka12/olympiad-backend/internal/service"
	"github.com/Dauka12/olympiad-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles the student session lifecycle endpoints.
type SessionHandler struct {
	sessionService *service.ExamSessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Start godoc
// POST /api/v1/exam/session/start
// Begins (or resumes) the student's attempt at an exam.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), claims.UserID, req.ExamTestID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// End godoc
// POST /api/v1/exam/session/end/:session_id
// Finalizes the session. Repeating the call returns the original end time.
func (h *SessionHandler) End(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.End(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// Get godoc
// POST /api/v1/exam/session/student/:session_id
// Returns the full session: questions (no correct options) and the
// student's current answers. Used to resume after a refresh or crash.
func (h *SessionHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// List godoc
// GET /api/v1/exam/session/student
// Returns the student's session summaries.
func (h *SessionHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessionService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if sessions == nil {
		sessions = []model.ExamSessionSummary{}
	}

	response.Success(c, http.StatusOK, sessions)
}

// UpdateAnswer godoc
// POST /api/v1/exam/session/answer/update
// Upserts the selected option for one question of an active session.
func (h *SessionHandler) UpdateAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.SelectedOptionID == 0 {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"selectedOptionId": "This field is required."})
		return
	}

	err := h.sessionService.SaveAnswer(c.Request.Context(), req.SessionID, claims.UserID, req.QuestionID, req.SelectedOptionID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// DeleteAnswer godoc
// DELETE /api/v1/exam/session/answer/delete
// Removes the answer for one question. Deleting an unanswered question
// succeeds without effect.
func (h *SessionHandler) DeleteAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessionService.DeleteAnswer(c.Request.Context(), req.SessionID, claims.UserID, req.QuestionID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Results godoc
// GET /api/v1/exam/session/student/:session_id/results
// Returns the completion review of the student's own session. Contains
// no correctness information.
func (h *SessionHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, service.BuildResults(session))
}

// failSession maps session domain errors to API responses.
func (h *SessionHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotSessionOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrExamNotStarted):
		response.Fail(c, http.StatusConflict, response.ErrExamNotStarted)
	case errors.Is(err, service.ErrSessionEnded):
		response.Fail(c, http.StatusConflict, response.ErrSessionEnded)
	case errors.Is(err, service.ErrQuestionNotInExam):
		response.Fail(c, http.StatusBadRequest, response.ErrAnswerRejected)
	case errors.Is(err, service.ErrOptionMismatch):
		response.Fail(c, http.StatusBadRequest, response.ErrOptionMismatch)
	case errors.Is(err, service.ErrEndInProgress):
		response.Fail(c, http.StatusConflict, response.ErrSessionEnded)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
