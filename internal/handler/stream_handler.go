package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/config"
	"github.com/Dauka12/olympiad-backend/internal/middleware"
	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/service"
	"github.com/Dauka12/olympiad-backend/internal/timer"
	ws "github.com/Dauka12/olympiad-backend/internal/websocket"
	"github.com/Dauka12/olympiad-backend/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// StreamHandler serves the live session stream: a server-driven countdown,
// answer autosave, and the single ended notification.
type StreamHandler struct {
	rdb            *redis.Client
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(rdb *redis.Client, sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		rdb:            rdb,
		sessionService: sessionService,
		log:            log.With().Str("component", "stream_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// streamConn serializes writes to one WebSocket connection. gorilla/websocket
// permits only one concurrent writer and the countdown goroutine writes
// alongside the read-loop replies.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn

	endedOnce sync.Once
}

func (s *streamConn) send(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = ws.WriteTyped(s.conn, v)
}

func (s *streamConn) sendError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = ws.WriteError(s.conn, msg)
}

// sendEnded emits the ended event at most once per connection, whether the
// session ended by submit, by the countdown, or was found already ended.
func (s *streamConn) sendEnded(endTime time.Time, reason string) {
	s.endedOnce.Do(func() {
		s.send(ws.EndedResponse{
			Event:   ws.EventEnded,
			EndTime: endTime.UTC().Format(time.RFC3339),
			Reason:  reason,
		})
	})
}

// SessionStream godoc
// WS /ws/v1/exam/session/:session_id/stream?token=...
// Streams the authoritative countdown and accepts answer actions until the
// session ends.
func (h *StreamHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	studentID := claims.UserID
	session, err := h.sessionService.Get(c.Request.Context(), sessionID, studentID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sc := &streamConn{conn: conn}
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("session_id", sessionID.String()).
		Logger()

	if session.Ended() {
		sc.sendEnded(*session.EndTime, "already_ended")
		return
	}

	wsLog.Info().Msg("Student connected")

	// The countdown is derived from the stored start time on every connect,
	// so a page refresh resumes at the true remaining time rather than
	// restarting the clock.
	remaining := service.RemainingSeconds(session, time.Now())
	countdown := timer.New(remaining, func() {
		h.expireSession(sc, wsLog, sessionID, studentID)
	})
	defer countdown.Stop()

	// Stopping the countdown only disarms its ticker; the forwarder must
	// be released explicitly or it outlives every submit and disconnect.
	stopForward := make(chan struct{})
	defer close(stopForward)
	go forwardTicks(countdown.Ticks(), stopForward, func(rem int64) {
		sc.send(ws.TickResponse{Event: ws.EventTick, RemainingSeconds: rem})
	})
	countdown.Start()

	h.readLoop(sc, wsLog, countdown, sessionID, studentID)
}

// forwardTicks relays countdown ticks until a zero tick arrives or stop is
// closed, whichever comes first.
func forwardTicks(ticks <-chan int64, stop <-chan struct{}, send func(int64)) {
	for {
		select {
		case rem := <-ticks:
			send(rem)
			if rem == 0 {
				return
			}
		case <-stop:
			return
		}
	}
}

func (h *StreamHandler) readLoop(sc *streamConn, wsLog zerolog.Logger, countdown *timer.Countdown, sessionID uuid.UUID, studentID int) {
	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(sc.conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			sc.sendError("malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(sc, raw, sessionID, studentID)
		case ws.ActionClearAnswer:
			h.handleClearAnswer(sc, raw, sessionID, studentID)
		case ws.ActionSubmit:
			countdown.Stop()
			h.handleSubmit(sc, wsLog, sessionID, studentID)
			return
		case ws.ActionPing:
			sc.send(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			sc.sendError("unknown action: " + string(envelope.Action))
		}
	}
}

// handleAnswer validates the selection, mirrors it to the session's Redis
// hash, and queues it for the answer worker, which owns PostgreSQL writes
// on this path. The queued payload carries the selection moment so delayed
// persistence cannot overwrite a fresher choice.
func (h *StreamHandler) handleAnswer(sc *streamConn, raw json.RawMessage, sessionID uuid.UUID, studentID int) {
	ctx := context.Background()

	var msg ws.AnswerRequest
	if err := json.Unmarshal(raw, &msg); err != nil || msg.QuestionID == 0 || msg.SelectedOptionID == 0 {
		sc.sendError("questionId and selectedOptionId are required")
		return
	}

	if err := h.sessionService.CheckAnswer(ctx, sessionID, studentID, msg.QuestionID, msg.SelectedOptionID); err != nil {
		sc.sendError(h.streamErrMessage(err))
		return
	}

	answersKey := config.CacheKey.SessionAnswersKey(sessionID.String())
	field := strconv.FormatInt(msg.QuestionID, 10)
	if err := h.rdb.HSet(ctx, answersKey, field, msg.SelectedOptionID).Err(); err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Answer cache error")
	}

	payload, _ := json.Marshal(worker.AnswerPayload{
		SessionID:        sessionID.String(),
		QuestionID:       msg.QuestionID,
		SelectedOptionID: msg.SelectedOptionID,
		AnsweredAt:       time.Now(),
	})
	if err := h.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		// Queue unavailable: write through directly rather than lose the
		// selection.
		if err := h.sessionService.SaveAnswer(ctx, sessionID, studentID, msg.QuestionID, msg.SelectedOptionID); err != nil {
			sc.sendError(h.streamErrMessage(err))
			return
		}
	}

	sc.send(ws.AnswerResponse{Event: ws.EventSuccess, Status: "saved"})
}

// handleClearAnswer routes the clear through the same queue as saves so a
// clear can never be overtaken by an earlier selection still in flight.
func (h *StreamHandler) handleClearAnswer(sc *streamConn, raw json.RawMessage, sessionID uuid.UUID, studentID int) {
	ctx := context.Background()

	var msg ws.ClearAnswerRequest
	if err := json.Unmarshal(raw, &msg); err != nil || msg.QuestionID == 0 {
		sc.sendError("questionId is required")
		return
	}

	if err := h.sessionService.CheckMutable(ctx, sessionID, studentID); err != nil {
		sc.sendError(h.streamErrMessage(err))
		return
	}

	h.rdb.HDel(ctx, config.CacheKey.SessionAnswersKey(sessionID.String()), strconv.FormatInt(msg.QuestionID, 10))

	payload, _ := json.Marshal(worker.AnswerPayload{
		SessionID:  sessionID.String(),
		QuestionID: msg.QuestionID,
		AnsweredAt: time.Now(),
		Cleared:    true,
	})
	if err := h.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		if err := h.sessionService.DeleteAnswer(ctx, sessionID, studentID, msg.QuestionID); err != nil {
			sc.sendError(h.streamErrMessage(err))
			return
		}
	}

	sc.send(ws.AnswerResponse{Event: ws.EventSuccess, Status: "cleared"})
}

func (h *StreamHandler) handleSubmit(sc *streamConn, wsLog zerolog.Logger, sessionID uuid.UUID, studentID int) {
	session, err := h.endSession(sessionID, studentID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit failed")
		sc.sendError("submit failed")
		return
	}
	sc.sendEnded(*session.EndTime, "submit")
}

// expireSession runs when the countdown hits zero: finalize server-side and
// notify the client once.
func (h *StreamHandler) expireSession(sc *streamConn, wsLog zerolog.Logger, sessionID uuid.UUID, studentID int) {
	session, err := h.endSession(sessionID, studentID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Timeout finalization failed")
		// The deadline sweep will pick the session up; still tell the
		// client its time is over.
		sc.send(ws.ErrorResponse{Event: ws.EventError, Error: "time is over"})
		return
	}
	sc.sendEnded(*session.EndTime, "timeout")
}

// endSession ends the session, treating a concurrent finalization as
// success by re-reading the stored end time.
func (h *StreamHandler) endSession(sessionID uuid.UUID, studentID int) (*model.ExamSession, error) {
	ctx := context.Background()

	session, err := h.sessionService.End(ctx, sessionID, studentID)
	if errors.Is(err, service.ErrEndInProgress) {
		for i := 0; i < 5; i++ {
			time.Sleep(100 * time.Millisecond)
			session, err = h.sessionService.Get(ctx, sessionID, studentID)
			if err == nil && session.Ended() {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if !session.Ended() {
		return nil, errors.New("session not finalized")
	}
	return session, nil
}

func (h *StreamHandler) streamErrMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrSessionEnded):
		return "session has ended"
	case errors.Is(err, service.ErrQuestionNotInExam):
		return "question does not belong to this exam"
	case errors.Is(err, service.ErrOptionMismatch):
		return "option does not belong to this question"
	default:
		return "save failed"
	}
}
