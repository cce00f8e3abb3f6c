package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer      Action = "answer"
	ActionClearAnswer Action = "clear_answer"
	ActionSubmit      Action = "submit"
	ActionPing        Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to select an option for a question.
type AnswerRequest struct {
	Action           Action `json:"action"`
	QuestionID       int64  `json:"questionId"`
	SelectedOptionID int64  `json:"selectedOptionId"`
}

// ClearAnswerRequest is sent by the client to drop the selection for a question.
type ClearAnswerRequest struct {
	Action     Action `json:"action"`
	QuestionID int64  `json:"questionId"`
}

// SubmitRequest is sent by the client to end the session.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventTick    Event = "tick"
	EventEnded   Event = "ended"
	EventPong    Event = "pong"
)

type AnswerResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// TickResponse carries the server-authoritative countdown. The client may
// render it but never decides the deadline itself.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remainingSeconds"`
}

// EndedResponse is sent exactly once when the session ends, whether by
// submit or by the timer running out.
type EndedResponse struct {
	Event   Event  `json:"event"`
	EndTime string `json:"endTime"`
	Reason  string `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
