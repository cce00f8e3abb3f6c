package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout bounds every outbound write so a stalled client cannot
	// wedge the countdown sender behind it.
	writeTimeout = 10 * time.Second
	// readTimeout is deliberately generous: a student sitting on one
	// question sends nothing for minutes at a time, and the tick stream
	// keeps the connection warm in the other direction.
	readTimeout = 5 * time.Minute
)

// WriteTyped sends one event payload to the peer under the write deadline.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// WriteError is WriteTyped for a plain error event.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next client message, renewing the read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	return conn.ReadJSON(v)
}
