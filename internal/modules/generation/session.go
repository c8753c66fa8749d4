package generation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Streaming event types, in the order a session emits them. A session
// is a sequence of status/progress pairs, then stream chunks, then
// exactly one complete or error event.
const (
	EventStatus   = "status"
	EventProgress = "progress"
	EventStream   = "stream"
	EventComplete = "complete"
	EventError    = "error"
)

// Event is one streaming message. Fields are populated per type:
// status carries Message, progress carries Step and Data, stream
// carries Chunk and the accumulated Total, complete carries Data,
// error carries Message.
type Event struct {
	Type    string `json:"type"`
	Step    string `json:"step,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Chunk   string `json:"chunk,omitempty"`
	Total   string `json:"total,omitempty"`
}

// EventSink delivers events to a connected client. The pipeline aborts
// on the first Send error, a gone client has no use for further work.
type EventSink interface {
	Send(event Event) error
	Close() error
}

// WebSocketSink writes events as JSON text frames.
type WebSocketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: conn}
}

func (s *WebSocketSink) Send(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(event)
}

func (s *WebSocketSink) Close() error {
	return s.conn.Close()
}

// SSESink writes events as server-sent data frames and flushes after
// each one so the client sees them as they happen.
type SSESink struct {
	w http.ResponseWriter
}

func NewSSESink(w http.ResponseWriter) *SSESink {
	return &SSESink{w: w}
}

func (s *SSESink) Send(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if flusher, ok := s.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// Close is a no-op, the HTTP handler owns the response lifecycle.
func (s *SSESink) Close() error {
	return nil
}
