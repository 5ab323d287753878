// Package model defines the captured-request record that flows from the
// proxy through the store to the HTTP API. It has no behavior of its own —
// just the shapes the rest of the capture pipeline agree on.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SSEEvent is a single decoded Server-Sent Event belonging to a streaming
// response, persisted alongside its parent Record.
type SSEEvent struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	EventIndex int       `json:"event_index"`
	EventType  string    `json:"event_type"`
	Data       string    `json:"data"`
	Timestamp  time.Time `json:"timestamp"`
}

// Record is the full captured-request row: everything known about one
// request/response pair observed by the proxy. Fields are filled in
// incrementally as the flow progresses — see internal/flow.
type Record struct {
	ID       string    `json:"id"`
	Sequence int64     `json:"sequence"`

	Timestamp time.Time `json:"timestamp"`
	AgentType string    `json:"agent_type"`
	SourcePID *int      `json:"source_pid"`

	Method string `json:"method"`
	URL    string `json:"url"`
	Host   string `json:"host"`
	Path   string `json:"path"`

	RequestHeaders map[string]string `json:"request_headers"`
	RequestBody    *string           `json:"request_body"`
	RequestSize    int64             `json:"request_size"`

	StatusCode      *int              `json:"status_code"`
	ResponseHeaders map[string]string `json:"response_headers"`
	ResponseBody    *string           `json:"response_body"`
	ResponseSize    int64             `json:"response_size"`

	SSEEvents []SSEEvent `json:"sse_events,omitempty"`

	DurationMs *float64 `json:"duration_ms"`
	TTFBMs     *float64 `json:"ttfb_ms"`

	ProtocolType string  `json:"protocol_type"`
	APIProvider  *string `json:"api_provider"`
	SessionID    *string `json:"session_id"`
	ConversationID *string `json:"conversation_id"`
	IsStreaming  bool    `json:"is_streaming"`
}

// Summary is the lightweight projection of a Record used for list views —
// it omits the request/response bodies and SSE events so listing many
// requests stays cheap.
type Summary struct {
	ID           string    `json:"id"`
	Sequence     int64     `json:"sequence"`
	Timestamp    time.Time `json:"timestamp"`
	AgentType    string    `json:"agent_type"`
	Method       string    `json:"method"`
	Host         string    `json:"host"`
	Path         string    `json:"path"`
	StatusCode   *int      `json:"status_code"`
	DurationMs   *float64  `json:"duration_ms"`
	ProtocolType string    `json:"protocol_type"`
	APIProvider  *string   `json:"api_provider"`
	SessionID    *string   `json:"session_id"`
	IsStreaming  bool      `json:"is_streaming"`
	RequestSize  int64     `json:"request_size"`
	ResponseSize int64     `json:"response_size"`
}

// ToSummary projects a Record down to its Summary view.
func (r *Record) ToSummary() Summary {
	return Summary{
		ID:           r.ID,
		Sequence:     r.Sequence,
		Timestamp:    r.Timestamp,
		AgentType:    r.AgentType,
		Method:       r.Method,
		Host:         r.Host,
		Path:         r.Path,
		StatusCode:   r.StatusCode,
		DurationMs:   r.DurationMs,
		ProtocolType: r.ProtocolType,
		APIProvider:  r.APIProvider,
		SessionID:    r.SessionID,
		IsStreaming:  r.IsStreaming,
		RequestSize:  r.RequestSize,
		ResponseSize: r.ResponseSize,
	}
}

// NewID returns a fresh record or event id.
func NewID() string {
	return uuid.NewString()
}
