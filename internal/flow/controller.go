// Package flow drives one captured HTTP exchange through the three proxy
// hooks — request, response headers, response — binding together the SSE
// parser, classifier, session tracker, store, and broadcast hub. It is the
// piece that turns a live proxied flow into a persisted, broadcast Record.
package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentprobe/agentprobe/internal/classifier"
	"github.com/agentprobe/agentprobe/internal/hub"
	"github.com/agentprobe/agentprobe/internal/model"
	"github.com/agentprobe/agentprobe/internal/session"
	"github.com/agentprobe/agentprobe/internal/sse"
	"github.com/agentprobe/agentprobe/internal/store"
)

// DefaultMaxBodySize is applied when a Controller is built with a zero cap.
const DefaultMaxBodySize = 10 * 1024 * 1024 // 10 MiB

// state holds everything the controller tracks for one in-flight flow.
// Every field is only ever touched from the hook callbacks belonging to
// this flow, which the proxy library invokes sequentially for a given
// flow — so state needs no internal locking. Cross-flow data (the
// Controller's pending map, sequence counter, store, hub) is what needs
// synchronization, and that lives on Controller instead.
type state struct {
	record    *model.Record
	startTime time.Time
	isSSE     bool
	parser    *sse.Parser
	events    []model.SSEEvent
	ttfbSet   bool

	tasks chan func()
}

// Controller binds the capture pipeline together. Create one per running
// proxy; it is safe for concurrent use across flows.
type Controller struct {
	store   *store.Store
	hub     *hub.Hub
	tracker *session.SafeTracker

	maxBodySize int64

	mu      sync.Mutex
	pending map[string]*state

	seq atomic.Int64
}

// New builds a Controller. maxBodySize <= 0 selects DefaultMaxBodySize.
func New(st *store.Store, h *hub.Hub, tracker *session.SafeTracker, maxBodySize int64) *Controller {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Controller{
		store:       st,
		hub:         h,
		tracker:     tracker,
		maxBodySize: maxBodySize,
		pending:     make(map[string]*state),
	}
}

// RequestIn is what the proxy adapter hands the controller on the request
// hook. headers is already a flattened case-preserving map.
type RequestIn struct {
	Method  string
	URL     string
	Host    string
	Path    string
	Headers map[string]string
	Body    io.Reader
}

// HandleRequest implements the request hook. flowID must be a stable
// identifier for the lifetime of this one flow (e.g. a pointer address or
// a counter handed out by the proxy adapter) — it is never persisted, only
// used as the pending-map key.
func (c *Controller) HandleRequest(flowID string, in RequestIn) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("flow: request hook panicked", "error", r)
		}
	}()

	bodyText, trueSize, err := readBounded(in.Body, c.maxBodySize)
	if err != nil {
		slog.Warn("flow: failed reading request body", "error", err)
	}

	var bodyDict map[string]any
	if bodyText != "" {
		_ = json.Unmarshal([]byte(bodyText), &bodyDict) // malformed JSON leaves bodyDict nil, by design
	}

	agentType := classifier.DetectAgent(in.Headers)
	protocolType, apiProvider := classifier.DetectProtocol(in.Host, in.Path, bodyDict)

	now := time.Now()
	var sessionID *string
	if c.tracker != nil {
		provider := ""
		if apiProvider != nil {
			provider = *apiProvider
		}
		info := c.tracker.Track(agentType, in.Host, protocolType, provider, now)
		sessionID = &info.SessionID
	}

	rec := &model.Record{
		ID:             model.NewID(),
		Sequence:       c.seq.Add(1),
		Timestamp:      now,
		AgentType:      agentType,
		Method:         in.Method,
		URL:            in.URL,
		Host:           in.Host,
		Path:           in.Path,
		RequestHeaders: in.Headers,
		RequestSize:    trueSize,
		ProtocolType:   protocolType,
		APIProvider:    apiProvider,
		SessionID:      sessionID,
	}
	if bodyText != "" {
		rec.RequestBody = &bodyText
	}

	st := &state{
		record:    rec,
		startTime: time.Now(),
		tasks:     make(chan func(), 8),
	}
	go drain(st.tasks)

	c.mu.Lock()
	c.pending[flowID] = st
	c.mu.Unlock()

	st.tasks <- func() {
		if err := c.store.SaveRequest(rec); err != nil {
			slog.Error("flow: failed saving request", "id", rec.ID, "error", err)
			return
		}
		if c.hub != nil {
			c.hub.BroadcastNewRequest(rec.ToSummary())
		}
	}
}

// HandleResponseHeaders implements the response-headers hook. If
// contentType indicates an SSE stream, the flow is marked streaming and a
// fresh C1 parser is attached; the returned callback should be wired as
// the proxy adapter's per-chunk stream callback. For any other content
// type, or a flow with no pending state, it returns nil.
func (c *Controller) HandleResponseHeaders(flowID string, contentType string) (streamCallback func(chunk []byte)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("flow: response-headers hook panicked", "error", r)
		}
	}()

	c.mu.Lock()
	st := c.pending[flowID]
	c.mu.Unlock()
	if st == nil {
		return nil
	}

	if !classifier.IsSSEResponse(contentType) {
		return nil
	}
	st.isSSE = true
	st.parser = sse.NewParser()

	return func(chunk []byte) {
		c.feedChunk(flowID, chunk)
	}
}

func (c *Controller) feedChunk(flowID string, chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("flow: stream callback panicked", "error", r)
		}
	}()

	c.mu.Lock()
	st := c.pending[flowID]
	c.mu.Unlock()
	if st == nil {
		return
	}

	if !st.ttfbSet {
		st.ttfbSet = true
		ttfb := time.Since(st.startTime).Seconds() * 1000
		st.record.TTFBMs = &ttfb
	}

	if st.parser != nil && len(chunk) > 0 {
		st.events = append(st.events, st.parser.Feed(chunk)...)
	}
}

// ResponseIn is what the proxy adapter hands the controller on the
// response hook.
type ResponseIn struct {
	StatusCode int
	Headers    map[string]string
	Body       io.Reader // nil when the flow was streamed via HandleResponseHeaders
}

// HandleResponse implements the response hook. A response with no
// matching pending flow (e.g. a response hook firing without ever seeing
// the request hook) is a no-op, matching the behavior of the system this
// was adapted from.
func (c *Controller) HandleResponse(flowID string, in ResponseIn) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("flow: response hook panicked", "error", r)
		}
	}()

	c.mu.Lock()
	st, ok := c.pending[flowID]
	if ok {
		delete(c.pending, flowID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	rec := st.record
	statusCode := in.StatusCode
	rec.StatusCode = &statusCode
	rec.ResponseHeaders = in.Headers
	durationMs := time.Since(st.startTime).Seconds() * 1000
	rec.DurationMs = &durationMs

	var sseEvents []model.SSEEvent

	if st.isSSE {
		rec.IsStreaming = true
		if st.parser != nil {
			st.events = append(st.events, st.parser.Flush()...)
		}
		body, trueSize := truncateText(sse.Canonicalize(st.events), c.maxBodySize)
		rec.ResponseBody = &body
		rec.ResponseSize = trueSize

		sseEvents = make([]model.SSEEvent, len(st.events))
		for i, e := range st.events {
			sseEvents[i] = model.SSEEvent{
				ID:         model.NewID(),
				RequestID:  rec.ID,
				EventIndex: i,
				EventType:  defaultEventType(e.Event),
				Data:       e.Data,
				Timestamp:  time.Now(),
			}
		}
		rec.SSEEvents = sseEvents
	} else {
		bodyText, trueSize, err := readBounded(in.Body, c.maxBodySize)
		if err != nil {
			slog.Warn("flow: failed reading response body", "error", err)
		}
		if bodyText != "" {
			rec.ResponseBody = &bodyText
		}
		rec.ResponseSize = trueSize
	}

	fields := map[string]any{
		"status_code":      rec.StatusCode,
		"response_headers": marshalHeaders(rec.ResponseHeaders),
		"response_body":    rec.ResponseBody,
		"response_size":    rec.ResponseSize,
		"sse_events":       marshalSSEEvents(rec.SSEEvents),
		"duration_ms":      rec.DurationMs,
		"ttfb_ms":          rec.TTFBMs,
		"is_streaming":     boolToInt(rec.IsStreaming),
	}

	// Enqueued after the request-hook task on the same channel, so the
	// store sees INSERT before UPDATE for this flow's row.
	st.tasks <- func() {
		if err := c.store.UpdateRequest(rec.ID, fields); err != nil {
			slog.Error("flow: failed updating request", "id", rec.ID, "error", err)
		}
		if len(sseEvents) > 0 {
			if err := c.store.SaveSSEEvents(sseEvents); err != nil {
				slog.Error("flow: failed saving sse events", "id", rec.ID, "error", err)
			}
		}
		if c.hub != nil {
			c.hub.BroadcastRequestComplete(rec.ToSummary())
			for _, e := range sseEvents {
				c.hub.BroadcastSSEEvent(rec.ID, e)
			}
		}
	}
	close(st.tasks)
}

// drain runs a flow's tasks in submission order on a dedicated goroutine,
// the fire-and-forget scheduler the ordering guarantee depends on: a
// successor task is only ever sent to the channel after its predecessor
// was, never after it finished, so HandleRequest and HandleResponse never
// block on storage or hub I/O.
func drain(tasks chan func()) {
	for task := range tasks {
		task()
	}
}

func defaultEventType(eventName string) string {
	if eventName == "" {
		return "message"
	}
	return eventName
}

func marshalHeaders(h map[string]string) any {
	if len(h) == 0 {
		return nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil
	}
	return string(b)
}

// marshalSSEEvents mirrors original_source's addon.py, which embeds
// captured.sse_events directly in the same update_fields as the rest of
// the response so GetRequest returns them on the Record without a
// separate join.
func marshalSSEEvents(events []model.SSEEvent) any {
	if len(events) == 0 {
		return nil
	}
	b, err := json.Marshal(events)
	if err != nil {
		return nil
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// readBounded copies up to limit bytes of r into a string, appending a
// truncation marker if more remained. It always returns the true observed
// byte count, even when the returned text was truncated.
func readBounded(r io.Reader, limit int64) (text string, trueSize int64, err error) {
	if r == nil {
		return "", 0, nil
	}

	var buf bytes.Buffer
	limited := io.LimitReader(r, limit)
	n, err := io.Copy(&buf, limited)
	if err != nil {
		return "", n, err
	}

	// Detect whether more data existed beyond the cap without buffering it.
	var probe [1]byte
	extra, _ := r.Read(probe[:])

	out := buf.String()
	if extra > 0 {
		trailing, _ := io.Copy(io.Discard, r)
		total := n + int64(extra) + trailing
		out = fmt.Sprintf("%s... [truncated, true_size=%d]", out, total)
		return out, total, nil
	}

	return out, n, nil
}

// truncateText applies the same body-size cap to an already-in-memory
// string (the reconstructed SSE canonical form, which has no underlying
// io.Reader to bound at read time).
func truncateText(s string, limit int64) (text string, trueSize int64) {
	trueSize = int64(len(s))
	if trueSize <= limit {
		return s, trueSize
	}
	return fmt.Sprintf("%s... [truncated, true_size=%d]", s[:limit], trueSize), trueSize
}
