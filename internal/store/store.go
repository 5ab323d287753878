// Package store persists captured requests and their SSE events to a
// SQLite database, and serves the filtered/paginated list queries the HTTP
// API needs. It is the single source of truth — there is no separate
// durable log underneath it, unlike the hash-chained JSONL layer this
// package's SQLite connection handling was adapted from.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/agentprobe/agentprobe/internal/model"
)

// allowedFilters is the fixed vocabulary of list-query filter keys. Any
// caller-supplied key outside this set is silently ignored rather than
// rejected — callers build filters from a fixed UI, not arbitrary input.
var allowedFilters = map[string]string{
	"agent_type":    "agent_type = ?",
	"host":          "host = ?",
	"method":        "method = ?",
	"protocol_type": "protocol_type = ?",
	"status_code":   "status_code = ?",
	"is_streaming":  "is_streaming = ?",
	"session_id":    "session_id = ?",
	"api_provider":  "api_provider = ?",
	"search":        "(url LIKE ? OR host LIKE ? OR path LIKE ?)",
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	sequence INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	source_pid INTEGER,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	host TEXT NOT NULL,
	path TEXT NOT NULL,
	request_headers TEXT NOT NULL DEFAULT '{}',
	request_body TEXT,
	request_size INTEGER NOT NULL DEFAULT 0,
	status_code INTEGER,
	response_headers TEXT,
	response_body TEXT,
	response_size INTEGER NOT NULL DEFAULT 0,
	sse_events TEXT,
	duration_ms REAL,
	ttfb_ms REAL,
	protocol_type TEXT NOT NULL DEFAULT 'http',
	api_provider TEXT,
	session_id TEXT,
	conversation_id TEXT,
	is_streaming INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS sse_events (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	event_index INTEGER NOT NULL,
	event_type TEXT NOT NULL DEFAULT 'message',
	data TEXT NOT NULL DEFAULT '',
	timestamp TEXT NOT NULL,
	FOREIGN KEY (request_id) REFERENCES requests(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);
CREATE INDEX IF NOT EXISTS idx_requests_host ON requests(host);
CREATE INDEX IF NOT EXISTS idx_requests_agent_type ON requests(agent_type);
CREATE INDEX IF NOT EXISTS idx_sse_events_request_id ON sse_events(request_id);
`

const summaryColumns = "id, sequence, timestamp, method, host, path, status_code, " +
	"agent_type, protocol_type, duration_ms, response_size, request_size, is_streaming, api_provider, session_id"

// Store wraps a SQLite-backed requests/sse_events database.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the database at path, with foreign
// keys enforced and WAL mode for concurrent reader/writer access (the
// flow controller writes, the HTTP API reads).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRequest inserts a new Record. Fields not yet known (response side)
// are expected to be nil/zero and are filled in later via UpdateRequest.
func (s *Store) SaveRequest(r *model.Record) error {
	reqHeaders, _ := json.Marshal(r.RequestHeaders)
	respHeaders := marshalOrNil(r.ResponseHeaders)
	sseEvents := marshalOrNil(r.SSEEvents)

	_, err := s.db.Exec(`
		INSERT INTO requests (
			id, sequence, timestamp, agent_type, source_pid,
			method, url, host, path,
			request_headers, request_body, request_size,
			status_code, response_headers, response_body, response_size,
			sse_events, duration_ms, ttfb_ms,
			protocol_type, api_provider,
			session_id, conversation_id, is_streaming
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Sequence, r.Timestamp.UTC().Format(time.RFC3339Nano), r.AgentType, r.SourcePID,
		r.Method, r.URL, r.Host, r.Path,
		string(reqHeaders), r.RequestBody, r.RequestSize,
		r.StatusCode, respHeaders, r.ResponseBody, r.ResponseSize,
		sseEvents, r.DurationMs, r.TTFBMs,
		r.ProtocolType, r.APIProvider,
		r.SessionID, r.ConversationID, boolToInt(r.IsStreaming),
	)
	if err != nil {
		return fmt.Errorf("saving request %s: %w", r.ID, err)
	}
	return nil
}

// SaveSSEEvents batch-inserts the decoded events belonging to one request.
func (s *Store) SaveSSEEvents(events []model.SSEEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning sse_events transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO sse_events (id, request_id, event_index, event_type, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing sse_events insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.ID, e.RequestID, e.EventIndex, e.EventType, e.Data, e.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("inserting sse event: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateRequest patches an existing Record with the given columns. Keys
// must be valid requests column names; this is called only from the flow
// controller with a fixed set of known fields, never from user input.
func (s *Store) UpdateRequest(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for k, v := range fields {
		sets = append(sets, k+" = ?")
		args = append(args, v)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE requests SET %s WHERE id = ?", strings.Join(sets, ", "))
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("updating request %s: %w", id, err)
	}
	return nil
}

// GetRequest returns the full Record for id, or nil if no such request exists.
func (s *Store) GetRequest(id string) (*model.Record, error) {
	row := s.db.QueryRow(`SELECT
		id, sequence, timestamp, agent_type, source_pid,
		method, url, host, path,
		request_headers, request_body, request_size,
		status_code, response_headers, response_body, response_size,
		sse_events, duration_ms, ttfb_ms,
		protocol_type, api_provider,
		session_id, conversation_id, is_streaming
		FROM requests WHERE id = ?`, id)

	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request %s: %w", id, err)
	}
	return r, nil
}

// GetSSEEvents returns every decoded event for requestID, ordered by
// event_index.
func (s *Store) GetSSEEvents(requestID string) ([]model.SSEEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, request_id, event_index, event_type, data, timestamp
		FROM sse_events WHERE request_id = ? ORDER BY event_index`, requestID)
	if err != nil {
		return nil, fmt.Errorf("listing sse events for %s: %w", requestID, err)
	}
	defer rows.Close()

	var events []model.SSEEvent
	for rows.Next() {
		var e model.SSEEvent
		var ts string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.EventIndex, &e.EventType, &e.Data, &ts); err != nil {
			return nil, fmt.Errorf("scanning sse event: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListRequests returns a filtered, ordered, paginated page of Summaries.
// Unknown filter keys are ignored. orderBy must be a caller-trusted SQL
// fragment (e.g. "sequence DESC") — never built from request input.
func (s *Store) ListRequests(filters map[string]any, orderBy string, limit, offset int) ([]model.Summary, error) {
	var clauses []string
	var args []any

	for key, value := range filters {
		clause, ok := allowedFilters[key]
		if !ok || value == nil {
			continue
		}
		clauses = append(clauses, clause)
		switch key {
		case "search":
			like := fmt.Sprintf("%%%v%%", value)
			args = append(args, like, like, like)
		case "is_streaming":
			args = append(args, boolToInt(truthy(value)))
		default:
			args = append(args, value)
		}
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	if orderBy == "" {
		orderBy = "sequence DESC"
	}

	query := fmt.Sprintf("SELECT %s FROM requests%s ORDER BY %s LIMIT ? OFFSET ?", summaryColumns, where, orderBy)
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		var sm model.Summary
		var ts string
		var streaming int
		if err := rows.Scan(&sm.ID, &sm.Sequence, &ts, &sm.Method, &sm.Host, &sm.Path, &sm.StatusCode,
			&sm.AgentType, &sm.ProtocolType, &sm.DurationMs, &sm.ResponseSize, &sm.RequestSize, &streaming,
			&sm.APIProvider, &sm.SessionID); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		sm.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		sm.IsStreaming = streaming != 0
		out = append(out, sm)
	}
	return out, rows.Err()
}

// ClearAll deletes every request and sse event. sse_events is deleted
// first since requests is the parent of the cascade foreign key.
func (s *Store) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning clear transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sse_events"); err != nil {
		return fmt.Errorf("clearing sse_events: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM requests"); err != nil {
		return fmt.Errorf("clearing requests: %w", err)
	}
	return tx.Commit()
}

// Stats is the aggregate summary returned by the /api/stats endpoint.
type Stats struct {
	TotalRequests      int64   `json:"total_requests"`
	UniqueHosts        int64   `json:"unique_hosts"`
	UniqueAgents       int64   `json:"unique_agents"`
	TotalRequestBytes  int64   `json:"total_request_bytes"`
	TotalResponseBytes int64   `json:"total_response_bytes"`
	AvgDurationMs      float64 `json:"avg_duration_ms"`
	StreamingCount     int64   `json:"streaming_count"`
}

// Stats computes aggregate counters over the whole dataset.
func (s *Store) Stats() (Stats, error) {
	var stats Stats
	var totalReqBytes, totalRespBytes sql.NullInt64
	var avgDuration sql.NullFloat64

	row := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(DISTINCT host),
			COUNT(DISTINCT agent_type),
			SUM(request_size),
			SUM(response_size),
			AVG(duration_ms),
			SUM(CASE WHEN is_streaming = 1 THEN 1 ELSE 0 END)
		FROM requests`)

	err := row.Scan(&stats.TotalRequests, &stats.UniqueHosts, &stats.UniqueAgents,
		&totalReqBytes, &totalRespBytes, &avgDuration, &stats.StreamingCount)
	if err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}

	stats.TotalRequestBytes = totalReqBytes.Int64
	stats.TotalResponseBytes = totalRespBytes.Int64
	stats.AvgDurationMs = avgDuration.Float64
	return stats, nil
}

func scanRecord(row *sql.Row) (*model.Record, error) {
	var r model.Record
	var ts string
	var reqHeaders string
	var respHeaders, sseEvents sql.NullString
	var streaming int

	err := row.Scan(
		&r.ID, &r.Sequence, &ts, &r.AgentType, &r.SourcePID,
		&r.Method, &r.URL, &r.Host, &r.Path,
		&reqHeaders, &r.RequestBody, &r.RequestSize,
		&r.StatusCode, &respHeaders, &r.ResponseBody, &r.ResponseSize,
		&sseEvents, &r.DurationMs, &r.TTFBMs,
		&r.ProtocolType, &r.APIProvider,
		&r.SessionID, &r.ConversationID, &streaming,
	)
	if err != nil {
		return nil, err
	}

	r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	r.IsStreaming = streaming != 0
	_ = json.Unmarshal([]byte(reqHeaders), &r.RequestHeaders)
	if respHeaders.Valid {
		_ = json.Unmarshal([]byte(respHeaders.String), &r.ResponseHeaders)
	}
	if sseEvents.Valid && sseEvents.String != "" {
		if err := json.Unmarshal([]byte(sseEvents.String), &r.SSEEvents); err != nil {
			slog.Warn("failed to decode stored sse_events", "request_id", r.ID, "error", err)
		}
	}
	return &r, nil
}

func marshalOrNil(v any) any {
	switch x := v.(type) {
	case map[string]string:
		if len(x) == 0 {
			return nil
		}
	case []model.SSEEvent:
		if len(x) == 0 {
			return nil
		}
	}
	b, err := json.Marshal(v)
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

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true" || x == "1"
	default:
		return false
	}
}
