// Package api serves the REST and WebSocket surface of a running
// AgentProbe instance: request listing/filtering, SSE event retrieval,
// on-demand semantic summaries, stats, HAR/curl export, and the live
// feed. Mounted on /api/ and /ws alongside the proxy, mirroring how the
// dashboard package multiplexes its own REST routes on one port.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentprobe/agentprobe/internal/hub"
	"github.com/agentprobe/agentprobe/internal/session"
	"github.com/agentprobe/agentprobe/internal/store"
)

// API wires the store, hub, and session tracker into HTTP handlers.
type API struct {
	store    *store.Store
	hub      *hub.Hub
	tracker  *session.SafeTracker
	headless bool
}

// New builds an API. tracker may be nil if /api/sessions is not needed.
func New(st *store.Store, h *hub.Hub, tracker *session.SafeTracker) *API {
	return &API{store: st, hub: h, tracker: tracker}
}

// SetHeadless controls whether the embedded single-page dashboard is
// mounted at "/". When headless, only /api/ and /ws are served.
func (a *API) SetHeadless(headless bool) {
	a.headless = headless
}

// Handler returns the mux serving every /api/ route plus /ws, and the
// embedded dashboard at "/" unless headless.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/requests", a.handleRequests)
	mux.HandleFunc("/api/requests/", a.handleRequestDetail)
	mux.HandleFunc("/api/stats", a.handleStats)
	mux.HandleFunc("/api/export/har", a.handleExportHAR)
	mux.HandleFunc("/api/export/curl/", a.handleExportCurl)
	mux.HandleFunc("/api/sessions", a.handleSessions)
	mux.HandleFunc("/ws", a.hub.ServeWS)

	if !a.headless {
		mux.HandleFunc("/", a.handleDashboard)
	}

	return mux
}

// handleRequests implements GET /api/requests (filtered, paginated list)
// and DELETE /api/requests (clear all).
func (a *API) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRequests(w, r)
	case http.MethodDelete:
		a.clearRequests(w, r)
	default:
		http.Error(w, "GET or DELETE only", http.StatusMethodNotAllowed)
	}
}

func (a *API) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := map[string]any{}
	for _, key := range []string{"agent_type", "host", "method", "protocol_type", "status_code", "is_streaming", "session_id", "api_provider", "search"} {
		if v := q.Get(key); v != "" {
			filters[key] = v
		}
	}

	orderBy := sanitizeOrderBy(q.Get("order_by"))
	limit := parseIntDefault(q.Get("limit"), 100)
	offset := parseIntDefault(q.Get("offset"), 0)

	rows, err := a.store.ListRequests(filters, orderBy, limit, offset)
	if err != nil {
		slog.Error("api: list requests failed", "error", err)
		http.Error(w, "failed to list requests", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

func (a *API) clearRequests(w http.ResponseWriter, r *http.Request) {
	if err := a.store.ClearAll(); err != nil {
		slog.Error("api: clear requests failed", "error", err)
		http.Error(w, "failed to clear requests", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRequestDetail implements GET /api/requests/{id},
// GET /api/requests/{id}/sse-events, and GET /api/requests/{id}/semantic.
func (a *API) handleRequestDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/sse-events"); ok {
		a.getSSEEvents(w, id)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/semantic"); ok {
		a.getSemanticSummary(w, id)
		return
	}

	a.getRequest(w, rest)
}

func (a *API) getRequest(w http.ResponseWriter, id string) {
	rec, err := a.store.GetRequest(id)
	if err != nil {
		slog.Error("api: get request failed", "id", id, "error", err)
		http.Error(w, "failed to get request", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) getSSEEvents(w http.ResponseWriter, id string) {
	rec, err := a.store.GetRequest(id)
	if err != nil {
		http.Error(w, "failed to get request", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}

	events, err := a.store.GetSSEEvents(id)
	if err != nil {
		slog.Error("api: get sse events failed", "id", id, "error", err)
		http.Error(w, "failed to get sse events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	stats, err := a.store.Stats()
	if err != nil {
		slog.Error("api: stats failed", "error", err)
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, humanizeStats(stats))
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	if a.tracker == nil {
		writeJSON(w, http.StatusOK, []session.Info{})
		return
	}
	if agent := r.URL.Query().Get("agent"); agent != "" {
		writeJSON(w, http.StatusOK, a.tracker.ForAgent(agent))
		return
	}
	writeJSON(w, http.StatusOK, a.tracker.Active(time.Now()))
}

func sanitizeOrderBy(v string) string {
	allowedColumns := map[string]bool{
		"sequence": true, "timestamp": true, "duration_ms": true, "status_code": true,
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return ""
	}
	col := fields[0]
	dir := "DESC"
	if len(fields) > 1 && strings.EqualFold(fields[1], "ASC") {
		dir = "ASC"
	}
	if !allowedColumns[col] {
		return ""
	}
	return col + " " + dir
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
