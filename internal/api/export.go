package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/agentprobe/agentprobe/internal/model"
	"github.com/agentprobe/agentprobe/internal/store"
)

// harLog is the minimal HAR 1.2 shape this export cares about.
type harLog struct {
	Log harLogBody `json:"log"`
}

type harLogBody struct {
	Version string     `json:"version"`
	Creator harCreator `json:"creator"`
	Entries []harEntry `json:"entries"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harEntry struct {
	StartedDateTime string       `json:"startedDateTime"`
	Time            float64      `json:"time"`
	Request         harRequest   `json:"request"`
	Response        harResponse  `json:"response"`
	Cache           struct{}     `json:"cache"`
	Timings         harTimings   `json:"timings"`
}

type harHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type harRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	HTTPVersion string       `json:"httpVersion"`
	Headers     []harHeader  `json:"headers"`
	QueryString []harHeader  `json:"queryString"`
	BodySize    int          `json:"bodySize"`
	PostData    *harPostData `json:"postData,omitempty"`
}

type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type harResponse struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []harHeader `json:"headers"`
	Content     harContent  `json:"content"`
	BodySize    int         `json:"bodySize"`
}

type harTimings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

// handleExportHAR implements GET /api/export/har — every captured
// request/response pair as a HAR 1.2 log, importable into browser
// devtools or any HAR-aware tool.
func (a *API) handleExportHAR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	summaries, err := a.store.ListRequests(nil, "sequence ASC", 10000, 0)
	if err != nil {
		slog.Error("api: export har failed listing requests", "error", err)
		http.Error(w, "failed to export har", http.StatusInternalServerError)
		return
	}

	entries := make([]harEntry, 0, len(summaries))
	for _, s := range summaries {
		rec, err := a.store.GetRequest(s.ID)
		if err != nil || rec == nil {
			continue
		}
		entries = append(entries, toHAREntry(rec))
	}

	writeJSON(w, http.StatusOK, harLog{Log: harLogBody{
		Version: "1.2",
		Creator: harCreator{Name: "AgentProbe", Version: "0.1.0"},
		Entries: entries,
	}})
}

func toHAREntry(rec *model.Record) harEntry {
	durationMs := 0.0
	if rec.DurationMs != nil {
		durationMs = *rec.DurationMs
	}

	var postData *harPostData
	bodySize := 0
	if rec.RequestBody != nil {
		bodySize = len(*rec.RequestBody)
		postData = &harPostData{
			MimeType: rec.RequestHeaders["content-type"],
			Text:     *rec.RequestBody,
		}
	}

	statusCode := 0
	if rec.StatusCode != nil {
		statusCode = *rec.StatusCode
	}

	respText := ""
	if rec.ResponseBody != nil {
		respText = *rec.ResponseBody
	}

	return harEntry{
		StartedDateTime: rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Time:            durationMs,
		Request: harRequest{
			Method:      rec.Method,
			URL:         rec.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     toHARHeaders(rec.RequestHeaders),
			QueryString: []harHeader{},
			BodySize:    bodySize,
			PostData:    postData,
		},
		Response: harResponse{
			Status:      statusCode,
			HTTPVersion: "HTTP/1.1",
			Headers:     toHARHeaders(rec.ResponseHeaders),
			Content: harContent{
				Size:     len(respText),
				MimeType: rec.ResponseHeaders["content-type"],
				Text:     respText,
			},
			BodySize: len(respText),
		},
		Timings: harTimings{Wait: durationMs},
	}
}

func toHARHeaders(h map[string]string) []harHeader {
	out := make([]harHeader, 0, len(h))
	for k, v := range h {
		out = append(out, harHeader{Name: k, Value: v})
	}
	return out
}

// handleExportCurl implements GET /api/export/curl/{id} — a shell-quoted
// curl command that reproduces the captured request.
func (a *API) handleExportCurl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/export/curl/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	rec, err := a.store.GetRequest(id)
	if err != nil {
		http.Error(w, "failed to get request", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"curl": toCurlCommand(rec)})
}

func toCurlCommand(rec *model.Record) string {
	parts := []string{"curl", "-X", rec.Method, shellQuote(rec.URL)}
	for name, value := range rec.RequestHeaders {
		parts = append(parts, "-H", shellQuote(name+": "+value))
	}
	if rec.RequestBody != nil && *rec.RequestBody != "" {
		parts = append(parts, "--data-raw", shellQuote(*rec.RequestBody))
	}
	return strings.Join(parts, " ")
}

// shellQuote produces a POSIX single-quoted token, the same escaping
// shlex.quote performs in the system this was ported from: any character
// outside [A-Za-z0-9_@%+=:,./-] forces quoting, not just whitespace and
// the obvious quote/backslash/expansion characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if isShellSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isShellSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case strings.ContainsRune("_@%+=:,./-", r):
		default:
			return false
		}
	}
	return true
}

// statsWithHumanSizes is stats() plus human-readable byte totals, a
// convenience this implementation adds for CLI/UI display.
type statsWithHumanSizes struct {
	store.Stats
	TotalRequestBytesHuman  string `json:"total_request_bytes_human"`
	TotalResponseBytesHuman string `json:"total_response_bytes_human"`
}

func humanizeStats(s store.Stats) statsWithHumanSizes {
	return statsWithHumanSizes{
		Stats:                   s,
		TotalRequestBytesHuman:  humanize.Bytes(uint64(s.TotalRequestBytes)),
		TotalResponseBytesHuman: humanize.Bytes(uint64(s.TotalResponseBytes)),
	}
}
