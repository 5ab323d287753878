package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/agentprobe/agentprobe/internal/model"
	"github.com/agentprobe/agentprobe/internal/semantic"
)

// getSemanticSummary implements GET /api/requests/{id}/semantic. Parsing
// is done on read rather than at capture time: request/response bodies
// are decoded and handed to the matching per-provider parser based on
// the record's protocol_type/api_provider, and for streaming records
// each stored SSE event is summarized the same way.
func (a *API) getSemanticSummary(w http.ResponseWriter, id string) {
	rec, err := a.store.GetRequest(id)
	if err != nil {
		slog.Error("api: get request for semantic summary failed", "id", id, "error", err)
		http.Error(w, "failed to get request", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}

	summary := map[string]any{
		"protocol_type": rec.ProtocolType,
	}

	if req := decodeBody(rec.RequestBody); req != nil {
		if parsed := parseRequest(rec, req); parsed != nil {
			summary["request"] = parsed
		}
	}
	if resp := decodeBody(rec.ResponseBody); resp != nil {
		if parsed := parseResponse(rec, resp); parsed != nil {
			summary["response"] = parsed
		}
	}

	if rec.IsStreaming {
		events, err := a.store.GetSSEEvents(id)
		if err != nil {
			slog.Error("api: get sse events for semantic summary failed", "id", id, "error", err)
			http.Error(w, "failed to get sse events", http.StatusInternalServerError)
			return
		}
		if parsed := parseSSEEvents(rec, events); len(parsed) > 0 {
			summary["sse_events"] = parsed
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

func decodeBody(body *string) map[string]any {
	if body == nil || *body == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(*body), &out); err != nil {
		return nil
	}
	return out
}

func provider(rec *model.Record) string {
	if rec.APIProvider != nil {
		return *rec.APIProvider
	}
	return rec.ProtocolType
}

func parseRequest(rec *model.Record, body map[string]any) map[string]any {
	switch provider(rec) {
	case "anthropic":
		return semantic.ParseAnthropicRequest(body)
	case "openai":
		return semantic.ParseOpenAIRequest(body)
	case "google":
		return semantic.ParseGoogleRequest(body)
	case "mcp":
		return semantic.ParseMCPMessage(body)
	default:
		return nil
	}
}

func parseResponse(rec *model.Record, body map[string]any) map[string]any {
	switch provider(rec) {
	case "anthropic":
		return semantic.ParseAnthropicResponse(body)
	case "openai":
		return semantic.ParseOpenAIResponse(body)
	case "google":
		return semantic.ParseGoogleResponse(body)
	case "mcp":
		return semantic.ParseMCPMessage(body)
	default:
		return nil
	}
}

func parseSSEEvents(rec *model.Record, events []model.SSEEvent) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		var data map[string]any
		if err := json.Unmarshal([]byte(ev.Data), &data); err != nil {
			continue
		}
		var parsed map[string]any
		switch provider(rec) {
		case "anthropic":
			parsed = semantic.ParseAnthropicSSEEvent(ev.EventType, data)
		case "openai":
			parsed = semantic.ParseOpenAISSEEvent(data)
		case "google":
			parsed = semantic.ParseGoogleSSEEvent(data)
		default:
			continue
		}
		if parsed != nil {
			out = append(out, parsed)
		}
	}
	return out
}
