package semantic

import "testing"

func TestParseAnthropicRequest(t *testing.T) {
	body := map[string]any{
		"model":      "claude-opus-4",
		"max_tokens": float64(1024),
		"stream":     true,
		"system":     "be helpful",
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
		"tools": []any{
			map[string]any{"name": "bash"},
		},
	}

	got := ParseAnthropicRequest(body)
	if got["model"] != "claude-opus-4" {
		t.Errorf("model = %v", got["model"])
	}
	if got["tool_count"] != 1 {
		t.Errorf("tool_count = %v", got["tool_count"])
	}
	if got["has_tool_use"] != true {
		t.Errorf("has_tool_use = %v", got["has_tool_use"])
	}
	if got["message_count"] != 1 {
		t.Errorf("message_count = %v", got["message_count"])
	}
}

func TestParseAnthropicResponse_ToolUse(t *testing.T) {
	body := map[string]any{
		"id":          "msg_1",
		"role":        "assistant",
		"stop_reason": "tool_use",
		"content": []any{
			map[string]any{"type": "text", "text": "let me check"},
			map[string]any{"type": "tool_use", "id": "tool_1", "name": "bash", "input": map[string]any{"cmd": "ls"}},
		},
		"usage": map[string]any{"input_tokens": float64(10), "output_tokens": float64(5)},
	}

	got := ParseAnthropicResponse(body)
	if got["tool_call_count"] != 1 {
		t.Fatalf("tool_call_count = %v", got["tool_call_count"])
	}
	if got["text"] != "let me check" {
		t.Errorf("text = %v", got["text"])
	}
}

func TestParseAnthropicSSEEvent_ContentBlockDelta(t *testing.T) {
	data := map[string]any{
		"index": float64(0),
		"delta": map[string]any{"type": "text_delta", "text": "hi"},
	}
	got := ParseAnthropicSSEEvent("content_block_delta", data)
	if got["text"] != "hi" {
		t.Errorf("text = %v", got["text"])
	}
	if got["delta_type"] != "text_delta" {
		t.Errorf("delta_type = %v", got["delta_type"])
	}
}

func TestParseOpenAIResponse_ToolCalls(t *testing.T) {
	body := map[string]any{
		"id": "chatcmpl-1",
		"choices": []any{
			map[string]any{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"tool_calls": []any{
						map[string]any{
							"id":       "call_1",
							"function": map[string]any{"name": "exec", "arguments": "{}"},
						},
					},
				},
			},
		},
	}

	got := ParseOpenAIResponse(body)
	if got["tool_call_count"] != 1 {
		t.Fatalf("tool_call_count = %v", got["tool_call_count"])
	}
	if got["finish_reason"] != "tool_calls" {
		t.Errorf("finish_reason = %v", got["finish_reason"])
	}
}

func TestParseOpenAISSEEvent_ChatChunk(t *testing.T) {
	data := map[string]any{
		"object": "chat.completion.chunk",
		"id":     "chatcmpl-1",
		"choices": []any{
			map[string]any{"delta": map[string]any{"content": "hi"}},
		},
	}
	got := ParseOpenAISSEEvent(data)
	if got["event_type"] != "chat.completion.chunk" {
		t.Errorf("event_type = %v", got["event_type"])
	}
	if got["text"] != "hi" {
		t.Errorf("text = %v", got["text"])
	}
}

func TestParseOpenAISSEEvent_ResponsesAPI(t *testing.T) {
	data := map[string]any{
		"type": "response.output_item.done",
		"item": map[string]any{"type": "function_call", "name": "bash", "call_id": "c1", "arguments": "{}"},
	}
	got := ParseOpenAISSEEvent(data)
	if got["tool_name"] != "bash" {
		t.Errorf("tool_name = %v", got["tool_name"])
	}
}

func TestParseGoogleRequest(t *testing.T) {
	body := map[string]any{
		"model": "gemini-2.0-flash",
		"contents": []any{
			map[string]any{"role": "user", "parts": []any{map[string]any{"text": "hi"}}},
		},
		"generationConfig": map[string]any{"maxOutputTokens": float64(512)},
	}
	got := ParseGoogleRequest(body)
	if got["contents_count"] != 1 {
		t.Errorf("contents_count = %v", got["contents_count"])
	}
	if got["max_output_tokens"] != 512 {
		t.Errorf("max_output_tokens = %v", got["max_output_tokens"])
	}
}

func TestParseGoogleResponse_FunctionCall(t *testing.T) {
	body := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{
						map[string]any{"functionCall": map[string]any{"name": "search", "args": map[string]any{"q": "go"}}},
					},
				},
				"finishReason": "STOP",
			},
		},
	}
	got := ParseGoogleResponse(body)
	if got["function_call_count"] != 1 {
		t.Fatalf("function_call_count = %v", got["function_call_count"])
	}
}

func TestParseMCPMessage_ToolCallRequest(t *testing.T) {
	body := map[string]any{
		"jsonrpc": "2.0",
		"id":      float64(1),
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "bash",
			"arguments": map[string]any{"cmd": "ls"},
		},
	}
	got := ParseMCPMessage(body)
	if got["message_type"] != "request" {
		t.Errorf("message_type = %v", got["message_type"])
	}
	if got["category"] != "tools" {
		t.Errorf("category = %v", got["category"])
	}
	params := got["params"].(map[string]any)
	if params["tool_name"] != "bash" {
		t.Errorf("tool_name = %v", params["tool_name"])
	}
}

func TestParseMCPMessage_Notification(t *testing.T) {
	body := map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"}
	got := ParseMCPMessage(body)
	if got["message_type"] != "notification" {
		t.Errorf("message_type = %v", got["message_type"])
	}
}

func TestParseMCPMessage_ErrorResponse(t *testing.T) {
	body := map[string]any{
		"jsonrpc": "2.0",
		"id":      float64(2),
		"error":   map[string]any{"code": float64(-32601), "message": "method not found"},
	}
	got := ParseMCPMessage(body)
	if got["is_error"] != true {
		t.Errorf("is_error = %v", got["is_error"])
	}
	if got["error_code"] != -32601 {
		t.Errorf("error_code = %v", got["error_code"])
	}
}

func TestClassifyMCPMethod_PrefixFallback(t *testing.T) {
	if got := ClassifyMCPMethod("tools/unknown_variant"); got != "tools" {
		t.Errorf("ClassifyMCPMethod = %q, want tools", got)
	}
	if got := ClassifyMCPMethod("totally/custom/thing"); got != "custom" {
		t.Errorf("ClassifyMCPMethod = %q, want custom", got)
	}
}
