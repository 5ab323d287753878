package classifier

import "testing"

func TestDetectAgent(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "claude code user agent",
			headers: map[string]string{"User-Agent": "claude-code/1.2.3"},
			want:    "claude_code",
		},
		{
			name:    "opencode via x-client-name",
			headers: map[string]string{"X-Client-Name": "opencode-cli"},
			want:    "opencode",
		},
		{
			name:    "gemini cli",
			headers: map[string]string{"User-Agent": "gemini-cli/0.1"},
			want:    "gemini",
		},
		{
			name: "anthropic headers with generic x-app fallback",
			headers: map[string]string{
				"Anthropic-Version": "2023-06-01",
				"X-App":             "cli",
			},
			want: "claude_code",
		},
		{
			name:    "unknown",
			headers: map[string]string{"User-Agent": "curl/8.0"},
			want:    "unknown",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectAgent(tc.headers); got != tc.want {
				t.Errorf("DetectAgent(%v) = %q, want %q", tc.headers, got, tc.want)
			}
		})
	}
}

func TestDetectProtocol_HostBased(t *testing.T) {
	tests := []struct {
		host, path   string
		wantProtocol string
	}{
		{"api.anthropic.com", "/v1/messages", "anthropic"},
		{"api.openai.com", "/v1/chat/completions", "openai"},
		{"generativelanguage.googleapis.com", "/v1beta/models/gemini-pro:generateContent", "google"},
		{"example.com", "/unrelated", "unknown"},
	}

	for _, tc := range tests {
		protocol, _ := DetectProtocol(tc.host, tc.path, nil)
		if protocol != tc.wantProtocol {
			t.Errorf("DetectProtocol(%q, %q) = %q, want %q", tc.host, tc.path, protocol, tc.wantProtocol)
		}
	}
}

func TestDetectProtocol_MCPTakesPriority(t *testing.T) {
	body := map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
	}
	protocol, provider := DetectProtocol("api.anthropic.com", "/v1/messages", body)
	if protocol != "mcp" {
		t.Errorf("protocol = %q, want mcp", protocol)
	}
	if provider != nil {
		t.Errorf("provider = %v, want nil", *provider)
	}
}

func TestDetectProtocol_BodyShapeFallback(t *testing.T) {
	body := map[string]any{"model": "gpt-4", "messages": []any{}}
	protocol, _ := DetectProtocol("proxy.internal.example", "/relay", body)
	if protocol != "openai" {
		t.Errorf("protocol = %q, want openai", protocol)
	}
}

func TestDetectProtocol_RequestBodyJSONRPCResponse(t *testing.T) {
	body := map[string]any{"jsonrpc": "2.0", "id": 2, "result": map[string]any{}}
	protocol, _ := DetectProtocol("localhost", "/mcp", body)
	if protocol != "mcp" {
		t.Errorf("protocol = %q, want mcp", protocol)
	}
}

func TestIsSSEResponse(t *testing.T) {
	if !IsSSEResponse("text/event-stream; charset=utf-8") {
		t.Error("expected true for text/event-stream")
	}
	if IsSSEResponse("application/json") {
		t.Error("expected false for application/json")
	}
	if IsSSEResponse("") {
		t.Error("expected false for empty content-type")
	}
}
