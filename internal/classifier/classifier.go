// Package classifier identifies which coding agent and which LLM wire
// protocol a captured request belongs to, from headers, host, path, and a
// best-effort peek at the body shape. It never inspects enough of the body
// to need full semantic parsing — that's internal/semantic's job.
package classifier

import (
	"regexp"
	"strings"
)

// agentPattern pairs an agent name with the compiled patterns that
// identify it. Order matters: first match wins, so more specific agents
// should be listed ahead of generic ones.
type agentPattern struct {
	name     string
	patterns []*regexp.Regexp
}

var agentPatterns = []agentPattern{
	{
		name: "claude_code",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)claude[-_]?code`),
			regexp.MustCompile(`(?i)claude[-_]?cli`),
			regexp.MustCompile(`(?i)anthropic[-_]?cli`),
		},
	},
	{
		name: "opencode",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)opencode`),
			regexp.MustCompile(`(?i)open[-_]?code`),
		},
	},
	{
		name: "cline",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)cline`),
			regexp.MustCompile(`(?i)vscode.*cline`),
		},
	},
	{
		name: "codex",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)codex`),
			regexp.MustCompile(`(?i)vscode.*codex`),
			regexp.MustCompile(`(?i)openai[-_]?codex`),
		},
	},
	{
		name: "gemini",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)gemini[-_]?cli`),
			regexp.MustCompile(`(?i)google[-_]?gemini`),
		},
	},
}

var claudeCodePatterns = agentPatterns[0].patterns

var (
	anthropicHosts = map[string]bool{"api.anthropic.com": true}
	openAIHosts    = map[string]bool{"api.openai.com": true}
	googleHosts    = map[string]bool{"generativelanguage.googleapis.com": true}

	anthropicPathRe    = regexp.MustCompile(`^/v1/messages`)
	openAIChatPathRe   = regexp.MustCompile(`^/v1/chat/completions`)
	openAIRespPathRe   = regexp.MustCompile(`^/v1/responses`)
	googlePathRe       = regexp.MustCompile(`^/v1beta/models/.+:(generateContent|streamGenerateContent)`)
)

var mcpMethods = map[string]bool{
	"initialize":                  true,
	"initialized":                 true,
	"shutdown":                    true,
	"tools/list":                  true,
	"tools/call":                  true,
	"resources/list":              true,
	"resources/read":              true,
	"prompts/list":                true,
	"prompts/get":                 true,
	"notifications/initialized":   true,
	"notifications/cancelled":     true,
	"completion/complete":         true,
}

// DetectAgent identifies the coding agent from request headers. header
// keys are matched case-insensitively; callers may pass either raw HTTP
// header names or already-lowercased ones.
func DetectAgent(headers map[string]string) string {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToLower(k)] = v
	}

	ua := normalized["user-agent"]
	xClient := normalized["x-client-name"]
	xApp := normalized["x-app"]
	combined := ua + " " + xClient + " " + xApp

	for _, ap := range agentPatterns {
		for _, p := range ap.patterns {
			if p.MatchString(combined) {
				return ap.name
			}
		}
	}

	_, hasVersion := normalized["anthropic-version"]
	_, hasBeta := normalized["anthropic-beta"]
	if hasVersion || hasBeta {
		for _, p := range claudeCodePatterns {
			if p.MatchString(combined) {
				return "claude_code"
			}
		}
		lowerApp := strings.ToLower(xApp)
		if lowerApp == "cli" || lowerApp == "claude-code" {
			return "claude_code"
		}
	}

	return "unknown"
}

// DetectProtocol identifies the wire protocol ("anthropic", "openai",
// "google", "mcp", or "unknown") and, where determinable, the upstream
// API provider name. body may be nil when the request carried no JSON
// payload or it failed to parse — detection falls back to host/path alone.
func DetectProtocol(host, path string, body map[string]any) (protocol string, provider *string) {
	hostLower := strings.ToLower(strings.SplitN(host, ":", 2)[0])
	pathClean := strings.SplitN(path, "?", 2)[0]

	if body != nil && isMCPMessage(body) {
		return "mcp", nil
	}

	if anthropicHosts[hostLower] || anthropicPathRe.MatchString(pathClean) {
		if strings.Contains(hostLower, "anthropic") {
			return "anthropic", strPtr("anthropic")
		}
		return "anthropic", guessProvider(hostLower)
	}

	if openAIHosts[hostLower] || openAIChatPathRe.MatchString(pathClean) || openAIRespPathRe.MatchString(pathClean) {
		if strings.Contains(hostLower, "openai") {
			return "openai", strPtr("openai")
		}
		return "openai", guessProvider(hostLower)
	}

	if googleHosts[hostLower] || googlePathRe.MatchString(pathClean) {
		return "google", strPtr("google")
	}

	if body != nil {
		_, hasModel := body["model"]
		_, hasMessages := body["messages"]
		if hasModel && hasMessages {
			if meta, ok := body["metadata"]; ok {
				if strings.Contains(toString(meta), "anthropic-version") {
					return "anthropic", guessProvider(hostLower)
				}
			}
			return "openai", guessProvider(hostLower)
		}
		_, hasContents := body["contents"]
		_, hasGenConfig := body["generationConfig"]
		if hasContents && hasGenConfig {
			return "google", guessProvider(hostLower)
		}
	}

	return "unknown", nil
}

// IsSSEResponse reports whether a Content-Type header value indicates a
// Server-Sent Events stream.
func IsSSEResponse(contentType string) bool {
	if contentType == "" {
		return false
	}
	return strings.Contains(strings.ToLower(contentType), "text/event-stream")
}

func isMCPMessage(body map[string]any) bool {
	if v, ok := body["jsonrpc"]; !ok || toString(v) != "2.0" {
		return false
	}
	method, _ := body["method"].(string)
	if mcpMethods[method] || strings.Contains(method, "/") {
		return true
	}
	_, hasID := body["id"]
	_, hasResult := body["result"]
	_, hasError := body["error"]
	if hasID && (hasResult || hasError) {
		return true
	}
	return false
}

func guessProvider(host string) *string {
	switch {
	case strings.Contains(host, "anthropic"):
		return strPtr("anthropic")
	case strings.Contains(host, "openai"):
		return strPtr("openai")
	case strings.Contains(host, "google") || strings.Contains(host, "googleapis"):
		return strPtr("google")
	case strings.Contains(host, "azure"):
		return strPtr("azure")
	case strings.Contains(host, "openrouter"):
		return strPtr("openrouter")
	default:
		return nil
	}
}

func strPtr(s string) *string { return &s }

func toString(v any) string {
	s, _ := v.(string)
	return s
}
