package semantic

import "strings"

var mcpMethodCategories = map[string]string{
	"initialize":                             "lifecycle",
	"initialized":                            "lifecycle",
	"shutdown":                               "lifecycle",
	"notifications/initialized":              "lifecycle",
	"notifications/cancelled":                "lifecycle",
	"tools/list":                             "tools",
	"tools/call":                             "tools",
	"resources/list":                         "resources",
	"resources/read":                         "resources",
	"resources/subscribe":                    "resources",
	"resources/unsubscribe":                  "resources",
	"prompts/list":                           "prompts",
	"prompts/get":                            "prompts",
	"completion/complete":                    "completion",
	"logging/setLevel":                       "logging",
	"notifications/resources/updated":        "resources",
	"notifications/resources/list_changed":   "resources",
	"notifications/tools/list_changed":       "tools",
	"notifications/prompts/list_changed":     "prompts",
}

var mcpPrefixCategories = map[string]string{
	"tools":         "tools",
	"resources":     "resources",
	"prompts":       "prompts",
	"notifications": "notifications",
	"completion":    "completion",
	"logging":       "logging",
	"sampling":      "sampling",
}

// ParseMCPMessage classifies and summarizes an MCP JSON-RPC 2.0 message —
// a request, a notification, or a response — and returns a compact summary.
func ParseMCPMessage(body map[string]any) map[string]any {
	jsonrpc := getString(body, "jsonrpc")
	id, hasID := body["id"]
	method, hasMethod := body["method"]
	result, hasResult := body["result"]
	errVal, hasError := body["error"]

	var msgType string
	switch {
	case hasMethod:
		if hasID {
			msgType = "request"
		} else {
			msgType = "notification"
		}
	case (hasResult && result != nil) || (hasError && errVal != nil):
		msgType = "response"
	default:
		msgType = "unknown"
	}

	parsed := map[string]any{
		"jsonrpc":      jsonrpc,
		"message_type": msgType,
	}

	if hasID && id != nil {
		parsed["id"] = id
	}

	methodStr, _ := method.(string)
	if hasMethod {
		parsed["method"] = methodStr
		parsed["category"] = ClassifyMCPMethod(methodStr)
	}

	switch msgType {
	case "request", "notification":
		parsed["params"] = summarizeMCPParams(methodStr, getMap(body, "params"))
	case "response":
		if hasError && errVal != nil {
			parsed["is_error"] = true
			if em := asMap(errVal); em != nil {
				parsed["error_code"] = int(getNumber(em, "code"))
				parsed["error_message"] = getString(em, "message")
			} else {
				parsed["error_code"] = 0
				parsed["error_message"] = toDisplayString(errVal)
			}
		} else {
			parsed["is_error"] = false
			parsed["result_summary"] = summarizeMCPResult(result)
		}
	}

	return parsed
}

// ClassifyMCPMethod maps an MCP method name to its broad category, falling
// back to the method's "/"-prefix and finally to "custom" for anything
// unrecognized.
func ClassifyMCPMethod(method string) string {
	if cat, ok := mcpMethodCategories[method]; ok {
		return cat
	}

	prefix := method
	if idx := strings.Index(method, "/"); idx >= 0 {
		prefix = method[:idx]
	}
	if cat, ok := mcpPrefixCategories[prefix]; ok {
		return cat
	}
	return "custom"
}

func summarizeMCPParams(method string, params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}

	switch method {
	case "tools/call":
		args := getMap(params, "arguments")
		return map[string]any{
			"tool_name":     getString(params, "name"),
			"has_arguments": len(args) > 0,
			"argument_keys": mapKeys(args),
		}

	case "resources/read":
		return map[string]any{"uri": getString(params, "uri")}

	case "prompts/get":
		return map[string]any{
			"prompt_name":   getString(params, "name"),
			"has_arguments": len(getMap(params, "arguments")) > 0,
		}

	case "initialize":
		clientInfo := getMap(params, "clientInfo")
		return map[string]any{
			"protocol_version": getString(params, "protocolVersion"),
			"client_name":      getString(clientInfo, "name"),
			"client_version":   getString(clientInfo, "version"),
			"capabilities":     mapKeys(getMap(params, "capabilities")),
		}

	case "completion/complete":
		ref := getMap(params, "ref")
		argument := getMap(params, "argument")
		return map[string]any{
			"ref_type":      getString(ref, "type"),
			"argument_name": getString(argument, "name"),
		}

	default:
		if len(params) == 0 {
			return map[string]any{}
		}
		return map[string]any{"keys": mapKeys(params)}
	}
}

func summarizeMCPResult(result any) map[string]any {
	if result == nil {
		return map[string]any{"type": "null"}
	}

	if m, ok := result.(map[string]any); ok {
		summary := map[string]any{"keys": mapKeys(m)}
		if tools, ok := m["tools"].([]any); ok {
			summary["tool_count"] = len(tools)
			var names []string
			for _, t := range tools {
				if tm := asMap(t); tm != nil {
					names = append(names, getString(tm, "name"))
				}
			}
			summary["tool_names"] = names
		}
		if resources, ok := m["resources"].([]any); ok {
			summary["resource_count"] = len(resources)
		}
		if prompts, ok := m["prompts"].([]any); ok {
			summary["prompt_count"] = len(prompts)
		}
		if content, ok := m["content"].([]any); ok {
			summary["content_count"] = len(content)
		}
		if si := asMap(m["serverInfo"]); si != nil {
			summary["server_name"] = getString(si, "name")
			summary["server_version"] = getString(si, "version")
		}
		return summary
	}

	if s, ok := result.([]any); ok {
		return map[string]any{"type": "list", "length": len(s)}
	}

	return map[string]any{"type": goTypeName(result)}
}

func toDisplayString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func goTypeName(v any) string {
	switch v.(type) {
	case string:
		return "str"
	case float64, int, int64:
		return "number"
	case bool:
		return "bool"
	default:
		return "unknown"
	}
}
