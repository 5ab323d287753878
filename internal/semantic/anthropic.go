package semantic

import "strings"

// ParseAnthropicRequest summarizes an Anthropic Messages API request body.
func ParseAnthropicRequest(body map[string]any) map[string]any {
	messages := getSlice(body, "messages")
	systemText := extractSystemText(body["system"])

	var toolNames []string
	for _, t := range getSlice(body, "tools") {
		if tm := asMap(t); tm != nil {
			toolNames = append(toolNames, getString(tm, "name"))
		}
	}

	return map[string]any{
		"model":                 getString(body, "model"),
		"max_tokens":             int(getNumber(body, "max_tokens")),
		"temperature":            body["temperature"],
		"stream":                 getBool(body, "stream"),
		"system_length":          len(systemText),
		"message_count":          len(messages),
		"messages_summary":       summarizeAnthropicMessages(messages),
		"tool_names":             toolNames,
		"tool_count":             len(toolNames),
		"has_tool_use":           len(toolNames) > 0,
		"stop_sequences":         body["stop_sequences"],
		"metadata":               body["metadata"],
		"input_tokens_estimate": estimateAnthropicTokens(messages, systemText),
	}
}

// ParseAnthropicResponse summarizes a non-streaming Anthropic Messages API response.
func ParseAnthropicResponse(body map[string]any) map[string]any {
	var textParts []string
	var toolCalls []map[string]any

	for _, b := range getSlice(body, "content") {
		block := asMap(b)
		if block == nil {
			continue
		}
		switch getString(block, "type") {
		case "text":
			textParts = append(textParts, getString(block, "text"))
		case "tool_use":
			toolCalls = append(toolCalls, map[string]any{
				"id":    getString(block, "id"),
				"name":  getString(block, "name"),
				"input": block["input"],
			})
		}
	}

	usage := getMap(body, "usage")
	textLen := 0
	for _, t := range textParts {
		textLen += len(t)
	}

	return map[string]any{
		"id":                    getString(body, "id"),
		"model":                 getString(body, "model"),
		"role":                  getString(body, "role"),
		"stop_reason":           getString(body, "stop_reason"),
		"text":                  strings.Join(textParts, "\n"),
		"text_length":           textLen,
		"tool_calls":            toolCalls,
		"tool_call_count":       len(toolCalls),
		"input_tokens":          int(getNumber(usage, "input_tokens")),
		"output_tokens":         int(getNumber(usage, "output_tokens")),
		"cache_read_tokens":     int(getNumber(usage, "cache_read_input_tokens")),
		"cache_creation_tokens": int(getNumber(usage, "cache_creation_input_tokens")),
	}
}

// ParseAnthropicSSEEvent summarizes one decoded Anthropic streaming event.
func ParseAnthropicSSEEvent(eventType string, data map[string]any) map[string]any {
	result := map[string]any{"event_type": eventType}

	switch eventType {
	case "message_start":
		message := getMap(data, "message")
		result["id"] = getString(message, "id")
		result["model"] = getString(message, "model")
		result["role"] = getString(message, "role")
		result["input_tokens"] = int(getNumber(getMap(message, "usage"), "input_tokens"))

	case "content_block_start":
		block := getMap(data, "content_block")
		result["index"] = int(getNumber(data, "index"))
		result["block_type"] = getString(block, "type")
		if getString(block, "type") == "tool_use" {
			result["tool_name"] = getString(block, "name")
			result["tool_id"] = getString(block, "id")
		}

	case "content_block_delta":
		delta := getMap(data, "delta")
		deltaType := getString(delta, "type")
		result["index"] = int(getNumber(data, "index"))
		result["delta_type"] = deltaType
		switch deltaType {
		case "text_delta":
			text := getString(delta, "text")
			result["text"] = text
			result["text_length"] = len(text)
		case "input_json_delta":
			result["partial_json"] = getString(delta, "partial_json")
		}

	case "content_block_stop":
		result["index"] = int(getNumber(data, "index"))

	case "message_delta":
		delta := getMap(data, "delta")
		result["stop_reason"] = getString(delta, "stop_reason")
		result["output_tokens"] = int(getNumber(getMap(data, "usage"), "output_tokens"))

	case "message_stop", "ping":
		// No additional fields.

	case "error":
		errObj := getMap(data, "error")
		result["error_type"] = getString(errObj, "type")
		result["error_message"] = getString(errObj, "message")
	}

	return result
}

func extractSystemText(system any) string {
	switch v := system.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, p := range v {
			if pm, ok := p.(map[string]any); ok {
				parts = append(parts, getString(pm, "text"))
			} else if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func summarizeAnthropicMessages(messages []any) []map[string]any {
	var summary []map[string]any
	for _, m := range messages {
		msg := asMap(m)
		if msg == nil {
			continue
		}
		role := getString(msg, "role")

		switch content := msg["content"].(type) {
		case string:
			summary = append(summary, map[string]any{
				"role": role, "type": "text", "length": len(content),
			})
		case []any:
			var blockTypes []string
			totalLen := 0
			for _, b := range content {
				block := asMap(b)
				if block == nil {
					continue
				}
				bt := getString(block, "type")
				if bt == "" {
					bt = "text"
				}
				blockTypes = append(blockTypes, bt)
				switch bt {
				case "text":
					totalLen += len(getString(block, "text"))
				case "tool_result":
					for _, s := range getSlice(block, "content") {
						if sub := asMap(s); sub != nil && getString(sub, "type") == "text" {
							totalLen += len(getString(sub, "text"))
						}
					}
				}
			}
			summary = append(summary, map[string]any{
				"role": role, "block_types": blockTypes, "length": totalLen,
			})
		}
	}
	return summary
}

func estimateAnthropicTokens(messages []any, systemText string) int {
	chars := len(systemText)
	for _, m := range messages {
		msg := asMap(m)
		if msg == nil {
			continue
		}
		switch content := msg["content"].(type) {
		case string:
			chars += len(content)
		case []any:
			for _, b := range content {
				block := asMap(b)
				if block == nil {
					continue
				}
				chars += len(getString(block, "text"))
				if getString(block, "type") == "tool_result" {
					for _, s := range getSlice(block, "content") {
						if sub := asMap(s); sub != nil {
							chars += len(getString(sub, "text"))
						}
					}
				}
			}
		}
	}
	return chars / 4
}
