package semantic

import "strings"

// ParseOpenAIRequest summarizes an OpenAI Chat Completions (or compatible)
// request body.
func ParseOpenAIRequest(body map[string]any) map[string]any {
	messages := getSlice(body, "messages")

	var toolNames []string
	for _, t := range getSlice(body, "tools") {
		if tm := asMap(t); tm != nil {
			toolNames = append(toolNames, getString(getMap(tm, "function"), "name"))
		}
	}

	systemLength := 0
	for _, m := range messages {
		msg := asMap(m)
		if msg == nil {
			continue
		}
		role := getString(msg, "role")
		if role != "system" && role != "developer" {
			continue
		}
		switch content := msg["content"].(type) {
		case string:
			systemLength += len(content)
		case []any:
			for _, p := range content {
				if pm := asMap(p); pm != nil && getString(pm, "type") == "text" {
					systemLength += len(getString(pm, "text"))
				}
			}
		}
	}

	maxTokens := body["max_tokens"]
	if maxTokens == nil {
		maxTokens = body["max_completion_tokens"]
	}

	return map[string]any{
		"model":                 getString(body, "model"),
		"max_tokens":            maxTokens,
		"temperature":           body["temperature"],
		"stream":                getBool(body, "stream"),
		"system_length":         systemLength,
		"message_count":         len(messages),
		"messages_summary":      summarizeOpenAIMessages(messages),
		"tool_names":            toolNames,
		"tool_count":            len(toolNames),
		"has_tool_use":          len(toolNames) > 0,
		"tool_choice":           body["tool_choice"],
		"response_format":       body["response_format"],
		"stream_options":        body["stream_options"],
		"input_tokens_estimate": estimateOpenAITokens(messages),
	}
}

// ParseOpenAIResponse summarizes a non-streaming Chat Completions response.
func ParseOpenAIResponse(body map[string]any) map[string]any {
	choices := getSlice(body, "choices")
	var firstChoice map[string]any
	if len(choices) > 0 {
		firstChoice = asMap(choices[0])
	}
	if firstChoice == nil {
		firstChoice = map[string]any{}
	}
	message := getMap(firstChoice, "message")

	text := getString(message, "content")

	var toolCalls []map[string]any
	for _, tc := range getSlice(message, "tool_calls") {
		tcm := asMap(tc)
		if tcm == nil {
			continue
		}
		fn := getMap(tcm, "function")
		toolCalls = append(toolCalls, map[string]any{
			"id":        getString(tcm, "id"),
			"name":      getString(fn, "name"),
			"arguments": getString(fn, "arguments"),
		})
	}

	usage := getMap(body, "usage")
	cachedTokens := int(getNumber(getMap(usage, "prompt_tokens_details"), "cached_tokens"))

	return map[string]any{
		"id":                  getString(body, "id"),
		"model":               getString(body, "model"),
		"finish_reason":       getString(firstChoice, "finish_reason"),
		"text":                text,
		"text_length":         len(text),
		"tool_calls":          toolCalls,
		"tool_call_count":     len(toolCalls),
		"prompt_tokens":       int(getNumber(usage, "prompt_tokens")),
		"completion_tokens":   int(getNumber(usage, "completion_tokens")),
		"total_tokens":        int(getNumber(usage, "total_tokens")),
		"cached_tokens":       cachedTokens,
		"choice_count":        len(choices),
		"system_fingerprint":  getString(body, "system_fingerprint"),
	}
}

// ParseOpenAISSEEvent summarizes one decoded OpenAI streaming event, for
// either the Chat Completions chunk shape or the newer Responses API
// event shape.
func ParseOpenAISSEEvent(data map[string]any) map[string]any {
	if len(data) == 0 {
		return map[string]any{"event_type": "empty"}
	}

	if getString(data, "object") == "chat.completion.chunk" {
		return parseChatChunk(data)
	}

	if t := getString(data, "type"); strings.HasPrefix(t, "response.") {
		return parseResponsesEvent(data)
	}

	return map[string]any{
		"event_type": "unknown",
		"id":         getString(data, "id"),
		"raw_keys":   mapKeys(data),
	}
}

func parseChatChunk(data map[string]any) map[string]any {
	choices := getSlice(data, "choices")
	var first map[string]any
	if len(choices) > 0 {
		first = asMap(choices[0])
	}
	if first == nil {
		first = map[string]any{}
	}
	delta := getMap(first, "delta")

	result := map[string]any{
		"event_type":    "chat.completion.chunk",
		"id":            getString(data, "id"),
		"model":         getString(data, "model"),
		"finish_reason": first["finish_reason"],
	}

	if content, ok := delta["content"]; ok && content != nil {
		if s, ok := content.(string); ok {
			result["text"] = s
			result["text_length"] = len(s)
		}
	}

	if tcDeltas := getSlice(delta, "tool_calls"); tcDeltas != nil {
		var deltas []map[string]any
		for _, tc := range tcDeltas {
			tcm := asMap(tc)
			if tcm == nil {
				continue
			}
			fn := getMap(tcm, "function")
			deltas = append(deltas, map[string]any{
				"index":            int(getNumber(tcm, "index")),
				"id":               getString(tcm, "id"),
				"name":             getString(fn, "name"),
				"arguments_chunk":  getString(fn, "arguments"),
			})
		}
		result["tool_call_deltas"] = deltas
	}

	if role, ok := delta["role"]; ok {
		result["role"] = role
	}

	if usage := getMap(data, "usage"); len(usage) > 0 {
		result["prompt_tokens"] = int(getNumber(usage, "prompt_tokens"))
		result["completion_tokens"] = int(getNumber(usage, "completion_tokens"))
	}

	return result
}

func parseResponsesEvent(data map[string]any) map[string]any {
	eventType := getString(data, "type")
	result := map[string]any{"event_type": eventType}

	switch eventType {
	case "response.created":
		resp := getMap(data, "response")
		result["id"] = getString(resp, "id")
		result["model"] = getString(resp, "model")
		result["status"] = getString(resp, "status")

	case "response.output_item.added":
		item := getMap(data, "item")
		result["item_type"] = getString(item, "type")
		result["item_id"] = getString(item, "id")

	case "response.content_part.delta":
		delta := getMap(data, "delta")
		text := getString(delta, "text")
		result["text"] = text
		result["text_length"] = len(text)

	case "response.output_item.done":
		item := getMap(data, "item")
		result["item_type"] = getString(item, "type")
		if getString(item, "type") == "function_call" {
			result["tool_name"] = getString(item, "name")
			result["tool_call_id"] = getString(item, "call_id")
			result["arguments"] = getString(item, "arguments")
		}

	case "response.completed":
		resp := getMap(data, "response")
		usage := getMap(resp, "usage")
		result["id"] = getString(resp, "id")
		result["status"] = getString(resp, "status")
		result["input_tokens"] = int(getNumber(usage, "input_tokens"))
		result["output_tokens"] = int(getNumber(usage, "output_tokens"))
	}

	return result
}

func summarizeOpenAIMessages(messages []any) []map[string]any {
	var summary []map[string]any
	for _, m := range messages {
		msg := asMap(m)
		if msg == nil {
			continue
		}
		role := getString(msg, "role")
		content, hasContent := msg["content"]

		switch {
		case !hasContent || content == nil:
			hasTC := len(getSlice(msg, "tool_calls")) > 0
			typ := "empty"
			if hasTC {
				typ = "tool_call_only"
			}
			summary = append(summary, map[string]any{"role": role, "type": typ, "length": 0})
		case isString(content):
			s := content.(string)
			summary = append(summary, map[string]any{"role": role, "type": "text", "length": len(s)})
		default:
			if parts, ok := content.([]any); ok {
				var types []string
				total := 0
				for _, p := range parts {
					pm := asMap(p)
					if pm == nil {
						continue
					}
					pt := getString(pm, "type")
					if pt == "" {
						pt = "text"
					}
					types = append(types, pt)
					if pt == "text" {
						total += len(getString(pm, "text"))
					}
				}
				summary = append(summary, map[string]any{"role": role, "block_types": types, "length": total})
			}
		}
	}
	return summary
}

func estimateOpenAITokens(messages []any) int {
	chars := 0
	for _, m := range messages {
		msg := asMap(m)
		if msg == nil {
			continue
		}
		switch content := msg["content"].(type) {
		case string:
			chars += len(content)
		case []any:
			for _, p := range content {
				if pm := asMap(p); pm != nil && getString(pm, "type") == "text" {
					chars += len(getString(pm, "text"))
				}
			}
		}
	}
	return chars / 4
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}
