package semantic

import "strings"

// ParseGoogleRequest summarizes a Gemini generateContent request body.
func ParseGoogleRequest(body map[string]any) map[string]any {
	contents := getSlice(body, "contents")
	genConfig := getMap(body, "generationConfig")
	systemInstruction := getMap(body, "systemInstruction")

	systemText := extractPartsText(getSlice(systemInstruction, "parts"))
	toolDecls := extractToolDeclarations(getSlice(body, "tools"))

	var toolNames []string
	for _, d := range toolDecls {
		toolNames = append(toolNames, d["name"].(string))
	}

	return map[string]any{
		"model":                 getString(body, "model"),
		"contents_count":        len(contents),
		"contents_summary":      summarizeGoogleContents(contents),
		"system_length":         len(systemText),
		"max_output_tokens":     int(getNumber(genConfig, "maxOutputTokens")),
		"temperature":           genConfig["temperature"],
		"top_p":                 genConfig["topP"],
		"top_k":                 genConfig["topK"],
		"stop_sequences":        genConfig["stopSequences"],
		"tool_names":            toolNames,
		"tool_count":            len(toolDecls),
		"has_tool_use":          len(toolDecls) > 0,
		"safety_settings":       body["safetySettings"],
		"input_tokens_estimate": estimateGoogleTokens(contents, systemText),
	}
}

// ParseGoogleResponse summarizes a non-streaming Gemini generateContent response.
func ParseGoogleResponse(body map[string]any) map[string]any {
	candidates := getSlice(body, "candidates")
	var first map[string]any
	if len(candidates) > 0 {
		first = asMap(candidates[0])
	}
	if first == nil {
		first = map[string]any{}
	}
	parts := getSlice(getMap(first, "content"), "parts")

	textParts, functionCalls := extractGoogleParts(parts)
	usage := getMap(body, "usageMetadata")

	textLen := 0
	for _, t := range textParts {
		textLen += len(t)
	}

	return map[string]any{
		"text":                   strings.Join(textParts, "\n"),
		"text_length":            textLen,
		"function_calls":         functionCalls,
		"function_call_count":    len(functionCalls),
		"finish_reason":          getString(first, "finishReason"),
		"safety_ratings":         first["safetyRatings"],
		"prompt_token_count":     int(getNumber(usage, "promptTokenCount")),
		"candidates_token_count": int(getNumber(usage, "candidatesTokenCount")),
		"total_token_count":      int(getNumber(usage, "totalTokenCount")),
		"candidate_count":        len(candidates),
	}
}

// ParseGoogleSSEEvent summarizes one decoded Gemini streamGenerateContent chunk.
func ParseGoogleSSEEvent(data map[string]any) map[string]any {
	if len(data) == 0 {
		return map[string]any{"event_type": "empty"}
	}

	candidates := getSlice(data, "candidates")
	var first map[string]any
	if len(candidates) > 0 {
		first = asMap(candidates[0])
	}
	if first == nil {
		first = map[string]any{}
	}
	parts := getSlice(getMap(first, "content"), "parts")

	result := map[string]any{"event_type": "generateContent.chunk"}

	textParts, functionCalls := extractGoogleParts(parts)
	if len(textParts) > 0 {
		joined := strings.Join(textParts, "")
		result["text"] = joined
		total := 0
		for _, t := range textParts {
			total += len(t)
		}
		result["text_length"] = total
	}
	if len(functionCalls) > 0 {
		result["function_calls"] = functionCalls
	}

	if fr := getString(first, "finishReason"); fr != "" {
		result["finish_reason"] = fr
	}

	if usage := getMap(data, "usageMetadata"); len(usage) > 0 {
		result["prompt_token_count"] = int(getNumber(usage, "promptTokenCount"))
		result["candidates_token_count"] = int(getNumber(usage, "candidatesTokenCount"))
		result["total_token_count"] = int(getNumber(usage, "totalTokenCount"))
	}

	return result
}

func extractGoogleParts(parts []any) (textParts []string, functionCalls []map[string]any) {
	for _, p := range parts {
		part := asMap(p)
		if part == nil {
			continue
		}
		if t, ok := part["text"]; ok {
			if s, ok := t.(string); ok {
				textParts = append(textParts, s)
			}
		}
		if fc, ok := part["functionCall"]; ok {
			fcm := asMap(fc)
			functionCalls = append(functionCalls, map[string]any{
				"name": getString(fcm, "name"),
				"args": fcm["args"],
			})
		}
	}
	return textParts, functionCalls
}

func extractPartsText(parts []any) string {
	var texts []string
	for _, p := range parts {
		if pm := asMap(p); pm != nil {
			if t, ok := pm["text"]; ok {
				if s, ok := t.(string); ok {
					texts = append(texts, s)
				}
			}
		}
	}
	return strings.Join(texts, " ")
}

func extractToolDeclarations(tools []any) []map[string]any {
	var decls []map[string]any
	for _, tg := range tools {
		group := asMap(tg)
		if group == nil {
			continue
		}
		for _, d := range getSlice(group, "functionDeclarations") {
			decl := asMap(d)
			if decl == nil {
				continue
			}
			decls = append(decls, map[string]any{
				"name":        getString(decl, "name"),
				"description": getString(decl, "description"),
			})
		}
	}
	return decls
}

func summarizeGoogleContents(contents []any) []map[string]any {
	var summary []map[string]any
	for _, c := range contents {
		content := asMap(c)
		if content == nil {
			continue
		}
		role := getString(content, "role")
		var partTypes []string
		textLen := 0
		for _, p := range getSlice(content, "parts") {
			part := asMap(p)
			if part == nil {
				continue
			}
			switch {
			case hasKey(part, "text"):
				partTypes = append(partTypes, "text")
				textLen += len(getString(part, "text"))
			case hasKey(part, "functionCall"):
				partTypes = append(partTypes, "functionCall")
			case hasKey(part, "functionResponse"):
				partTypes = append(partTypes, "functionResponse")
			case hasKey(part, "inlineData"):
				partTypes = append(partTypes, "inlineData")
			}
		}
		summary = append(summary, map[string]any{
			"role": role, "part_types": partTypes, "text_length": textLen,
		})
	}
	return summary
}

func estimateGoogleTokens(contents []any, systemText string) int {
	chars := len(systemText)
	for _, c := range contents {
		content := asMap(c)
		if content == nil {
			continue
		}
		for _, p := range getSlice(content, "parts") {
			if part := asMap(p); part != nil && hasKey(part, "text") {
				chars += len(getString(part, "text"))
			}
		}
	}
	return chars / 4
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
