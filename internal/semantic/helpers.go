// Package semantic extracts small, human-readable summaries from LLM
// request/response/SSE-event bodies, grouped by provider wire format. Every
// exported function here is pure and tolerant of missing or malformed
// input: a parser never panics, and a missing field just yields its zero
// value rather than an error. The summaries are not meant to reconstruct
// the original payload — they're a compact index for search and display.
package semantic

// getString returns m[key] as a string, or "" if absent or not a string.
func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getNumber returns m[key] coerced to float64, or 0 if absent or not numeric.
func getNumber(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return 0
}

// getBool returns m[key] as a bool, or false if absent or not a bool.
func getBool(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// getMap returns m[key] as a map, or an empty map if absent or the wrong shape.
func getMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if sub, ok := v.(map[string]any); ok {
			return sub
		}
	}
	return map[string]any{}
}

// getSlice returns m[key] as a slice, or nil if absent or the wrong shape.
func getSlice(m map[string]any, key string) []any {
	if v, ok := m[key]; ok {
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return nil
}

// asMap type-asserts v to map[string]any, returning nil on mismatch.
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// mapKeys returns the keys of m in arbitrary order, or nil for an empty map.
func mapKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
