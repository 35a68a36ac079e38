package mcp

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Argument coercion helpers. MCP clients frequently stringify numbers and
// send arrays as JSON-encoded strings, so every accessor accepts both the
// native shape and its string form.

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func argStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			var out []string
			if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
				return out
			}
		}
		if trimmed != "" {
			return []string{trimmed}
		}
	}
	return nil
}
