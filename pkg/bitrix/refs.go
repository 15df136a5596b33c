package bitrix

import (
	"regexp"
	"strconv"
	"strings"
)

var refPattern = regexp.MustCompile(`^\$result\[([^\]]+)\]((?:\[[^\]]*\])*)$`)

// resolveRefs replaces placeholders pointing at calls of earlier chunks with their
// actual results. Placeholders for calls in the same chunk are left to the portal.
func resolveRefs(value any, done map[string]any) any {
	switch v := value.(type) {
	case string:
		m := refPattern.FindStringSubmatch(v)
		if m == nil {
			return v
		}
		result, ok := done[m[1]]
		if !ok {
			return v
		}
		return lookup(result, splitPath(m[2]))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = resolveRefs(item, done)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveRefs(item, done)
		}
		return out
	default:
		return v
	}
}

func splitPath(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]"), "][")
}

func lookup(value any, path []string) any {
	for _, key := range path {
		switch v := value.(type) {
		case map[string]any:
			value = v[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil
			}
			value = v[i]
		default:
			return nil
		}
	}
	return value
}
