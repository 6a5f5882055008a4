package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup resolves a dotted path through nested maps. When the full path is
// missing, the last segment is tried at the top level.
func Lookup(metadata map[string]any, path string) (any, bool) {
	if len(metadata) == 0 || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = metadata
	found := true
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			found = false
			break
		}
		if cur, ok = m[p]; !ok {
			found = false
			break
		}
	}
	if found {
		return cur, true
	}
	if len(parts) > 1 {
		v, ok := metadata[parts[len(parts)-1]]
		return v, ok
	}
	return nil, false
}

func Number(metadata map[string]any, path string) (float64, bool) {
	v, ok := Lookup(metadata, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func Flag(metadata map[string]any, path string) bool {
	v, present := FlagValue(metadata, path)
	return present && v
}

// FlagValue is Flag that also reports whether the flag was present at all.
func FlagValue(metadata map[string]any, path string) (value, present bool) {
	v, ok := Lookup(metadata, path)
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

// Identifier returns the value at path as a string, or "" when absent.
func Identifier(metadata map[string]any, path string) string {
	v, ok := Lookup(metadata, path)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}
