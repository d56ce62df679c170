package jsonexport

import (
	"encoding/json"
	"fmt"
	"strings"
)

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		// Integral values print without a trailing .0.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// rawString renders a raw JSON value as a column string: JSON null
// becomes empty, quoted strings lose their quotes, everything else is
// kept verbatim.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func keyMatches(key string, substrings ...string) bool {
	key = strings.ToLower(key)
	for _, sub := range substrings {
		if strings.Contains(key, sub) {
			return true
		}
	}
	return false
}
