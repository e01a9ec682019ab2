package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNullResult = errors.New("model returned null")

// decodeJSON parses a model reply into out. Replies wrapped in markdown code
// fences are unwrapped first; a bare "null" yields errNullResult.
func decodeJSON(reply string, out any) error {
	s := stripFences(reply)
	if s == "" || s == "null" {
		return errNullResult
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		// Models sometimes add prose around the object.
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start < 0 || end <= start {
			return err
		}
		return json.Unmarshal([]byte(s[start:end+1]), out)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
