package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls the JSON document out of a model reply, tolerating
// markdown fences and surrounding prose. Models are told to answer with
// bare JSON; they frequently do not.
func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if fenced := stripFence(s); fenced != "" {
		s = fenced
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON in oracle reply")
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return "", fmt.Errorf("unterminated JSON in oracle reply")
	}
	return s[start : end+1], nil
}

func stripFence(s string) string {
	idx := strings.Index(s, "```")
	if idx < 0 {
		return ""
	}
	rest := s[idx+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if fin := strings.Index(rest, "```"); fin >= 0 {
		return strings.TrimSpace(rest[:fin])
	}
	return ""
}

// decodeReply extracts and unmarshals the JSON payload of a model reply.
func decodeReply(raw string, v any) error {
	doc, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return fmt.Errorf("malformed oracle JSON: %w", err)
	}
	return nil
}
