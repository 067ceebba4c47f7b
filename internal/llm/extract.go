package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON parses model output into v. Markdown code fences and prose
// around the outermost JSON value are ignored.
func DecodeJSON(content string, v interface{}) error {
	raw := strings.TrimSpace(content)
	if i := strings.Index(raw, "```"); i >= 0 {
		raw = raw[i+3:]
		raw = strings.TrimPrefix(raw, "json")
		if j := strings.Index(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
		raw = strings.TrimSpace(raw)
	}

	start := strings.IndexAny(raw, "[{")
	if start < 0 {
		return fmt.Errorf("no JSON value in model output")
	}
	closer := byte('}')
	if raw[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(raw, closer)
	if end < start {
		return fmt.Errorf("unterminated JSON value in model output")
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to decode model output: %w", err)
	}
	return nil
}
