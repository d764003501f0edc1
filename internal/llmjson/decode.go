// Package llmjson decodes structured JSON output produced by language
// models.
//
// Models asked for "JSON only" still routinely wrap their output in markdown
// code fences (```json ... ```). Decode first attempts a strict unmarshal;
// on failure it strips one layer of fence markers and retries once. Callers
// that need graceful degradation catch the returned error and substitute
// their own fallback value.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode unmarshals content into v. On a parse failure it strips markdown
// code fences and retries once before giving up.
func Decode(content string, v any) error {
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	cleaned := StripFences(content)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("llmjson: decode: %w", err)
	}
	return nil
}

// StripFences removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output, plus surrounding whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
