package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// ParseJSONResponse pulls a JSON object out of a model response. Models
// wrap JSON in markdown fences or chatter around it, so the parse runs on
// the outermost brace pair. Returns nil when no object can be decoded.
func ParseJSONResponse(text string) map[string]any {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON: %v", err)
		return nil
	}
	return result
}
