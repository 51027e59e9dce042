package prompt

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// GetSystemPrompt provides strict directions and schema for the skin type scores.
func GetSystemPrompt(labels []string) string {
	return fmt.Sprintf(`You are a dermatology imaging assistant. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Score every skin type label between 0 and 1; scores should sum to 1.
- Use exactly these labels as keys: %s.
- Judge only visible skin characteristics (shine, flaking, redness, pore visibility, zone differences).

Schema (example with empty values):
{
  "scores": {%s}
}`, strings.Join(labels, ", "), exampleScores(labels))
}

// GetUserPrompt is the text part sent next to the face photo.
func GetUserPrompt() string {
	return "Classify the skin type in this face photo and respond with the JSON per schema."
}

func exampleScores(labels []string) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%q: 0", l)
	}
	return strings.Join(parts, ", ")
}

// ScoresResponse is the structure the system prompt asks for.
type ScoresResponse struct {
	Scores map[string]float32 `json:"scores"`
}

// ParseScores decodes a model answer into a vector ordered like labels. Labels matching is
// case-insensitive; missing labels score 0. An answer without any known label is an error.
func ParseScores(content string, labels []string) ([]float32, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var resp ScoresResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}

	out := make([]float32, len(labels))
	found := 0
	for key, v := range resp.Scores {
		for i, l := range labels {
			if strings.EqualFold(strings.TrimSpace(key), l) {
				out[i] = v
				found++
			}
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("no known skin type in scores")
	}
	return out, nil
}
