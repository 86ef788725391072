package ai

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

//go:embed prompts/marker_name.txt
var markerNamePrompt string

// maxRetries is how many times a model is asked again after returning invalid JSON.
const maxRetries = 3

// previewSize is the longest edge of images sent to vision models.
const previewSize = 800

var errEmptyName = errors.New(`suggestion has an empty "name"`)

// parseSuggestion extracts and validates a suggestion from a model reply.
func parseSuggestion(content string) (*MarkerSuggestion, error) {
	var s MarkerSuggestion
	if err := json.Unmarshal([]byte(extractJSON(content)), &s); err != nil {
		return nil, err
	}
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	if s.Name == "" {
		return nil, errEmptyName
	}
	return &s, nil
}

// retryMessage is the feedback sent to a model after an unusable reply.
func retryMessage(err error) string {
	return fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. Output ONLY a JSON object with \"name\" and \"description\".", err)
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	return content[start:]
}

func addCost(u *Usage, inputTokens, outputTokens int, pricing RequestPricing) {
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	u.TotalCost += float64(inputTokens) / 1_000_000 * pricing.Input
	u.TotalCost += float64(outputTokens) / 1_000_000 * pricing.Output
}
