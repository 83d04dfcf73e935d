package analyses

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoJSON         = errors.New("response did not contain a JSON payload")
	ErrMalformedJSON  = errors.New("response JSON could not be parsed")
	ErrSchemaMismatch = errors.New("response did not match the expected structure")
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("```$")
	objectSpan    = regexp.MustCompile(`\{[\s\S]*\}`)
)

// jsonCandidate isolates the JSON object in a free-form model reply.
func jsonCandidate(reply string) string {
	s := strings.TrimSpace(reply)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s
	}
	return objectSpan.FindString(s)
}

// ParseReply extracts and validates an analysis from a model reply.
// Errors wrap ErrNoJSON, ErrMalformedJSON or ErrSchemaMismatch.
func ParseReply(reply string) (Result, error) {
	candidate := jsonCandidate(reply)
	if candidate == "" {
		return Result{}, ErrNoJSON
	}

	var doc any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	if err := compiledResultSchema.Validate(doc); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
	}

	var result Result
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
	}
	result.Extra = unknownFields(fields)
	return result, nil
}
