// Package agents contains the single-purpose transformers of the
// extraction pipeline: Story, Extractor, Formatter, Validator, Critic,
// and the multi-agent Verifier. Each agent is a pure transformer over the
// data model, backed by the model access layer; none of them touches
// persistence.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/agendad/internal/llm"
)

// ErrDuplicateContent means the batch matches recently processed input.
// It is an expected outcome, not a failure: the coordinator skips the day.
var ErrDuplicateContent = errors.New("duplicate content")

// Invoker is the slice of the model access layer the agents need.
// *llm.Client satisfies it; tests use scripted fakes.
type Invoker interface {
	Invoke(ctx context.Context, req llm.Request) (string, error)
}

// decodeJSON strips markdown fences and decodes a schema-constrained
// response into out. A response that fails to decode is a semantic
// failure of the call, classified as ErrNoResponse.
func decodeJSON(raw string, out any) error {
	cleaned := stripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("%w: schema-violating response: %v", llm.ErrNoResponse, err)
	}
	return nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// refDateLine renders the reference date the way every agent prompt
// leads with it. The most decision-critical fact goes first; burying it
// mid-prompt loses it to positional attention bias in long contexts.
func refDateLine(ref time.Time) string {
	return fmt.Sprintf("Today's date is %s (%s).", ref.Format("2006-01-02"), ref.Weekday())
}
