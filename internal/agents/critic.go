package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/llm"
	"github.com/fyrsmithlabs/agendad/internal/model"
)

const criticSystemPrompt = `%s

You review an extraction of events and tasks against the original daily
narrative it came from. Independently re-read the narrative, then:
- Score the extraction 0-10 for completeness and correctness.
- Flag per-item issues. issue_type is one of: missing_info, wrong_date,
  wrong_type, duplicate, vague, hallucination.
- List actionable things the narrative mentions that were never extracted.
- Set should_retry true only when a retry with your feedback would
  plausibly fix the problems.`

var criticSchema = json.RawMessage(`{
  "type": "object",
  "required": ["quality_score", "should_retry"],
  "properties": {
    "quality_score": {"type": "number", "minimum": 0, "maximum": 10},
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["item_title", "issue_type", "description"],
        "properties": {
          "item_title": {"type": "string"},
          "issue_type": {"type": "string", "enum": ["missing_info", "wrong_date", "wrong_type", "duplicate", "vague", "hallucination"]},
          "description": {"type": "string"},
          "suggested_fix": {"type": "string"}
        }
      }
    },
    "missing_items": {"type": "array", "items": {"type": "string"}},
    "should_retry": {"type": "boolean"}
  }
}`)

// CriticAgent is the self-reflection pass: it scores one extraction and
// decides whether a single bounded retry is worth its cost.
type CriticAgent struct {
	llm    Invoker
	logger *zap.Logger
}

// NewCritic creates a CriticAgent.
func NewCritic(inv Invoker, logger *zap.Logger) *CriticAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CriticAgent{llm: inv, logger: logger.Named("critic")}
}

// Review scores the extraction against the original narrative.
func (c *CriticAgent) Review(ctx context.Context, story *model.DailyStory, items []model.ExtractedItem, events []model.FormattedEvent, tasks []model.FormattedTask) (*model.CriticResult, error) {
	payload, err := json.Marshal(struct {
		Narrative string                 `json:"narrative"`
		Items     []model.ExtractedItem  `json:"extracted_items"`
		Events    []model.FormattedEvent `json:"formatted_events"`
		Tasks     []model.FormattedTask  `json:"formatted_tasks"`
	}{Narrative: story.Narrative, Items: items, Events: events, Tasks: tasks})
	if err != nil {
		return nil, fmt.Errorf("marshaling review payload: %w", err)
	}

	raw, err := c.llm.Invoke(ctx, llm.Request{
		System:      fmt.Sprintf(criticSystemPrompt, refDateLine(story.Date)),
		User:        string(payload),
		Schema:      criticSchema,
		Temperature: 0.3,
		UseCache:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("critic review: %w", err)
	}

	var result model.CriticResult
	if err := decodeJSON(raw, &result); err != nil {
		return nil, err
	}
	if result.QualityScore < 0 {
		result.QualityScore = 0
	}
	if result.QualityScore > 10 {
		result.QualityScore = 10
	}
	return &result, nil
}

// GenerateFeedback renders a critic result into a prompt-ready feedback
// block for the extractor's retry.
func (c *CriticAgent) GenerateFeedback(result *model.CriticResult) string {
	if result == nil {
		return ""
	}
	var sb strings.Builder
	for _, issue := range result.Issues {
		fmt.Fprintf(&sb, "- [%s] %q: %s", issue.IssueType, issue.ItemTitle, issue.Description)
		if issue.SuggestedFix != "" {
			fmt.Fprintf(&sb, " Fix: %s", issue.SuggestedFix)
		}
		sb.WriteString("\n")
	}
	if len(result.MissingItems) > 0 {
		sb.WriteString("The narrative also mentions these, which were never extracted:\n")
		for _, m := range result.MissingItems {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}
	return strings.TrimSpace(sb.String())
}
