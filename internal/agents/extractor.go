package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/llm"
	"github.com/fyrsmithlabs/agendad/internal/model"
)

const extractorSystemPrompt = `%s

You extract calendar events and tasks from a narrative of someone's day.

Rules:
- Extract only concrete, agreed-upon plans and commitments.
- Never extract vague possibilities ("maybe", "someday", "we should sometime").
- Never extract events that already happened before today.
- An "event" has a when-and-where; a "task" is something to do.
- rough_date and rough_time repeat the narrative's own words ("tomorrow", "2pm").
- Confidence: both a date and a time present -> "high"; a date but no
  time -> "medium"; only a rough timeframe -> "low".`

var extractorSchema = json.RawMessage(`{
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "item_type", "confidence"],
        "properties": {
          "title": {"type": "string"},
          "item_type": {"type": "string", "enum": ["event", "task"]},
          "rough_date": {"type": "string"},
          "rough_time": {"type": "string"},
          "people": {"type": "array", "items": {"type": "string"}},
          "location": {"type": "string"},
          "confidence": {"type": "string", "enum": ["high", "medium", "low"]},
          "context": {"type": "string"}
        }
      }
    }
  }
}`)

// ExtractorAgent pulls candidate events and tasks out of a daily story.
type ExtractorAgent struct {
	llm    Invoker
	logger *zap.Logger
}

// NewExtractor creates an ExtractorAgent.
func NewExtractor(inv Invoker, logger *zap.Logger) *ExtractorAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractorAgent{llm: inv, logger: logger.Named("extractor")}
}

type extractorResponse struct {
	Items []model.ExtractedItem `json:"items"`
}

// Extract returns candidate items from the story. feedback, when
// non-empty, is critic guidance appended to steer a retry.
func (e *ExtractorAgent) Extract(ctx context.Context, story *model.DailyStory, feedback string) ([]model.ExtractedItem, error) {
	user := story.Narrative
	if feedback != "" {
		user += "\n\nReviewer feedback on a previous extraction attempt. Address every point:\n" + feedback
	}

	raw, err := e.llm.Invoke(ctx, llm.Request{
		System:      fmt.Sprintf(extractorSystemPrompt, refDateLine(story.Date)),
		User:        user,
		Schema:      extractorSchema,
		Temperature: 0.2,
		UseCache:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting items for %s: %w", model.DayKey(story.Date), err)
	}

	var resp extractorResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, err
	}

	items := make([]model.ExtractedItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Title == "" {
			continue
		}
		if it.ItemType != model.ItemEvent && it.ItemType != model.ItemTask {
			e.logger.Debug("dropping item with unknown type",
				zap.String("title", it.Title), zap.String("item_type", string(it.ItemType)))
			continue
		}
		if !it.Confidence.Valid() {
			it.Confidence = model.ConfidenceMedium
		}
		items = append(items, it)
	}
	return items, nil
}
