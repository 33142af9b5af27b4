package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/llm"
	"github.com/fyrsmithlabs/agendad/internal/model"
)

const (
	// maxPastAge rejects items dated further back than this.
	maxPastAge = 7 * 24 * time.Hour
	// farFutureHorizon downgrades confidence beyond this.
	farFutureHorizon = 30 * 24 * time.Hour
)

const validatorSystemPrompt = `%s

You are a final sanity check over calendar events and tasks extracted
from conversations. For each item, vote "keep" or "reject" with a short
reason. Reject items that are in the past, have impossible times, or
duplicate another item in the list. When unsure, keep.`

var validatorSchema = json.RawMessage(`{
  "type": "object",
  "required": ["events", "tasks"],
  "properties": {
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "verdict"],
        "properties": {
          "title": {"type": "string"},
          "verdict": {"type": "string", "enum": ["keep", "reject"]},
          "reason": {"type": "string"}
        }
      }
    },
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "verdict"],
        "properties": {
          "title": {"type": "string"},
          "verdict": {"type": "string", "enum": ["keep", "reject"]},
          "reason": {"type": "string"}
        }
      }
    }
  }
}`)

// ValidatorAgent is the last gate before the confidence filter. The model
// votes per item; a deterministic enforcement pass then applies the hard
// date rules regardless of what the model said.
type ValidatorAgent struct {
	llm    Invoker
	logger *zap.Logger
}

// NewValidator creates a ValidatorAgent.
func NewValidator(inv Invoker, logger *zap.Logger) *ValidatorAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidatorAgent{llm: inv, logger: logger.Named("validator")}
}

type verdict struct {
	Title   string `json:"title"`
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

type validatorResponse struct {
	Events []verdict `json:"events"`
	Tasks  []verdict `json:"tasks"`
}

// Validate returns the surviving events and tasks plus the rejected items
// with human-readable reasons.
func (v *ValidatorAgent) Validate(ctx context.Context, events []model.FormattedEvent, tasks []model.FormattedTask, referenceDate time.Time) ([]model.FormattedEvent, []model.FormattedTask, []model.RejectedItem, error) {
	if len(events) == 0 && len(tasks) == 0 {
		return nil, nil, nil, nil
	}

	verdicts, err := v.askModel(ctx, events, tasks, referenceDate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("validating day: %w", err)
	}
	rejectedBy := map[string]string{}
	for _, vd := range verdicts {
		if vd.Verdict == "reject" && vd.Title != "" {
			reason := vd.Reason
			if reason == "" {
				reason = "rejected by validator"
			}
			rejectedBy[normalizeTitle(vd.Title)] = reason
		}
	}

	var rejected []model.RejectedItem
	var validEvents []model.FormattedEvent
	seenStarts := map[string]struct{}{}
	for _, ev := range events {
		if reason, ok := rejectedBy[normalizeTitle(ev.Title)]; ok {
			rejected = append(rejected, model.RejectedItem{Title: ev.Title, Reason: reason})
			continue
		}
		if ev.StartDate.Before(referenceDate.Add(-maxPastAge)) {
			rejected = append(rejected, model.RejectedItem{Title: ev.Title, Reason: "dated more than 7 days in the past"})
			continue
		}
		dupKey := normalizeTitle(ev.Title) + "|" + ev.StartDate.Format(time.RFC3339)
		if _, dup := seenStarts[dupKey]; dup {
			rejected = append(rejected, model.RejectedItem{Title: ev.Title, Reason: "duplicate of another item in this batch"})
			continue
		}
		seenStarts[dupKey] = struct{}{}

		// Downgrades, not rejections: far-future or timeless events are
		// kept but trusted less.
		if ev.StartDate.After(referenceDate.Add(farFutureHorizon)) || ev.IsAllDay {
			ev.Confidence = downgrade(ev.Confidence)
		}
		validEvents = append(validEvents, ev)
	}

	var validTasks []model.FormattedTask
	seenTasks := map[string]struct{}{}
	for _, task := range tasks {
		if reason, ok := rejectedBy[normalizeTitle(task.Title)]; ok {
			rejected = append(rejected, model.RejectedItem{Title: task.Title, Reason: reason})
			continue
		}
		if task.DueDate != nil && task.DueDate.Before(referenceDate.Add(-maxPastAge)) {
			rejected = append(rejected, model.RejectedItem{Title: task.Title, Reason: "due more than 7 days in the past"})
			continue
		}
		key := normalizeTitle(task.Title)
		if _, dup := seenTasks[key]; dup {
			rejected = append(rejected, model.RejectedItem{Title: task.Title, Reason: "duplicate of another item in this batch"})
			continue
		}
		seenTasks[key] = struct{}{}
		validTasks = append(validTasks, task)
	}

	v.logger.Debug("validation complete",
		zap.Int("events_kept", len(validEvents)),
		zap.Int("tasks_kept", len(validTasks)),
		zap.Int("rejected", len(rejected)))
	return validEvents, validTasks, rejected, nil
}

// askModel collects keep/reject verdicts for the whole working set.
func (v *ValidatorAgent) askModel(ctx context.Context, events []model.FormattedEvent, tasks []model.FormattedTask, referenceDate time.Time) ([]verdict, error) {
	payload, err := json.Marshal(struct {
		Events []model.FormattedEvent `json:"events"`
		Tasks  []model.FormattedTask  `json:"tasks"`
	}{Events: events, Tasks: tasks})
	if err != nil {
		return nil, fmt.Errorf("marshaling working set: %w", err)
	}

	raw, err := v.llm.Invoke(ctx, llm.Request{
		System:      fmt.Sprintf(validatorSystemPrompt, refDateLine(referenceDate)),
		User:        string(payload),
		Schema:      validatorSchema,
		Temperature: 0.1,
		UseCache:    true,
	})
	if err != nil {
		return nil, err
	}
	var resp validatorResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, err
	}
	return append(resp.Events, resp.Tasks...), nil
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func downgrade(c model.Confidence) model.Confidence {
	switch c {
	case model.ConfidenceHigh:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
