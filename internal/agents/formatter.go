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

// dateTableDays is how far ahead the explicit date lookup table reaches.
const dateTableDays = 14

const defaultEventDuration = time.Hour

const formatterSystemPrompt = `%s

%s

Time-of-day defaults:
  morning = 09:00, noon = 12:00, afternoon = 15:00, evening = 18:00, night = 20:00

You resolve rough dates and times into absolute timestamps using ONLY the
tables above.

Rules:
- Timestamps are local time in the format 2006-01-02T15:04:05.
- An event with a date but no time at all is an all-day event
  (is_all_day = true, start at 00:00:00).
- An event without an explicit end time ends one hour after it starts.
- A task keeps due_date empty when the narrative never gave one.
- Carry each item's confidence through unchanged.`

var formatterSchema = json.RawMessage(`{
  "type": "object",
  "required": ["events", "tasks"],
  "properties": {
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "start_date", "confidence"],
        "properties": {
          "title": {"type": "string"},
          "start_date": {"type": "string"},
          "end_date": {"type": "string"},
          "is_all_day": {"type": "boolean"},
          "location": {"type": "string"},
          "people": {"type": "array", "items": {"type": "string"}},
          "notes": {"type": "string"},
          "confidence": {"type": "string", "enum": ["high", "medium", "low"]}
        }
      }
    },
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "confidence"],
        "properties": {
          "title": {"type": "string"},
          "due_date": {"type": "string"},
          "notes": {"type": "string"},
          "confidence": {"type": "string", "enum": ["high", "medium", "low"]}
        }
      }
    }
  }
}`)

// FormatterAgent resolves extracted items into absolute-time events and
// tasks.
type FormatterAgent struct {
	llm    Invoker
	logger *zap.Logger
}

// NewFormatter creates a FormatterAgent.
func NewFormatter(inv Invoker, logger *zap.Logger) *FormatterAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormatterAgent{llm: inv, logger: logger.Named("formatter")}
}

type wireEvent struct {
	Title      string           `json:"title"`
	StartDate  string           `json:"start_date"`
	EndDate    string           `json:"end_date"`
	IsAllDay   bool             `json:"is_all_day"`
	Location   string           `json:"location"`
	People     []string         `json:"people"`
	Notes      string           `json:"notes"`
	Confidence model.Confidence `json:"confidence"`
}

type wireTask struct {
	Title      string           `json:"title"`
	DueDate    string           `json:"due_date"`
	Notes      string           `json:"notes"`
	Confidence model.Confidence `json:"confidence"`
}

type formatterResponse struct {
	Events []wireEvent `json:"events"`
	Tasks  []wireTask  `json:"tasks"`
}

// Format resolves items against referenceDate.
func (f *FormatterAgent) Format(ctx context.Context, items []model.ExtractedItem, referenceDate time.Time) ([]model.FormattedEvent, []model.FormattedTask, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}

	payload, err := json.Marshal(struct {
		Items []model.ExtractedItem `json:"items"`
	}{Items: items})
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling items: %w", err)
	}

	raw, err := f.llm.Invoke(ctx, llm.Request{
		System:      fmt.Sprintf(formatterSystemPrompt, refDateLine(referenceDate), dateTable(referenceDate)),
		User:        string(payload),
		Schema:      formatterSchema,
		Temperature: 0.1,
		UseCache:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("formatting items: %w", err)
	}

	var resp formatterResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, nil, err
	}

	var events []model.FormattedEvent
	for _, we := range resp.Events {
		ev, ok := f.resolveEvent(we)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	var tasks []model.FormattedTask
	for _, wt := range resp.Tasks {
		if wt.Title == "" {
			continue
		}
		task := model.FormattedTask{
			Title:      wt.Title,
			Notes:      wt.Notes,
			Confidence: wt.Confidence,
		}
		if !task.Confidence.Valid() {
			task.Confidence = model.ConfidenceMedium
		}
		if wt.DueDate != "" {
			if due, _, err := parseTimestamp(wt.DueDate); err == nil {
				task.DueDate = &due
			} else {
				f.logger.Debug("unparseable task due date, keeping task undated",
					zap.String("title", wt.Title), zap.String("due_date", wt.DueDate))
			}
		}
		tasks = append(tasks, task)
	}
	return events, tasks, nil
}

// resolveEvent applies the duration and all-day defaults to one wire
// event. Events without a parseable start are dropped.
func (f *FormatterAgent) resolveEvent(we wireEvent) (model.FormattedEvent, bool) {
	if we.Title == "" || we.StartDate == "" {
		return model.FormattedEvent{}, false
	}
	start, dateOnly, err := parseTimestamp(we.StartDate)
	if err != nil {
		f.logger.Debug("unparseable event start, dropping",
			zap.String("title", we.Title), zap.String("start_date", we.StartDate))
		return model.FormattedEvent{}, false
	}

	ev := model.FormattedEvent{
		Title:      we.Title,
		StartDate:  start,
		IsAllDay:   we.IsAllDay || dateOnly,
		Location:   we.Location,
		People:     we.People,
		Notes:      we.Notes,
		Confidence: we.Confidence,
	}
	if !ev.Confidence.Valid() {
		ev.Confidence = model.ConfidenceMedium
	}
	if ev.IsAllDay {
		ev.StartDate = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		ev.EndDate = ev.StartDate.Add(24 * time.Hour)
		return ev, true
	}
	if we.EndDate != "" {
		if end, _, err := parseTimestamp(we.EndDate); err == nil && end.After(start) {
			ev.EndDate = end
			return ev, true
		}
	}
	ev.EndDate = start.Add(defaultEventDuration)
	return ev, true
}

// parseTimestamp accepts the formats models actually emit. The bool
// result reports whether the input carried a date only.
func parseTimestamp(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp %q", s)
}

// dateTable renders today plus the next dateTableDays days, each with its
// weekday and a relative label, so the model never does date arithmetic.
func dateTable(ref time.Time) string {
	var sb strings.Builder
	sb.WriteString("Date lookup table:\n")
	for i := 0; i <= dateTableDays; i++ {
		d := ref.AddDate(0, 0, i)
		var label string
		switch i {
		case 0:
			label = "today"
		case 1:
			label = "tomorrow"
		default:
			label = fmt.Sprintf("in %d days", i)
		}
		fmt.Fprintf(&sb, "  %s = %s (%s)\n", d.Format("2006-01-02"), d.Weekday(), label)
	}
	return sb.String()
}
