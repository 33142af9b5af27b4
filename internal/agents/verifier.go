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

const verifierSystemPrompt = `%s

You are a skeptical reviewer. A first model extracted the events and
tasks below from the narrative. Your only job is to challenge each item:
Is it explicitly supported by the narrative? Is the date right? Is it
truly actionable rather than a vague possibility?

Respond with exactly one line per item, nothing else:
  AGREE: <title>
  DISPUTE: <title> | <short reason>`

// VerifierAgent runs the adversarial second pass. It never returns an
// error: any failure degrades to keeping the full working set, because
// over-inclusion is cheaper than silent data loss.
type VerifierAgent struct {
	llm    Invoker
	logger *zap.Logger
}

// NewVerifier creates a VerifierAgent.
func NewVerifier(inv Invoker, logger *zap.Logger) *VerifierAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerifierAgent{llm: inv, logger: logger.Named("verifier")}
}

// CrossVerify challenges every event and task against the original story
// and returns the agreed subset with a consensus score.
func (v *VerifierAgent) CrossVerify(ctx context.Context, events []model.FormattedEvent, tasks []model.FormattedTask, story *model.DailyStory, referenceDate time.Time) *model.VerificationResult {
	total := len(events) + len(tasks)
	if total == 0 {
		return &model.VerificationResult{ConsensusScore: 1.0}
	}

	payload, err := json.Marshal(struct {
		Narrative string                 `json:"narrative"`
		Events    []model.FormattedEvent `json:"events"`
		Tasks     []model.FormattedTask  `json:"tasks"`
	}{Narrative: story.Narrative, Events: events, Tasks: tasks})
	if err != nil {
		return v.failSafe(events, tasks, "marshaling working set", err)
	}

	raw, err := v.llm.Invoke(ctx, llm.Request{
		System:      fmt.Sprintf(verifierSystemPrompt, refDateLine(referenceDate)),
		User:        string(payload),
		Temperature: 0.3,
		UseCache:    true,
	})
	if err != nil {
		return v.failSafe(events, tasks, "verifier call failed", err)
	}

	agreed, disputed := parseVerdictLines(raw)
	if len(agreed) == 0 && len(disputed) == 0 {
		return v.failSafe(events, tasks, "unparseable verifier output", nil)
	}

	result := &model.VerificationResult{}
	agreedCount := 0
	for _, ev := range events {
		key := normalizeTitle(ev.Title)
		if _, isDisputed := disputed[key]; isDisputed {
			result.DisputedItems = append(result.DisputedItems, ev.Title)
			continue
		}
		// Items the reviewer never mentioned count as agreed: bias
		// toward over-inclusion.
		result.AgreedEvents = append(result.AgreedEvents, ev)
		agreedCount++
	}
	for _, task := range tasks {
		key := normalizeTitle(task.Title)
		if _, isDisputed := disputed[key]; isDisputed {
			result.DisputedItems = append(result.DisputedItems, task.Title)
			continue
		}
		result.AgreedTasks = append(result.AgreedTasks, task)
		agreedCount++
	}

	if agreedCount == 0 {
		return v.failSafe(events, tasks, "verifier disputed everything", nil)
	}
	result.ConsensusScore = float64(agreedCount) / float64(total)
	return result
}

// failSafe keeps every original item.
func (v *VerifierAgent) failSafe(events []model.FormattedEvent, tasks []model.FormattedTask, msg string, err error) *model.VerificationResult {
	v.logger.Warn("verification fail-safe: keeping all items", zap.String("cause", msg), zap.Error(err))
	return &model.VerificationResult{
		AgreedEvents:   events,
		AgreedTasks:    tasks,
		ConsensusScore: 1.0,
	}
}

// parseVerdictLines extracts AGREE/DISPUTE verdicts keyed by normalized
// title. Unrecognized lines are ignored.
func parseVerdictLines(raw string) (agreed map[string]struct{}, disputed map[string]string) {
	agreed = map[string]struct{}{}
	disputed = map[string]string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "AGREE:"):
			title := normalizeTitle(strings.TrimPrefix(line, "AGREE:"))
			if title != "" {
				agreed[title] = struct{}{}
			}
		case strings.HasPrefix(line, "DISPUTE:"):
			rest := strings.TrimPrefix(line, "DISPUTE:")
			title, reason, _ := strings.Cut(rest, "|")
			title = normalizeTitle(title)
			if title != "" {
				disputed[title] = strings.TrimSpace(reason)
			}
		}
	}
	return agreed, disputed
}
