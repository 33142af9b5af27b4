// Package model defines the data types that flow through the extraction
// pipeline, from raw conversation batches to persisted events and tasks.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SourceType identifies where a conversation thread was captured from.
type SourceType string

const (
	SourceMessages SourceType = "messages"
	SourceEmail    SourceType = "email"
	SourceNotes    SourceType = "notes"
	SourceCalendar SourceType = "calendar"
)

// Confidence is the extraction certainty tier carried from extraction
// through to persistence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the known tiers.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// ItemType distinguishes calendar events from tasks.
type ItemType string

const (
	ItemEvent ItemType = "event"
	ItemTask  ItemType = "task"
)

// MessageItem is a single message within a conversation thread.
type MessageItem struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsFromMe  bool      `json:"is_from_me"`
}

// ConversationThread is an ordered exchange between a fixed set of
// participants on a single day.
type ConversationThread struct {
	ThreadID     string        `json:"thread_id"`
	Source       SourceType    `json:"source"`
	Participants []string      `json:"participants"`
	Messages     []MessageItem `json:"messages"`
}

// RawConversationBatch holds one calendar day's worth of threads.
// Batches are immutable once built and rebuilt on every processing pass.
type RawConversationBatch struct {
	Date    time.Time
	Threads []ConversationThread
}

// IsEmpty reports whether the batch contains no messages at all.
func (b *RawConversationBatch) IsEmpty() bool {
	return b == nil || b.MessageCount() == 0
}

// MessageCount returns the total number of messages across all threads.
func (b *RawConversationBatch) MessageCount() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, t := range b.Threads {
		n += len(t.Messages)
	}
	return n
}

// Participants returns the sorted, de-duplicated set of people appearing
// in the batch, excluding the owner's own "me" side.
func (b *RawConversationBatch) Participants() []string {
	seen := map[string]struct{}{}
	for _, t := range b.Threads {
		for _, p := range t.Participants {
			if p == "" {
				continue
			}
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// DominantSource returns the source type contributing the most messages,
// used to stamp formatted output for persistence dedup. Defaults to
// SourceMessages for an empty batch.
func (b *RawConversationBatch) DominantSource() SourceType {
	counts := map[SourceType]int{}
	for _, t := range b.Threads {
		counts[t.Source] += len(t.Messages)
	}
	best := SourceMessages
	bestCount := 0
	for src, n := range counts {
		if n > bestCount {
			best = src
			bestCount = n
		}
	}
	return best
}

// Transcript renders the batch as plain text for prompting and for
// content hashing. Threads are separated, messages keep sender labels.
func (b *RawConversationBatch) Transcript() string {
	var sb strings.Builder
	for i, t := range b.Threads {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "--- Conversation with %s (%s) ---\n",
			strings.Join(t.Participants, ", "), t.Source)
		for _, m := range t.Messages {
			sender := m.Sender
			if m.IsFromMe {
				sender = "Me"
			}
			fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Timestamp.Format("15:04"), sender, m.Content)
		}
	}
	return sb.String()
}

// DailyStory is the narrative summary of one batch. It exists only for
// the duration of a pipeline run and is never persisted.
type DailyStory struct {
	Date              time.Time
	Narrative         string
	KeyPeople         []string
	ConversationCount int
}

// ExtractedItem is a candidate event or task pulled from a story. It is
// transient: it only exists between the Extractor and Formatter stages.
type ExtractedItem struct {
	Title      string     `json:"title"`
	ItemType   ItemType   `json:"item_type"`
	RoughDate  string     `json:"rough_date"`
	RoughTime  string     `json:"rough_time"`
	People     []string   `json:"people"`
	Location   string     `json:"location"`
	Confidence Confidence `json:"confidence"`
	Context    string     `json:"context"`
}

// FormattedEvent is a fully resolved, absolute-time calendar event.
type FormattedEvent struct {
	ID         string     `json:"id,omitempty"`
	Title      string     `json:"title"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	IsAllDay   bool       `json:"is_all_day"`
	Location   string     `json:"location,omitempty"`
	People     []string   `json:"people,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Confidence Confidence `json:"confidence"`
	Source     SourceType `json:"source"`
}

// FormattedTask is a fully resolved task. DueDate stays nil when the
// source material never gave one.
type FormattedTask struct {
	ID         string     `json:"id,omitempty"`
	Title      string     `json:"title"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Confidence Confidence `json:"confidence"`
	Source     SourceType `json:"source"`
}

// IssueType classifies a problem the critic found with one item.
type IssueType string

const (
	IssueMissingInfo   IssueType = "missing_info"
	IssueWrongDate     IssueType = "wrong_date"
	IssueWrongType     IssueType = "wrong_type"
	IssueDuplicate     IssueType = "duplicate"
	IssueVague         IssueType = "vague"
	IssueHallucination IssueType = "hallucination"
)

// Issue is a single per-item problem flagged by the critic.
type Issue struct {
	ItemTitle    string    `json:"item_title"`
	IssueType    IssueType `json:"issue_type"`
	Description  string    `json:"description"`
	SuggestedFix string    `json:"suggested_fix"`
}

// CriticResult is the self-reflection verdict over one extraction pass.
type CriticResult struct {
	QualityScore float64  `json:"quality_score"`
	Issues       []Issue  `json:"issues"`
	MissingItems []string `json:"missing_items"`
	ShouldRetry  bool     `json:"should_retry"`
}

// VerificationResult is the outcome of the skeptical second pass.
// ConsensusScore is the fraction of items the reviewer agreed with.
type VerificationResult struct {
	AgreedEvents   []FormattedEvent
	AgreedTasks    []FormattedTask
	DisputedItems  []string
	ConsensusScore float64
}

// RejectedItem records why an item was dropped, for audit and debugging.
type RejectedItem struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// StageTimings records wall-clock duration per pipeline stage.
type StageTimings struct {
	Story    time.Duration `json:"story"`
	Extract  time.Duration `json:"extract"`
	Format   time.Duration `json:"format"`
	Reflect  time.Duration `json:"reflect"`
	Verify   time.Duration `json:"verify"`
	Validate time.Duration `json:"validate"`
	Persist  time.Duration `json:"persist"`
	Total    time.Duration `json:"total"`
}

// PipelineResult is the final per-day output handed to persistence.
type PipelineResult struct {
	Date     time.Time        `json:"date"`
	Events   []FormattedEvent `json:"events"`
	Tasks    []FormattedTask  `json:"tasks"`
	Story    *DailyStory      `json:"-"`
	Rejected []RejectedItem   `json:"rejected"`
	Timings  StageTimings     `json:"timings"`
}

// DayKey formats a date as the canonical per-day identifier.
func DayKey(d time.Time) string {
	return d.Format("2006-01-02")
}
