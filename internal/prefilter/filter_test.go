package prefilter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/agendad/internal/model"
)

func TestUniversalRejects(t *testing.T) {
	f := New(Config{})

	tests := []struct {
		name   string
		item   Item
		reason string
	}{
		{
			name:   "too short",
			item:   Item{Source: model.SourceMessages, Content: "ok"},
			reason: "content too short",
		},
		{
			name:   "already extracted",
			item:   Item{Source: model.SourceMessages, Content: "lunch tomorrow at noon?", SchemaVersion: 1},
			reason: "already extracted at current schema version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Check(tt.item)
			assert.False(t, d.Process)
			assert.Equal(t, tt.reason, d.SkipReason)
		})
	}
}

func TestDuplicateContent(t *testing.T) {
	f := New(Config{})
	item := Item{Source: model.SourceMessages, Content: "dinner with Sam tomorrow at 7pm"}

	first := f.Check(item)
	assert.True(t, first.Process)

	second := f.Check(item)
	assert.False(t, second.Process)
	assert.Equal(t, "duplicate content", second.SkipReason)
}

func TestDuplicateExpiresAfterTTL(t *testing.T) {
	f := New(Config{DuplicateTTL: time.Hour})
	now := time.Now()
	f.now = func() time.Time { return now }

	item := Item{Source: model.SourceMessages, Content: "dinner with Sam tomorrow at 7pm"}
	assert.True(t, f.Check(item).Process)

	now = now.Add(2 * time.Hour)
	assert.True(t, f.Check(item).Process, "expired hash must not block")
}

func TestCalendarAlwaysPasses(t *testing.T) {
	f := New(Config{})
	d := f.Check(Item{Source: model.SourceCalendar, Content: "Quarterly review block"})
	assert.True(t, d.Process)
	assert.Equal(t, PriorityHigh, d.Priority)
}

func TestEmailDenyLists(t *testing.T) {
	f := New(Config{})

	tests := []struct {
		name   string
		sender string
		body   string
		reason string
	}{
		{"noreply sender", "noreply@store.com", "Your meeting is scheduled tomorrow at 10am", "automated sender"},
		{"no-reply sender", "no-reply@bank.com", "Your appointment reminder for tomorrow", "automated sender"},
		{"promotional", "friend@example.com", "Everything is 50% off this weekend, sale ends Sunday!", "promotional content"},
		{"automated phrase", "system@corp.com", "This is an automated message about your meeting tomorrow at 2pm.", "automated message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Check(Item{Source: model.SourceEmail, Sender: tt.sender, Content: tt.body})
			assert.False(t, d.Process)
			assert.Equal(t, tt.reason, d.SkipReason)
		})
	}

	// A personal email with real scheduling content passes.
	d := f.Check(Item{
		Source:  model.SourceEmail,
		Sender:  "alex@example.com",
		Content: "Can you confirm our meeting tomorrow at 3pm?",
	})
	assert.True(t, d.Process)
}

func TestActionableScoreGate(t *testing.T) {
	f := New(Config{})

	chatter := f.Check(Item{Source: model.SourceMessages, Content: "haha that movie was so good honestly"})
	assert.False(t, chatter.Process)
	assert.Equal(t, "no actionable content", chatter.SkipReason)

	plan := f.Check(Item{Source: model.SourceMessages, Content: "Want to grab coffee tomorrow at 2pm?"})
	assert.True(t, plan.Process)
}

func TestUrgentContentGetsRealtimePriority(t *testing.T) {
	f := New(Config{})
	d := f.Check(Item{Source: model.SourceMessages, Content: "Can you call me today at 4pm? It's about the deadline"})
	assert.True(t, d.Process)
	assert.Equal(t, PriorityRealtime, d.Priority)
}

func TestActionableScoreSignals(t *testing.T) {
	assert.Greater(t,
		ActionableScore("Meeting tomorrow at 10am to review the deadline"),
		ActionableScore("nice weather lately"),
	)
	// Time pattern alone contributes.
	assert.Greater(t, ActionableScore("see you at 7:30"), 0.0)
}
