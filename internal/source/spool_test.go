package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agendad/internal/model"
	"github.com/fyrsmithlabs/agendad/internal/prefilter"
)

var spoolDate = time.Date(2025, 1, 2, 0, 0, 0, 0, time.Local)

func writeSpool(t *testing.T, dir string, day time.Time, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, model.DayKey(day)+".jsonl")
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func threadLine(id string, source model.SourceType, sender, text string) string {
	return fmt.Sprintf(`{"thread_id": %q, "source": %q, "participants": [%q], "messages": [`+
		`{"content": %q, "sender": %q, "timestamp": "2025-01-02T10:00:00Z"},`+
		`{"content": "Sounds good, lets lock it in", "sender": "", "is_from_me": true, "timestamp": "2025-01-02T10:01:00Z"}]}`,
		id, source, sender, text, sender)
}

func TestBatchForDayReadsThreads(t *testing.T) {
	dir := t.TempDir()
	writeSpool(t, dir, spoolDate,
		threadLine("t1", model.SourceMessages, "Sam", "Coffee tomorrow at 2pm at Blue Bottle?"),
		threadLine("t2", model.SourceNotes, "Me", "Remember to call the dentist on Friday at 9am to reschedule"),
	)

	s, err := NewSpool(dir, nil, nil)
	require.NoError(t, err)

	batch, err := s.BatchForDay(context.Background(), spoolDate)
	require.NoError(t, err)
	require.Len(t, batch.Threads, 2)
	assert.Equal(t, "t1", batch.Threads[0].ThreadID)
	assert.Equal(t, 4, batch.MessageCount())
	assert.True(t, batch.Date.Equal(spoolDate))
}

func TestBatchForDayMissingFileIsEmpty(t *testing.T) {
	s, err := NewSpool(t.TempDir(), nil, nil)
	require.NoError(t, err)

	batch, err := s.BatchForDay(context.Background(), spoolDate)
	require.NoError(t, err)
	assert.True(t, batch.IsEmpty())
}

func TestBatchForDaySkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	writeSpool(t, dir, spoolDate,
		"{not json",
		threadLine("t1", model.SourceMessages, "Sam", "Dinner on Thursday at 7pm?"),
		"",
	)

	s, err := NewSpool(dir, nil, nil)
	require.NoError(t, err)

	batch, err := s.BatchForDay(context.Background(), spoolDate)
	require.NoError(t, err)
	assert.Len(t, batch.Threads, 1)
}

func TestBatchForDayAppliesPrefilter(t *testing.T) {
	dir := t.TempDir()
	writeSpool(t, dir, spoolDate,
		threadLine("actionable", model.SourceMessages, "Sam", "Can you meet tomorrow at 2pm to go over the contract?"),
		threadLine("noise", model.SourceMessages, "Sam", "haha yeah that was so funny honestly"),
		threadLine("promo", model.SourceEmail, "noreply@deals.example.com", "FLASH SALE: unsubscribe link below, 50% off everything today"),
	)

	s, err := NewSpool(dir, prefilter.New(prefilter.Config{}), nil)
	require.NoError(t, err)

	batch, err := s.BatchForDay(context.Background(), spoolDate)
	require.NoError(t, err)
	require.Len(t, batch.Threads, 1)
	assert.Equal(t, "actionable", batch.Threads[0].ThreadID)
}

func TestBatchForDayOrdersThreadsByPriority(t *testing.T) {
	dir := t.TempDir()
	writeSpool(t, dir, spoolDate,
		threadLine("routine", model.SourceMessages, "Alex", "Want to grab lunch sometime soon maybe?"),
		threadLine("urgent", model.SourceMessages, "Sam", "Can we meet today at 3pm? Need an answer asap"),
	)

	s, err := NewSpool(dir, prefilter.New(prefilter.Config{}), nil)
	require.NoError(t, err)

	batch, err := s.BatchForDay(context.Background(), spoolDate)
	require.NoError(t, err)
	require.Len(t, batch.Threads, 2)
	assert.Equal(t, "urgent", batch.Threads[0].ThreadID, "urgent thread leads the batch")
	assert.Equal(t, "routine", batch.Threads[1].ThreadID)
}

func TestBatchForDayOrdersMessages(t *testing.T) {
	dir := t.TempDir()
	line := `{"thread_id": "t1", "source": "messages", "participants": ["Sam"], "messages": [` +
		`{"content": "See you then for the meeting", "sender": "Sam", "timestamp": "2025-01-02T12:00:00Z"},` +
		`{"content": "Meeting at noon tomorrow to review plans?", "sender": "Sam", "timestamp": "2025-01-02T09:00:00Z"}]}`
	writeSpool(t, dir, spoolDate, line)

	s, err := NewSpool(dir, nil, nil)
	require.NoError(t, err)

	batch, err := s.BatchForDay(context.Background(), spoolDate)
	require.NoError(t, err)
	require.Len(t, batch.Threads, 1)
	msgs := batch.Threads[0].Messages
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Timestamp.Before(msgs[1].Timestamp))
}

func TestNewSpoolRejectsMissingDir(t *testing.T) {
	_, err := NewSpool(filepath.Join(t.TempDir(), "absent"), nil, nil)
	require.Error(t, err)
}
