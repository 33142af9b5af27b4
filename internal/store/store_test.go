package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agendad/internal/model"
)

// The same behavioral suite runs against both implementations.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "agendad.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func sampleEvent() model.FormattedEvent {
	return model.FormattedEvent{
		Title:      "Coffee with Sam",
		StartDate:  time.Date(2025, 1, 2, 14, 0, 0, 0, time.Local),
		EndDate:    time.Date(2025, 1, 2, 15, 0, 0, 0, time.Local),
		Location:   "Blue Bottle",
		People:     []string{"Sam"},
		Confidence: model.ConfidenceHigh,
		Source:     model.SourceMessages,
	}
}

func TestUpsertEventsIdempotent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			n, err := s.UpsertEvents(ctx, []model.FormattedEvent{sampleEvent()})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			// Same event again: no new row.
			n, err = s.UpsertEvents(ctx, []model.FormattedEvent{sampleEvent()})
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			// Same title within the 1-hour window: still a duplicate.
			shifted := sampleEvent()
			shifted.StartDate = shifted.StartDate.Add(30 * time.Minute)
			n, err = s.UpsertEvents(ctx, []model.FormattedEvent{shifted})
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			// Outside the window: a distinct occurrence.
			later := sampleEvent()
			later.StartDate = later.StartDate.Add(3 * time.Hour)
			later.EndDate = later.EndDate.Add(3 * time.Hour)
			n, err = s.UpsertEvents(ctx, []model.FormattedEvent{later})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			events, err := s.EventsForDay(ctx, time.Date(2025, 1, 2, 0, 0, 0, 0, time.Local))
			require.NoError(t, err)
			assert.Len(t, events, 2)
		})
	}
}

func TestUpsertEventsDifferentSourceNotDuplicate(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.UpsertEvents(ctx, []model.FormattedEvent{sampleEvent()})
			require.NoError(t, err)

			fromEmail := sampleEvent()
			fromEmail.Source = model.SourceEmail
			n, err := s.UpsertEvents(ctx, []model.FormattedEvent{fromEmail})
			require.NoError(t, err)
			assert.Equal(t, 1, n, "same title from a different source is distinct")
		})
	}
}

func TestUpsertTasksIdempotent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.Local)
			tasks := []model.FormattedTask{
				{Title: "File taxes", DueDate: &due, Confidence: model.ConfidenceHigh, Source: model.SourceMessages},
				{Title: "Call the plumber", Confidence: model.ConfidenceMedium, Source: model.SourceMessages},
			}

			n, err := s.UpsertTasks(ctx, tasks)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			n, err = s.UpsertTasks(ctx, tasks)
			require.NoError(t, err)
			assert.Equal(t, 0, n, "exact title+source match is a duplicate")
		})
	}
}

func TestLogActivity(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.LogActivity(context.Background(), ActivityEntry{
				Day:           "2025-01-02",
				EventsCreated: 2,
				TasksCreated:  1,
			})
			require.NoError(t, err)
		})
	}
}

func TestEventRoundTrip(t *testing.T) {
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "roundtrip.db"))
	require.NoError(t, err)
	defer sqlite.Close()

	ctx := context.Background()
	_, err = sqlite.UpsertEvents(ctx, []model.FormattedEvent{sampleEvent()})
	require.NoError(t, err)

	events, err := sqlite.EventsForDay(ctx, time.Date(2025, 1, 2, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "Coffee with Sam", ev.Title)
	assert.Equal(t, []string{"Sam"}, ev.People)
	assert.Equal(t, model.ConfidenceHigh, ev.Confidence)
	assert.Equal(t, model.SourceMessages, ev.Source)
	assert.True(t, ev.StartDate.Equal(sampleEvent().StartDate))
}
