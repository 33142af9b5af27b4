// Package store is the persistence collaborator: it holds final events,
// tasks, and the per-day activity log, with duplicate-aware upsert
// semantics.
//
// Duplicate matching is deliberately approximate: an event is a duplicate
// when title and source match and its start falls within one hour of an
// existing start; a task when title and source match exactly. Differently
// phrased titles for the same real-world item are not unified.
package store

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/agendad/internal/model"
)

// DuplicateWindow is how far an event start may drift from an existing
// one and still count as the same event.
const DuplicateWindow = time.Hour

// ActivityEntry summarizes one persistence pass for the activity log.
type ActivityEntry struct {
	Day           string    `json:"day"`
	EventsCreated int       `json:"events_created"`
	TasksCreated  int       `json:"tasks_created"`
	ItemsRejected int       `json:"items_rejected"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists pipeline output. Implementations must be safe for
// concurrent use.
type Store interface {
	// UpsertEvents inserts events that have no duplicate already stored
	// and returns how many were inserted.
	UpsertEvents(ctx context.Context, events []model.FormattedEvent) (int, error)
	// UpsertTasks inserts tasks that have no duplicate already stored
	// and returns how many were inserted.
	UpsertTasks(ctx context.Context, tasks []model.FormattedTask) (int, error)
	// LogActivity appends one activity-log record.
	LogActivity(ctx context.Context, entry ActivityEntry) error
	// EventsForDay returns stored events starting on the given day.
	EventsForDay(ctx context.Context, day time.Time) ([]model.FormattedEvent, error)
	Close() error
}
