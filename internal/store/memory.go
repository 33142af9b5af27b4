package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/agendad/internal/model"
)

// MemoryStore is an in-memory Store used in tests and as a fallback when
// no database path is configured.
type MemoryStore struct {
	mu       sync.Mutex
	events   []model.FormattedEvent
	tasks    []model.FormattedTask
	activity []ActivityEntry
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// UpsertEvents inserts non-duplicate events.
func (s *MemoryStore) UpsertEvents(_ context.Context, events []model.FormattedEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, ev := range events {
		if s.hasEventLocked(ev) {
			continue
		}
		ev.ID = uuid.NewString()
		s.events = append(s.events, ev)
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) hasEventLocked(ev model.FormattedEvent) bool {
	for _, existing := range s.events {
		if existing.Title != ev.Title || existing.Source != ev.Source {
			continue
		}
		delta := existing.StartDate.Sub(ev.StartDate)
		if delta < 0 {
			delta = -delta
		}
		if delta <= DuplicateWindow {
			return true
		}
	}
	return false
}

// UpsertTasks inserts non-duplicate tasks.
func (s *MemoryStore) UpsertTasks(_ context.Context, tasks []model.FormattedTask) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, task := range tasks {
		dup := false
		for _, existing := range s.tasks {
			if existing.Title == task.Title && existing.Source == task.Source {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		task.ID = uuid.NewString()
		s.tasks = append(s.tasks, task)
		inserted++
	}
	return inserted, nil
}

// LogActivity appends one record.
func (s *MemoryStore) LogActivity(_ context.Context, entry ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.activity = append(s.activity, entry)
	return nil
}

// EventsForDay returns stored events starting on day.
func (s *MemoryStore) EventsForDay(_ context.Context, day time.Time) ([]model.FormattedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.DayKey(day)
	var out []model.FormattedEvent
	for _, ev := range s.events {
		if model.DayKey(ev.StartDate) == key {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Activity returns a copy of the activity log.
func (s *MemoryStore) Activity() []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEntry, len(s.activity))
	copy(out, s.activity)
	return out
}

// Tasks returns a copy of the stored tasks.
func (s *MemoryStore) Tasks() []model.FormattedTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.FormattedTask, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
