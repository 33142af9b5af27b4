package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/agendad/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	start_at   INTEGER NOT NULL,
	end_at     INTEGER NOT NULL,
	all_day    INTEGER NOT NULL DEFAULT 0,
	location   TEXT NOT NULL DEFAULT '',
	people     TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT '',
	confidence TEXT NOT NULL,
	source     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_title_source ON events(title, source);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);

CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	due_at     INTEGER,
	notes      TEXT NOT NULL DEFAULT '',
	confidence TEXT NOT NULL,
	source     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_title_source ON tasks(title, source);

CREATE TABLE IF NOT EXISTS activity_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	day            TEXT NOT NULL,
	events_created INTEGER NOT NULL,
	tasks_created  INTEGER NOT NULL,
	items_rejected INTEGER NOT NULL,
	created_at     INTEGER NOT NULL
);
`

// SQLiteStore persists pipeline output in a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite handles one writer; serialize at the pool level.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// UpsertEvents inserts events with no stored duplicate: same title and
// source within DuplicateWindow of an existing start.
func (s *SQLiteStore) UpsertEvents(ctx context.Context, events []model.FormattedEvent) (int, error) {
	inserted := 0
	for _, ev := range events {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM events WHERE title = ? AND source = ? AND start_at BETWEEN ? AND ?`,
			ev.Title, string(ev.Source),
			ev.StartDate.Add(-DuplicateWindow).Unix(),
			ev.StartDate.Add(DuplicateWindow).Unix(),
		).Scan(&count)
		if err != nil {
			return inserted, fmt.Errorf("checking event duplicate: %w", err)
		}
		if count > 0 {
			continue
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO events (id, title, start_at, end_at, all_day, location, people, notes, confidence, source, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), ev.Title, ev.StartDate.Unix(), ev.EndDate.Unix(),
			boolToInt(ev.IsAllDay), ev.Location, strings.Join(ev.People, ","),
			ev.Notes, string(ev.Confidence), string(ev.Source), time.Now().Unix(),
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting event %q: %w", ev.Title, err)
		}
		inserted++
	}
	return inserted, nil
}

// UpsertTasks inserts tasks with no stored duplicate: exact title and
// source match.
func (s *SQLiteStore) UpsertTasks(ctx context.Context, tasks []model.FormattedTask) (int, error) {
	inserted := 0
	for _, task := range tasks {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE title = ? AND source = ?`,
			task.Title, string(task.Source),
		).Scan(&count)
		if err != nil {
			return inserted, fmt.Errorf("checking task duplicate: %w", err)
		}
		if count > 0 {
			continue
		}
		var due any
		if task.DueDate != nil {
			due = task.DueDate.Unix()
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO tasks (id, title, due_at, notes, confidence, source, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), task.Title, due, task.Notes,
			string(task.Confidence), string(task.Source), time.Now().Unix(),
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting task %q: %w", task.Title, err)
		}
		inserted++
	}
	return inserted, nil
}

// LogActivity appends one activity-log record.
func (s *SQLiteStore) LogActivity(ctx context.Context, entry ActivityEntry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_log (day, events_created, tasks_created, items_rejected, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Day, entry.EventsCreated, entry.TasksCreated, entry.ItemsRejected, created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// EventsForDay returns stored events starting within the given day.
func (s *SQLiteStore) EventsForDay(ctx context.Context, day time.Time) ([]model.FormattedEvent, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_at, end_at, all_day, location, people, notes, confidence, source
		 FROM events WHERE start_at >= ? AND start_at < ? ORDER BY start_at`,
		start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []model.FormattedEvent
	for rows.Next() {
		var ev model.FormattedEvent
		var startAt, endAt int64
		var allDay int
		var people string
		if err := rows.Scan(&ev.ID, &ev.Title, &startAt, &endAt, &allDay,
			&ev.Location, &people, &ev.Notes, &ev.Confidence, &ev.Source); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.StartDate = time.Unix(startAt, 0).In(day.Location())
		ev.EndDate = time.Unix(endAt, 0).In(day.Location())
		ev.IsAllDay = allDay != 0
		if people != "" {
			ev.People = strings.Split(people, ",")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
