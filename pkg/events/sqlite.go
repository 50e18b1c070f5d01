package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists kernel events in SQLite and doubles as an Emitter.
// Emission failures are swallowed: the store is a sink, never a gate on the
// dispatch path.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed event store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureEventSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens (or creates) a SQLite database at path and wraps it
// in a store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Emit implements Emitter.
func (s *SQLiteStore) Emit(ctx context.Context, event Event) {
	_ = s.Record(ctx, event)
}

// Record stores a single event.
func (s *SQLiteStore) Record(ctx context.Context, event Event) error {
	payload := ""
	if event.Payload != nil {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		payload = string(data)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kernel_events (
			event_id, event_type, subject, target, action, decision, task_id, payload_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		string(event.Type),
		event.Subject,
		event.Target,
		event.Action,
		event.Decision,
		event.TaskID,
		payload,
		normalizeTime(event.Timestamp),
	)
	return err
}

// Filter narrows the output of List.
type Filter struct {
	Type    Type
	Subject string
	TaskID  string
	Limit   int
}

// List returns events matching the filter in emission order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT event_id, event_type, subject, target, action, decision, task_id, payload_json, created_at
		FROM kernel_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Type != "" {
		addFilter("event_type = ?", string(filter.Type))
	}
	if filter.Subject != "" {
		addFilter("subject = ?", filter.Subject)
	}
	if filter.TaskID != "" {
		addFilter("task_id = ?", filter.TaskID)
	}
	query += where + " ORDER BY created_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event       Event
			eventType   string
			payloadJSON string
			created     sql.NullTime
		)
		if err := rows.Scan(
			&event.ID,
			&eventType,
			&event.Subject,
			&event.Target,
			&event.Action,
			&event.Decision,
			&event.TaskID,
			&payloadJSON,
			&created,
		); err != nil {
			return nil, err
		}
		event.Type = Type(eventType)
		if payloadJSON != "" {
			var payload map[string]any
			if err := json.Unmarshal([]byte(payloadJSON), &payload); err == nil {
				event.Payload = payload
			}
		}
		if created.Valid {
			event.Timestamp = created.Time
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func ensureEventSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kernel_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			subject TEXT,
			target TEXT,
			action TEXT,
			decision TEXT,
			task_id TEXT,
			payload_json TEXT,
			created_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_kernel_events_type ON kernel_events(event_type);
		CREATE INDEX IF NOT EXISTS idx_kernel_events_subject ON kernel_events(subject);
		CREATE INDEX IF NOT EXISTS idx_kernel_events_task ON kernel_events(task_id);
	`)
	return err
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
