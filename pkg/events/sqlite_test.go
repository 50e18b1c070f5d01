package events

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	event := New(EventTaskCompleted)
	event.Subject = "user:demo"
	event.Target = "tool:add"
	event.Action = "tool.invoke"
	event.Decision = "allow"
	event.TaskID = "task-1"
	event.Payload = map[string]any{"runtime": "callable"}

	if err := store.Record(ctx, event); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	got, err := store.List(ctx, Filter{Type: EventTaskCompleted})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].ID != event.ID || got[0].Target != "tool:add" {
		t.Fatalf("unexpected event: %+v", got[0])
	}
	if got[0].Payload["runtime"] != "callable" {
		t.Fatalf("payload not restored: %+v", got[0].Payload)
	}
}

func TestSQLiteStoreFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, subject := range []string{"user:a", "user:b", "user:a"} {
		event := New(EventPolicyDenied)
		event.Subject = subject
		event.TaskID = "task"
		if i == 2 {
			event.Type = EventPolicyAllowed
		}
		if err := store.Record(ctx, event); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	denied, err := store.List(ctx, Filter{Type: EventPolicyDenied})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(denied) != 2 {
		t.Fatalf("expected 2 denied events, got %d", len(denied))
	}

	bySubject, err := store.List(ctx, Filter{Subject: "user:a"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(bySubject) != 2 {
		t.Fatalf("expected 2 events for user:a, got %d", len(bySubject))
	}

	limited, err := store.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}
