package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/axon-sh/axon/pkg/errors"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	run := NewRun("ingest")
	run.Subject = "user:alice"
	run.Workspace = "workspace:lab"
	run.Params = map[string]string{"batch": "32"}
	if err := store.Create(ctx, run); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.AddMetric(ctx, run.ID, Metric{Name: "rows", Value: 1024, Step: 1}); err != nil {
		t.Fatalf("add metric failed: %v", err)
	}
	if err := store.AddArtifact(ctx, run.ID, Artifact{Name: "manifest", URI: "s3://bucket/manifest"}); err != nil {
		t.Fatalf("add artifact failed: %v", err)
	}
	if err := store.End(ctx, run.ID, StatusCompleted, time.Now()); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusCompleted || got.EndedAt.IsZero() {
		t.Fatalf("unexpected terminal state: %+v", got)
	}
	if got.Params["batch"] != "32" {
		t.Fatalf("params lost: %+v", got.Params)
	}
	if len(got.Metrics) != 1 || got.Metrics[0].Value != 1024 {
		t.Fatalf("unexpected metrics: %+v", got.Metrics)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].URI != "s3://bucket/manifest" {
		t.Fatalf("unexpected artifacts: %+v", got.Artifacts)
	}
}

func TestSQLiteNotFound(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.Get(ctx, "missing"); !errors.IsCode(err, errors.CodeSpecNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if err := store.End(ctx, "missing", StatusFailed, time.Now()); !errors.IsCode(err, errors.CodeSpecNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSQLiteListFilters(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		run := NewRun("batch")
		run.Workspace = "workspace:a"
		if i == 2 {
			run.Workspace = "workspace:b"
		}
		run.StartedAt = time.Date(2026, 3, 1, 9, i, 0, 0, time.UTC)
		if err := store.Create(ctx, run); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	all, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	inA, _ := store.List(ctx, ListFilter{Workspace: "workspace:a"})
	if len(inA) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(inA))
	}
	running, _ := store.List(ctx, ListFilter{Status: StatusRunning, Limit: 1})
	if len(running) != 1 {
		t.Fatalf("expected limited list, got %d", len(running))
	}
}
