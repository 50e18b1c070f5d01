package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/axon-sh/axon/pkg/errors"
	"github.com/axon-sh/axon/pkg/events"
)

func TestInMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	run := NewRun("calibration")
	run.Workspace = "workspace:lab"
	if err := store.Create(ctx, run); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Create(ctx, run); !errors.IsCode(err, errors.CodeDuplicateIdentity) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	if err := store.AddMetric(ctx, run.ID, Metric{Name: "loss", Value: 0.5, Step: 1}); err != nil {
		t.Fatalf("add metric failed: %v", err)
	}
	if err := store.AddArtifact(ctx, run.ID, Artifact{Name: "report", URI: "file:///tmp/report.json"}); err != nil {
		t.Fatalf("add artifact failed: %v", err)
	}
	if err := store.End(ctx, run.ID, StatusCompleted, time.Now()); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if len(got.Metrics) != 1 || got.Metrics[0].Name != "loss" {
		t.Fatalf("unexpected metrics: %+v", got.Metrics)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].URI != "file:///tmp/report.json" {
		t.Fatalf("unexpected artifacts: %+v", got.Artifacts)
	}

	// Returned runs are copies.
	got.Metrics[0].Name = "mutated"
	again, _ := store.Get(ctx, run.ID)
	if again.Metrics[0].Name != "loss" {
		t.Fatal("store state leaked through Get")
	}
}

func TestInMemoryGetUnknown(t *testing.T) {
	store := NewInMemory()
	if _, err := store.Get(context.Background(), "missing"); !errors.IsCode(err, errors.CodeSpecNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if err := store.End(context.Background(), "missing", StatusFailed, time.Now()); !errors.IsCode(err, errors.CodeSpecNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestInMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	for i, ws := range []string{"workspace:a", "workspace:a", "workspace:b"} {
		run := NewRun("job")
		run.Workspace = ws
		run.StartedAt = time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC)
		if err := store.Create(ctx, run); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if i == 0 {
			if err := store.End(ctx, run.ID, StatusFailed, time.Now()); err != nil {
				t.Fatalf("end failed: %v", err)
			}
		}
	}

	all, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if !all[0].StartedAt.Before(all[1].StartedAt) {
		t.Fatal("list not ordered by start time")
	}

	inA, _ := store.List(ctx, ListFilter{Workspace: "workspace:a"})
	if len(inA) != 2 {
		t.Fatalf("expected 2 runs in workspace:a, got %d", len(inA))
	}
	failed, _ := store.List(ctx, ListFilter{Status: StatusFailed})
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed run, got %d", len(failed))
	}
	limited, _ := store.List(ctx, ListFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestTrackerEmitsLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	sink := events.NewMemory()
	tracker := NewTracker(NewInMemory(), WithEmitter(sink))

	run, err := tracker.StartRun(ctx, "eval", StartOptions{
		Subject:   "user:alice",
		Workspace: "workspace:lab",
		Params:    map[string]string{"seed": "7"},
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := tracker.LogMetric(ctx, run.ID, "accuracy", 0.93, 0); err != nil {
		t.Fatalf("log metric failed: %v", err)
	}
	if err := tracker.LogArtifact(ctx, run.ID, "predictions", "file:///tmp/preds.csv"); err != nil {
		t.Fatalf("log artifact failed: %v", err)
	}
	if err := tracker.EndRun(ctx, run.ID, StatusCompleted); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	started := sink.ByType(events.EventRunStarted)
	if len(started) != 1 || started[0].Target != run.ID {
		t.Fatalf("unexpected run.started events: %+v", started)
	}
	ended := sink.ByType(events.EventRunEnded)
	if len(ended) != 1 || ended[0].Payload["status"] != "completed" {
		t.Fatalf("unexpected run.ended events: %+v", ended)
	}

	got, err := tracker.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Params["seed"] != "7" || len(got.Metrics) != 1 || len(got.Artifacts) != 1 {
		t.Fatalf("unexpected run state: %+v", got)
	}
}
