package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/axon-sh/axon/pkg/config"
	"github.com/axon-sh/axon/pkg/drivers"
	"github.com/axon-sh/axon/pkg/executor"
	"github.com/axon-sh/axon/pkg/kernel"
	"github.com/axon-sh/axon/pkg/memory"
	"github.com/axon-sh/axon/pkg/runstore"
)

func testKernel(t *testing.T, withMemory bool) *kernel.Kernel {
	t.Helper()
	policyPath := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
name: workspace-test
rules:
  - id: allow-users
    action: "*"
    subject: "user:*"
    target: "*"
    effect: allow
`
	if err := os.WriteFile(policyPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	cfg := &config.Config{
		Events:   config.EventsConfig{Backend: "none"},
		RunStore: config.RunStoreConfig{Backend: "memory"},
		Policy:   config.PolicyConfig{Files: []string{policyPath}},
		Drivers: config.DriversConfig{
			Callable: config.CallableDriverConfig{Enabled: true},
		},
		Memory: config.MemoryConfig{Enabled: withMemory, Provider: "inmemory"},
	}
	k, err := kernel.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new kernel: %v", err)
	}
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func TestWorkspaceID(t *testing.T) {
	k := testKernel(t, false)
	w := New("Research Lab", k)
	if w.ID() != "workspace:research_lab" {
		t.Fatalf("unexpected id: %s", w.ID())
	}
	if w.Subject() != "user:workspace" {
		t.Fatalf("unexpected default subject: %s", w.Subject())
	}

	scoped := New("workspace:lab", k, WithSubject("user:alice"))
	if scoped.ID() != "workspace:lab" || scoped.Subject() != "user:alice" {
		t.Fatalf("unexpected workspace: %s / %s", scoped.ID(), scoped.Subject())
	}
}

func TestRegisterAndInvoke(t *testing.T) {
	k := testKernel(t, false)
	w := New("lab", k, WithSubject("user:alice"))

	id, err := w.RegisterTool("Add Tool", drivers.RuntimeCallable,
		drivers.Func(func(_ context.Context, input any) (any, error) {
			pair := input.([]int)
			return pair[0] + pair[1], nil
		}))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id != "tool:add_tool" {
		t.Fatalf("unexpected id: %s", id)
	}

	result, err := w.CallTool(context.Background(), "add tool", []int{20, 22})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if result.Status != executor.StatusCompleted || result.Output != 42 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// The workspace id rides along on the task.
	spec, err := k.Registry.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if spec.Metadata["workspace"] != w.ID() {
		t.Fatalf("workspace metadata missing: %+v", spec.Metadata)
	}
}

func TestRunTracking(t *testing.T) {
	k := testKernel(t, false)
	w := New("lab", k, WithSubject("user:alice"))
	ctx := context.Background()

	run, err := w.StartRun(ctx, "experiment", map[string]string{"seed": "3"})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if run.Workspace != w.ID() {
		t.Fatalf("run not scoped to workspace: %+v", run)
	}
	if err := w.LogMetric(ctx, run.ID, "loss", 0.1, 1); err != nil {
		t.Fatalf("log metric: %v", err)
	}
	if err := w.LogArtifact(ctx, run.ID, "weights", "file:///tmp/w.bin"); err != nil {
		t.Fatalf("log artifact: %v", err)
	}
	if err := w.EndRun(ctx, run.ID, runstore.StatusCompleted); err != nil {
		t.Fatalf("end run: %v", err)
	}

	runs, err := w.Runs(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != runstore.StatusCompleted {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestMemoryHelpers(t *testing.T) {
	k := testKernel(t, true)
	w := New("lab", k, WithSubject("user:alice"))
	ctx := context.Background()

	record, err := w.LogNote(ctx, "notes", "remember the kernel", map[string]any{"topic": "work"})
	if err != nil {
		t.Fatalf("log note: %v", err)
	}
	if record == nil || record.Channel != "notes" {
		t.Fatalf("unexpected record: %+v", record)
	}

	found, err := w.SearchNotes(ctx, "notes", memory.Query{TextContains: "kernel"})
	if err != nil {
		t.Fatalf("search notes: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 note, got %d", len(found))
	}

	if err := w.IndexDocument(ctx, "docs", "the cat sat on the mat", nil); err != nil {
		t.Fatalf("index document: %v", err)
	}
	results, err := w.SearchDocuments(ctx, "docs", "cat", 1)
	if err != nil {
		t.Fatalf("search documents: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 document, got %d", len(results))
	}
}

func TestMemoryDisabled(t *testing.T) {
	k := testKernel(t, false)
	w := New("lab", k)

	if _, err := w.LogNote(context.Background(), "notes", "x", nil); err == nil {
		t.Fatal("expected error when memory is disabled")
	}
	if _, err := w.SearchNotes(context.Background(), "notes", memory.Query{}); err == nil {
		t.Fatal("expected error when memory is disabled")
	}
}
