package runstore

import (
	"context"
	"time"

	"github.com/axon-sh/axon/pkg/events"
)

// Tracker is the façade the rest of the kernel uses to record runs. Every
// lifecycle transition lands in the store and is mirrored as a kernel event.
type Tracker struct {
	store   Store
	emitter events.Emitter
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithEmitter attaches an event sink for run lifecycle events.
func WithEmitter(emitter events.Emitter) TrackerOption {
	return func(t *Tracker) {
		if emitter != nil {
			t.emitter = emitter
		}
	}
}

// NewTracker creates a Tracker over the given store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{store: store, emitter: events.Noop{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartOptions carries the optional fields of StartRun.
type StartOptions struct {
	Subject   string
	Workspace string
	Params    map[string]string
}

// StartRun creates a running Run and emits run.started.
func (t *Tracker) StartRun(ctx context.Context, name string, opts StartOptions) (*Run, error) {
	run := NewRun(name)
	run.Subject = opts.Subject
	run.Workspace = opts.Workspace
	run.Params = opts.Params
	if err := t.store.Create(ctx, run); err != nil {
		return nil, err
	}

	event := events.New(events.EventRunStarted)
	event.Subject = run.Subject
	event.Target = run.ID
	event.Payload = map[string]any{"name": run.Name, "workspace": run.Workspace}
	t.emitter.Emit(ctx, event)
	return run, nil
}

// LogMetric appends a metric to the run.
func (t *Tracker) LogMetric(ctx context.Context, runID, name string, value float64, step int) error {
	return t.store.AddMetric(ctx, runID, Metric{
		Name:       name,
		Value:      value,
		Step:       step,
		RecordedAt: time.Now().UTC(),
	})
}

// LogArtifact appends an artifact reference to the run.
func (t *Tracker) LogArtifact(ctx context.Context, runID, name, uri string) error {
	return t.store.AddArtifact(ctx, runID, Artifact{
		Name:       name,
		URI:        uri,
		RecordedAt: time.Now().UTC(),
	})
}

// EndRun marks the run terminal and emits run.ended.
func (t *Tracker) EndRun(ctx context.Context, runID string, status Status) error {
	if err := t.store.End(ctx, runID, status, time.Now().UTC()); err != nil {
		return err
	}
	event := events.New(events.EventRunEnded)
	event.Target = runID
	event.Payload = map[string]any{"status": string(status)}
	t.emitter.Emit(ctx, event)
	return nil
}

// Get returns the run with metrics and artifacts attached.
func (t *Tracker) Get(ctx context.Context, runID string) (*Run, error) {
	return t.store.Get(ctx, runID)
}

// List returns runs matching the filter.
func (t *Tracker) List(ctx context.Context, filter ListFilter) ([]*Run, error) {
	return t.store.List(ctx, filter)
}
