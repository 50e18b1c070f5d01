// Package workspace is the userland façade over the kernel: registration,
// invocation, run tracking, and memory helpers scoped to one workspace id.
package workspace

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/axon-sh/axon/pkg/errors"
	"github.com/axon-sh/axon/pkg/executor"
	"github.com/axon-sh/axon/pkg/kernel"
	"github.com/axon-sh/axon/pkg/memory"
	"github.com/axon-sh/axon/pkg/runstore"
	"github.com/axon-sh/axon/pkg/spec"
)

// Workspace scopes kernel calls to a workspace id and a default subject.
type Workspace struct {
	id      string
	subject string
	kernel  *kernel.Kernel
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithSubject overrides the default subject attached to tasks and memory
// accesses.
func WithSubject(subject string) Option {
	return func(w *Workspace) {
		if subject != "" {
			w.subject = subject
		}
	}
}

// New creates a workspace façade. The id shares the canonical identity form,
// so "Research Lab" becomes "workspace:research_lab".
func New(name string, k *kernel.Kernel, opts ...Option) *Workspace {
	id := name
	if !strings.HasPrefix(id, "workspace:") {
		id = spec.CanonicalID(spec.KindWorkspace, spec.Slugify(name))
	}
	w := &Workspace{
		id:      id,
		subject: "user:workspace",
		kernel:  k,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the canonical workspace id.
func (w *Workspace) ID() string {
	return w.id
}

// Subject returns the default subject.
func (w *Workspace) Subject() string {
	return w.subject
}

func (w *Workspace) register(name string, kind spec.Kind, runtime string, binding any) (string, error) {
	s := spec.New(name, kind, runtime).
		WithBinding(binding).
		WithMetadata("workspace", w.id)
	return w.kernel.Registry.Register(s)
}

// RegisterModel registers a model spec bound to this workspace.
func (w *Workspace) RegisterModel(name, runtime string, binding any) (string, error) {
	return w.register(name, spec.KindModel, runtime, binding)
}

// RegisterTool registers a tool spec bound to this workspace.
func (w *Workspace) RegisterTool(name, runtime string, binding any) (string, error) {
	return w.register(name, spec.KindTool, runtime, binding)
}

// RegisterResource registers a resource spec bound to this workspace.
func (w *Workspace) RegisterResource(name, runtime string, binding any) (string, error) {
	return w.register(name, spec.KindResource, runtime, binding)
}

// Invoke dispatches a task against any registered target. The target may be
// a canonical id or a human name.
func (w *Workspace) Invoke(ctx context.Context, target string, input any) (executor.Result, error) {
	task := executor.NewTask(w.subject, target, input).WithWorkspace(w.id)
	return w.kernel.RunTask(ctx, task)
}

// CallTool invokes a registered tool by name.
func (w *Workspace) CallTool(ctx context.Context, name string, input any) (executor.Result, error) {
	return w.Invoke(ctx, name, input)
}

// StartRun begins a tracked run scoped to this workspace.
func (w *Workspace) StartRun(ctx context.Context, name string, params map[string]string) (*runstore.Run, error) {
	return w.kernel.Runs.StartRun(ctx, name, runstore.StartOptions{
		Subject:   w.subject,
		Workspace: w.id,
		Params:    params,
	})
}

// LogMetric records a scalar against a run.
func (w *Workspace) LogMetric(ctx context.Context, runID, name string, value float64, step int) error {
	return w.kernel.Runs.LogMetric(ctx, runID, name, value, step)
}

// LogArtifact records an artifact reference against a run.
func (w *Workspace) LogArtifact(ctx context.Context, runID, name, uri string) error {
	return w.kernel.Runs.LogArtifact(ctx, runID, name, uri)
}

// EndRun marks a run terminal.
func (w *Workspace) EndRun(ctx context.Context, runID string, status runstore.Status) error {
	return w.kernel.Runs.EndRun(ctx, runID, status)
}

// Runs lists this workspace's runs.
func (w *Workspace) Runs(ctx context.Context) ([]*runstore.Run, error) {
	return w.kernel.Runs.List(ctx, runstore.ListFilter{Workspace: w.id})
}

func (w *Workspace) memorySubsystem() (*memory.Subsystem, error) {
	if w.kernel.Memory == nil {
		return nil, errors.New(errors.CodeInvalidInput, "memory subsystem is not enabled", nil)
	}
	return w.kernel.Memory, nil
}

// LogNote writes a symbolic note; record ids are generated.
func (w *Workspace) LogNote(ctx context.Context, channel, content string, metadata map[string]any) (*memory.Record, error) {
	sub, err := w.memorySubsystem()
	if err != nil {
		return nil, err
	}
	recordID := channel + ":" + uuid.NewString()
	record, decision, err := sub.WriteSymbolic(ctx, w.subject, channel, recordID, content, memory.WriteOptions{
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Newf(errors.CodeInvalidInput, "memory write denied: %s", decision.Reason)
	}
	return record, nil
}

// SearchNotes queries symbolic memory.
func (w *Workspace) SearchNotes(ctx context.Context, channel string, query memory.Query) ([]memory.Record, error) {
	sub, err := w.memorySubsystem()
	if err != nil {
		return nil, err
	}
	records, decision, err := sub.QuerySymbolic(ctx, w.subject, channel, query)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Newf(errors.CodeInvalidInput, "memory read denied: %s", decision.Reason)
	}
	return records, nil
}

// IndexDocument embeds and stores a document for semantic search.
func (w *Workspace) IndexDocument(ctx context.Context, channel, text string, metadata map[string]any) error {
	sub, err := w.memorySubsystem()
	if err != nil {
		return err
	}
	recordID := channel + ":" + uuid.NewString()
	_, decision, err := sub.IndexVector(ctx, w.subject, channel, recordID, text, metadata)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return errors.Newf(errors.CodeInvalidInput, "memory write denied: %s", decision.Reason)
	}
	return nil
}

// SearchDocuments returns the nearest documents to the query text.
func (w *Workspace) SearchDocuments(ctx context.Context, channel, query string, topK int) ([]memory.SearchResult, error) {
	sub, err := w.memorySubsystem()
	if err != nil {
		return nil, err
	}
	results, decision, err := sub.SearchVector(ctx, w.subject, channel, query, topK)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errors.Newf(errors.CodeInvalidInput, "memory read denied: %s", decision.Reason)
	}
	return results, nil
}
