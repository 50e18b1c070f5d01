// Package executor dispatches tasks to runtime drivers behind the policy gate.
package executor

import (
	"time"

	"github.com/google/uuid"

	"github.com/axon-sh/axon/pkg/errors"
	"github.com/axon-sh/axon/pkg/spec"
)

// Status describes the terminal state of a task.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDenied    Status = "denied"
	StatusFailed    Status = "failed"
)

// Task is a single request to invoke a registered spec's driver.
type Task struct {
	ID        string
	Subject   string
	TargetID  string
	Input     any
	Workspace string
	Deadline  time.Duration
	Metadata  map[string]string
	CreatedAt time.Time
}

// NewTask creates a task with a generated id.
func NewTask(subject, targetID string, input any) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Subject:   subject,
		TargetID:  targetID,
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
}

// WithDeadline sets an execution deadline and returns the task for chaining.
func (t *Task) WithDeadline(d time.Duration) *Task {
	t.Deadline = d
	return t
}

// WithWorkspace scopes the task to a workspace and returns it for chaining.
func (t *Task) WithWorkspace(workspace string) *Task {
	t.Workspace = workspace
	return t
}

// validate fails fast on caller-level contract violations, before any
// registry or policy work begins.
func (t *Task) validate() error {
	if t == nil {
		return errors.Newf(errors.CodeInvalidInput, "task is nil")
	}
	if t.Subject == "" {
		return errors.Newf(errors.CodeInvalidInput, "task subject is required")
	}
	if t.TargetID == "" {
		return errors.Newf(errors.CodeInvalidInput, "task target id is required")
	}
	return nil
}

// Result is the outcome of running a task. Exactly one of Output or Err is
// populated for completed and failed tasks; denied tasks carry the policy
// decision in Denial.
type Result struct {
	TaskID     string
	Status     Status
	Output     any
	Err        *errors.Error
	Denial     string
	Runtime    string
	TargetID   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Completed reports whether the task produced output.
func (r Result) Completed() bool { return r.Status == StatusCompleted }

// Denied reports whether policy stopped the task before dispatch.
func (r Result) Denied() bool { return r.Status == StatusDenied }

// ActionForKind maps a spec kind to the policy action implied by invoking it.
func ActionForKind(kind spec.Kind) string {
	switch kind {
	case spec.KindModel:
		return "model.invoke"
	case spec.KindTool:
		return "tool.invoke"
	case spec.KindAgent:
		return "agent.invoke"
	case spec.KindResource:
		return "resource.access"
	case spec.KindWorkspace:
		return "workspace.access"
	default:
		return "resource.access"
	}
}
