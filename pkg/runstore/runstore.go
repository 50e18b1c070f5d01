// Package runstore records kernel runs: named units of work with their
// parameters, logged metrics, artifacts, and terminal status.
package runstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axon-sh/axon/pkg/errors"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Metric is a named scalar logged against a run. Step disambiguates repeated
// logs of the same name.
type Metric struct {
	Name       string    `json:"name"`
	Value      float64   `json:"value"`
	Step       int       `json:"step"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Artifact is a named reference to an output produced by a run.
type Artifact struct {
	Name       string    `json:"name"`
	URI        string    `json:"uri"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Run is one tracked unit of work.
type Run struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Subject   string            `json:"subject,omitempty"`
	Workspace string            `json:"workspace,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Status    Status            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at,omitzero"`
	Metrics   []Metric          `json:"metrics,omitempty"`
	Artifacts []Artifact        `json:"artifacts,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (r *Run) Clone() *Run {
	out := *r
	if r.Params != nil {
		out.Params = make(map[string]string, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	out.Metrics = append([]Metric(nil), r.Metrics...)
	out.Artifacts = append([]Artifact(nil), r.Artifacts...)
	return &out
}

// ListFilter narrows the output of List.
type ListFilter struct {
	Status    Status
	Workspace string
	Limit     int
}

// Store persists runs. Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	End(ctx context.Context, id string, status Status, endedAt time.Time) error
	AddMetric(ctx context.Context, id string, metric Metric) error
	AddArtifact(ctx context.Context, id string, artifact Artifact) error
	List(ctx context.Context, filter ListFilter) ([]*Run, error)
}

// NewRun builds a running Run with a fresh id.
func NewRun(name string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// InMemory is a map-backed Store, the default when no path is configured.
type InMemory struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewInMemory creates an empty in-memory run store.
func NewInMemory() *InMemory {
	return &InMemory{runs: make(map[string]*Run)}
}

func (s *InMemory) Create(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New(errors.CodeInvalidInput, "run requires an id", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.Newf(errors.CodeDuplicateIdentity, "run %q already exists", run.ID)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *InMemory) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, errors.Newf(errors.CodeSpecNotFound, "run %q not found", id)
	}
	return run.Clone(), nil
}

func (s *InMemory) End(ctx context.Context, id string, status Status, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return errors.Newf(errors.CodeSpecNotFound, "run %q not found", id)
	}
	run.Status = status
	run.EndedAt = endedAt.UTC()
	return nil
}

func (s *InMemory) AddMetric(ctx context.Context, id string, metric Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return errors.Newf(errors.CodeSpecNotFound, "run %q not found", id)
	}
	run.Metrics = append(run.Metrics, metric)
	return nil
}

func (s *InMemory) AddArtifact(ctx context.Context, id string, artifact Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return errors.Newf(errors.CodeSpecNotFound, "run %q not found", id)
	}
	run.Artifacts = append(run.Artifacts, artifact)
	return nil
}

func (s *InMemory) List(ctx context.Context, filter ListFilter) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.Workspace != "" && run.Workspace != filter.Workspace {
			continue
		}
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
