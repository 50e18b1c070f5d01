// Package events carries the side-channel observability events emitted by
// the kernel subsystems. Emitters are sinks; the core never blocks on them.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a semantic event emitted by the kernel.
type Type string

const (
	EventTaskCreated   Type = "task.created"
	EventTaskStarted   Type = "task.started"
	EventTaskCompleted Type = "task.completed"
	EventTaskFailed    Type = "task.failed"
	EventPolicyAllowed Type = "policy.allowed"
	EventPolicyDenied  Type = "policy.denied"
	EventMemoryWrite   Type = "memory.write"
	EventMemoryRead    Type = "memory.read"
	EventRunStarted    Type = "run.started"
	EventRunEnded      Type = "run.ended"
)

// Event captures a single observability record with enough context for an
// external sink to reconstruct the decision trail.
type Event struct {
	ID        string
	Timestamp time.Time
	Type      Type
	Subject   string
	Target    string
	Action    string
	Decision  string
	TaskID    string
	Payload   map[string]any
}

// New builds an event with a generated id and UTC timestamp.
func New(eventType Type) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}

// Emitter receives kernel events.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Noop discards all events.
type Noop struct{}

// Emit implements Emitter.
func (Noop) Emit(_ context.Context, _ Event) {}

// Memory collects events in order, for tests and diagnostics.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an empty in-memory emitter.
func NewMemory() *Memory {
	return &Memory{}
}

// Emit implements Emitter.
func (m *Memory) Emit(_ context.Context, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns a snapshot of the collected events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByType returns the collected events of the given type.
func (m *Memory) ByType(eventType Type) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, event := range m.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// Slog logs each event through the default structured logger.
type Slog struct {
	Logger *slog.Logger
}

// NewSlog creates a slog-backed emitter. A nil logger uses slog.Default.
func NewSlog(logger *slog.Logger) *Slog {
	return &Slog{Logger: logger}
}

// Emit implements Emitter.
func (s *Slog) Emit(ctx context.Context, event Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("subject", event.Subject),
		slog.String("target", event.Target),
	}
	if event.Action != "" {
		attrs = append(attrs, slog.String("action", event.Action))
	}
	if event.Decision != "" {
		attrs = append(attrs, slog.String("decision", event.Decision))
	}
	if event.TaskID != "" {
		attrs = append(attrs, slog.String("task_id", event.TaskID))
	}
	logger.InfoContext(ctx, string(event.Type), attrs...)
}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, event Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(ctx, event)
		}
	}
}
