package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/axon-sh/axon/pkg/errors"
	"github.com/axon-sh/axon/pkg/events"
	"github.com/axon-sh/axon/pkg/policy"
)

// Policy actions evaluated on the memory path.
const (
	ActionWrite = "memory.write"
	ActionRead  = "memory.read"
)

// Subsystem gates symbolic and vector memory behind the policy engine.
// Every access is evaluated against `memory:<channel>`; a denial returns the
// decision and no data instead of an error.
type Subsystem struct {
	symbolic *SymbolicStore
	vectors  VectorStore
	embedder Embedder
	engine   *policy.Engine
	emitter  events.Emitter
}

// SubsystemOption configures a Subsystem.
type SubsystemOption func(*Subsystem)

// WithVectorStore replaces the in-memory vector store, e.g. with the qdrant
// backend.
func WithVectorStore(store VectorStore) SubsystemOption {
	return func(s *Subsystem) {
		if store != nil {
			s.vectors = store
		}
	}
}

// WithEmbedder replaces the test embedder.
func WithEmbedder(embedder Embedder) SubsystemOption {
	return func(s *Subsystem) {
		if embedder != nil {
			s.embedder = embedder
		}
	}
}

// WithEmitter attaches an event sink for memory access events.
func WithEmitter(emitter events.Emitter) SubsystemOption {
	return func(s *Subsystem) {
		if emitter != nil {
			s.emitter = emitter
		}
	}
}

// NewSubsystem creates a memory subsystem gated by the given engine.
func NewSubsystem(engine *policy.Engine, opts ...SubsystemOption) *Subsystem {
	s := &Subsystem{
		symbolic: NewSymbolicStore(),
		vectors:  NewInMemoryVectorStore(),
		embedder: NewSimpleEmbedder(),
		engine:   engine,
		emitter:  events.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChannelTarget returns the policy target for a channel.
func ChannelTarget(channel string) string {
	return "memory:" + channel
}

func (s *Subsystem) authorize(ctx context.Context, subject, action, channel string, extra map[string]any) policy.Decision {
	pctx := map[string]any{"channel": channel}
	for k, v := range extra {
		pctx[k] = v
	}
	return s.engine.Evaluate(ctx, policy.Request{
		Action:  action,
		Subject: subject,
		Target:  ChannelTarget(channel),
		Context: pctx,
	})
}

func (s *Subsystem) emit(ctx context.Context, eventType events.Type, subject, channel string, payload map[string]any) {
	event := events.New(eventType)
	event.Subject = subject
	event.Target = ChannelTarget(channel)
	event.Payload = payload
	s.emitter.Emit(ctx, event)
}

// WriteSymbolic stores a record if policy allows the write.
func (s *Subsystem) WriteSymbolic(ctx context.Context, subject, channel, recordID string, content any, opts WriteOptions) (*Record, policy.Decision, error) {
	classification := opts.Classification
	if classification == "" {
		classification = "internal"
	}
	decision := s.authorize(ctx, subject, ActionWrite, channel, map[string]any{
		"classification": classification,
	})
	if !decision.Allowed {
		return nil, decision, nil
	}

	record := s.symbolic.Write(channel, recordID, content, opts)
	s.emit(ctx, events.EventMemoryWrite, subject, channel, map[string]any{
		"channel":        channel,
		"record_id":      record.ID,
		"classification": record.Classification,
	})
	return &record, decision, nil
}

// QuerySymbolic returns matching records if policy allows the read.
func (s *Subsystem) QuerySymbolic(ctx context.Context, subject, channel string, query Query) ([]Record, policy.Decision, error) {
	decision := s.authorize(ctx, subject, ActionRead, channel, nil)
	if !decision.Allowed {
		return nil, decision, nil
	}

	records := s.symbolic.Query(channel, query)
	s.emit(ctx, events.EventMemoryRead, subject, channel, map[string]any{
		"channel":      channel,
		"result_count": len(records),
	})
	return records, decision, nil
}

// IndexVector embeds text and stores it in the channel's collection if
// policy allows the write. The stored point id is a generated UUID; the
// caller's recordID travels in the payload so any id shape is accepted
// regardless of what the vector backend requires of point ids.
func (s *Subsystem) IndexVector(ctx context.Context, subject, channel, recordID, text string, metadata map[string]any) (*Point, policy.Decision, error) {
	decision := s.authorize(ctx, subject, ActionWrite, channel, nil)
	if !decision.Allowed {
		return nil, decision, nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, decision, errors.New(errors.CodeInternal, "embedding failed", err)
	}
	if err := s.vectors.CreateCollection(ctx, channel, uint64(len(vector))); err != nil {
		return nil, decision, err
	}
	payload := map[string]any{
		"text":      text,
		"record_id": recordID,
		"channel":   channel,
	}
	for k, v := range metadata {
		payload[k] = v
	}
	point := Point{ID: uuid.NewString(), Vector: vector, Payload: payload}
	if err := s.vectors.Upsert(ctx, channel, []Point{point}); err != nil {
		return nil, decision, err
	}

	s.emit(ctx, events.EventMemoryWrite, subject, channel, map[string]any{
		"channel":   channel,
		"record_id": recordID,
		"kind":      "vector",
	})
	return &point, decision, nil
}

// SearchVector returns the nearest records to the query text if policy
// allows the read.
func (s *Subsystem) SearchVector(ctx context.Context, subject, channel, queryText string, topK int) ([]SearchResult, policy.Decision, error) {
	decision := s.authorize(ctx, subject, ActionRead, channel, nil)
	if !decision.Allowed {
		return nil, decision, nil
	}

	vector, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, decision, errors.New(errors.CodeInternal, "embedding failed", err)
	}
	if topK <= 0 {
		topK = 5
	}
	results, err := s.vectors.Search(ctx, channel, vector, topK, 0)
	if err != nil {
		return nil, decision, err
	}

	s.emit(ctx, events.EventMemoryRead, subject, channel, map[string]any{
		"channel":      channel,
		"result_count": len(results),
		"kind":         "vector",
	})
	return results, decision, nil
}
