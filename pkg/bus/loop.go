package bus

import (
	"context"

	"github.com/google/uuid"
)

// Handler processes one message and may return a reply. A nil reply means
// nothing is sent back.
type Handler func(ctx context.Context, msg Message) *Message

// AgentLoop drives a single agent's mailbox: receive, handle, reply. The
// loop is single-worker, so messages to one agent are handled in order.
type AgentLoop struct {
	agentID string
	bus     *Bus
	handler Handler
}

// NewAgentLoop binds an agent id and handler to the bus.
func NewAgentLoop(agentID string, b *Bus, handler Handler) *AgentLoop {
	return &AgentLoop{agentID: agentID, bus: b, handler: handler}
}

// AgentID returns the id this loop consumes for.
func (l *AgentLoop) AgentID() string {
	return l.agentID
}

// Send sends a message from this agent.
func (l *AgentLoop) Send(to string, kind Kind, role Role, payload map[string]any) Message {
	msg := NewMessage(l.agentID, to, kind, role, payload)
	l.bus.Send(msg)
	return msg
}

// RunOnce drains the mailbox once and handles every message. Replies without
// a correlation id inherit the inbound correlation id (or the inbound
// message id); replies without a recipient go back to the sender. Returns
// the number of messages handled.
func (l *AgentLoop) RunOnce(ctx context.Context) int {
	messages := l.bus.Receive(l.agentID, 0)
	for _, msg := range messages {
		reply := l.handler(ctx, msg)
		if reply == nil {
			continue
		}
		if reply.ID == "" {
			reply.ID = uuid.NewString()
		}
		if reply.CorrelationID == "" {
			reply.CorrelationID = msg.CorrelationID
			if reply.CorrelationID == "" {
				reply.CorrelationID = msg.ID
			}
		}
		if reply.Recipient == "" {
			reply.Recipient = msg.Sender
		}
		if reply.Sender == "" {
			reply.Sender = l.agentID
		}
		l.bus.Send(*reply)
	}
	return len(messages)
}

// RunLoop repeats RunOnce until the mailbox is empty, the iteration cap is
// hit, or the context is done.
func (l *AgentLoop) RunLoop(ctx context.Context, maxIterations int) {
	if maxIterations <= 0 {
		maxIterations = 100
	}
	for i := 0; i < maxIterations; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if l.RunOnce(ctx) == 0 {
			return
		}
	}
}
