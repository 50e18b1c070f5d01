// Package bus is the in-process messaging layer between agents: one FIFO
// mailbox per agent id, non-blocking receive, no ordering guarantee across
// agents.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the high-level message category.
type Kind string

const (
	KindTask    Kind = "task"
	KindControl Kind = "control"
	KindChat    Kind = "chat"
	KindEvent   Kind = "event"
)

// Role identifies the sender's role in the exchange.
type Role string

const (
	RolePlanner Role = "planner"
	RoleWorker  Role = "worker"
	RoleSystem  Role = "system"
	RoleUser    Role = "user"
)

// Message is one unit exchanged between agents. CorrelationID ties a reply
// back to the message that caused it.
type Message struct {
	ID            string         `json:"id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Sender        string         `json:"sender"`
	Recipient     string         `json:"recipient"`
	Kind          Kind           `json:"kind"`
	Role          Role           `json:"role"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewMessage builds a message with a fresh id.
func NewMessage(sender, recipient string, kind Kind, role Role, payload map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Kind:      kind,
		Role:      role,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// Bus delivers messages to per-recipient mailboxes in send order.
type Bus struct {
	mu        sync.Mutex
	mailboxes map[string][]Message
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{mailboxes: make(map[string][]Message)}
}

// Send appends the message to the recipient's mailbox.
func (b *Bus) Send(message Message) {
	b.mu.Lock()
	b.mailboxes[message.Recipient] = append(b.mailboxes[message.Recipient], message)
	b.mu.Unlock()
}

// Receive drains up to max messages for agentID in FIFO order. max <= 0
// drains the whole mailbox. Receive never blocks.
func (b *Bus) Receive(agentID string, max int) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	mailbox := b.mailboxes[agentID]
	if len(mailbox) == 0 {
		return nil
	}
	n := len(mailbox)
	if max > 0 && max < n {
		n = max
	}
	out := make([]Message, n)
	copy(out, mailbox[:n])
	rest := mailbox[n:]
	if len(rest) == 0 {
		delete(b.mailboxes, agentID)
	} else {
		b.mailboxes[agentID] = append([]Message(nil), rest...)
	}
	return out
}

// Pending reports the number of queued messages for agentID.
func (b *Bus) Pending(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mailboxes[agentID])
}
