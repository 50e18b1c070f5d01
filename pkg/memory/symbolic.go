// Package memory implements the kernel memory subsystem: a symbolic store of
// records grouped by channel and a vector store for similarity search, both
// gated by the policy engine through the Subsystem façade.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Record is a symbolic memory entry. Channels are free-form identifiers such
// as "notes", "logs" or "session:123".
type Record struct {
	ID             string         `json:"id"`
	Channel        string         `json:"channel"`
	Content        any            `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Classification string         `json:"classification"`
	Version        string         `json:"version,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Query selects symbolic records within a channel. Metadata pairs must all
// match; TextContains matches the string form of the content, case folded.
type Query struct {
	Metadata     map[string]any
	TextContains string
}

// SymbolicStore keeps records per channel, in write order.
type SymbolicStore struct {
	mu       sync.RWMutex
	channels map[string][]Record
}

// NewSymbolicStore creates an empty symbolic store.
func NewSymbolicStore() *SymbolicStore {
	return &SymbolicStore{channels: make(map[string][]Record)}
}

// WriteOptions carries the optional fields of Write.
type WriteOptions struct {
	Metadata       map[string]any
	Classification string
	Version        string
}

// Write appends a record to the channel and returns it.
func (s *SymbolicStore) Write(channel, recordID string, content any, opts WriteOptions) Record {
	classification := opts.Classification
	if classification == "" {
		classification = "internal"
	}
	record := Record{
		ID:             recordID,
		Channel:        channel,
		Content:        content,
		Metadata:       opts.Metadata,
		Classification: classification,
		Version:        opts.Version,
		CreatedAt:      time.Now().UTC(),
	}
	s.mu.Lock()
	s.channels[channel] = append(s.channels[channel], record)
	s.mu.Unlock()
	return record
}

// Query returns the channel records matching the query, in write order.
func (s *SymbolicStore) Query(channel string, query Query) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	needle := strings.ToLower(query.TextContains)
	for _, record := range s.channels[channel] {
		if !metadataMatches(record.Metadata, query.Metadata) {
			continue
		}
		if needle != "" {
			haystack := strings.ToLower(fmt.Sprint(record.Content))
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		out = append(out, record)
	}
	return out
}

// Channels returns the channel ids that hold at least one record.
func (s *SymbolicStore) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.channels))
	for channel, records := range s.channels {
		if len(records) > 0 {
			out = append(out, channel)
		}
	}
	return out
}

func metadataMatches(metadata, filters map[string]any) bool {
	for key, expected := range filters {
		if metadata == nil {
			return false
		}
		if actual, ok := metadata[key]; !ok || actual != expected {
			return false
		}
	}
	return true
}
