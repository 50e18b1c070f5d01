// Package spec defines the immutable descriptors for registered identities.
package spec

import (
	"strings"

	"github.com/axon-sh/axon/pkg/errors"
)

// Kind is the high-level type of a registered identity.
type Kind string

const (
	KindModel     Kind = "model"
	KindTool      Kind = "tool"
	KindResource  Kind = "resource"
	KindAgent     Kind = "agent"
	KindWorkspace Kind = "workspace"
)

// Kinds lists every valid spec kind.
var Kinds = []Kind{KindModel, KindTool, KindResource, KindAgent, KindWorkspace}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindModel, KindTool, KindResource, KindAgent, KindWorkspace:
		return true
	}
	return false
}

// Spec describes a registered identity: what it is and how it runs.
// The registry assigns ID and Name at registration time; Binding is an
// opaque payload the selected driver understands and is never inspected
// by the core.
type Spec struct {
	ID          string
	Name        string
	DisplayName string
	Kind        Kind
	Runtime     string
	Tags        map[string]struct{}
	Binding     any
	Enabled     bool
	Metadata    map[string]any
}

// New creates an enabled spec for the given display name, kind and runtime.
func New(displayName string, kind Kind, runtime string) *Spec {
	return &Spec{
		DisplayName: displayName,
		Kind:        kind,
		Runtime:     runtime,
		Enabled:     true,
	}
}

// WithBinding sets the driver payload and returns the spec for chaining.
func (s *Spec) WithBinding(binding any) *Spec {
	s.Binding = binding
	return s
}

// WithTags attaches tags and returns the spec for chaining.
func (s *Spec) WithTags(tags ...string) *Spec {
	if s.Tags == nil {
		s.Tags = make(map[string]struct{}, len(tags))
	}
	for _, tag := range tags {
		s.Tags[tag] = struct{}{}
	}
	return s
}

// WithMetadata sets a metadata entry and returns the spec for chaining.
func (s *Spec) WithMetadata(key string, value any) *Spec {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
	return s
}

// HasTag reports whether the spec carries the given tag.
func (s *Spec) HasTag(tag string) bool {
	_, ok := s.Tags[tag]
	return ok
}

// Validate checks the fields a caller must supply before registration.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.DisplayName) == "" {
		return errors.Newf(errors.CodeInvalidInput, "spec display name is required")
	}
	if !s.Kind.Valid() {
		return errors.Newf(errors.CodeInvalidInput, "unknown spec kind %q", string(s.Kind))
	}
	if strings.TrimSpace(s.Runtime) == "" {
		return errors.Newf(errors.CodeInvalidInput, "spec runtime is required")
	}
	return nil
}

// Clone returns a copy of the spec. Tags and Metadata are copied; Binding is
// shared, it is opaque to the core and owned by the driver.
func (s *Spec) Clone() *Spec {
	out := *s
	if s.Tags != nil {
		out.Tags = make(map[string]struct{}, len(s.Tags))
		for tag := range s.Tags {
			out.Tags[tag] = struct{}{}
		}
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
