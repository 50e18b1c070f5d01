// Package registry provides the identity registry for Axon specs.
package registry

import (
	"sync"

	"github.com/axon-sh/axon/pkg/errors"
	"github.com/axon-sh/axon/pkg/spec"
)

// Registry owns the mapping from canonical id to Spec. All mutation and
// lookup goes through the registry; entries are copied on the way in and
// out so callers never alias registry-owned state.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*spec.Spec
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*spec.Spec)}
}

// RegisterOption alters registration behavior.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	overwrite bool
}

// WithOverwrite allows registration to replace an existing spec under the
// same canonical id.
func WithOverwrite() RegisterOption {
	return func(o *registerOptions) { o.overwrite = true }
}

// Register validates the spec, assigns its slug name and canonical id, and
// inserts it. Registration fails with CodeDuplicateIdentity when the id is
// already present and overwrite was not requested.
func (r *Registry) Register(s *spec.Spec, opts ...RegisterOption) (string, error) {
	if s == nil {
		return "", errors.Newf(errors.CodeInvalidInput, "spec is nil")
	}
	if err := s.Validate(); err != nil {
		return "", err
	}
	var options registerOptions
	for _, opt := range opts {
		opt(&options)
	}

	entry := s.Clone()
	entry.Name = spec.Slugify(entry.DisplayName)
	if entry.Name == "" {
		return "", errors.Newf(errors.CodeInvalidInput,
			"display name %q normalizes to an empty slug", s.DisplayName)
	}
	entry.ID = spec.CanonicalID(entry.Kind, entry.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[entry.ID]; exists {
		if !options.overwrite {
			return "", errors.Newf(errors.CodeDuplicateIdentity,
				"spec %q is already registered", entry.ID).
				WithContext("display_name", s.DisplayName)
		}
	} else {
		r.order = append(r.order, entry.ID)
	}
	r.byID[entry.ID] = entry

	// Callers keep their copy in sync with the assigned identity.
	s.ID = entry.ID
	s.Name = entry.Name
	return entry.ID, nil
}

// ResolveOption alters resolution behavior.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	kindHint spec.Kind
}

// WithKind restricts name-based resolution to a single kind.
func WithKind(kind spec.Kind) ResolveOption {
	return func(o *resolveOptions) { o.kindHint = kind }
}

// Resolve maps an identifier or human name to a spec. Canonical
// "<kind>:<slug>" input is a direct lookup; anything else is slug-normalized
// and matched against the names of enabled specs, optionally restricted by a
// kind hint. Zero matches is CodeSpecNotFound; more than one is
// CodeAmbiguousName.
func (r *Registry) Resolve(identifierOrName string, opts ...ResolveOption) (*spec.Spec, error) {
	var options resolveOptions
	for _, opt := range opts {
		opt(&options)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, _, ok := spec.ParseID(identifierOrName); ok {
		entry, exists := r.byID[identifierOrName]
		if !exists || !entry.Enabled {
			return nil, errors.Newf(errors.CodeSpecNotFound,
				"no enabled spec with id %q", identifierOrName)
		}
		return entry.Clone(), nil
	}

	slug := spec.Slugify(identifierOrName)
	if slug == "" {
		return nil, errors.Newf(errors.CodeSpecNotFound,
			"identifier %q normalizes to an empty slug", identifierOrName)
	}

	var matches []*spec.Spec
	for _, id := range r.order {
		entry := r.byID[id]
		if !entry.Enabled || entry.Name != slug {
			continue
		}
		if options.kindHint != "" && entry.Kind != options.kindHint {
			continue
		}
		matches = append(matches, entry)
	}

	switch len(matches) {
	case 0:
		return nil, errors.Newf(errors.CodeSpecNotFound,
			"no enabled spec matches %q", identifierOrName).
			WithContext("slug", slug)
	case 1:
		return matches[0].Clone(), nil
	default:
		kinds := make([]string, len(matches))
		for i, m := range matches {
			kinds[i] = string(m.Kind)
		}
		return nil, errors.Newf(errors.CodeAmbiguousName,
			"name %q matches %d specs, pass a kind hint", identifierOrName, len(matches)).
			WithContext("slug", slug).
			WithContext("kinds", kinds)
	}
}

// Get returns the spec for a canonical id regardless of its enabled state.
// Disabled specs stay inspectable even though they are excluded from
// resolution and dispatch.
func (r *Registry) Get(id string) (*spec.Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, exists := r.byID[id]
	if !exists {
		return nil, errors.Newf(errors.CodeSpecNotFound, "no spec with id %q", id)
	}
	return entry.Clone(), nil
}

// Enable marks the spec available for resolution and dispatch.
func (r *Registry) Enable(id string) error {
	return r.setEnabled(id, true)
}

// Disable excludes the spec from resolution and dispatch without deleting it.
func (r *Registry) Disable(id string) error {
	return r.setEnabled(id, false)
}

func (r *Registry) setEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, exists := r.byID[id]
	if !exists {
		return errors.Newf(errors.CodeSpecNotFound, "no spec with id %q", id)
	}
	entry.Enabled = enabled
	return nil
}

// Unregister removes a spec from the registry.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; !exists {
		return errors.Newf(errors.CodeSpecNotFound, "no spec with id %q", id)
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListFilter narrows the output of List.
type ListFilter struct {
	Kind            spec.Kind
	Tag             string
	IncludeDisabled bool
}

// List returns specs in registration order, filtered by kind, tag, and
// enabled state.
func (r *Registry) List(filter ListFilter) []*spec.Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*spec.Spec
	for _, id := range r.order {
		entry := r.byID[id]
		if !filter.IncludeDisabled && !entry.Enabled {
			continue
		}
		if filter.Kind != "" && entry.Kind != filter.Kind {
			continue
		}
		if filter.Tag != "" && !entry.HasTag(filter.Tag) {
			continue
		}
		out = append(out, entry.Clone())
	}
	return out
}

// Len returns the number of registered specs, disabled included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
