package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/axon-sh/axon/pkg/errors"
)

// Driver executes a spec binding with a task input. Drivers are selected
// purely by the spec's runtime tag; the executor never inspects bindings.
type Driver interface {
	Invoke(ctx context.Context, binding any, input any) (any, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(ctx context.Context, binding any, input any) (any, error)

// Invoke implements Driver.
func (f DriverFunc) Invoke(ctx context.Context, binding any, input any) (any, error) {
	return f(ctx, binding, input)
}

// DriverRegistry maps runtime tags to drivers. Adding a driver is a
// registration, never a code change in the executor.
type DriverRegistry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewDriverRegistry creates an empty driver registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{drivers: make(map[string]Driver)}
}

// Register binds a driver to a runtime tag. Re-binding an existing tag is
// an error; drivers cannot be silently replaced.
func (r *DriverRegistry) Register(runtime string, driver Driver) error {
	if runtime == "" {
		return errors.Newf(errors.CodeInvalidInput, "runtime tag is required")
	}
	if driver == nil {
		return errors.Newf(errors.CodeInvalidInput, "driver is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drivers[runtime]; exists {
		return errors.Newf(errors.CodeDuplicateIdentity,
			"runtime %q already has a driver", runtime)
	}
	r.drivers[runtime] = driver
	return nil
}

// Get returns the driver for a runtime tag. Unknown tags are a hard
// failure, not a silent default.
func (r *DriverRegistry) Get(runtime string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	driver, exists := r.drivers[runtime]
	if !exists {
		return nil, errors.Newf(errors.CodeRuntimeNotRegistered,
			"no driver registered for runtime %q", runtime)
	}
	return driver, nil
}

// Runtimes returns the registered runtime tags, sorted.
func (r *DriverRegistry) Runtimes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.drivers))
	for runtime := range r.drivers {
		out = append(out, runtime)
	}
	sort.Strings(out)
	return out
}
