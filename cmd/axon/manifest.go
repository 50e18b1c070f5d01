package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/axon-sh/axon/pkg/drivers"
	"github.com/axon-sh/axon/pkg/registry"
	"github.com/axon-sh/axon/pkg/spec"
)

// manifest declares specs to register at boot. Callable bindings cannot be
// declared in a file, so manifests are limited to the http and mcp runtimes.
type manifest struct {
	Specs []manifestSpec `yaml:"specs"`
}

type manifestSpec struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	Runtime string            `yaml:"runtime"`
	Tags    []string          `yaml:"tags"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Tool    string            `yaml:"tool"`
}

func loadManifest(reg *registry.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest %s: %w", path, err)
	}

	for i, entry := range m.Specs {
		binding, err := bindingFor(entry)
		if err != nil {
			return fmt.Errorf("manifest spec %d (%s): %w", i, entry.Name, err)
		}
		kind := spec.Kind(entry.Kind)
		if !kind.Valid() {
			return fmt.Errorf("manifest spec %d (%s): unknown kind %q (valid: %v)", i, entry.Name, entry.Kind, spec.Kinds)
		}
		s := spec.New(entry.Name, kind, entry.Runtime).
			WithBinding(binding).
			WithTags(entry.Tags...)
		if _, err := reg.Register(s); err != nil {
			return fmt.Errorf("manifest spec %d (%s): %w", i, entry.Name, err)
		}
	}
	return nil
}

func bindingFor(entry manifestSpec) (any, error) {
	switch entry.Runtime {
	case drivers.RuntimeHTTP:
		if entry.URL == "" {
			return nil, fmt.Errorf("http specs require a url")
		}
		return drivers.Endpoint{
			URL:     entry.URL,
			Method:  entry.Method,
			Headers: entry.Headers,
		}, nil
	case drivers.RuntimeMCP:
		if entry.Tool == "" {
			return nil, fmt.Errorf("mcp specs require a tool name")
		}
		return drivers.MCPBinding{Tool: entry.Tool}, nil
	default:
		return nil, fmt.Errorf("runtime %q cannot be declared in a manifest", entry.Runtime)
	}
}
