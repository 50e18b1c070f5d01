// Package config loads the kernel configuration from defaults, an optional
// YAML file, and AXON_-prefixed environment variables, in that order.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level kernel configuration. It is consumed once at
// construction, never on the dispatch hot path.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Policy    PolicyConfig    `koanf:"policy"`
	Events    EventsConfig    `koanf:"events"`
	RunStore  RunStoreConfig  `koanf:"runstore"`
	Drivers   DriversConfig   `koanf:"drivers"`
	Memory    MemoryConfig    `koanf:"memory"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type PolicyConfig struct {
	Files []string `koanf:"files"`
}

type EventsConfig struct {
	Backend string `koanf:"backend"` // none, slog, sqlite
	Path    string `koanf:"path"`
}

type RunStoreConfig struct {
	Backend string `koanf:"backend"` // memory, sqlite
	Path    string `koanf:"path"`
}

type DriversConfig struct {
	Callable CallableDriverConfig `koanf:"callable"`
	HTTP     HTTPDriverConfig     `koanf:"http"`
	MCP      MCPDriverConfig      `koanf:"mcp"`
}

type CallableDriverConfig struct {
	Enabled bool `koanf:"enabled"`
}

type HTTPDriverConfig struct {
	Enabled bool          `koanf:"enabled"`
	Timeout time.Duration `koanf:"timeout"`
}

type MCPDriverConfig struct {
	Enabled bool     `koanf:"enabled"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

type MemoryConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Provider   string `koanf:"provider"` // inmemory, qdrant
	QdrantAddr string `koanf:"qdrant_addr"`
	Collection string `koanf:"collection"`
	VectorSize uint64 `koanf:"vector_size"`
}

// Load reads configuration, layering file and environment over defaults.
// An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")
	k.Set("events.backend", "slog")
	k.Set("runstore.backend", "memory")
	k.Set("drivers.callable.enabled", true)
	k.Set("drivers.http.enabled", true)
	k.Set("drivers.http.timeout", "30s")
	k.Set("drivers.mcp.enabled", false)
	k.Set("memory.enabled", false)
	k.Set("memory.provider", "inmemory")
	k.Set("memory.qdrant_addr", "localhost:6334")
	k.Set("memory.collection", "axon_memory")
	k.Set("memory.vector_size", 27)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (AXON_DRIVERS_HTTP_TIMEOUT -> drivers.http.timeout)
	if err := k.Load(env.Provider("AXON_", ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKeyFixups restores the leaf keys that legitimately contain an
// underscore after every underscore has been turned into a separator.
var envKeyFixups = map[string]string{
	"telemetry.otlp.endpoint": "telemetry.otlp_endpoint",
	"telemetry.otlp.insecure": "telemetry.otlp_insecure",
	"memory.qdrant.addr":      "memory.qdrant_addr",
	"memory.vector.size":      "memory.vector_size",
}

func envKey(s string) string {
	key := strings.ReplaceAll(strings.ToLower(
		strings.TrimPrefix(s, "AXON_")), "_", ".")
	if fixed, ok := envKeyFixups[key]; ok {
		return fixed
	}
	return key
}
