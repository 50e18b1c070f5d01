// Package kernel wires the Axon subsystems into one control plane: identity
// registry, policy engine, executor and drivers, event sink, run tracking,
// memory, and the agent bus. Construction is the only place wiring happens;
// after New the kernel is immutable apart from policy reloads.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/axon-sh/axon/pkg/bus"
	"github.com/axon-sh/axon/pkg/config"
	"github.com/axon-sh/axon/pkg/drivers"
	"github.com/axon-sh/axon/pkg/errors"
	"github.com/axon-sh/axon/pkg/events"
	"github.com/axon-sh/axon/pkg/executor"
	"github.com/axon-sh/axon/pkg/memory"
	"github.com/axon-sh/axon/pkg/memory/qdrant"
	"github.com/axon-sh/axon/pkg/policy"
	"github.com/axon-sh/axon/pkg/registry"
	"github.com/axon-sh/axon/pkg/runstore"
	"github.com/axon-sh/axon/pkg/telemetry"
)

// Version is the kernel release version, reported by the CLI and attached
// to exported telemetry.
const Version = "0.1.0"

// Kernel owns every subsystem. Fields are exported for direct access; none
// may be replaced after construction.
type Kernel struct {
	Registry *registry.Registry
	Policy   *policy.Engine
	Drivers  *executor.DriverRegistry
	Executor *executor.Executor
	Events   events.Emitter
	Runs     *runstore.Tracker
	Memory   *memory.Subsystem
	Bus      *bus.Bus

	cfg     *config.Config
	closers []func() error
}

// New builds a kernel from configuration. Policy files load fail-closed: any
// load error aborts construction and nothing is dispatched.
func New(ctx context.Context, cfg *config.Config) (*Kernel, error) {
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	k := &Kernel{cfg: cfg, Bus: bus.New()}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitWithConfig("axon", Version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			return nil, err
		}
		k.closers = append(k.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(ctx)
		})
	}

	emitter, err := k.buildEmitter(cfg)
	if err != nil {
		k.closeAll()
		return nil, err
	}
	k.Events = emitter

	ruleSet, err := policy.LoadFiles(cfg.Policy.Files)
	if err != nil {
		k.closeAll()
		return nil, err
	}
	k.Policy = policy.NewEngine(ruleSet, policy.WithEmitter(emitter))

	k.Registry = registry.New()
	k.Drivers = executor.NewDriverRegistry()
	if err := k.registerDrivers(ctx, cfg); err != nil {
		k.closeAll()
		return nil, err
	}
	k.Executor = executor.New(k.Registry, k.Policy, k.Drivers, executor.WithEmitter(emitter))

	runStore, err := k.buildRunStore(cfg)
	if err != nil {
		k.closeAll()
		return nil, err
	}
	k.Runs = runstore.NewTracker(runStore, runstore.WithEmitter(emitter))

	if cfg.Memory.Enabled {
		sub, err := buildMemory(cfg, k.Policy, emitter)
		if err != nil {
			k.closeAll()
			return nil, err
		}
		k.Memory = sub
	}

	slog.Info("kernel.ready",
		slog.Int("policy_rules", ruleSet.Len()),
		slog.String("events_backend", cfg.Events.Backend),
		slog.Any("runtimes", k.Drivers.Runtimes()),
	)
	return k, nil
}

func (k *Kernel) buildEmitter(cfg *config.Config) (events.Emitter, error) {
	var sinks events.Multi
	switch cfg.Events.Backend {
	case "none", "":
	case "slog":
		sinks = append(sinks, events.NewSlog(slog.Default()))
	case "sqlite":
		path := cfg.Events.Path
		if path == "" {
			return nil, errors.New(errors.CodeInvalidInput, "events.path is required for the sqlite backend", nil)
		}
		store, err := events.OpenSQLiteStore(path)
		if err != nil {
			return nil, errors.New(errors.CodeInternal, "open event store", err)
		}
		k.closers = append(k.closers, store.Close)
		sinks = append(sinks, store)
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown events backend %q", cfg.Events.Backend)
	}

	if cfg.Telemetry.Enabled {
		metrics, err := telemetry.NewKernelMetrics()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, telemetry.NewMetricsEmitter(metrics))
	}

	if len(sinks) == 0 {
		return events.Noop{}, nil
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

func (k *Kernel) registerDrivers(ctx context.Context, cfg *config.Config) error {
	if cfg.Drivers.Callable.Enabled {
		if err := k.Drivers.Register(drivers.RuntimeCallable, drivers.NewCallable()); err != nil {
			return err
		}
	}
	if cfg.Drivers.HTTP.Enabled {
		httpDriver := drivers.NewHTTP(drivers.WithHTTPTimeout(cfg.Drivers.HTTP.Timeout))
		if err := k.Drivers.Register(drivers.RuntimeHTTP, httpDriver); err != nil {
			return err
		}
	}
	if cfg.Drivers.MCP.Enabled {
		if cfg.Drivers.MCP.Command == "" {
			return errors.New(errors.CodeInvalidInput, "drivers.mcp.command is required when the mcp driver is enabled", nil)
		}
		mcpDriver, err := drivers.NewMCPStdio(ctx, cfg.Drivers.MCP.Command, cfg.Drivers.MCP.Args...)
		if err != nil {
			return err
		}
		if err := k.Drivers.Register(drivers.RuntimeMCP, mcpDriver); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) buildRunStore(cfg *config.Config) (runstore.Store, error) {
	switch cfg.RunStore.Backend {
	case "", "memory":
		return runstore.NewInMemory(), nil
	case "sqlite":
		path := cfg.RunStore.Path
		if path == "" {
			return nil, errors.New(errors.CodeInvalidInput, "runstore.path is required for the sqlite backend", nil)
		}
		store, err := runstore.OpenSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		k.closers = append(k.closers, store.Close)
		return store, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown runstore backend %q", cfg.RunStore.Backend)
	}
}

func buildMemory(cfg *config.Config, engine *policy.Engine, emitter events.Emitter) (*memory.Subsystem, error) {
	opts := []memory.SubsystemOption{memory.WithEmitter(emitter)}
	switch cfg.Memory.Provider {
	case "", "inmemory":
	case "qdrant":
		store, err := qdrant.New(cfg.Memory.QdrantAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, memory.WithVectorStore(store))
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown memory provider %q", cfg.Memory.Provider)
	}
	return memory.NewSubsystem(engine, opts...), nil
}

// Config returns the configuration the kernel was built from.
func (k *Kernel) Config() *config.Config {
	return k.cfg
}

// RunTask dispatches a task through the executor.
func (k *Kernel) RunTask(ctx context.Context, task *executor.Task) (executor.Result, error) {
	return k.Executor.RunTask(ctx, task)
}

// ReloadPolicy loads the given rule files and swaps them in atomically.
// In-flight evaluations finish against the rule set they started with.
func (k *Kernel) ReloadPolicy(paths []string) error {
	ruleSet, err := policy.LoadFiles(paths)
	if err != nil {
		return err
	}
	k.Policy.Reload(ruleSet)
	slog.Info("kernel.policy.reloaded",
		slog.String("ruleset", ruleSet.Name()),
		slog.Int("rules", ruleSet.Len()),
	)
	return nil
}

// SubsystemInfo describes one wired subsystem.
type SubsystemInfo struct {
	Present bool   `json:"present"`
	Detail  string `json:"detail,omitempty"`
}

// Describe reports the wired subsystems. Safe to call on a partially built
// kernel.
func (k *Kernel) Describe() map[string]SubsystemInfo {
	out := map[string]SubsystemInfo{
		"registry":      {Present: k.Registry != nil},
		"policy_engine": {Present: k.Policy != nil},
		"executor":      {Present: k.Executor != nil},
		"events":        {Present: k.Events != nil},
		"run_store":     {Present: k.Runs != nil},
		"memory":        {Present: k.Memory != nil},
		"message_bus":   {Present: k.Bus != nil},
	}
	if k.Registry != nil {
		out["registry"] = SubsystemInfo{Present: true, Detail: fmt.Sprintf("%d specs", k.Registry.Len())}
	}
	if k.Policy != nil {
		out["policy_engine"] = SubsystemInfo{Present: true, Detail: fmt.Sprintf("%d rules", k.Policy.RuleSet().Len())}
	}
	if k.Drivers != nil {
		out["drivers"] = SubsystemInfo{Present: true, Detail: fmt.Sprintf("%v", k.Drivers.Runtimes())}
	} else {
		out["drivers"] = SubsystemInfo{}
	}
	if k.cfg != nil {
		out["events"] = SubsystemInfo{Present: k.Events != nil, Detail: k.cfg.Events.Backend}
	}
	return out
}

// Close releases kernel-owned resources such as SQLite handles.
func (k *Kernel) Close() error {
	return k.closeAll()
}

func (k *Kernel) closeAll() error {
	var first error
	for _, closeFn := range k.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	k.closers = nil
	return first
}
