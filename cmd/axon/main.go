package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/axon-sh/axon/pkg/config"
	"github.com/axon-sh/axon/pkg/events"
	"github.com/axon-sh/axon/pkg/executor"
	"github.com/axon-sh/axon/pkg/kernel"
	"github.com/axon-sh/axon/pkg/policy"
	"github.com/axon-sh/axon/pkg/registry"
	"github.com/axon-sh/axon/pkg/runstore"
	"github.com/axon-sh/axon/pkg/telemetry"
)

const version = kernel.Version

type globalFlags struct {
	ConfigPath string
	SpecsPath  string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	switch args[0] {
	case "status":
		ensureNoArgs(args[1:])
		runStatus(ctx, global)
	case "specs":
		ensureNoArgs(args[1:])
		runSpecs(ctx, global)
	case "policy":
		runPolicy(ctx, global, args[1:])
	case "run":
		runTask(ctx, global, args[1:])
	case "events":
		runEvents(ctx, global, args[1:])
	case "runs":
		runRuns(ctx, global, args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Println(version)
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		ConfigPath: getenv("AXON_CONFIG", ""),
		Timeout:    30 * time.Second,
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--specs":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --specs")
			}
			flags.SpecsPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--specs="):
			flags.SpecsPath = strings.TrimPrefix(arg, "--specs=")
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			parsed, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = parsed
			i++
		default:
			return flags, nil, fmt.Errorf("unknown flag %q", arg)
		}
	}
	return flags, nil, nil
}

func bootKernel(ctx context.Context, global globalFlags) (*kernel.Kernel, *config.Config) {
	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log)

	k, err := kernel.New(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	if global.SpecsPath != "" {
		if err := loadManifest(k.Registry, global.SpecsPath); err != nil {
			fatal(err)
		}
	}
	return k, cfg
}

func runStatus(ctx context.Context, global globalFlags) {
	k, _ := bootKernel(ctx, global)
	defer k.Close()

	described := k.Describe()
	if global.JSON {
		printJSON(map[string]any{
			"version":    version,
			"subsystems": described,
		})
		return
	}
	fmt.Printf("axon %s\n", version)
	if global.ConfigPath != "" {
		fmt.Printf("config: %s\n", global.ConfigPath)
	}
	writer := newTabWriter()
	writeRow(writer, "SUBSYSTEM", "PRESENT", "DETAIL")
	for _, name := range []string{"registry", "policy_engine", "executor", "drivers", "events", "run_store", "memory", "message_bus"} {
		info := described[name]
		writeRow(writer, name, fmt.Sprintf("%t", info.Present), info.Detail)
	}
	_ = writer.Flush()
}

func runSpecs(ctx context.Context, global globalFlags) {
	k, _ := bootKernel(ctx, global)
	defer k.Close()

	specs := k.Registry.List(registry.ListFilter{IncludeDisabled: true})
	if global.JSON {
		printJSON(specs)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "ID", "KIND", "RUNTIME", "NAME", "ENABLED")
	for _, s := range specs {
		writeRow(writer, s.ID, string(s.Kind), s.Runtime, s.DisplayName, fmt.Sprintf("%t", s.Enabled))
	}
	_ = writer.Flush()
}

func runPolicy(ctx context.Context, global globalFlags, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: axon policy <validate|check> ..."))
	}
	switch args[0] {
	case "validate":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: axon policy validate <file> [file...]"))
		}
		ruleSet, err := policy.LoadFiles(args[1:])
		if err != nil {
			fatal(err)
		}
		if global.JSON {
			printJSON(map[string]any{"name": ruleSet.Name(), "rules": ruleSet.Len(), "valid": true})
			return
		}
		fmt.Printf("ok: %s (%d rules)\n", ruleSet.Name(), ruleSet.Len())
	case "check":
		checkPolicy(ctx, global, args[1:])
	default:
		fatal(fmt.Errorf("unknown policy subcommand %q", args[0]))
	}
}

func checkPolicy(ctx context.Context, global globalFlags, args []string) {
	fs := flag.NewFlagSet("policy check", flag.ExitOnError)
	action := fs.String("action", "", "policy action, e.g. tool.invoke")
	subject := fs.String("subject", "", "requesting subject, e.g. user:alice")
	target := fs.String("target", "", "canonical target id")
	_ = fs.Parse(args)
	if *action == "" || *subject == "" || *target == "" {
		fatal(fmt.Errorf("policy check requires --action, --subject and --target"))
	}

	k, _ := bootKernel(ctx, global)
	defer k.Close()

	decision := k.Policy.Evaluate(ctx, policy.Request{
		Action:  *action,
		Subject: *subject,
		Target:  *target,
	})
	if global.JSON {
		printJSON(decision)
		return
	}
	if decision.Allowed {
		fmt.Printf("allow (rule %s)\n", decision.RuleID)
		return
	}
	fmt.Printf("deny: %s", decision.Reason)
	if decision.RuleID != "" {
		fmt.Printf(" (rule %s)", decision.RuleID)
	}
	fmt.Println()
}

func runTask(ctx context.Context, global globalFlags, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	target := fs.String("target", "", "target spec id or name")
	subject := fs.String("subject", "user:cli", "requesting subject")
	input := fs.String("input", "", "task input as JSON (raw string if not valid JSON)")
	workspaceID := fs.String("workspace", "", "workspace id to scope the task")
	_ = fs.Parse(args)
	if *target == "" {
		fatal(fmt.Errorf("run requires --target"))
	}

	var payload any
	if *input != "" {
		if err := json.Unmarshal([]byte(*input), &payload); err != nil {
			payload = *input
		}
	}

	k, _ := bootKernel(ctx, global)
	defer k.Close()

	task := executor.NewTask(*subject, *target, payload).WithDeadline(global.Timeout)
	if *workspaceID != "" {
		task = task.WithWorkspace(*workspaceID)
	}
	result, err := k.RunTask(ctx, task)
	if err != nil {
		fatal(err)
	}
	if global.JSON {
		printJSON(result)
		return
	}
	fmt.Printf("task %s: %s\n", result.TaskID, result.Status)
	switch result.Status {
	case executor.StatusCompleted:
		payload, err := json.Marshal(result.Output)
		if err != nil {
			fmt.Printf("output: %v\n", result.Output)
			return
		}
		fmt.Printf("output: %s\n", payload)
	case executor.StatusDenied:
		fmt.Printf("denied: %s\n", result.Denial)
	case executor.StatusFailed:
		fmt.Printf("error: %s\n", result.Err)
		os.Exit(1)
	}
}

func runEvents(ctx context.Context, global globalFlags, args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	eventType := fs.String("type", "", "filter by event type")
	taskID := fs.String("task", "", "filter by task id")
	limit := fs.Int("limit", 50, "maximum events to list")
	_ = fs.Parse(args)

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}
	if cfg.Events.Backend != "sqlite" {
		fatal(fmt.Errorf("events list requires the sqlite events backend (got %q)", cfg.Events.Backend))
	}
	store, err := events.OpenSQLiteStore(cfg.Events.Path)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	list, err := store.List(ctx, events.Filter{
		Type:   events.Type(*eventType),
		TaskID: *taskID,
		Limit:  *limit,
	})
	if err != nil {
		fatal(err)
	}
	if global.JSON {
		printJSON(list)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "TIME", "TYPE", "SUBJECT", "TARGET", "TASK")
	for _, event := range list {
		writeRow(writer, formatTime(event.Timestamp), string(event.Type), event.Subject, event.Target, event.TaskID)
	}
	_ = writer.Flush()
}

func runRuns(ctx context.Context, global globalFlags, args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	status := fs.String("status", "", "filter by run status")
	workspaceID := fs.String("workspace", "", "filter by workspace id")
	limit := fs.Int("limit", 50, "maximum runs to list")
	_ = fs.Parse(args)

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}
	if cfg.RunStore.Backend != "sqlite" {
		fatal(fmt.Errorf("runs list requires the sqlite runstore backend (got %q)", cfg.RunStore.Backend))
	}
	store, err := runstore.OpenSQLiteStore(cfg.RunStore.Path)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	list, err := store.List(ctx, runstore.ListFilter{
		Status:    runstore.Status(*status),
		Workspace: *workspaceID,
		Limit:     *limit,
	})
	if err != nil {
		fatal(err)
	}
	if global.JSON {
		printJSON(list)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "ID", "NAME", "WORKSPACE", "STATUS", "STARTED", "ENDED")
	for _, run := range list {
		writeRow(writer, run.ID, run.Name, run.Workspace, string(run.Status), formatTime(run.StartedAt), formatTime(run.EndedAt))
	}
	_ = writer.Flush()
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

func printUsage() {
	fmt.Println(`Axon CLI

Usage:
  axon [global flags] <command> [args]

Global flags:
  --config <path>      Path to axon.yaml
  --specs <path>       Spec manifest to load into the registry
  --timeout <dur>      Task deadline (default 30s)
  --json               JSON output

Commands:
  status
  specs
  policy validate <file> [file...]
  policy check --action <a> --subject <s> --target <t>
  run --target <id-or-name> [--input <json>] [--subject <s>] [--workspace <id>]
  events [--type <t>] [--task <id>] [--limit N]
  runs [--status <s>] [--workspace <id>] [--limit N]
  version`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
