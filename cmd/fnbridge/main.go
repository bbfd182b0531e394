package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/grixate/fnbridge/internal/app"
	"github.com/grixate/fnbridge/internal/config"
	"github.com/grixate/fnbridge/internal/schema"
	"github.com/grixate/fnbridge/internal/telemetry"
)

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "fnbridge",
		Short: "fnbridge - expose typed capability functions to LLM function calling",
		RunE:  func(cmd *cobra.Command, args []string) error { return cmd.Help() },
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	// Subcommands read the flag lazily; it is only parsed once Execute runs.
	path := func() string { return configPath }
	root.AddCommand(statusCmd(path))
	root.AddCommand(functionsCmd(path, logger))
	root.AddCommand(schemaCmd(path, logger))
	root.AddCommand(invokeCmd(path, logger))
	root.AddCommand(toggleCmd(path, logger, true))
	root.AddCommand(toggleCmd(path, logger, false))
	root.AddCommand(todosCmd(path, logger))
	root.AddCommand(publishCmd(path, logger))
	root.AddCommand(eventsCmd(path, logger))
	root.AddCommand(metricsCmd(path, logger))
	root.AddCommand(watchCmd(path, logger))
	return root
}

func loadCfg(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func withRuntime(configPath func() string, logger *log.Logger, fn func(*app.Runtime) error) error {
	cfg, err := loadCfg(configPath())
	if err != nil {
		return err
	}
	rt, err := app.BuildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Printf("event=runtime_close_failed err=%v", err)
		}
	}()
	return fn(rt)
}

func statusCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show fnbridge status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			st := config.BuildStatus(configPath(), cfg)
			fmt.Fprintf(out, "Config: %s [%v]\n", st.ConfigPath, st.ConfigOK)
			fmt.Fprintf(out, "Todo DB: %s [%v]\n", st.TodoDBPath, st.TodoDBOK)
			fmt.Fprintf(out, "State DB: %s [%v]\n", st.StatePath, st.StateOK)
			fmt.Fprintf(out, "Snapshot: %s [%v]\n", st.SnapshotPath, st.SnapshotOK)
			fmt.Fprintf(out, "Owner: %s\n", cfg.Owner)
			fmt.Fprintf(out, "Discovery: package=%s schedule=%q autoPublish=%v\n",
				cfg.Discovery.PackageName, cfg.Discovery.Schedule, cfg.Discovery.AutoPublish)
			fmt.Fprintf(out, "Runtime: invokeTimeout=%s eventLimit=%d metrics=%v listen=%s\n",
				cfg.Runtime.InvokeTimeout, cfg.Runtime.EventLimit, cfg.Runtime.MetricsEnabled, cfg.Runtime.MetricsHTTP.ListenAddr)
			if err := config.Validate(cfg); err != nil {
				fmt.Fprintf(out, "Config valid: false (%v)\n", err)
			} else {
				fmt.Fprintln(out, "Config valid: true")
			}
			return nil
		},
	}
}

func functionsCmd(configPath func() string, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the functions in the current catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				snap := rt.Catalog.Snapshot()
				decls := snap.Declarations()
				sort.Slice(decls, func(i, j int) bool { return decls[i].ShortName < decls[j].ShortName })
				out := cmd.OutOrStdout()
				if len(decls) == 0 {
					fmt.Fprintln(out, "No functions in catalog.")
				}
				for _, decl := range decls {
					fmt.Fprintf(out, "%-18s %s\n", decl.ShortName, decl.Description)
				}
				for _, err := range snap.Dropped() {
					fmt.Fprintf(out, "dropped: %v\n", err)
				}
				return nil
			})
		},
	}
}

func renderDeclaration(decl schema.FunctionDeclaration, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "openai":
		return schema.MarshalDeclarationJSON(decl)
	case "jsonschema":
		return json.MarshalIndent(schema.ToJSONSchema(decl.Parameters), "", "  ")
	case "genai":
		return json.MarshalIndent(schema.ToGenAI(decl), "", "  ")
	default:
		return nil, fmt.Errorf("unknown format %q (want openai, jsonschema or genai)", format)
	}
}

func schemaCmd(configPath func() string, logger *log.Logger) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema <name>",
		Short: "Print the declaration of a function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				entry, ok := rt.Catalog.Snapshot().Find(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", app.ErrUnknownFunction, args[0])
				}
				raw, err := renderDeclaration(entry.Declaration, format)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "openai", "output format: openai, jsonschema or genai")
	return cmd
}

func parseArgs(text string) (map[string]json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &args); err != nil {
		return nil, fmt.Errorf("--args must be a JSON object: %w", err)
	}
	return args, nil
}

func invokeCmd(configPath func() string, logger *log.Logger) *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "invoke <name>",
		Short: "Invoke a function with JSON arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs, err := parseArgs(argsJSON)
			if err != nil {
				return err
			}
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				res, err := rt.Invoke(cmd.Context(), args[0], callArgs)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Display())
				if !res.OK() {
					return fmt.Errorf("invocation failed trace_id=%s", res.TraceID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "arguments as a JSON object")
	return cmd
}

func toggleCmd(configPath func() string, logger *log.Logger, enabled bool) *cobra.Command {
	use, short := "disable <name>", "Disable a function for the configured owner"
	if enabled {
		use, short = "enable <name>", "Enable a function for the configured owner"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				name, err := rt.SetEnabled(cmd.Context(), args[0], enabled)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s enabled=%v owner=%s\n", name, enabled, rt.Config.Owner)
				return nil
			})
		},
	}
}

func todosCmd(configPath func() string, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "todos",
		Short: "List the todo table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				items, err := rt.Todos.FetchAll(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No todos.")
					return nil
				}
				for _, item := range items {
					fmt.Fprintf(out, "%4d  %-9s  %-14s  %s\n", item.ID, item.Status, humanize.Time(item.CreatedAt), item.Task)
				}
				return nil
			})
		},
	}
}

func publishCmd(configPath func() string, logger *log.Logger) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write the todo package metadata snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				target := path
				if strings.TrimSpace(target) == "" {
					target = rt.Config.Discovery.SnapshotPath
				}
				if err := rt.Publish(target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published snapshot at %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "snapshot path (defaults to discovery.snapshotPath)")
	return cmd
}

func eventsCmd(configPath func() string, logger *log.Logger) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent invocation events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				if limit <= 0 {
					limit = rt.Config.Runtime.EventLimit
				}
				events, err := rt.Store.RecentInvocationEvents(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, ev := range events {
					outcome := "ok"
					if ev.Error != "" {
						outcome = "error: " + ev.Error
					}
					fmt.Fprintf(out, "%s  %s  %s  %dms  %s\n", humanize.Time(ev.CreatedAt), ev.Owner, schema.ShortNameOf(ev.Function), ev.DurationMS, outcome)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of events (defaults to runtime.eventLimit)")
	return cmd
}

func metricsCmd(configPath func() string, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print startup metrics in Prometheus text format",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				fmt.Fprint(cmd.OutOrStdout(), telemetry.PrometheusText(rt.Metrics.Snapshot()))
				return nil
			})
		},
	}
}

func watchCmd(configPath func() string, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the snapshot source on the discovery schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(configPath, logger, func(rt *app.Runtime) error {
				ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer cancel()
				fmt.Fprintf(cmd.OutOrStdout(), "fnbridge watching %s\n", rt.Config.Discovery.SnapshotPath)
				err := rt.Watch(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}
