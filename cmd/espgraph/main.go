package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/espgraph/internal/config"
	"github.com/dusk-indust/espgraph/internal/conflict"
	"github.com/dusk-indust/espgraph/internal/esp"
	"github.com/dusk-indust/espgraph/internal/graph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by every subcommand. It is populated in the root
// command's PersistentPreRunE.
type app struct {
	// Global flags
	verbose    bool
	configDir  string
	workers    int
	persistDir string

	log *zap.Logger
	cfg *config.ProjectConfig

	cache   *esp.Cache
	builder *graph.Builder
	engine  *conflict.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "espgraph",
		Short: "Dependency graphs and conflict analysis for Bethesda plugins",
		Long: `espgraph parses .esp, .esm and .esl plugin files and reports how they
depend on and conflict with each other.

Paths may be plugin files or Data directories; directories are expanded to the
plugin files they contain, sorted by name. The resulting list is the load order.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.configDir, "config", ".", "directory holding espgraph.yml")
	root.PersistentFlags().IntVar(&a.workers, "workers", 0, "parallel parse workers (default: config or GOMAXPROCS)")
	root.PersistentFlags().StringVar(&a.persistDir, "persist-dir", "", "on-disk graph directory (default: config)")

	root.AddCommand(
		a.graphCmd(),
		a.conflictsCmd(),
		a.compareCmd(),
		a.patchCmd(),
		a.compatCmd(),
		a.mergeCmd(),
		a.rulesCmd(),
		a.impactCmd(),
		a.diagramCmd(),
		a.serveCmd(),
		versionCmd(),
	)
	return root
}

// setup loads config, applies flag overrides and wires the logger, parse
// cache, graph builder and conflict engine.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	if a.workers > 0 {
		cfg.Workers = a.workers
	}
	if a.persistDir != "" {
		cfg.PersistDir = a.persistDir
	}
	if a.verbose {
		cfg.Verbose = true
	}
	a.cfg = cfg

	zcfg := zap.NewProductionConfig()
	if cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	a.log, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log.Debug("command started", zap.String("command", cmd.Name()))

	a.cache = esp.NewCache(
		esp.WithParser(esp.NewParser(esp.WithProbe(cfg.Probe()))),
		esp.WithCacheLogger(a.log.Named("esp")),
		esp.WithWorkers(cfg.Workers),
	)
	a.builder = graph.NewBuilder(a.cache,
		graph.WithLogger(a.log.Named("graph")),
		graph.WithWorkers(cfg.Workers),
		graph.WithExtensions(cfg.Extensions),
	)
	a.engine = conflict.NewEngine(a.cache,
		conflict.WithLogger(a.log.Named("conflict")),
		conflict.WithWorkers(cfg.Workers),
		conflict.WithMergeThreshold(cfg.MergeThreshold),
	)
	return nil
}

// paths expands directory arguments with the configured extensions.
func (a *app) paths(args []string) ([]string, error) {
	return esp.ExpandPaths(args, a.cfg.Extensions)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
