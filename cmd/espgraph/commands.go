package main

import (
	"fmt"
	"io"

	"github.com/dusk-indust/espgraph/internal/conflict"
	"github.com/dusk-indust/espgraph/internal/export"
	"github.com/dusk-indust/espgraph/internal/graph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// graphResult is the data of a graph export.
type graphResult struct {
	Graph    *graph.ModDependencyGraph `json:"graph"`
	Clusters []graph.ClusterNode       `json:"clusters"`
	Stats    *graph.GraphStats         `json:"stats"`
}

func (a *app) graphCmd() *cobra.Command {
	var (
		format  string
		persist bool
	)
	cmd := &cobra.Command{
		Use:   "graph PATH...",
		Short: "Build the mod dependency graph",
		Long: `Builds the dependency graph of the given plugins: master and
compatibility edges, per-plugin conflicts, cycles and the computed load order.

With --persist the graph is also written to the on-disk graph store read by
the impact and diagram commands (requires a cgo build).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "mermaid" {
				return fmt.Errorf("unknown format %q (want json or mermaid)", format)
			}
			paths, err := a.paths(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			g, err := a.builder.Build(ctx, paths)
			if err != nil {
				return err
			}

			store := graph.NewMemStore()
			if err := graph.Load(ctx, store, g); err != nil {
				return err
			}
			clusters, err := graph.ComputeClusters(ctx, store)
			if err != nil {
				return err
			}
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			if persist {
				if _, err := graph.Persist(ctx, g, a.cfg.PersistDir); err != nil {
					return fmt.Errorf("persist graph: %w", err)
				}
				a.log.Info("graph persisted", zap.String("dir", a.cfg.PersistDir))
			}

			if format == "mermaid" {
				return writeMermaid(cmd, store)
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.KindGraph, graphResult{
				Graph:    g,
				Clusters: clusters,
				Stats:    stats,
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or mermaid")
	cmd.Flags().BoolVar(&persist, "persist", false, "write the graph to the persist directory")
	return cmd
}

func writeMermaid(cmd *cobra.Command, store graph.Store) error {
	mermaid, err := export.GenerateMermaid(cmd.Context(), store)
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), mermaid)
	return err
}

func (a *app) conflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts PATH...",
		Short: "Analyze record conflicts across a load order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := a.paths(args)
			if err != nil {
				return err
			}
			analysis, err := a.engine.AnalyzeConflicts(cmd.Context(), paths)
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.KindConflicts, analysis)
		},
	}
}

func (a *app) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare PLUGIN_A PLUGIN_B FORM_ID",
		Short: "Compare one record across two plugins",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			comparison, err := a.engine.CompareRecords(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.KindComparison, comparison)
		},
	}
}

func (a *app) patchCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "patch PATH...",
		Short: "Plan a conflict resolution patch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := a.paths(args)
			if err != nil {
				return err
			}
			analysis, err := a.engine.AnalyzeConflicts(cmd.Context(), paths)
			if err != nil {
				return err
			}
			patch, err := conflict.GeneratePatch(analysis.Conflicts, conflict.Strategy(strategy))
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.KindPatch, patch)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", string(conflict.StrategyLastWins),
		"first-wins, last-wins, merge-all, manual, rule-based or ai-suggest")
	return cmd
}

func (a *app) compatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compat PLUGIN_A PLUGIN_B",
		Short: "Check whether two plugins can be loaded together",
		Long:  "Checks the conflicts between two plugins, PLUGIN_B loading after PLUGIN_A.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.engine.CheckCompatibility(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.KindCompatibility, report)
		},
	}
}

func (a *app) mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge PATH...",
		Short: "Recommend plugin pairs worth merging",
		Long: `Lists plugin pairs sharing at least mergeThreshold records
(espgraph.yml, default 25).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := a.paths(args)
			if err != nil {
				return err
			}
			recs, err := a.engine.RecommendMerge(cmd.Context(), paths)
			if err != nil {
				return err
			}
			if recs == nil {
				recs = []conflict.MergeRecommendation{}
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.KindMerge, recs)
		},
	}
}

func (a *app) rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules PATH...",
		Short: "Resolve conflicts with the rules from espgraph.yml",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := a.paths(args)
			if err != nil {
				return err
			}
			analysis, err := a.engine.AnalyzeConflicts(cmd.Context(), paths)
			if err != nil {
				return err
			}
			if len(a.cfg.Rules) == 0 {
				a.log.Warn("no resolution rules configured", zap.String("config", a.configDir))
			}
			resolved := conflict.ApplyRules(analysis.Conflicts, a.cfg.Rules)
			return export.WriteJSON(cmd.OutOrStdout(), export.KindRules, resolved)
		},
	}
}
