package main

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/espgraph/internal/export"
	"github.com/dusk-indust/espgraph/internal/graph"
	"github.com/spf13/cobra"
)

// openPersisted opens the graph written by `espgraph graph --persist`.
func (a *app) openPersisted() (graph.Store, error) {
	store, err := graph.OpenPersisted(a.cfg.PersistDir)
	if errors.Is(err, graph.ErrNoPersistence) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("no graph found at %s\nRun 'espgraph graph --persist' first: %w", a.cfg.PersistDir, err)
	}
	return store, nil
}

func (a *app) impactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "impact PLUGIN...",
		Short: "Show which plugins depend on the given ones",
		Long: `Reads the persisted graph and reports the plugins that depend, directly
or through other plugins, on the given plugin file names.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPersisted()
			if err != nil {
				return err
			}
			defer store.Close()

			impact, err := store.AssessImpact(cmd.Context(), args)
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), export.KindImpact, impact)
		},
	}
}

func (a *app) diagramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagram",
		Short: "Print the persisted graph as a Mermaid diagram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openPersisted()
			if err != nil {
				return err
			}
			defer store.Close()
			return writeMermaid(cmd, store)
		},
	}
}
