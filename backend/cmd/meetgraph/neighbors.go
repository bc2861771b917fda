package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewNeighborsCommand creates the neighbors command.
func NewNeighborsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighbors <entity-id>",
		Short: "List the exported relationships of one entity",
		Long: `Neighbors reads the Neo4j export at NEO4J_URI and prints every relationship
touching the entity, one "relation:other-id" per line, sorted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNeighbors(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runNeighbors(opts *RootOptions, id string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	sm, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer sm.Shutdown(ctx)

	exporter, err := sm.Exporter(ctx)
	if err != nil {
		return err
	}
	edges, err := exporter.Neighbors(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), e); err != nil {
			return err
		}
	}
	return nil
}
