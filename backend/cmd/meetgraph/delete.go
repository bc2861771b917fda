package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/integrity"
)

type deleteOptions struct {
	DryRun bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &deleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a record and everything that depends on it",
		Long: `Delete removes a record together with its transitive dependents in one
commit and prints the cascade plan. With --dry-run the plan is computed and
printed without writing.

When NEO4J_URI is set the deleted ids are also removed from the graph export.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the cascade plan without deleting")

	return cmd
}

func runDelete(rootOpts *RootOptions, opts *deleteOptions, typ, id string, cmd *cobra.Command) error {
	t, err := entity.ParseType(typ)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sm, err := rootOpts.open(ctx)
	if err != nil {
		return err
	}
	defer sm.Shutdown(ctx)

	var plan *integrity.Plan
	if opts.DryRun {
		plan, err = sm.Guard.ComputeCascadeSet(ctx, t, id)
	} else {
		plan, err = sm.Guard.Delete(ctx, t, id)
	}
	if err != nil {
		return err
	}

	if !opts.DryRun && sm.Neo4jEnabled() {
		exporter, err := sm.Exporter(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(plan.Victims))
		for _, v := range plan.Victims {
			ids = append(ids, v.ID)
		}
		if err := exporter.DeleteEntities(ctx, ids); err != nil {
			// the store is already committed; the next export rebuilds the graph
			sm.Logger().Warn("Failed to remove deleted ids from Neo4j", zap.Error(err))
		}
	}

	return writeJSON(cmd.OutOrStdout(), plan)
}
