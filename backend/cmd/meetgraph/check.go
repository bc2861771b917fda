package main

import (
	"github.com/spf13/cobra"
)

type checkOptions struct {
	Reindex bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Repair stale index entries and junction rows",
		Long: `Check runs one consistency pass over the entity store. Index entries
that point at missing records and participant rows whose meeting or person is
gone are dropped. The report is printed as JSON.

With --reindex every secondary index is rebuilt from the records first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Reindex, "reindex", false, "rebuild all secondary indexes before checking")

	return cmd
}

func runCheck(rootOpts *RootOptions, opts *checkOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	sm, err := rootOpts.open(ctx)
	if err != nil {
		return err
	}
	defer sm.Shutdown(ctx)

	if opts.Reindex {
		if err := sm.Store.Reindex(ctx); err != nil {
			return err
		}
	}
	report, err := sm.Store.CheckConsistency(ctx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
