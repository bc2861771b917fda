package main

import (
	"github.com/spf13/cobra"
)

// NewBundleCommand creates the bundle command.
func NewBundleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle <meeting-id>...",
		Short: "Print the hand-off bundle for stored meetings",
		Long: `Bundle prints the structured entity list, cluster labels, relationship
triples and embedding chunks for the given meetings as one JSON document.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundle(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runBundle(opts *RootOptions, meetingIDs []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	sm, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer sm.Shutdown(ctx)

	b, err := sm.Ingester.Bundle(ctx, meetingIDs)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), b)
}
