package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"meeting-graph/backend/internal/ingest"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Ingest a JSON array of meeting records",
		Long: `Ingest reads a JSON array of meeting records from a file, or from stdin
when the argument is "-", and writes them to the entity store in order.

Malformed records are reported and skipped. Meetings that are already stored
are skipped. The per-record outcomes are printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runIngest(opts *RootOptions, path string, cmd *cobra.Command) error {
	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	raws, err := ingest.SplitBatch(data)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sm, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer sm.Shutdown(ctx)

	result, err := sm.Ingester.IngestBatch(ctx, raws)
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if n := result.Count(ingest.StatusFailed); n > 0 {
		return fmt.Errorf("%d of %d records failed to ingest", n, len(raws))
	}
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
