package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/services"
	"meeting-graph/backend/internal/store"
	"meeting-graph/backend/internal/triples"
)

type exportOptions struct {
	Reset bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export [meeting-id...]",
		Short: "Write relationship triples to Neo4j",
		Long: `Export merges the relationship triples of the given meetings, or of every
stored meeting when none are named, into the Neo4j database at NEO4J_URI.
Re-running an export does not duplicate nodes or relationships.

With --reset every previously exported node is removed first, so the graph
matches the store exactly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "remove previously exported nodes before writing")

	return cmd
}

func runExport(rootOpts *RootOptions, opts *exportOptions, meetingIDs []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	sm, err := rootOpts.open(ctx)
	if err != nil {
		return err
	}
	defer sm.Shutdown(ctx)

	exporter, err := sm.Exporter(ctx)
	if err != nil {
		return err
	}

	ts, err := collectTriples(cmd, sm, meetingIDs)
	if err != nil {
		return err
	}
	if opts.Reset {
		if _, err := exporter.Reset(ctx); err != nil {
			return err
		}
	}
	created, err := exporter.ExportTriples(ctx, ts)
	if err != nil {
		return err
	}

	sm.Logger().Info("Export finished", zap.Int("triples", len(ts)), zap.Int("relationships_created", created))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d triples (%d new relationships)\n", len(ts), created)
	return err
}

// collectTriples gathers the meeting-perspective triples of the named meetings,
// or of all stored meetings.
func collectTriples(cmd *cobra.Command, sm *services.ServiceManager, meetingIDs []string) ([]triples.Triple, error) {
	ctx := cmd.Context()
	if len(meetingIDs) == 0 {
		recs, err := sm.Store.List(ctx, entity.TypeMeeting)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			meetingIDs = append(meetingIDs, rec.EntityID())
		}
	}

	var out []triples.Triple
	for _, id := range meetingIDs {
		v, err := store.LoadMeetingView(ctx, sm.Store, id)
		if err != nil {
			return nil, err
		}
		out = append(out, triples.ForView(v)...)
	}
	return out, nil
}
