package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meeting-graph/backend/internal/services"
	"meeting-graph/backend/pkg/config"
	"meeting-graph/backend/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataDir string
	Verbose bool

	// Logger overrides the logger built from configuration. Tests set it.
	Logger *zap.Logger
}

// NewRootCommand creates the root command for the meetgraph CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meetgraph",
		Short: "Maintain the meeting archive entity graph",
		Long: `meetgraph loads workgroup meeting records into the file-backed entity
store and keeps the store, its indexes and the optional Neo4j export in step.

Configuration comes from the environment (and a .env file when present);
--data-dir overrides DATA_DIR.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error once
	}

	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "entity store directory (overrides DATA_DIR)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewBundleCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewNeighborsCommand(opts))

	return cmd
}

// open loads configuration and wires the services for one command run.
// Callers must Shutdown the returned manager.
func (o *RootOptions) open(ctx context.Context) (*services.ServiceManager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}

	log := o.Logger
	if log == nil {
		if log, err = logger.New(cfg.Env); err != nil {
			return nil, err
		}
		if !o.Verbose {
			log = log.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
		}
	}
	return services.NewServiceManager(ctx, cfg, log)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
