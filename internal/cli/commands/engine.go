package commands

import (
	"github.com/leapstack-labs/partql/internal/docstore"
	"github.com/leapstack-labs/partql/internal/engine"
	"github.com/spf13/cobra"
)

// NewEngineCommand creates the engine command.
func NewEngineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Run a compute unit",
		Long: `Run the engine serving one partition's documents.

The gateway starts this command inside every compute unit it provisions.
Documents are kept as JSON files below the data directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			cfg := cmdCtx.Cfg.Engine

			store := docstore.New(cfg.DataDir)
			cmdCtx.Logger.Info("serving documents", "data_dir", store.Root())

			srv := engine.NewServer(engine.Config{Store: store, Logger: cmdCtx.Logger})
			return srv.Serve(cmd.Context(), cfg.Addr)
		},
	}

	bindString(cmd, "addr", "", "engine.addr", "Listen address")
	bindString(cmd, "data-dir", "", "engine.data_dir", "Directory holding the documents")

	return cmd
}
