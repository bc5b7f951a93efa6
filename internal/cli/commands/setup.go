package commands

import (
	"log/slog"

	"github.com/leapstack-labs/partql/internal/cli/config"
	"github.com/leapstack-labs/partql/internal/client"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext collects the config and logger the root command stored.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    config.GetConfig(cmd.Context()),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// Client returns a gateway client built from the client config.
func (c *CommandContext) Client() *client.Client {
	return client.New(c.Cfg.Client.GatewayURL, c.Cfg.Client.Timeout)
}

// bindString registers a string flag on cmd that sets the config key.
func bindString(cmd *cobra.Command, name, short, key, usage string) {
	cmd.Flags().StringP(name, short, "", usage)
	config.BindFlag(cmd.Flags(), name, key)
}

func bindDuration(cmd *cobra.Command, name, key, usage string) {
	cmd.Flags().Duration(name, 0, usage)
	config.BindFlag(cmd.Flags(), name, key)
}
