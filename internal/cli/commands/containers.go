package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/partql/internal/registry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewContainersCommand creates the containers command.
func NewContainersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "containers",
		Aliases: []string{"container"},
		Short:   "Manage logical containers",
		Long: `List and create the logical containers known to the gateway.

A container groups documents and names the field whose value decides which
compute unit stores each document.`,
	}

	cmd.AddCommand(newContainersListCommand())
	cmd.AddCommand(newContainersCreateCommand())
	return cmd
}

func newContainersListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List containers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			containers, err := cmdCtx.Client().ListContainers(cmd.Context())
			if err != nil {
				return err
			}
			switch cmdCtx.Cfg.Client.Format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(containers)
			case "yaml":
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(containersYAML(containers))
			}
			renderContainers(cmd.OutOrStdout(), containers)
			return nil
		},
	}
	bindString(cmd, "format", "f", "client.format", "Output format: table, json, yaml")
	return cmd
}

func newContainersCreateCommand() *cobra.Command {
	var partitionKey string

	cmd := &cobra.Command{
		Use:     "create <name>",
		Short:   "Create a container",
		Example: `  partql containers create pets --partition-key owner`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			c, err := cmdCtx.Client().CreateContainer(cmd.Context(), args[0], partitionKey)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created container %s (partition key %s)\n", c.Name, c.PartitionKeyPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&partitionKey, "partition-key", "k", "", "Document field holding the partition key")
	_ = cmd.MarkFlagRequired("partition-key")
	return cmd
}

type containerYAML struct {
	Name             string    `yaml:"name"`
	PartitionKeyPath string    `yaml:"partitionKeyPath"`
	CreatedAt        time.Time `yaml:"createdAt"`
}

func containersYAML(containers []registry.Container) []containerYAML {
	out := make([]containerYAML, len(containers))
	for i, c := range containers {
		out[i] = containerYAML(c)
	}
	return out
}

func renderContainers(w io.Writer, containers []registry.Container) {
	if len(containers) == 0 {
		_, _ = fmt.Fprintln(w, "(0 containers)")
		return
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Partition key", "Created"})
	for _, c := range containers {
		t.AppendRow(table.Row{c.Name, c.PartitionKeyPath, c.CreatedAt.Local().Format(time.DateTime)})
	}
	_, _ = fmt.Fprintln(w, t.Render())
}
