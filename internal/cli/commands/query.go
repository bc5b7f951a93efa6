package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/partql/internal/registry"
	"github.com/leapstack-labs/partql/pkg/executor"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// errInteractive means no query was given and stdin is a terminal.
	errInteractive = errors.New("no query given on a terminal")
	errNoInput     = errors.New("no query given (pass it as an argument, with --input or on stdin)")
)

// Gateway is the part of the gateway API the query commands use.
type Gateway interface {
	ListContainers(ctx context.Context) ([]registry.Container, error)
	Query(ctx context.Context, container, sql string) ([]executor.Document, error)
}

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Container string
	Input     string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query a container through the gateway",
		Long: `Run a query against one logical container.

The WHERE clause must compare the container's partition key with a string
literal; the gateway uses it to pick the compute unit holding the data.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute a query directly
  partql query -c pets "SELECT name FROM pets WHERE owner = 'bob'"

  # Output as JSON
  partql query -c pets "SELECT * FROM pets WHERE owner = 'bob'" --format json

  # Read the query from a file
  partql query -c pets -i query.sql

  # Interactive mode
  partql query -c pets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Container, "container", "c", "", "Container to query")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read query from file")
	bindString(cmd, "format", "f", "client.format", "Output format: table, json, yaml, csv, md")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return outputFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	gw := cmdCtx.Client()
	format := cmdCtx.Cfg.Client.Format

	text, err := readQueryText(cmd, args, opts.Input)
	if errors.Is(err, errInteractive) {
		return runQueryREPL(cmd, gw, opts.Container, format)
	}
	if err != nil {
		return err
	}

	if opts.Container == "" {
		return errors.New("--container is required")
	}
	return executeAndRender(cmd.Context(), cmd.OutOrStdout(), gw, opts.Container, text, format)
}

func executeAndRender(ctx context.Context, w io.Writer, gw Gateway, container, text, format string) error {
	docs, err := gw.Query(ctx, container, text)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return renderDocuments(w, docs, format)
}

// readQueryText takes the query from args, the input file or piped stdin,
// in that order.
func readQueryText(cmd *cobra.Command, args []string, input string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case input != "":
		content, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		return "", errInteractive
	}
	content, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", errNoInput
	}
	return text, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
