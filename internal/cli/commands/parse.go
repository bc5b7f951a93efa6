package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/partql/pkg/ast"
	"github.com/leapstack-labs/partql/pkg/parser"
	"github.com/spf13/cobra"
)

// ParseOptions holds options for the parse command.
type ParseOptions struct {
	Format string
	Input  string
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse [SQL]",
		Short: "Parse a query and print its syntax tree",
		Long: `Parse a query without running it.

The tree is printed in the wire format the gateway sends to compute units,
or as normalized query text with --format text.`,
		Example: `  partql parse "SELECT * FROM pets WHERE owner = 'bob'"
  partql parse --format text -i query.sql
  echo "SELECT name FROM pets" | partql parse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readQueryText(cmd, args, opts.Input)
			if errors.Is(err, errInteractive) {
				return errNoInput
			}
			if err != nil {
				return err
			}
			return runParse(cmd.OutOrStdout(), cmd.ErrOrStderr(), text, opts.Format)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "Output format (json|text)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read query from file")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runParse(out, errOut io.Writer, text, format string) error {
	q, err := parser.Parse(text)
	if err != nil {
		printSyntaxHint(errOut, text, err)
		return err
	}

	switch format {
	case "text":
		_, err = fmt.Fprintln(out, ast.Format(q))
		return err
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	default:
		return fmt.Errorf("unknown format %q (want json or text)", format)
	}
}

// printSyntaxHint points at the offending offset of a syntax error.
func printSyntaxHint(w io.Writer, text string, err error) {
	var syn *parser.SyntaxError
	if !errors.As(err, &syn) || strings.Contains(text, "\n") {
		return
	}
	_, _ = fmt.Fprintf(w, "  %s\n  %s^\n", text, strings.Repeat(" ", syn.Pos))
}
