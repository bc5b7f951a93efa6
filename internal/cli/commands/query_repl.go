package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/partql/pkg/ast"
	"github.com/leapstack-labs/partql/pkg/parser"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "partql> "
	replContinuePrompt = "   ...> "
)

// replSession holds the state of one interactive query session.
type replSession struct {
	gw        Gateway
	container string
	format    string
	out       io.Writer
	errOut    io.Writer
	pending   strings.Builder
}

func runQueryREPL(cmd *cobra.Command, gw Gateway, container, format string) error {
	ctx := cmd.Context()

	var historyFile string
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".partql_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newContainerCompleter(ctx, gw),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s := &replSession{
		gw:        gw,
		container: container,
		format:    format,
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
	}

	_, _ = fmt.Fprintln(s.out, "partql query REPL")
	_, _ = fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")
	if container == "" {
		_, _ = fmt.Fprintln(s.out, "No container selected, pick one with .use <container>")
	}
	_, _ = fmt.Fprintln(s.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.pending.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		prompt, quit := s.handleLine(ctx, line)
		if quit {
			return nil
		}
		rl.SetPrompt(prompt)
	}
}

// handleLine processes one input line and returns the next prompt.
// Statements accumulate until a line ends with a semicolon.
func (s *replSession) handleLine(ctx context.Context, line string) (prompt string, quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return s.prompt(), false
	}

	if s.pending.Len() == 0 && strings.HasPrefix(line, ".") {
		return replPrompt, s.handleDotCommand(ctx, line)
	}

	s.pending.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.pending.WriteString(" ")
		return replContinuePrompt, false
	}

	text := strings.TrimSpace(strings.TrimSuffix(s.pending.String(), ";"))
	s.pending.Reset()

	if s.container == "" {
		_, _ = fmt.Fprintln(s.errOut, "Error: no container selected (use .use <container>)")
		return replPrompt, false
	}
	if err := executeAndRender(ctx, s.out, s.gw, s.container, text, s.format); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	_, _ = fmt.Fprintln(s.out)
	return replPrompt, false
}

func (s *replSession) prompt() string {
	if s.pending.Len() > 0 {
		return replContinuePrompt
	}
	return replPrompt
}

// handleDotCommand runs a dot-command and reports whether the session ends.
func (s *replSession) handleDotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".containers":
		containers, err := s.gw.ListContainers(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false
		}
		renderContainers(s.out, containers)

	case ".use":
		if len(parts) != 2 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .use <container>")
			return false
		}
		s.container = parts[1]
		_, _ = fmt.Fprintf(s.out, "Using container %s\n", s.container)

	case ".format":
		if len(parts) != 2 {
			_, _ = fmt.Fprintf(s.out, "Format: %s\n", s.format)
			return false
		}
		if !slices.Contains(outputFormats, parts[1]) {
			_, _ = fmt.Fprintf(s.errOut, "Unknown format: %s (want one of %s)\n", parts[1], strings.Join(outputFormats, ", "))
			return false
		}
		s.format = parts[1]

	case ".parse":
		text := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		q, err := parser.Parse(text)
		if err != nil {
			printSyntaxHint(s.errOut, text, err)
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false
		}
		_, _ = fmt.Fprintln(s.out, ast.Format(q))

	case ".clear":
		_, _ = fmt.Fprint(s.out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .containers       List containers
  .use <container>  Query another container
  .format [name]    Show or set the output format (table, json, yaml, csv, md)
  .parse <query>    Show how a query is parsed without running it
  .clear            Clear the screen
  .quit / .exit     Exit the REPL

Tips:
  - Queries must end with a semicolon (;)
  - The WHERE clause must compare the partition key with a string
  - Tab completion works for keywords and container names
`
	_, _ = fmt.Fprintln(w, help)
}

// newContainerCompleter creates a readline completer for keywords,
// dot-commands and container names.
func newContainerCompleter(ctx context.Context, gw Gateway) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, kw := range []string{"SELECT", "FROM", "WHERE", "AND", "OR"} {
		items = append(items, readline.PcItem(kw))
	}

	var names []readline.PrefixCompleterInterface
	// The gateway may be down; completion is best effort.
	if containers, err := gw.ListContainers(ctx); err == nil {
		for _, c := range containers {
			names = append(names, readline.PcItem(c.Name))
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".containers"),
		readline.PcItem(".use", names...),
		readline.PcItem(".format",
			readline.PcItem("table"),
			readline.PcItem("json"),
			readline.PcItem("yaml"),
			readline.PcItem("csv"),
			readline.PcItem("md"),
		),
		readline.PcItem(".parse"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
