package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewDocumentsCommand creates the documents command.
func NewDocumentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs", "doc"},
		Short:   "Store and fetch documents",
	}

	cmd.AddCommand(newDocumentsPutCommand())
	cmd.AddCommand(newDocumentsGetCommand())
	return cmd
}

func newDocumentsPutCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "put <container> [JSON]",
		Short: "Insert or replace a document",
		Long: `Insert or replace a document.

The document is a JSON object with an "id" field and a string value for the
container's partition key. It is read from the argument, from --file, or
from stdin.`,
		Example: `  partql documents put pets '{"id": "1", "owner": "bob", "name": "rex"}'
  partql documents put pets -F rex.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readDocument(cmd, args[1:], file)
			if err != nil {
				return err
			}

			cmdCtx := NewCommandContext(cmd)
			stored, err := cmdCtx.Client().PutDocument(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), stored)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "F", "", "Read the document from file")
	return cmd
}

func newDocumentsGetCommand() *cobra.Command {
	var keyValue string

	cmd := &cobra.Command{
		Use:     "get <container> <id>",
		Short:   "Fetch a document",
		Example: `  partql documents get pets 1 --partition-key-value bob`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			doc, err := cmdCtx.Client().GetDocument(cmd.Context(), args[0], args[1], keyValue)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), doc)
		},
	}

	cmd.Flags().StringVarP(&keyValue, "partition-key-value", "k", "", "Partition key value of the document")
	_ = cmd.MarkFlagRequired("partition-key-value")
	return cmd
}

func readDocument(cmd *cobra.Command, args []string, file string) (json.RawMessage, error) {
	var (
		body []byte
		err  error
	)
	switch {
	case len(args) > 0:
		body = []byte(args[0])
	case file != "":
		body, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
	default:
		body, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("no document given")
	}
	if !json.Valid(body) {
		return nil, errors.New("document is not valid JSON")
	}
	return body, nil
}

func writeIndented(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
