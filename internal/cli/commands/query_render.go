package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/partql/pkg/executor"
	"gopkg.in/yaml.v3"
)

var outputFormats = []string{"table", "json", "yaml", "csv", "md", "markdown"}

// documentColumns returns the union of keys of docs, id first and the rest
// sorted.
func documentColumns(docs []executor.Document) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, doc := range docs {
		for k := range doc {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	if i := slices.Index(cols, "id"); i > 0 {
		cols = append(append([]string{"id"}, cols[:i]...), cols[i+1:]...)
	}
	return cols
}

func renderDocuments(w io.Writer, docs []executor.Document, format string) error {
	if docs == nil {
		docs = []executor.Document{}
	}

	switch format {
	case "json":
		return renderJSON(w, docs)
	case "yaml":
		return renderYAML(w, docs)
	case "csv", "md", "markdown", "table", "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	cols := documentColumns(docs)
	if len(docs) == 0 && format != "csv" {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.Style().Format.Header = text.FormatDefault
	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, doc := range docs {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(doc[col])
		}
		t.AppendRow(row)
	}

	switch format {
	case "csv":
		if len(cols) > 0 {
			_, _ = fmt.Fprintln(w, t.RenderCSV())
		}
	case "md", "markdown":
		_, _ = fmt.Fprintln(w, t.RenderMarkdown())
	default:
		t.SetStyle(table.StyleLight)
		t.Style().Format.Header = text.FormatDefault
		_, _ = fmt.Fprintln(w, t.Render())
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(docs))
	}
	return nil
}

func renderJSON(w io.Writer, docs []executor.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

// renderYAML prints docs as a YAML sequence. Documents are decoded first
// so values keep their JSON types.
func renderYAML(w io.Writer, docs []executor.Document) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	var generic []any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return err
	}
	for i, v := range generic {
		generic[i] = yamlValue(v)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// yamlValue turns json.Number into int64 or float64 so YAML prints numbers
// unquoted.
func yamlValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, e := range v {
			v[k] = yamlValue(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = yamlValue(e)
		}
		return v
	default:
		return v
	}
}

// formatValue prints strings bare and any other value as compact JSON.
// Absent fields print as an empty cell.
func formatValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
