// Package export writes survey tables for people and downstream tools.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/KaramelBytes/stubdecode/internal/survey"
	"github.com/KaramelBytes/stubdecode/internal/utils"
)

// Format names an output rendering.
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts table, csv, json, md or markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (expected table, csv, json, or md)", s)
}

// FormatForPath guesses a format from a file extension, falling back to def.
func FormatForPath(path string, def Format) Format {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV
	case strings.HasSuffix(path, ".json"):
		return FormatJSON
	case strings.HasSuffix(path, ".md"):
		return FormatMarkdown
	}
	return def
}

// Meta describes where a decoded table came from. It is emitted in JSON
// output only.
type Meta struct {
	RunID         string `json:"run_id"`
	Source        string `json:"source"`
	Lookup        string `json:"lookup,omitempty"`
	LookupVersion int    `json:"lookup_version,omitempty"`
	Slice         string `json:"slice,omitempty"`
	Partition     string `json:"partition,omitempty"`
}

// MetaFor builds export metadata from a decode result.
func MetaFor(source string, d *survey.Decoded) *Meta {
	m := &Meta{RunID: d.RunID, Source: source, Slice: d.Slice}
	if d.Lookup != nil {
		m.Lookup = d.Lookup.Name
		m.LookupVersion = d.Lookup.Version
	}
	return m
}

// Render writes t to w in format f. meta may be nil.
func Render(w io.Writer, t *survey.Table, f Format, meta *Meta) error {
	switch f {
	case FormatCSV:
		return renderCSV(w, t)
	case FormatJSON:
		return renderJSON(w, t, meta)
	case FormatMarkdown:
		return renderMarkdown(w, t)
	case FormatTable, "":
		return renderTable(w, t)
	}
	return fmt.Errorf("unknown output format %q", f)
}

// WriteFile renders t and writes it atomically to path.
func WriteFile(path string, t *survey.Table, f Format, meta *Meta) error {
	var buf bytes.Buffer
	if err := Render(&buf, t, f, meta); err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func renderTable(w io.Writer, t *survey.Table) error {
	if t.Len() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	cols := t.Columns()
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	tw.AppendHeader(header)
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		row := make(table.Row, len(r))
		for j, v := range r {
			row[j] = formatValue(v)
		}
		tw.AppendRow(row)
	}
	tw.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", t.Len())
	return nil
}

func renderCSV(w io.Writer, t *survey.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		rec := make([]string, len(r))
		for j, v := range r {
			rec[j] = v.String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonDoc struct {
	Meta *Meta            `json:"meta"`
	Rows []map[string]any `json:"rows"`
}

func renderJSON(w io.Writer, t *survey.Table, meta *Meta) error {
	cols := t.Columns()
	rows := make([]map[string]any, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		obj := make(map[string]any, len(cols))
		for j, c := range cols {
			if r[j].IsNull() {
				obj[c] = nil
				continue
			}
			obj[c] = r[j].String()
		}
		rows = append(rows, obj)
	}
	var v any = rows
	if meta != nil {
		v = jsonDoc{Meta: meta, Rows: rows}
	}
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func renderMarkdown(w io.Writer, t *survey.Table) error {
	if t.Len() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	cols := t.Columns()
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		values := make([]string, len(r))
		for j, v := range r {
			values[j] = strings.ReplaceAll(formatValue(v), "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func formatValue(v survey.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}
