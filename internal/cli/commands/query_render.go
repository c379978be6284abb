package commands

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"

	"github.com/jedib0t/go-pretty/v6/table"
)

// resultSet holds the rows of one query, decoded for display.
type resultSet struct {
	Columns []string
	Rows    [][]any
}

func collectRows(rows *sql.Rows) (*resultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &resultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	return rs, rows.Err()
}

func (rs *resultSet) render(w io.Writer, format string) error {
	switch format {
	case "json":
		return rs.renderJSON(w)
	case "csv":
		return rs.renderCSV(w)
	case "md", "markdown":
		rs.renderTable(w, true)
		return nil
	default:
		rs.renderTable(w, false)
		return nil
	}
}

func (rs *resultSet) renderTable(w io.Writer, markdown bool) {
	if len(rs.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(rs.Columns))
	for i, c := range rs.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, values := range rs.Rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	if markdown {
		t.RenderMarkdown()
		return
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs.Rows))
}

// renderJSON writes an array of column-keyed objects.
func (rs *resultSet) renderJSON(w io.Writer) error {
	out := make([]map[string]any, 0, len(rs.Rows))
	for _, values := range rs.Rows {
		obj := make(map[string]any, len(values))
		for i, c := range rs.Columns {
			obj[c] = values[i]
		}
		out = append(out, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (rs *resultSet) renderCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return err
	}
	for _, values := range rs.Rows {
		record := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				record[i] = formatValue(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// showSchema lists the columns of a table or view.
func showSchema(ctx context.Context, w io.Writer, db *sql.DB, name, format string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name, type, CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END AS nullable, dflt_value AS "default", pk
		 FROM pragma_table_info(?)`, name)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	rs, err := collectRows(rows)
	if err != nil {
		return err
	}
	if len(rs.Rows) == 0 {
		return fmt.Errorf("table or view '%s' not found", name)
	}
	return rs.render(w, format)
}
