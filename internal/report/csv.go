package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// CSV file suffixes, appended to the output base name.
const (
	NodesSuffix     = ".nodes.csv"
	LineageSuffix   = ".edges_lineage.csv"
	PairsSuffix     = ".edges_pairs.csv"
	UsageSuffix     = ".edges_usage.csv"
	StatementSuffix = ".statements.csv"
	CatalogSuffix   = ".catalogs.csv"
)

// BasePath strips the extension of an HTML output path, so report.html
// yields report and the CSV files land next to it.
func BasePath(htmlPath string) string {
	return strings.TrimSuffix(htmlPath, filepath.Ext(htmlPath))
}

type csvTable struct {
	suffix string
	header []string
	rows   func(g *lineage.Graph) ([][]string, error)
}

var csvTables = []csvTable{
	{NodesSuffix, []string{"table", "is_temp", "catalog", "schema", "table_name"}, nodeRows},
	{LineageSuffix, []string{"source", "target", "op", "file"}, lineageRows},
	{PairsSuffix, []string{"src_from", "dst_join", "join_type", "join_key", "file"}, pairRows},
	{UsageSuffix, []string{"source", "consumer", "op", "file"}, usageRows},
	{StatementSuffix, []string{"id_stmt", "file", "seq", "target", "kind", "from_main", "joins_json"}, statementRows},
	{CatalogSuffix, []string{"file", "lineno", "catalog"}, catalogRows},
}

// WriteCSV writes the six tabular views of the graph as <base><suffix> and
// returns the written paths in a fixed order.
func WriteCSV(base string, g *lineage.Graph) ([]string, error) {
	if dir := filepath.Dir(base); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	paths := make([]string, 0, len(csvTables))
	for _, tbl := range csvTables {
		rows, err := tbl.rows(g)
		if err != nil {
			return paths, err
		}
		path := base + tbl.suffix
		if err := writeCSVFile(path, tbl.header, rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, header []string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func nodeRows(g *lineage.Graph) ([][]string, error) {
	rows := make([][]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		rows = append(rows, []string{n.ID.String(), boolFlag(n.IsTmp), n.Catalog, n.Schema, n.Table})
	}
	return rows, nil
}

func lineageRows(g *lineage.Graph) ([][]string, error) {
	rows := make([][]string, 0, len(g.Lineage))
	for _, e := range g.Lineage {
		rows = append(rows, []string{e.Source.String(), e.Target.String(), e.Op, e.File})
	}
	return rows, nil
}

func pairRows(g *lineage.Graph) ([][]string, error) {
	rows := make([][]string, 0, len(g.Pairs))
	for _, e := range g.Pairs {
		rows = append(rows, []string{e.From.String(), e.JoinTable.String(), string(e.JoinType), e.JoinKey, e.File})
	}
	return rows, nil
}

func usageRows(g *lineage.Graph) ([][]string, error) {
	rows := make([][]string, 0, len(g.Usage))
	for _, e := range g.Usage {
		rows = append(rows, []string{e.Source.String(), e.Target.String(), e.Op, e.File})
	}
	return rows, nil
}

func statementRows(g *lineage.Graph) ([][]string, error) {
	rows := make([][]string, 0, len(g.Statements))
	for i, s := range g.Statements {
		joins, err := json.Marshal(s.Joins)
		if err != nil {
			return nil, fmt.Errorf("failed to encode joins of %s: %w", s.Target, err)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.File,
			strconv.Itoa(s.SequenceID),
			s.Target.String(),
			string(s.Kind),
			s.FromMain.String(),
			string(joins),
		})
	}
	return rows, nil
}

func catalogRows(g *lineage.Graph) ([][]string, error) {
	rows := make([][]string, 0, len(g.Catalogs))
	for _, c := range g.Catalogs {
		rows = append(rows, []string{c.File, strconv.Itoa(c.Line), c.Catalog})
	}
	return rows, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
