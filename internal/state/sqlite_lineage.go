package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// SaveGraph stores every fact of a graph under runID in a single transaction.
// Saving the same run twice replaces the earlier snapshot.
func (s *SQLiteStore) SaveGraph(runID string, graph *lineage.Graph) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if graph == nil {
		return fmt.Errorf("graph is nil")
	}

	tx, err := s.db.BeginTx(ctx(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"nodes", "lineage_edges", "join_edges", "usage_edges", "statements", "catalogs"} {
		if _, err := tx.ExecContext(ctx(), `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, n := range graph.Nodes {
		if err := exec(tx,
			`INSERT INTO nodes (run_id, id, catalog, schema_name, table_name, is_tmp) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, string(n.ID), n.Catalog, n.Schema, n.Table, n.IsTmp,
		); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	for i, e := range graph.Lineage {
		if err := exec(tx,
			`INSERT INTO lineage_edges (run_id, seq, source, target, op, file) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, i+1, string(e.Source), string(e.Target), e.Op, e.File,
		); err != nil {
			return fmt.Errorf("failed to insert lineage edge: %w", err)
		}
	}

	for i, p := range graph.Pairs {
		if err := exec(tx,
			`INSERT INTO join_edges (run_id, seq, from_table, join_table, join_type, join_key, file) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, i+1, string(p.From), string(p.JoinTable), string(p.JoinType), nullableString(p.JoinKey), p.File,
		); err != nil {
			return fmt.Errorf("failed to insert join edge: %w", err)
		}
	}

	for i, u := range graph.Usage {
		if err := exec(tx,
			`INSERT INTO usage_edges (run_id, seq, source, target, op, file) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, i+1, string(u.Source), string(u.Target), u.Op, u.File,
		); err != nil {
			return fmt.Errorf("failed to insert usage edge: %w", err)
		}
	}

	for i, st := range graph.Statements {
		joins, err := json.Marshal(st.Joins)
		if err != nil {
			return fmt.Errorf("failed to encode joins: %w", err)
		}
		if err := exec(tx,
			`INSERT INTO statements (run_id, id_stmt, seq, file, target, kind, from_main, joins_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i+1, st.SequenceID, st.File, string(st.Target), string(st.Kind), nullableString(string(st.FromMain)), string(joins),
		); err != nil {
			return fmt.Errorf("failed to insert statement: %w", err)
		}
	}

	for i, c := range graph.Catalogs {
		if err := exec(tx,
			`INSERT INTO catalogs (run_id, seq, file, lineno, catalog) VALUES (?, ?, ?, ?, ?)`,
			runID, i+1, c.File, c.Line, c.Catalog,
		); err != nil {
			return fmt.Errorf("failed to insert catalog: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}

	s.logger.Debug("saved graph",
		slog.String("run_id", runID),
		slog.Int("nodes", len(graph.Nodes)),
		slog.Int("lineage_edges", len(graph.Lineage)))

	return nil
}

// LatestLineage returns the lineage edges of the most recent completed run.
func (s *SQLiteStore) LatestLineage() ([]lineage.LineageEdge, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(), `SELECT source, target, op, file FROM v_latest_lineage`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []lineage.LineageEdge
	for rows.Next() {
		var source, target string
		var e lineage.LineageEdge
		if err := rows.Scan(&source, &target, &e.Op, &e.File); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		e.Source, e.Target = lineage.QualifiedName(source), lineage.QualifiedName(target)
		edges = append(edges, e)
	}

	return edges, rows.Err()
}

func exec(tx *sql.Tx, query string, args ...any) error {
	_, err := tx.ExecContext(ctx(), query, args...)
	return err
}
