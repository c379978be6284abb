package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	// sqlite driver for state database queries.
	_ "modernc.org/sqlite"
)

// Shortcut queries over the state database views.
const (
	queryRuns          = `SELECT id, status, started_at, file_count, node_count, lineage_count, join_count, usage_count, statement_count FROM v_runs ORDER BY started_at DESC LIMIT ?`
	queryLatestLineage = `SELECT source, target, op, file FROM v_latest_lineage`
	queryTables        = `SELECT name, type FROM sqlite_master
		WHERE type IN ('table', 'view')
		AND name NOT LIKE 'sqlite_%'
		AND name NOT LIKE 'goose_%'
		ORDER BY type DESC, name`
)

// errNoStateDB is returned when the state database has not been created yet.
var errNoStateDB = errors.New("state database not found")

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	File   string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the run history database",
		Long: `Run SQL against the state database that records every build.

Tables: runs, nodes, lineage_edges, join_edges, usage_edges, statements,
catalogs. Views: v_runs (runs with fact counts) and v_latest_lineage.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  sqlgraph query "SELECT * FROM v_runs"

  # Most read tables of the latest run
  sqlgraph query "SELECT source, COUNT(*) n FROM v_latest_lineage GROUP BY source ORDER BY n DESC"

  # Shortcuts
  sqlgraph query tables
  sqlgraph query runs --limit 5
  sqlgraph query latest --format csv

  # Interactive mode
  sqlgraph query`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVar(&opts.File, "file", "", "Read SQL from file")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "md"}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQueryRunsCommand(opts))
	cmd.AddCommand(newQueryLatestCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

// statePathForQuery returns the configured state database, failing when it
// does not exist yet.
func statePathForQuery(cmd *cobra.Command) (string, error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	path := cmdCtx.Cfg.StatePath
	if path == "" {
		return "", fmt.Errorf("%w: no state_path configured", errNoStateDB)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%w at %s (run 'sqlgraph build' first)", errNoStateDB, path)
	}
	return path, nil
}

// openStateDBReadOnly opens the state database in read-only mode. The driver
// only honours URI parameters on file: names.
func openStateDBReadOnly(path string) (*sql.DB, error) {
	return sql.Open("sqlite", "file:"+path+"?mode=ro")
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	statePath, err := statePathForQuery(cmd)
	if err != nil {
		return err
	}

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.File != "":
		content, err := os.ReadFile(opts.File)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !stdinIsTerminal(cmd):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runQueryREPL(cmd, statePath, opts)
	}

	if strings.TrimSpace(sqlQuery) == "" {
		return errors.New("empty query")
	}
	return withStateDB(statePath, func(db *sql.DB) error {
		return queryAndRender(cmd.Context(), cmd.OutOrStdout(), db, opts.Format, sqlQuery)
	})
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func withStateDB(path string, fn func(*sql.DB) error) error {
	db, err := openStateDBReadOnly(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

// queryAndRender runs one query and renders its rows.
func queryAndRender(ctx context.Context, w io.Writer, db *sql.DB, format, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rs, err := collectRows(rows)
	if err != nil {
		return err
	}
	return rs.render(w, format)
}

func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables and views of the state database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return shortcut(cmd, opts, queryTables)
		},
	}
}

func newQueryRunsCommand(opts *QueryOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs with their fact counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			return shortcut(cmd, opts, queryRuns, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func newQueryLatestCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the lineage edges of the latest completed run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return shortcut(cmd, opts, queryLatestLineage)
		},
	}
}

func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the columns of a table or view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statePath, err := statePathForQuery(cmd)
			if err != nil {
				return err
			}
			return withStateDB(statePath, func(db *sql.DB) error {
				return showSchema(cmd.Context(), cmd.OutOrStdout(), db, args[0], opts.Format)
			})
		},
	}
}

func shortcut(cmd *cobra.Command, opts *QueryOptions, query string, args ...any) error {
	statePath, err := statePathForQuery(cmd)
	if err != nil {
		return err
	}
	return withStateDB(statePath, func(db *sql.DB) error {
		return queryAndRender(cmd.Context(), cmd.OutOrStdout(), db, opts.Format, query, args...)
	})
}
