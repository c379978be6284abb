package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "sqlgraph> "
	replContinuePrompt = "     ...> "
)

// replSession is one interactive query session.
type replSession struct {
	ctx    context.Context
	db     *sql.DB
	out    io.Writer
	errOut io.Writer
	format string
}

func runQueryREPL(cmd *cobra.Command, statePath string, opts *QueryOptions) error {
	db, err := openStateDBReadOnly(statePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	s := &replSession{
		ctx:    cmd.Context(),
		db:     db,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		format: opts.Format,
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(statePath), "query_history"),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(s.out, "sqlgraph query REPL (state: %s)\n", statePath)
	_, _ = fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(s.out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if err != nil {
			break
		}

		stmt, complete, quit := s.feed(&buf, line)
		if quit {
			break
		}
		if !complete {
			if buf.Len() > 0 {
				rl.SetPrompt(replContinuePrompt)
			}
			continue
		}
		rl.SetPrompt(replPrompt)
		s.exec(stmt)
	}

	return nil
}

// feed consumes one input line. Dot-commands run immediately; SQL accumulates
// in buf until a line ends with a semicolon, then the statement is returned.
func (s *replSession) feed(buf *strings.Builder, line string) (stmt string, complete, quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false, false
	}

	if buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return "", false, s.dotCommand(line)
	}

	buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		buf.WriteString(" ")
		return "", false, false
	}

	stmt = strings.TrimSuffix(buf.String(), ";")
	buf.Reset()
	return stmt, true, false
}

func (s *replSession) exec(query string, args ...any) {
	if err := queryAndRender(s.ctx, s.out, s.db, s.format, query, args...); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	_, _ = fmt.Fprintln(s.out)
}

// dotCommand runs a REPL command and reports whether the session should end.
func (s *replSession) dotCommand(line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(s.out)
	case ".tables":
		s.exec(queryTables)
	case ".runs":
		s.exec(queryRuns, 10)
	case ".latest":
		s.exec(queryLatestLineage)
	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .schema <table>")
			break
		}
		if err := showSchema(s.ctx, s.out, s.db, parts[1], s.format); err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "format: %s\n", s.format)
			break
		}
		s.format = parts[1]
	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func printREPLHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, `
Commands:
  .help            Show this help message
  .tables          List tables and views
  .runs            Show the 10 most recent runs
  .latest          Show lineage edges of the latest completed run
  .schema <name>   Show columns of a table or view
  .format [name]   Show or set the output format (table, json, csv, md)
  .quit / .exit    Exit the REPL

SQL statements end with a semicolon (;) and may span lines.`)
}

// completer offers table names and dot-commands.
func (s *replSession) completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	if rows, err := s.db.QueryContext(s.ctx, queryTables); err == nil {
		for rows.Next() {
			var name, typ string
			if rows.Scan(&name, &typ) == nil {
				items = append(items, readline.PcItem(name))
			}
		}
		_ = rows.Close()
	}

	for _, c := range []string{".help", ".tables", ".runs", ".latest", ".schema", ".format", ".quit", ".exit"} {
		items = append(items, readline.PcItem(c))
	}
	return readline.NewPrefixCompleter(items...)
}
