package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const runColumns = `id, input, default_catalog, status, started_at, completed_at, file_count, error,
	node_count, lineage_count, join_count, usage_count, statement_count`

// CreateRun creates a new extraction run.
func (s *SQLiteStore) CreateRun(input, defaultCatalog string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:             generateID(),
		Input:          input,
		DefaultCatalog: defaultCatalog,
		Status:         RunStatusRunning,
		StartedAt:      time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("input", input))

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO runs (id, input, default_catalog, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Input, run.DefaultCatalog, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, fileCount int, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	s.logger.Debug("completing run", slog.String("id", id), slog.String("status", string(status)))

	result, err := s.db.ExecContext(ctx(),
		`UPDATE runs SET status = ?, completed_at = ?, file_count = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), fileCount, nullableString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx(), `SELECT `+runColumns+` FROM v_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// GetLatestRun retrieves the most recent run.
func (s *SQLiteStore) GetLatestRun() (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx(),
		`SELECT `+runColumns+` FROM v_runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No runs found, return nil without error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT `+runColumns+` FROM v_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var (
		status      string
		completedAt sql.NullTime
		errMsg      sql.NullString
	)

	err := row.Scan(
		&run.ID, &run.Input, &run.DefaultCatalog, &status, &run.StartedAt, &completedAt,
		&run.FileCount, &errMsg,
		&run.NodeCount, &run.LineageCount, &run.JoinCount, &run.UsageCount, &run.StatementCount,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}

	return run, nil
}
