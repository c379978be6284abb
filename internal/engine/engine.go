// Package engine runs lineage extraction over a set of SQL files.
// It discovers the files, parses them in parallel, aggregates the results in
// input order and optionally records the run in the state store.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/state"
)

// Sentinel errors returned by discovery.
var (
	// ErrNoInput is returned when the input path does not exist.
	ErrNoInput = errors.New("input path does not exist")
	// ErrNoFiles is returned when the input matches no SQL files.
	ErrNoFiles = errors.New("no SQL files found")
)

// DefaultGlob selects the files of an input directory.
const DefaultGlob = "*.sql"

// Engine orchestrates discovery and extraction.
type Engine struct {
	input          string
	glob           string
	defaultCatalog string
	workers        int

	// Structured logger
	logger *slog.Logger

	// Run history (optional)
	store state.Store
}

// Config holds engine configuration.
type Config struct {
	// Input is a SQL file or a directory searched recursively.
	Input string
	// Glob filters file names when Input is a directory (default "*.sql").
	Glob string
	// DefaultCatalog seeds the catalog of every file.
	DefaultCatalog string
	// Workers bounds parallel parsing (default runtime.NumCPU()).
	Workers int
	// Store records runs when set. The engine does not own it.
	Store state.Store
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a new engine.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	catalog := strings.ToUpper(strings.TrimSpace(cfg.DefaultCatalog))
	if catalog == "" {
		return nil, fmt.Errorf("default catalog is required")
	}

	glob := cfg.Glob
	if glob == "" {
		glob = DefaultGlob
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger.Debug("initializing engine",
		slog.String("input", cfg.Input),
		slog.String("glob", glob),
		slog.String("default_catalog", catalog),
		slog.Int("workers", workers))

	return &Engine{
		input:          cfg.Input,
		glob:           glob,
		defaultCatalog: catalog,
		workers:        workers,
		logger:         logger,
		store:          cfg.Store,
	}, nil
}

// Input returns the configured input path.
func (e *Engine) Input() string {
	return e.input
}

// DefaultCatalog returns the upper-cased default catalog.
func (e *Engine) DefaultCatalog() string {
	return e.defaultCatalog
}
