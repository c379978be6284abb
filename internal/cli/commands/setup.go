package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlgraph/internal/cli/config"
	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Store    *state.SQLiteStore // nil unless runs are recorded
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an engine and renderer.
// With recordRuns set and state enabled in the config, the state store is
// opened and attached to the engine.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, recordRuns bool) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateInput(); err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if recordRuns && !cfg.NoState {
		store, err := openStore(cfg.StatePath, cmdCtx.Logger)
		if err != nil {
			return nil, nil, err
		}
		cmdCtx.Store = store
		cleanup = func() { _ = store.Close() }
	}

	eng, err := createEngine(cfg, cmdCtx.Logger, cmdCtx.Store)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cmdCtx.Engine = eng

	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that only read the state database.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, loading it from the working
// directory when no command has loaded it yet.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	if cfg, err := config.LoadConfig("", nil); err == nil {
		return cfg
	}
	return &config.Config{
		Glob:         config.DefaultGlob,
		OutputPath:   config.DefaultOutputPath,
		StatePath:    config.DefaultStateFile,
		OutputFormat: config.DefaultOutput,
		Serve:        config.DefaultServeConfig(),
	}
}

func createEngine(cfg *config.Config, logger *slog.Logger, store *state.SQLiteStore) (*engine.Engine, error) {
	engineCfg := engine.Config{
		Input:          cfg.Input,
		Glob:           cfg.Glob,
		DefaultCatalog: cfg.DefaultCatalog,
		Workers:        cfg.Workers,
		Logger:         logger,
	}
	// A nil *SQLiteStore must not become a non-nil interface.
	if store != nil {
		engineCfg.Store = store
	}
	return engine.New(engineCfg)
}

// openStore opens and migrates the state database.
func openStore(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, nil
}
