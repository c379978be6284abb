package engine

// run.go - extraction orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqlgraph/internal/state"
	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// Result is the outcome of one run.
type Result struct {
	// RunID is the state store run, empty without a store.
	RunID    string
	Files    []string
	Graph    *lineage.Graph
	Duration time.Duration
}

// Run discovers the input files, extracts their lineage and records the run.
// A graph without any dependency is not an error; it is logged as a warning.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	e.logger.Info("starting run", slog.String("input", e.input))

	files, err := Discover(e.input, e.glob)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("discovered files", slog.Int("count", len(files)))

	var run *state.Run
	if e.store != nil {
		run, err = e.store.CreateRun(e.input, e.defaultCatalog)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		e.logger.Debug("created run", slog.String("run_id", run.ID))
	}

	graph, err := e.Extract(ctx, files)
	if err != nil {
		if run != nil {
			_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, len(files), err.Error())
		}
		e.logger.Error("run failed", slog.String("error", err.Error()))
		return nil, err
	}

	res := &Result{
		Files:    files,
		Graph:    graph,
		Duration: time.Since(start),
	}

	if run != nil {
		res.RunID = run.ID
		if err := e.store.SaveGraph(run.ID, graph); err != nil {
			_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, len(files), err.Error())
			return nil, fmt.Errorf("failed to save graph: %w", err)
		}
		if err := e.store.CompleteRun(run.ID, state.RunStatusCompleted, len(files), ""); err != nil {
			return nil, fmt.Errorf("failed to complete run: %w", err)
		}
	}

	if graph.Empty() {
		e.logger.Warn("no dependencies found; check the default catalog and input files",
			slog.Int("files", len(files)),
			slog.Int("statements", len(graph.Statements)))
	}

	e.logger.Info("run completed",
		slog.Int("files", len(files)),
		slog.Int("nodes", len(graph.Nodes)),
		slog.Int("edges", graph.EdgeCount()),
		slog.Duration("duration", res.Duration))

	return res, nil
}

// Extract parses files in parallel and aggregates the results in the order
// the files were given. The first read failure cancels the remaining work and
// fails the whole extraction.
func (e *Engine) Extract(ctx context.Context, files []string) (*lineage.Graph, error) {
	results := make([]*lineage.FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := lineage.ParseFile(path, e.defaultCatalog, lineage.WithLogger(e.logger))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lineage.Aggregate(results), nil
}
