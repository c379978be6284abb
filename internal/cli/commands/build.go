package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/leapstack-labs/sqlgraph/internal/cli/config"
	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/report"
	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
	"github.com/spf13/cobra"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Watch bool
}

// BuildOutput is the JSON form of a build summary.
type BuildOutput struct {
	RunID       string   `json:"run_id,omitempty"`
	Files       int      `json:"files"`
	Nodes       int      `json:"nodes"`
	Temporaries int      `json:"temporaries"`
	Lineage     int      `json:"edges_lineage"`
	Pairs       int      `json:"edges_pairs"`
	Usage       int      `json:"edges_usage"`
	Statements  int      `json:"statements"`
	Catalogs    int      `json:"catalogs"`
	Outputs     []string `json:"outputs"`
	DurationMS  int64    `json:"duration_ms"`
	Empty       bool     `json:"empty"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:     "build",
		Aliases: []string{"graph"},
		Short:   "Extract table lineage and write the HTML and CSV reports",
		Long: `Scan SQL files, extract table-level lineage and write an interactive
HTML graph plus six CSV files next to it.

Each run is recorded in the state database unless --no-state is given.
With --watch the reports are rebuilt whenever a matching file changes.`,
		Example: `  # Build from a directory of scripts
  sqlgraph build -i sql/ --default-catalog PROD

  # Choose the output file and title
  sqlgraph build -i etl.sql --default-catalog DW --out docs/lineage.html --title "DW lineage"

  # Rebuild on change
  sqlgraph build --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	// Read through the config layer
	cmd.Flags().StringP("input", "i", "", "SQL file or directory to scan")
	cmd.Flags().String("glob", "", "File name pattern inside the input directory (default *.sql)")
	cmd.Flags().String("out", "", "HTML output path (default sqlgraph.html)")
	cmd.Flags().String("title", "", "Page title (default \"SQL Graph - <file>\")")
	cmd.Flags().Bool("no-state", false, "Do not record the run in the state database")

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rebuild when SQL files change")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	res, err := cmdCtx.Engine.Run(ctx)
	if err != nil {
		return err
	}

	outputs, err := writeReports(cmdCtx.Cfg, res.Graph)
	if err != nil {
		return err
	}
	if err := printBuildSummary(cmdCtx.Renderer, res, outputs); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	return watchBuild(ctx, cmdCtx)
}

// writeReports writes the HTML page and the CSV files and returns their paths.
func writeReports(cfg *config.Config, g *lineage.Graph) ([]string, error) {
	title := cfg.Title
	if title == "" {
		title = report.DefaultTitle(cfg.OutputPath)
	}

	if err := report.WriteHTML(cfg.OutputPath, g, title); err != nil {
		return nil, fmt.Errorf("failed to write HTML report: %w", err)
	}
	csvPaths, err := report.WriteCSV(report.BasePath(cfg.OutputPath), g)
	if err != nil {
		return nil, fmt.Errorf("failed to write CSV reports: %w", err)
	}
	return append([]string{cfg.OutputPath}, csvPaths...), nil
}

func watchBuild(ctx context.Context, cmdCtx *CommandContext) error {
	r := cmdCtx.Renderer
	r.Println(r.Muted("Watching " + cmdCtx.Engine.Input() + " for changes (Ctrl+C to stop)"))

	return cmdCtx.Engine.Watch(ctx, func(res *engine.Result, err error) {
		if err != nil {
			cmdCtx.Logger.Error("rebuild failed", slog.String("error", err.Error()))
			r.Error(err.Error())
			return
		}
		if _, err := writeReports(cmdCtx.Cfg, res.Graph); err != nil {
			r.Error(err.Error())
			return
		}
		r.Success(fmt.Sprintf("rebuilt %s (%d tables, %d edges) in %s",
			cmdCtx.Cfg.OutputPath, len(res.Graph.Nodes), res.Graph.EdgeCount(),
			res.Duration.Round(time.Millisecond)))
	})
}

func buildOutput(res *engine.Result, outputs []string) BuildOutput {
	g := res.Graph
	return BuildOutput{
		RunID:       res.RunID,
		Files:       len(res.Files),
		Nodes:       len(g.Nodes),
		Temporaries: len(g.Temporaries),
		Lineage:     len(g.Lineage),
		Pairs:       len(g.Pairs),
		Usage:       len(g.Usage),
		Statements:  len(g.Statements),
		Catalogs:    len(g.Catalogs),
		Outputs:     outputs,
		DurationMS:  res.Duration.Milliseconds(),
		Empty:       g.Empty(),
	}
}

func printBuildSummary(r *output.Renderer, res *engine.Result, outputs []string) error {
	out := buildOutput(res, outputs)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Build summary")
	r.Table([]string{"Metric", "Count"}, [][]string{
		{"Files", strconv.Itoa(out.Files)},
		{"Tables", strconv.Itoa(out.Nodes)},
		{"Temporaries", strconv.Itoa(out.Temporaries)},
		{"Lineage edges", strconv.Itoa(out.Lineage)},
		{"Join pairs", strconv.Itoa(out.Pairs)},
		{"Usage edges", strconv.Itoa(out.Usage)},
		{"Statements", strconv.Itoa(out.Statements)},
		{"Catalog switches", strconv.Itoa(out.Catalogs)},
	})
	r.Println("")

	if out.Empty {
		r.Warning("no dependencies found (no CREATE/INSERT ... FROM statements matched)")
	}

	r.Header(2, "Written")
	for _, p := range outputs {
		r.Println("- " + p)
	}
	r.Println("")
	done := fmt.Sprintf("done in %s", res.Duration.Round(time.Millisecond))
	if out.RunID != "" {
		done += ", run " + out.RunID
	}
	r.Println(r.Muted(done))
	return nil
}
