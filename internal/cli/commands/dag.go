package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/leapstack-labs/sqlgraph/internal/dag"
	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
	"github.com/spf13/cobra"
)

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the table dependency graph by build level",
		Long: `Display the table dependency graph grouped by build level.

Level 0 holds tables nothing in the input builds; every other table sits one
level above its deepest source. A cycle in the lineage is reported as an error.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the levels
  sqlgraph dag -i sql/ --default-catalog PROD

  # Output as JSON
  sqlgraph dag --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	cmd.Flags().StringP("input", "i", "", "SQL file or directory to scan")
	cmd.Flags().String("glob", "", "File name pattern inside the input directory (default *.sql)")

	return cmd
}

func runDAG(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.Engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	graph, selfLoops := dag.FromLineage(res.Graph)
	levels, err := graph.GetExecutionLevels()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return fmt.Errorf("the table graph has a cycle: %s", joinNames(cycleErr.Path, " -> "))
		}
		return fmt.Errorf("failed to get build levels: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return dagJSON(r, graph, levels, selfLoops)
	case output.ModeMarkdown:
		return dagMarkdown(r, graph, levels, selfLoops)
	default:
		return dagText(r, graph, levels, selfLoops)
	}
}

// dagText outputs levels in styled text format.
func dagText(r *output.Renderer, graph *dag.Graph, levels [][]lineage.QualifiedName, selfLoops int) error {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, id := range level {
			style := styles.Table
			if isTemp(graph, id) {
				style = styles.Temp
			}
			r.Printf("  %s\n", style.Render(id.String()))
			if deps := graph.GetParents(id); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("built from:"), joinNames(deps, ", "))
			}
			if children := graph.GetChildren(id); len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), joinNames(children, ", "))
			}
		}
		r.Println("")
	}

	summary := fmt.Sprintf("Total: %d tables, %d dependencies", graph.NodeCount(), graph.EdgeCount())
	if selfLoops > 0 {
		summary += fmt.Sprintf(", %d self-references skipped", selfLoops)
	}
	r.Println(styles.Muted.Render(summary))
	return nil
}

// dagMarkdown outputs levels in markdown format.
func dagMarkdown(r *output.Renderer, graph *dag.Graph, levels [][]lineage.QualifiedName, selfLoops int) error {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, level := range levels {
		name := fmt.Sprintf("Level %d", i)
		if i == 0 {
			name = "Level 0 (Sources)"
		}
		r.Println(output.FormatHeader(2, name))

		for _, id := range level {
			line := "- " + id.String()
			if isTemp(graph, id) {
				line += " _(temporary)_"
			}
			r.Println(line)
			if deps := graph.GetParents(id); len(deps) > 0 {
				r.Printf("  - built from: %s\n", joinNames(deps, ", "))
			}
			if children := graph.GetChildren(id); len(children) > 0 {
				r.Printf("  - used by: %s\n", joinNames(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Tables", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.EdgeCount())))
	r.Println(output.FormatKeyValue("Self-references Skipped", fmt.Sprintf("%d", selfLoops)))
	return nil
}

// dagJSON outputs levels in JSON format.
func dagJSON(r *output.Renderer, graph *dag.Graph, levels [][]lineage.QualifiedName, selfLoops int) error {
	out := output.DAGOutput{
		TotalTables: graph.NodeCount(),
		TotalEdges:  graph.EdgeCount(),
		SelfLoops:   selfLoops,
		Levels:      make([]output.DAGLevel, 0, len(levels)),
	}

	for i, level := range levels {
		dl := output.DAGLevel{Level: i, Tables: make([]output.DAGNode, 0, len(level))}
		for _, id := range level {
			dl.Tables = append(dl.Tables, output.DAGNode{
				ID:        id.String(),
				IsTemp:    isTemp(graph, id),
				DependsOn: names(graph.GetParents(id)),
				UsedBy:    names(graph.GetChildren(id)),
			})
		}
		out.Levels = append(out.Levels, dl)
	}

	return r.JSON(out)
}

func isTemp(graph *dag.Graph, id lineage.QualifiedName) bool {
	n, ok := graph.GetNode(id)
	return ok && n.Table != nil && n.Table.IsTmp
}

func names(ids []lineage.QualifiedName) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func joinNames(ids []lineage.QualifiedName, sep string) string {
	return strings.Join(names(ids), sep)
}
