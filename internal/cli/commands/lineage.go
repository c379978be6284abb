package commands

import (
	"fmt"

	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/leapstack-labs/sqlgraph/internal/dag"
	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
	"github.com/spf13/cobra"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Upstream   bool
	Downstream bool
	Depth      int
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <table>",
		Short: "Show the tables a table is built from and the tables built from it",
		Long: `Display the upstream sources and downstream dependents of a table.

The name may be partially qualified; missing parts are filled in the way a
statement would be: the default catalog and the DBO schema.`,
		Example: `  # Full lineage
  sqlgraph lineage PROD.STAGE.ORDERS

  # Only upstream, two hops
  sqlgraph lineage stage.orders --downstream=false --depth 2

  # Output as JSON
  sqlgraph lineage stage.orders --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringP("input", "i", "", "SQL file or directory to scan")
	cmd.Flags().String("glob", "", "File name pattern inside the input directory (default *.sql)")
	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream sources")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream dependents")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")

	return cmd
}

func runLineage(cmd *cobra.Command, table string, opts *LineageOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.Engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	graph, _ := dag.FromLineage(res.Graph)
	id := lineage.Qualify(table, cmdCtx.Engine.DefaultCatalog())
	if _, ok := graph.GetNode(id); !ok {
		return fmt.Errorf("table not found: %s", id)
	}

	var upstream, downstream []lineage.QualifiedName
	if opts.Upstream {
		upstream = graph.GetUpstreamNodes(id, opts.Depth)
	}
	if opts.Downstream {
		downstream = graph.GetDownstreamNodes(id, opts.Depth)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(lineageOutput(graph, id, upstream, downstream))
	case output.ModeMarkdown:
		lineageMarkdown(r, id, opts, upstream, downstream)
	default:
		lineageText(r, id, opts, upstream, downstream)
	}
	return nil
}

func lineageText(r *output.Renderer, id lineage.QualifiedName, opts *LineageOptions, upstream, downstream []lineage.QualifiedName) {
	styles := r.Styles()
	r.Header(1, "Lineage for "+id.String())

	section := func(title string, ids []lineage.QualifiedName) {
		r.Println(styles.Header2.Render(fmt.Sprintf("%s (%d):", title, len(ids))))
		for _, n := range ids {
			r.Printf("  - %s\n", styles.Table.Render(n.String()))
		}
		r.Println("")
	}
	if opts.Upstream {
		section("Upstream sources", upstream)
	}
	if opts.Downstream {
		section("Downstream dependents", downstream)
	}
}

func lineageMarkdown(r *output.Renderer, id lineage.QualifiedName, opts *LineageOptions, upstream, downstream []lineage.QualifiedName) {
	r.Println(output.FormatHeader(1, "Lineage for "+id.String()))
	r.Println("")
	if opts.Upstream {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Upstream sources (%d)", len(upstream))))
		r.Println(output.FormatList(names(upstream)))
		r.Println("")
	}
	if opts.Downstream {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Downstream dependents (%d)", len(downstream))))
		r.Println(output.FormatList(names(downstream)))
		r.Println("")
	}
}

// lineageOutput builds the JSON result: the root, every visited table and
// the edges among them.
func lineageOutput(graph *dag.Graph, id lineage.QualifiedName, upstream, downstream []lineage.QualifiedName) output.LineageOutput {
	out := output.LineageOutput{
		Root:  id.String(),
		Nodes: []output.LineageNode{},
		Edges: []output.LineageEdge{},
		Stats: output.LineageStats{
			UpstreamCount:   len(upstream),
			DownstreamCount: len(downstream),
		},
	}

	roles := map[lineage.QualifiedName]string{id: "root"}
	order := []lineage.QualifiedName{id}
	for _, n := range upstream {
		roles[n] = "upstream"
		order = append(order, n)
	}
	for _, n := range downstream {
		if _, seen := roles[n]; !seen {
			roles[n] = "downstream"
			order = append(order, n)
		}
	}

	for _, n := range order {
		node := output.LineageNode{ID: n.String(), Role: roles[n]}
		if gn, ok := graph.GetNode(n); ok && gn.Table != nil {
			node.IsTemp = gn.Table.IsTmp
			node.Creators = len(gn.Table.Creations)
		}
		out.Nodes = append(out.Nodes, node)

		for _, p := range graph.GetParents(n) {
			if _, ok := roles[p]; ok {
				out.Edges = append(out.Edges, output.LineageEdge{From: p.String(), To: n.String()})
			}
		}
	}

	out.Stats.TotalNodes = len(out.Nodes)
	return out
}
