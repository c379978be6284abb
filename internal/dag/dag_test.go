package dag

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type qn = lineage.QualifiedName

func buildGraph(t *testing.T, nodes []qn, edges [][2]qn) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range nodes {
		g.AddNode(n, nil)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

// diamond: A -> B, A -> C, B -> D, C -> D
func diamond(t *testing.T) *Graph {
	return buildGraph(t, []qn{"A", "B", "C", "D"}, [][2]qn{
		{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"},
	})
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := buildGraph(t, []qn{"A", "B"}, [][2]qn{{"A", "B"}})

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []qn{"A"}, g.GetParents("B"))
	assert.Equal(t, []qn{"B"}, g.GetChildren("A"))

	// Duplicate edges are ignored.
	require.NoError(t, g.AddEdge("A", "B"))
	assert.Equal(t, 1, g.EdgeCount())

	assert.ErrorContains(t, g.AddEdge("A", "Z"), "does not exist")
	assert.ErrorContains(t, g.AddEdge("Z", "A"), "does not exist")
	assert.ErrorContains(t, g.AddEdge("A", "A"), "self-loop")

	node, ok := g.GetNode("A")
	require.True(t, ok)
	assert.Nil(t, node.Table)
}

func TestGraph_TopologicalSort_Diamond(t *testing.T) {
	g := diamond(t)

	nodes, err := g.TopologicalSort()
	require.NoError(t, err)

	ids := make([]qn, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []qn{"A", "B", "C", "D"}, ids)
}

func TestGraph_GetExecutionLevels(t *testing.T) {
	g := buildGraph(t, []qn{"A", "B", "C", "D", "E"}, [][2]qn{
		{"A", "C"}, {"B", "C"}, {"C", "D"}, {"A", "D"},
	})

	levels, err := g.GetExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]qn{{"A", "B", "E"}, {"C"}, {"D"}}, levels)
}

func TestGraph_Cycle(t *testing.T) {
	g := buildGraph(t, []qn{"A", "B", "C"}, [][2]qn{{"A", "B"}, {"B", "C"}, {"C", "A"}})

	has, cycle := g.HasCycle()
	require.True(t, has)
	assert.Equal(t, []qn{"A", "B", "C", "A"}, cycle)

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, cycle, cycleErr.Path)

	_, err = g.GetExecutionLevels()
	assert.ErrorContains(t, err, "cycle detected")

	// Traversal on a cycle never includes the start table.
	assert.Equal(t, []qn{"B", "C"}, g.GetUpstreamNodes("A", 0))
	assert.Equal(t, []qn{"B", "C"}, g.GetDownstreamNodes("A", 0))
}

func TestGraph_NoCycle(t *testing.T) {
	has, cycle := diamond(t).HasCycle()
	assert.False(t, has)
	assert.Nil(t, cycle)
}

func TestGraph_UpstreamDownstream(t *testing.T) {
	g := buildGraph(t, []qn{"A", "B", "C", "D"}, [][2]qn{{"A", "B"}, {"B", "C"}, {"C", "D"}})

	assert.Equal(t, []qn{"A", "B", "C"}, g.GetUpstreamNodes("D", 0))
	assert.Equal(t, []qn{"C"}, g.GetUpstreamNodes("D", 1))
	assert.Equal(t, []qn{"B", "C"}, g.GetUpstreamNodes("D", 2))
	assert.Empty(t, g.GetUpstreamNodes("A", 0))

	assert.Equal(t, []qn{"B", "C", "D"}, g.GetDownstreamNodes("A", 0))
	assert.Equal(t, []qn{"B"}, g.GetDownstreamNodes("A", 1))
	assert.Empty(t, g.GetDownstreamNodes("unknown", 0))
}

func TestGraph_GetAffectedNodes(t *testing.T) {
	g := diamond(t)

	assert.Equal(t, []qn{"B", "D"}, g.GetAffectedNodes([]qn{"B"}))
	assert.Equal(t, []qn{"A", "B", "C", "D"}, g.GetAffectedNodes([]qn{"A", "C"}))
	assert.Empty(t, g.GetAffectedNodes([]qn{"missing"}))
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := diamond(t)
	g.AddNode("LONE", nil)

	assert.Equal(t, []qn{"A", "LONE"}, g.GetRoots())
	assert.Equal(t, []qn{"D", "LONE"}, g.GetLeaves())
}

func TestGraph_Subgraph(t *testing.T) {
	sub := diamond(t).Subgraph([]qn{"A", "B", "D", "missing"})

	assert.Equal(t, 3, sub.NodeCount())
	assert.Equal(t, 2, sub.EdgeCount())
	assert.Equal(t, []qn{"B"}, sub.GetChildren("A"))
	assert.Equal(t, []qn{"B"}, sub.GetParents("D"))
}

func TestFromLineage(t *testing.T) {
	res := lineage.ParseContent("etl.sql", `
CREATE TABLE stage.orders AS
SELECT * FROM raw.orders o LEFT JOIN raw.customers c ON o.cid = c.id;
INSERT INTO stage.orders SELECT * FROM stage.orders;
CREATE VIEW mart.v AS SELECT * FROM stage.orders;
`, "prod")
	lg := lineage.Aggregate([]*lineage.FileResult{res})

	g, selfLoops := FromLineage(lg)
	assert.Equal(t, 1, selfLoops)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())

	assert.Equal(t, []qn{"PROD.RAW.CUSTOMERS", "PROD.RAW.ORDERS"}, g.GetParents("PROD.STAGE.ORDERS"))
	assert.Equal(t, []qn{"PROD.MART.V"}, g.GetChildren("PROD.STAGE.ORDERS"))

	node, ok := g.GetNode("PROD.MART.V")
	require.True(t, ok)
	require.NotNil(t, node.Table)
	assert.Equal(t, "MART", node.Table.Schema)

	levels, err := g.GetExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]qn{
		{"PROD.RAW.CUSTOMERS", "PROD.RAW.ORDERS"},
		{"PROD.STAGE.ORDERS"},
		{"PROD.MART.V"},
	}, levels)
}
