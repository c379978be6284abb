// Package dag provides table dependency graph operations.
// It supports cycle detection, topological sorting, execution levels and
// bounded upstream/downstream traversal.
package dag

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// Node represents a table in the graph.
type Node struct {
	// ID is the qualified table name
	ID lineage.QualifiedName
	// Table holds the aggregated node, when the graph was built from lineage
	Table *lineage.Node
}

// Graph is a directed graph of tables. An edge points from a source table to
// the table built from it. Lineage graphs may contain cycles; operations that
// need an order report them as errors.
type Graph struct {
	nodes   map[lineage.QualifiedName]*Node
	edges   map[lineage.QualifiedName][]lineage.QualifiedName // source -> targets
	parents map[lineage.QualifiedName][]lineage.QualifiedName // target -> sources
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[lineage.QualifiedName]*Node),
		edges:   make(map[lineage.QualifiedName][]lineage.QualifiedName),
		parents: make(map[lineage.QualifiedName][]lineage.QualifiedName),
	}
}

// FromLineage builds the table graph of an aggregated lineage graph. Every
// source of every statement (main FROM and joins) becomes an edge to the
// statement's target. Self-references such as INSERT INTO t SELECT ... FROM t
// are skipped and counted.
func FromLineage(lg *lineage.Graph) (*Graph, int) {
	g := NewGraph()
	for i := range lg.Nodes {
		g.AddNode(lg.Nodes[i].ID, &lg.Nodes[i])
	}

	selfLoops := 0
	for _, stmt := range lg.Statements {
		for _, src := range stmt.Sources() {
			if src == stmt.Target {
				selfLoops++
				continue
			}
			g.ensureNode(src)
			g.ensureNode(stmt.Target)
			_ = g.AddEdge(src, stmt.Target)
		}
	}

	return g, selfLoops
}

func (g *Graph) ensureNode(id lineage.QualifiedName) {
	if _, ok := g.nodes[id]; !ok {
		g.AddNode(id, nil)
	}
}

// AddNode adds a node to the graph, replacing the table data of an existing one.
func (g *Graph) AddNode(id lineage.QualifiedName, table *lineage.Node) {
	if n, exists := g.nodes[id]; exists {
		n.Table = table
		return
	}
	g.nodes[id] = &Node{ID: id, Table: table}
}

// AddEdge adds a directed edge from source to target. Duplicate edges are
// ignored.
func (g *Graph) AddEdge(source, target lineage.QualifiedName) error {
	if _, exists := g.nodes[source]; !exists {
		return fmt.Errorf("source node %q does not exist", source)
	}
	if _, exists := g.nodes[target]; !exists {
		return fmt.Errorf("target node %q does not exist", target)
	}
	if source == target {
		return fmt.Errorf("self-loop detected: %s", source)
	}

	if !contains(g.edges[source], target) {
		g.edges[source] = append(g.edges[source], target)
		g.parents[target] = append(g.parents[target], source)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id lineage.QualifiedName) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the direct sources of a table, sorted.
func (g *Graph) GetParents(id lineage.QualifiedName) []lineage.QualifiedName {
	return sorted(g.parents[id])
}

// GetChildren returns the tables built directly from a table, sorted.
func (g *Graph) GetChildren(id lineage.QualifiedName) []lineage.QualifiedName {
	return sorted(g.edges[id])
}

// GetAllNodes returns all nodes sorted by ID.
func (g *Graph) GetAllNodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, targets := range g.edges {
		count += len(targets)
	}
	return count
}

// FindCycle returns one cycle as a closed path (first element repeated at the
// end), or nil when the graph is acyclic. The search order is deterministic.
func (g *Graph) FindCycle() []lineage.QualifiedName {
	const (
		unvisited = iota
		inStack
		done
	)
	color := make(map[lineage.QualifiedName]int, len(g.nodes))
	var stack []lineage.QualifiedName
	var cycle []lineage.QualifiedName

	var dfs func(id lineage.QualifiedName) bool
	dfs = func(id lineage.QualifiedName) bool {
		color[id] = inStack
		stack = append(stack, id)

		for _, next := range g.GetChildren(id) {
			switch color[next] {
			case unvisited:
				if dfs(next) {
					return true
				}
			case inStack:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append(append([]lineage.QualifiedName{}, stack[i:]...), next)
						return true
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = done
		return false
	}

	for _, n := range g.GetAllNodes() {
		if color[n.ID] == unvisited && dfs(n.ID) {
			return cycle
		}
	}
	return nil
}

// HasCycle reports whether the graph contains a cycle, along with one.
func (g *Graph) HasCycle() (bool, []lineage.QualifiedName) {
	cycle := g.FindCycle()
	return cycle != nil, cycle
}

// CycleError is returned by ordering operations on a cyclic graph.
type CycleError struct {
	Path []lineage.QualifiedName
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// TopologicalSort returns nodes with every source before the tables built
// from it. Ties are broken by name.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	levels, err := g.GetExecutionLevels()
	if err != nil {
		return nil, err
	}

	result := make([]*Node, 0, len(g.nodes))
	for _, level := range levels {
		for _, id := range level {
			result = append(result, g.nodes[id])
		}
	}
	return result, nil
}

// GetExecutionLevels groups tables by build level. Level 0 holds tables with
// no sources; a table sits one level above its deepest source.
func (g *Graph) GetExecutionLevels() ([][]lineage.QualifiedName, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	level := make(map[lineage.QualifiedName]int, len(g.nodes))
	var depth func(id lineage.QualifiedName) int
	depth = func(id lineage.QualifiedName) int {
		if l, ok := level[id]; ok {
			return l
		}
		l := 0
		for _, p := range g.parents[id] {
			if pl := depth(p) + 1; pl > l {
				l = pl
			}
		}
		level[id] = l
		return l
	}

	maxLevel := -1
	for id := range g.nodes {
		if l := depth(id); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]lineage.QualifiedName, maxLevel+1)
	for id, l := range level {
		levels[l] = append(levels[l], id)
	}
	for i := range levels {
		levels[i] = sorted(levels[i])
	}
	return levels, nil
}

// GetUpstreamNodes returns every table the given one is built from, directly
// or transitively, up to maxDepth hops (0 means unlimited). The table itself is
// never included, even on a cycle.
func (g *Graph) GetUpstreamNodes(id lineage.QualifiedName, maxDepth int) []lineage.QualifiedName {
	return g.walk(id, maxDepth, g.parents)
}

// GetDownstreamNodes returns every table built from the given one, directly
// or transitively, up to maxDepth hops (0 means unlimited).
func (g *Graph) GetDownstreamNodes(id lineage.QualifiedName, maxDepth int) []lineage.QualifiedName {
	return g.walk(id, maxDepth, g.edges)
}

// GetAffectedNodes returns the given tables plus everything downstream of
// them, sorted.
func (g *Graph) GetAffectedNodes(changed []lineage.QualifiedName) []lineage.QualifiedName {
	affected := make(map[lineage.QualifiedName]struct{})
	for _, id := range changed {
		if _, ok := g.nodes[id]; !ok {
			continue
		}
		affected[id] = struct{}{}
		for _, d := range g.GetDownstreamNodes(id, 0) {
			affected[d] = struct{}{}
		}
	}

	out := make([]lineage.QualifiedName, 0, len(affected))
	for id := range affected {
		out = append(out, id)
	}
	return sorted(out)
}

// walk is a breadth-first traversal over adj bounded by maxDepth.
func (g *Graph) walk(start lineage.QualifiedName, maxDepth int, adj map[lineage.QualifiedName][]lineage.QualifiedName) []lineage.QualifiedName {
	seen := map[lineage.QualifiedName]struct{}{start: {}}
	frontier := []lineage.QualifiedName{start}
	var out []lineage.QualifiedName

	for depth := 1; len(frontier) > 0 && (maxDepth <= 0 || depth <= maxDepth); depth++ {
		var next []lineage.QualifiedName
		for _, id := range frontier {
			for _, n := range adj[id] {
				if _, ok := seen[n]; ok {
					continue
				}
				seen[n] = struct{}{}
				out = append(out, n)
				next = append(next, n)
			}
		}
		frontier = next
	}

	return sorted(out)
}

// GetRoots returns tables with no sources.
func (g *Graph) GetRoots() []lineage.QualifiedName {
	var roots []lineage.QualifiedName
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return sorted(roots)
}

// GetLeaves returns tables nothing is built from.
func (g *Graph) GetLeaves() []lineage.QualifiedName {
	var leaves []lineage.QualifiedName
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return sorted(leaves)
}

// Subgraph returns a new graph containing only the given nodes and the edges
// between them.
func (g *Graph) Subgraph(ids []lineage.QualifiedName) *Graph {
	sub := NewGraph()
	for _, id := range ids {
		if node, exists := g.nodes[id]; exists {
			sub.AddNode(id, node.Table)
		}
	}
	for _, id := range ids {
		for _, target := range g.edges[id] {
			if _, ok := sub.nodes[target]; ok {
				_ = sub.AddEdge(id, target)
			}
		}
	}
	return sub
}

func contains(list []lineage.QualifiedName, id lineage.QualifiedName) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

func sorted(ids []lineage.QualifiedName) []lineage.QualifiedName {
	out := append([]lineage.QualifiedName{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
