package lineage

import (
	"sort"
)

// Aggregator merges per-file results into a Graph. Results must be added in
// the order the files were supplied; the output order follows it.
type Aggregator struct {
	nodes       map[QualifiedName]struct{}
	temporaries map[QualifiedName]struct{}

	lineage    []LineageEdge
	pairs      []JoinPairEdge
	usage      []UsageEdge
	statements []StatementRecord
	catalogs   []CatalogObservation

	seenPairs map[JoinPairEdge]struct{}
	seenUsage map[UsageEdge]struct{}

	creations     map[QualifiedName][]CreationEntry
	consumers     map[QualifiedName][]ConsumerEntry
	seenConsumers map[QualifiedName]map[ConsumerEntry]struct{}
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		nodes:         make(map[QualifiedName]struct{}),
		temporaries:   make(map[QualifiedName]struct{}),
		seenPairs:     make(map[JoinPairEdge]struct{}),
		seenUsage:     make(map[UsageEdge]struct{}),
		creations:     make(map[QualifiedName][]CreationEntry),
		consumers:     make(map[QualifiedName][]ConsumerEntry),
		seenConsumers: make(map[QualifiedName]map[ConsumerEntry]struct{}),
	}
}

// Add merges one file's result.
//
// Lineage edges are kept as they come, one per statement. Join-pair and
// usage edges are deduplicated by their full tuple, keeping the first one.
func (a *Aggregator) Add(r *FileResult) {
	if r == nil {
		return
	}

	for n := range r.Nodes {
		a.nodes[n] = struct{}{}
	}
	for n := range r.Temporaries {
		a.temporaries[n] = struct{}{}
	}

	a.lineage = append(a.lineage, r.Lineage...)
	a.catalogs = append(a.catalogs, r.Catalogs...)

	for _, p := range r.Pairs {
		if _, ok := a.seenPairs[p]; ok {
			continue
		}
		a.seenPairs[p] = struct{}{}
		a.pairs = append(a.pairs, p)
	}
	for _, u := range r.Usage {
		if _, ok := a.seenUsage[u]; ok {
			continue
		}
		a.seenUsage[u] = struct{}{}
		a.usage = append(a.usage, u)
	}

	for _, stmt := range r.Statements {
		a.statements = append(a.statements, stmt)
		a.creations[stmt.Target] = append(a.creations[stmt.Target], CreationEntry{
			FromMain: stmt.FromMain,
			Joins:    stmt.Joins,
			Kind:     stmt.Kind,
			File:     stmt.File,
		})

		consumer := ConsumerEntry{Target: stmt.Target, Kind: stmt.Kind, File: stmt.File}
		for _, src := range stmt.Sources() {
			seen := a.seenConsumers[src]
			if seen == nil {
				seen = make(map[ConsumerEntry]struct{})
				a.seenConsumers[src] = seen
			}
			if _, ok := seen[consumer]; ok {
				continue
			}
			seen[consumer] = struct{}{}
			a.consumers[src] = append(a.consumers[src], consumer)
		}
	}
}

// Graph builds the aggregated graph from everything added so far.
// Nodes and temporaries are sorted by name.
func (a *Aggregator) Graph() *Graph {
	ids := sortedNames(a.nodes)

	g := &Graph{
		Nodes:       make([]Node, 0, len(ids)),
		Temporaries: sortedNames(a.temporaries),
		Lineage:     nonNil(a.lineage),
		Pairs:       nonNil(a.pairs),
		Usage:       nonNil(a.usage),
		Statements:  nonNil(a.statements),
		Catalogs:    nonNil(a.catalogs),
		Creations:   a.creations,
		Consumers:   a.consumers,
	}

	for _, id := range ids {
		catalog, schema, table := SplitQualified(id)
		_, tmp := a.temporaries[id]
		g.Nodes = append(g.Nodes, Node{
			ID:        id,
			Label:     string(id),
			IsTmp:     tmp || IsTemporaryName(table),
			Catalog:   catalog,
			Schema:    schema,
			Table:     table,
			Creations: nonNil(a.creations[id]),
			Consumers: nonNil(a.consumers[id]),
		})
	}

	return g
}

// Aggregate merges per-file results in order.
func Aggregate(results []*FileResult) *Graph {
	a := NewAggregator()
	for _, r := range results {
		a.Add(r)
	}
	return a.Graph()
}

func sortedNames(set map[QualifiedName]struct{}) []QualifiedName {
	out := make([]QualifiedName, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
