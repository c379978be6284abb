package report

import (
	"sort"
	"strconv"

	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// Element is a Cytoscape element: a node or an edge.
type Element struct {
	Data    map[string]any `json:"data"`
	Classes string         `json:"classes"`
}

// NodeDetails is the sidebar content of one table.
type NodeDetails struct {
	Creations []lineage.CreationEntry `json:"creations"`
	Consumers []lineage.ConsumerEntry `json:"consumers"`
}

// Payload is everything the HTML page needs to draw the graph.
type Payload struct {
	Title    string                                `json:"title"`
	Catalogs []string                              `json:"catalogs"`
	Nodes    []Element                             `json:"nodes"`
	Edges    []Element                             `json:"edges"`
	Details  map[lineage.QualifiedName]NodeDetails `json:"details"`
}

// BuildPayload converts a lineage graph into Cytoscape elements. Edge ids are
// numbered per kind: lineage-N, join-N and usage-N.
func BuildPayload(g *lineage.Graph, title string) *Payload {
	p := &Payload{
		Title:    title,
		Catalogs: []string{},
		Nodes:    make([]Element, 0, len(g.Nodes)),
		Edges:    make([]Element, 0, g.EdgeCount()),
		Details:  make(map[lineage.QualifiedName]NodeDetails, len(g.Nodes)),
	}

	seenCatalog := make(map[string]bool)
	for _, n := range g.Nodes {
		p.Nodes = append(p.Nodes, NodeElement(n))
		p.Details[n.ID] = DetailsOf(n)
		if n.Catalog != "" && !seenCatalog[n.Catalog] {
			seenCatalog[n.Catalog] = true
			p.Catalogs = append(p.Catalogs, n.Catalog)
		}
	}
	sort.Strings(p.Catalogs)

	for i, e := range g.Lineage {
		p.Edges = append(p.Edges, Element{
			Data: map[string]any{
				"id":        "lineage-" + strconv.Itoa(i),
				"source":    e.Source,
				"target":    e.Target,
				"edgeLabel": e.Op,
				"kind":      "lineage",
				"file":      e.File,
			},
			Classes: "edge-lineage",
		})
	}

	for i, e := range g.Pairs {
		var key any
		if e.JoinKey != "" {
			key = e.JoinKey
		}
		p.Edges = append(p.Edges, Element{
			Data: map[string]any{
				"id":        "join-" + strconv.Itoa(i),
				"source":    e.From,
				"target":    e.JoinTable,
				"edgeLabel": JoinLabel(e.JoinType, e.JoinKey),
				"kind":      "join",
				"joinType":  e.JoinType,
				"joinKey":   key,
				"file":      e.File,
			},
			Classes: "edge-join " + joinClass(e.JoinType),
		})
	}

	for i, e := range g.Usage {
		p.Edges = append(p.Edges, Element{
			Data: map[string]any{
				"id":        "usage-" + strconv.Itoa(i),
				"source":    e.Source,
				"target":    e.Target,
				"edgeLabel": e.Op,
				"kind":      "usage",
				"file":      e.File,
			},
			Classes: "edge-usage",
		})
	}

	return p
}

// NodeElement returns the Cytoscape element of a table.
func NodeElement(n lineage.Node) Element {
	el := Element{
		Data: map[string]any{
			"id":         n.ID,
			"label":      n.Label,
			"isTmp":      0,
			"catalog":    n.Catalog,
			"schema":     n.Schema,
			"table_name": n.Table,
		},
	}
	if n.IsTmp {
		el.Data["isTmp"] = 1
		el.Classes = "tmp"
	}
	return el
}

// DetailsOf returns the creation and consumer history of a table.
func DetailsOf(n lineage.Node) NodeDetails {
	d := NodeDetails{Creations: n.Creations, Consumers: n.Consumers}
	if d.Creations == nil {
		d.Creations = []lineage.CreationEntry{}
	}
	if d.Consumers == nil {
		d.Consumers = []lineage.ConsumerEntry{}
	}
	return d
}

// JoinLabel renders a join edge label such as "LEFT · on CUSTOMER_ID".
func JoinLabel(t lineage.JoinType, key string) string {
	if key == "" {
		return string(t)
	}
	return string(t) + " · on " + key
}

func joinClass(t lineage.JoinType) string {
	switch t {
	case lineage.JoinLeft:
		return "join-left"
	case lineage.JoinRight:
		return "join-right"
	case lineage.JoinFull:
		return "join-full"
	case lineage.JoinCross:
		return "join-cross"
	default:
		return "join-inner"
	}
}
