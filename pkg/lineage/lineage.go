package lineage

import (
	"encoding/json"
	"strings"
)

// QualifiedName is a canonical CATALOG.SCHEMA.TABLE identifier.
// All three segments are upper-cased, unquoted and never empty.
type QualifiedName string

// String returns the name as a plain string.
func (q QualifiedName) String() string { return string(q) }

// Parts returns the catalog, schema and table segments of the name.
func (q QualifiedName) Parts() (catalog, schema, table string) {
	return SplitQualified(q)
}

// Table returns the bare table segment.
func (q QualifiedName) Table() string {
	_, _, table := SplitQualified(q)
	return table
}

// JoinType is the kind of a JOIN clause.
type JoinType string

// Join types recognized by the source extractor.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
)

// ParseJoinType maps a join keyword to a JoinType. Unknown or empty keywords
// resolve to JoinInner.
func ParseJoinType(s string) JoinType {
	switch JoinType(strings.ToUpper(strings.TrimSpace(s))) {
	case JoinLeft:
		return JoinLeft
	case JoinRight:
		return JoinRight
	case JoinFull:
		return JoinFull
	case JoinCross:
		return JoinCross
	default:
		return JoinInner
	}
}

// StatementKind classifies a SQL statement.
type StatementKind string

// Statement kinds produced by Classify.
const (
	KindNone            StatementKind = ""
	KindCreateTable     StatementKind = "CREATE_TABLE"
	KindCreateTempTable StatementKind = "CREATE_TEMP_TABLE"
	KindCreateView      StatementKind = "CREATE_VIEW"
	KindInsert          StatementKind = "INSERT"
	// KindSetCatalog never becomes a StatementRecord; the per-file parser
	// consumes it to switch the current catalog.
	KindSetCatalog StatementKind = "SET_CATALOG"
)

// Op returns the lineage edge label for statements of this kind.
func (k StatementKind) Op() string {
	switch k {
	case KindCreateTable, KindCreateTempTable:
		return "CREATE TABLE"
	case KindCreateView:
		return "CREATE VIEW"
	case KindInsert:
		return "INSERT"
	default:
		return "FROM"
	}
}

// IsTemp reports whether the kind declares a temporary table.
func (k StatementKind) IsTemp() bool {
	return k == KindCreateTempTable
}

// OpUsedIn is the label of every usage edge.
const OpUsedIn = "USED_IN"

// JoinInfo describes one JOIN clause of a creation or insert statement.
type JoinInfo struct {
	Table    QualifiedName `json:"table" yaml:"table"`
	JoinType JoinType      `json:"join_type" yaml:"join_type"`
	JoinKey  string        `json:"join_key,omitempty" yaml:"join_key,omitempty"` // empty when no equality was found
}

// MarshalJSON renders an absent join key as null.
func (j JoinInfo) MarshalJSON() ([]byte, error) {
	var key *string
	if j.JoinKey != "" {
		key = &j.JoinKey
	}
	return json.Marshal(struct {
		Table    QualifiedName `json:"table"`
		JoinType JoinType      `json:"join_type"`
		JoinKey  *string       `json:"join_key"`
	}{j.Table, j.JoinType, key})
}

// StatementRecord is the structured record of one classified creation or
// insert statement. Records are immutable once created.
type StatementRecord struct {
	SequenceID int           `json:"id_stmt" yaml:"id_stmt"`
	File       string        `json:"file" yaml:"file"`
	Target     QualifiedName `json:"target" yaml:"target"`
	Kind       StatementKind `json:"kind" yaml:"kind"`
	FromMain   QualifiedName `json:"from_main" yaml:"from_main,omitempty"` // empty when there is no main source
	Joins      []JoinInfo    `json:"joins" yaml:"joins"`
}

// MarshalJSON renders an absent main source as null.
func (r StatementRecord) MarshalJSON() ([]byte, error) {
	type record StatementRecord
	return json.Marshal(struct {
		record
		FromMain *QualifiedName `json:"from_main"`
	}{record(r), nullableName(r.FromMain)})
}

func nullableName(n QualifiedName) *QualifiedName {
	if n == "" {
		return nil
	}
	return &n
}

// Sources returns the main source followed by every join table.
func (r StatementRecord) Sources() []QualifiedName {
	var out []QualifiedName
	if r.FromMain != "" {
		out = append(out, r.FromMain)
	}
	for _, j := range r.Joins {
		if j.Table != "" {
			out = append(out, j.Table)
		}
	}
	return out
}

// LineageEdge states that Target was built from Source in File.
type LineageEdge struct {
	Source QualifiedName `json:"source" yaml:"source"`
	Target QualifiedName `json:"target" yaml:"target"`
	Op     string        `json:"op" yaml:"op"`
	File   string        `json:"file" yaml:"file"`
}

// JoinPairEdge pairs a statement's main source with one of its join sources.
type JoinPairEdge struct {
	From      QualifiedName `json:"from" yaml:"from"`
	JoinTable QualifiedName `json:"join_table" yaml:"join_table"`
	JoinType  JoinType      `json:"join_type" yaml:"join_type"`
	JoinKey   string        `json:"join_key" yaml:"join_key"`
	File      string        `json:"file" yaml:"file"`
}

// UsageEdge states that a temporary table created earlier in File was read
// while building Target.
type UsageEdge struct {
	Source QualifiedName `json:"source" yaml:"source"`
	Target QualifiedName `json:"target" yaml:"target"`
	Op     string        `json:"op" yaml:"op"`
	File   string        `json:"file" yaml:"file"`
}

// CatalogObservation records one SET CATALOG directive. Line is 0 when the
// directive had no matching hit from the normalizer.
type CatalogObservation struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"lineno" yaml:"lineno"`
	Catalog string `json:"catalog" yaml:"catalog"`
}

// FileResult holds everything extracted from a single file.
type FileResult struct {
	File        string
	Nodes       map[QualifiedName]struct{}
	Temporaries map[QualifiedName]struct{}
	Lineage     []LineageEdge
	Pairs       []JoinPairEdge
	Usage       []UsageEdge
	Statements  []StatementRecord
	Catalogs    []CatalogObservation
}

func newFileResult(file string) *FileResult {
	return &FileResult{
		File:        file,
		Nodes:       make(map[QualifiedName]struct{}),
		Temporaries: make(map[QualifiedName]struct{}),
	}
}

// CreationEntry is one entry of a target's creation history.
type CreationEntry struct {
	FromMain QualifiedName `json:"from_main" yaml:"from_main"`
	Joins    []JoinInfo    `json:"joins" yaml:"joins"`
	Kind     StatementKind `json:"kind" yaml:"kind"`
	File     string        `json:"file" yaml:"file"`
}

// MarshalJSON renders an absent main source as null.
func (c CreationEntry) MarshalJSON() ([]byte, error) {
	type entry CreationEntry
	return json.Marshal(struct {
		entry
		FromMain *QualifiedName `json:"from_main"`
	}{entry(c), nullableName(c.FromMain)})
}

// ConsumerEntry describes one statement that read a source table.
type ConsumerEntry struct {
	Target QualifiedName `json:"target" yaml:"target"`
	Kind   StatementKind `json:"kind" yaml:"kind"`
	File   string        `json:"file" yaml:"file"`
}

// Node is a table in the aggregated graph.
type Node struct {
	ID        QualifiedName   `json:"id" yaml:"id"`
	Label     string          `json:"label" yaml:"label"`
	IsTmp     bool            `json:"isTmp" yaml:"is_tmp"`
	Catalog   string          `json:"catalog" yaml:"catalog"`
	Schema    string          `json:"schema" yaml:"schema"`
	Table     string          `json:"table_name" yaml:"table_name"`
	Creations []CreationEntry `json:"creations" yaml:"creations"`
	Consumers []ConsumerEntry `json:"consumers" yaml:"consumers"`
}

// Graph is the aggregated lineage of a file set. It is the whole boundary
// between extraction and the renderers.
type Graph struct {
	Nodes       []Node                            `json:"nodes" yaml:"nodes"`
	Temporaries []QualifiedName                   `json:"temporaries" yaml:"temporaries"`
	Lineage     []LineageEdge                     `json:"edges_lineage" yaml:"edges_lineage"`
	Pairs       []JoinPairEdge                    `json:"edges_pairs" yaml:"edges_pairs"`
	Usage       []UsageEdge                       `json:"edges_usage" yaml:"edges_usage"`
	Statements  []StatementRecord                 `json:"statements" yaml:"statements"`
	Catalogs    []CatalogObservation              `json:"catalogs" yaml:"catalogs"`
	Creations   map[QualifiedName][]CreationEntry `json:"creations" yaml:"creations"`
	Consumers   map[QualifiedName][]ConsumerEntry `json:"consumers" yaml:"consumers"`
}

// Node returns the node with the given name.
func (g *Graph) Node(id QualifiedName) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// EdgeCount returns the number of lineage, join-pair and usage edges.
func (g *Graph) EdgeCount() int {
	return len(g.Lineage) + len(g.Pairs) + len(g.Usage)
}

// Empty reports whether no dependency of any kind was found.
func (g *Graph) Empty() bool {
	return g.EdgeCount() == 0
}
