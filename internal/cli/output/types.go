package output

// LineageOutput is the JSON form of the lineage command.
type LineageOutput struct {
	Root  string        `json:"root"`
	Nodes []LineageNode `json:"nodes"`
	Edges []LineageEdge `json:"edges"`
	Stats LineageStats  `json:"stats"`
}

// LineageNode is one table in a lineage result.
type LineageNode struct {
	ID       string `json:"id"`
	IsTemp   bool   `json:"is_temp"`
	Role     string `json:"role"` // root, upstream or downstream
	Creators int    `json:"creations"`
}

// LineageEdge is a dependency between two tables of a lineage result.
type LineageEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LineageStats summarizes a lineage result.
type LineageStats struct {
	TotalNodes      int `json:"total_nodes"`
	UpstreamCount   int `json:"upstream_count"`
	DownstreamCount int `json:"downstream_count"`
}

// DAGOutput is the JSON form of the dag command.
type DAGOutput struct {
	TotalTables int        `json:"total_tables"`
	TotalEdges  int        `json:"total_edges"`
	SelfLoops   int        `json:"self_loops"`
	Levels      []DAGLevel `json:"levels"`
}

// DAGLevel is one build level.
type DAGLevel struct {
	Level  int       `json:"level"`
	Tables []DAGNode `json:"tables"`
}

// DAGNode is a table with its direct neighbours.
type DAGNode struct {
	ID        string   `json:"id"`
	IsTemp    bool     `json:"is_temp"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}
