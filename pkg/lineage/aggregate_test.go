package lineage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_DedupAsymmetry(t *testing.T) {
	sql := "CREATE TABLE t AS SELECT * FROM a JOIN b ON a.id = b.id;"
	// The same file parsed twice, as happens when a run is repeated.
	first := ParseContent("etl.sql", sql, "D")
	second := ParseContent("etl.sql", sql, "D")

	g := Aggregate([]*FileResult{first, second})

	assert.Len(t, g.Pairs, 1)
	assert.Len(t, g.Lineage, 2)
	assert.Len(t, g.Statements, 2)
}

func TestAggregate_UsageDedup(t *testing.T) {
	sql := "CREATE TEMP TABLE s1 AS SELECT * FROM a; CREATE TABLE s2 AS SELECT * FROM s1;"
	g := Aggregate([]*FileResult{
		ParseContent("f.sql", sql, "D"),
		ParseContent("f.sql", sql, "D"),
		ParseContent("g.sql", sql, "D"),
	})

	assert.Equal(t, []UsageEdge{
		{Source: "D.DBO.S1", Target: "D.DBO.S2", Op: OpUsedIn, File: "f.sql"},
		{Source: "D.DBO.S1", Target: "D.DBO.S2", Op: OpUsedIn, File: "g.sql"},
	}, g.Usage)
}

func TestAggregate_Nodes(t *testing.T) {
	g := Aggregate([]*FileResult{
		ParseContent("b.sql", "CREATE TABLE mart.z AS SELECT * FROM raw.src;", "DW"),
		ParseContent("a.sql", "CREATE TEMP TABLE s AS SELECT * FROM raw.src; CREATE TABLE stage_tmp AS SELECT 1;", "DW"),
	})

	ids := make([]QualifiedName, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []QualifiedName{"DW.DBO.S", "DW.DBO.STAGE_TMP", "DW.MART.Z", "DW.RAW.SRC"}, ids)
	assert.Equal(t, []QualifiedName{"DW.DBO.S", "DW.DBO.STAGE_TMP"}, g.Temporaries)

	n, ok := g.Node("DW.MART.Z")
	require.True(t, ok)
	assert.Equal(t, "DW.MART.Z", n.Label)
	assert.Equal(t, "DW", n.Catalog)
	assert.Equal(t, "MART", n.Schema)
	assert.Equal(t, "Z", n.Table)
	assert.False(t, n.IsTmp)
	assert.NotNil(t, n.Consumers)

	s, ok := g.Node("DW.DBO.S")
	require.True(t, ok)
	assert.True(t, s.IsTmp)

	_, ok = g.Node("DW.DBO.MISSING")
	assert.False(t, ok)
}

func TestAggregate_Histories(t *testing.T) {
	g := Aggregate([]*FileResult{
		ParseContent("one.sql", "CREATE TABLE t AS SELECT * FROM s; INSERT INTO t SELECT * FROM s; INSERT INTO t SELECT * FROM s;", "D"),
		ParseContent("two.sql", "CREATE OR REPLACE TABLE t AS SELECT * FROM s LEFT JOIN k ON s.id = k.id;", "D"),
	})

	creations := g.Creations["D.DBO.T"]
	require.Len(t, creations, 4)
	assert.Equal(t, KindCreateTable, creations[0].Kind)
	assert.Equal(t, "one.sql", creations[0].File)
	assert.Equal(t, KindInsert, creations[1].Kind)
	assert.Equal(t, "two.sql", creations[3].File)
	assert.Equal(t, []JoinInfo{{Table: "D.DBO.K", JoinType: JoinLeft, JoinKey: "ID"}}, creations[3].Joins)

	assert.Equal(t, []ConsumerEntry{
		{Target: "D.DBO.T", Kind: KindCreateTable, File: "one.sql"},
		{Target: "D.DBO.T", Kind: KindInsert, File: "one.sql"},
		{Target: "D.DBO.T", Kind: KindCreateTable, File: "two.sql"},
	}, g.Consumers["D.DBO.S"])
	assert.Equal(t, []ConsumerEntry{
		{Target: "D.DBO.T", Kind: KindCreateTable, File: "two.sql"},
	}, g.Consumers["D.DBO.K"])

	n, ok := g.Node("D.DBO.T")
	require.True(t, ok)
	assert.Len(t, n.Creations, 4)
	assert.Empty(t, n.Consumers)

	// One lineage edge per statement.
	assert.Len(t, g.Lineage, 4)
}

func TestAggregate_Empty(t *testing.T) {
	g := Aggregate(nil)

	assert.True(t, g.Empty())
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Lineage)

	g = Aggregate([]*FileResult{ParseContent("f.sql", "CREATE TABLE t AS SELECT 1;", "D")})
	assert.True(t, g.Empty())
	assert.Len(t, g.Nodes, 1)
}

func TestAggregator_Incremental(t *testing.T) {
	a := NewAggregator()
	a.Add(nil)
	a.Add(ParseContent("f.sql", "CREATE TABLE t AS SELECT * FROM s JOIN k ON s.a = k.b;", "D"))

	g := a.Graph()
	assert.Len(t, g.Lineage, 1)
	assert.Len(t, g.Pairs, 1)
	assert.Equal(t, 2, g.EdgeCount())
	assert.False(t, g.Empty())
}

func TestGraph_JSON(t *testing.T) {
	g := Aggregate([]*FileResult{
		ParseContent("f.sql", "CREATE TABLE t AS SELECT * FROM s CROSS JOIN k;", "D"),
	})

	b, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	for _, key := range []string{"nodes", "edges_lineage", "edges_pairs", "edges_usage", "statements", "catalogs"} {
		assert.Contains(t, decoded, key)
	}

	stmts := decoded["statements"].([]any)
	require.Len(t, stmts, 1)
	stmt := stmts[0].(map[string]any)
	assert.Equal(t, float64(1), stmt["id_stmt"])
	joins := stmt["joins"].([]any)
	require.Len(t, joins, 1)
	join := joins[0].(map[string]any)
	assert.Equal(t, "CROSS", join["join_type"])
	assert.Contains(t, join, "join_key")
	assert.Nil(t, join["join_key"])
	assert.Equal(t, "D.DBO.S", stmt["from_main"])
}

func TestStatementRecord_JSONAbsentMainSource(t *testing.T) {
	g := Aggregate([]*FileResult{
		ParseContent("f.sql", "CREATE VIEW v AS SELECT 1;", "D"),
	})
	require.Len(t, g.Statements, 1)

	b, err := json.Marshal(g.Statements[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id_stmt":1,"file":"f.sql","target":"D.DBO.V","kind":"CREATE_VIEW","from_main":null,"joins":[]}`, string(b))

	b, err = json.Marshal(g.Creations["D.DBO.V"][0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"from_main":null,"joins":[],"kind":"CREATE_VIEW","file":"f.sql"}`, string(b))
}
