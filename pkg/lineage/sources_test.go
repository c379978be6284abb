package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSources(t *testing.T) {
	tests := []struct {
		name      string
		stmt      string
		ctes      []string
		wantMain  QualifiedName
		wantJoins []JoinInfo
	}{
		{
			name:     "single from",
			stmt:     "CREATE TABLE t AS SELECT * FROM raw.orders",
			wantMain: "D.RAW.ORDERS",
		},
		{
			name:     "typed joins with keys",
			stmt:     "CREATE TABLE t AS SELECT * FROM raw.orders o LEFT OUTER JOIN raw.customers c ON o.customer_id = c.id WHERE o.x = 1",
			wantMain: "D.RAW.ORDERS",
			wantJoins: []JoinInfo{
				{Table: "D.RAW.CUSTOMERS", JoinType: JoinLeft, JoinKey: "CUSTOMER_ID=ID"},
			},
		},
		{
			name:     "consecutive joins",
			stmt:     "INSERT INTO t SELECT * FROM a JOIN b AS bb ON a.id = bb.id inner join c ON bb.k = c.k FULL JOIN d ON c.x=d.y",
			wantMain: "D.DBO.A",
			wantJoins: []JoinInfo{
				{Table: "D.DBO.B", JoinType: JoinInner, JoinKey: "ID"},
				{Table: "D.DBO.C", JoinType: JoinInner, JoinKey: "K"},
				{Table: "D.DBO.D", JoinType: JoinFull, JoinKey: "X=Y"},
			},
		},
		{
			name:     "join without on clause",
			stmt:     "CREATE TABLE t AS SELECT * FROM a CROSS JOIN b WHERE a.id = b.id",
			wantMain: "D.DBO.A",
			wantJoins: []JoinInfo{
				{Table: "D.DBO.B", JoinType: JoinCross},
			},
		},
		{
			name:     "on clause without equality",
			stmt:     "CREATE TABLE t AS SELECT * FROM a RIGHT JOIN b ON a.ts > b.ts",
			wantMain: "D.DBO.A",
			wantJoins: []JoinInfo{
				{Table: "D.DBO.B", JoinType: JoinRight},
			},
		},
		{
			name:     "cte source skipped",
			stmt:     "CREATE TABLE t AS WITH recent AS (SELECT 1) SELECT * FROM recent JOIN raw.x ON 1=1",
			ctes:     []string{"RECENT"},
			wantMain: "",
		},
		{
			name:     "cte join skipped",
			stmt:     "CREATE TABLE t AS SELECT * FROM a JOIN recent r ON a.id = r.id JOIN b ON a.id = b.a_id",
			ctes:     []string{"RECENT"},
			wantMain: "D.DBO.A",
			wantJoins: []JoinInfo{
				{Table: "D.DBO.B", JoinType: JoinInner, JoinKey: "ID=A_ID"},
			},
		},
		{
			name:     "subquery is not a source",
			stmt:     "CREATE TABLE t AS SELECT * FROM (SELECT * FROM raw.inner_t) s JOIN b ON s.id = b.id",
			wantMain: "D.RAW.INNER_T",
			wantJoins: []JoinInfo{
				{Table: "D.DBO.B", JoinType: JoinInner, JoinKey: "ID"},
			},
		},
		{
			name:     "joins before from are ignored",
			stmt:     "CREATE VIEW v AS SELECT (SELECT 1 JOIN z) AS c FROM a",
			wantMain: "D.DBO.A",
		},
		{
			name:     "quoted identifiers",
			stmt:     `CREATE TABLE t AS SELECT * FROM "Raw"."Orders" o JOIN "Raw"."Items" i ON o."Id" = i."Order_Id"`,
			wantMain: "D.RAW.ORDERS",
			wantJoins: []JoinInfo{
				{Table: "D.RAW.ITEMS", JoinType: JoinInner, JoinKey: "ID=ORDER_ID"},
			},
		},
		{
			name:     "no from",
			stmt:     "CREATE TABLE t AS SELECT 1 AS x",
			wantMain: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctes := make(map[string]struct{})
			for _, c := range tt.ctes {
				ctes[c] = struct{}{}
			}

			main, joins := ExtractSources(tt.stmt, ctes, "D")
			assert.Equal(t, tt.wantMain, main)
			assert.Equal(t, tt.wantJoins, joins)
		})
	}
}

func TestJoinKey(t *testing.T) {
	tests := []struct {
		on   string
		want string
	}{
		{"a.id = b.customer_id", "ID=CUSTOMER_ID"},
		{"a.id = b.id", "ID"},
		{"a.id=b.id AND a.x = b.y", "ID"},
		{"a.ts >= b.ts", ""},
		{"dw.raw.orders.id = c.id", "ID"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.on, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinKey(tt.on))
		})
	}
}
