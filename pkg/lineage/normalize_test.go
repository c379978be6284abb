package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantText string
		wantHits []CatalogHit
	}{
		{
			name:     "line comments are stripped",
			input:    "SELECT 1; -- trailing\nSELECT 2;",
			wantText: "SELECT 1; SELECT 2;",
		},
		{
			name:     "whitespace collapses across lines",
			input:    "CREATE TABLE t\n\tAS   SELECT *\n  FROM s;",
			wantText: "CREATE TABLE t AS SELECT * FROM s;",
		},
		{
			name:     "inline block comment",
			input:    "SELECT /* cols */ a FROM b;",
			wantText: "SELECT a FROM b;",
		},
		{
			name:     "block comment hides a directive on a later line",
			input:    "/* start\nSET CATALOG hidden;\n*/\nSET CATALOG live;",
			wantText: "SET CATALOG live;",
			wantHits: []CatalogHit{{Line: 4, Catalog: "LIVE"}},
		},
		{
			name:     "directive before a block comment opening on its line",
			input:    "SET CATALOG a /* x\n*/;",
			wantText: "SET CATALOG a ;",
			wantHits: []CatalogHit{{Line: 1, Catalog: "A"}},
		},
		{
			name:     "directives around a multi-line block comment",
			input:    "SET CATALOG a; /* start\nSET CATALOG b;\n*/ SET CATALOG c;",
			wantText: "SET CATALOG a; SET CATALOG c;",
			wantHits: []CatalogHit{{Line: 1, Catalog: "A"}, {Line: 3, Catalog: "C"}},
		},
		{
			name:     "line comment hides a directive",
			input:    "-- SET CATALOG old;\nset catalog new_dw;",
			wantText: "set catalog new_dw;",
			wantHits: []CatalogHit{{Line: 2, Catalog: "NEW_DW"}},
		},
		{
			name:     "unterminated block comment swallows the rest",
			input:    "SELECT 1; /* open\nSET CATALOG x;\nSELECT 2;",
			wantText: "SELECT 1;",
		},
		{
			name:     "carriage returns count as line breaks",
			input:    "SELECT 1;\r\n\r\nSET CATALOG a;\rSET CATALOG b;",
			wantText: "SELECT 1; SET CATALOG a; SET CATALOG b;",
			wantHits: []CatalogHit{{Line: 3, Catalog: "A"}, {Line: 4, Catalog: "B"}},
		},
		{
			name:     "two directives on one line",
			input:    "SET CATALOG a; SET CATALOG b;",
			wantText: "SET CATALOG a; SET CATALOG b;",
			wantHits: []CatalogHit{{Line: 1, Catalog: "A"}, {Line: 1, Catalog: "B"}},
		},
		{
			name:     "empty input",
			input:    "",
			wantText: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, hits := Normalize(tt.input)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantHits, hits)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, SplitStatements("SELECT 1; ; SELECT 2 ;"))
	assert.Nil(t, SplitStatements(" ; ;"))

	// Literal semicolons split too.
	assert.Equal(t, []string{"SELECT 'a", "b'"}, SplitStatements("SELECT 'a;b';"))
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "SELECT 1", DecodeText([]byte("\xef\xbb\xbfSELECT \xff1")))
	assert.Equal(t, "CREATE TABLE año", DecodeText([]byte("CREATE TABLE año")))
}
