// Package lineage extracts table-level data lineage from SQL script files.
//
// Extraction is a best-effort, single-pass textual scan. It does not build an
// AST and does not validate SQL; it recognizes CREATE TABLE, CREATE VIEW,
// INSERT INTO and SET CATALOG statements and the FROM/JOIN sources feeding
// them.
//
// # Pipeline
//
// Each file goes through the same steps:
//
//   - Normalize strips comments, records SET CATALOG line numbers and collapses
//     whitespace.
//   - SplitStatements cuts the text on ';'.
//   - Classify decides what each statement creates.
//   - CTENames and ExtractSources find the tables a statement reads.
//   - Qualify turns every identifier into CATALOG.SCHEMA.TABLE.
//
// ParseContent runs these steps over one file and returns a FileResult.
// Aggregate merges the per-file results of a whole file set into a Graph.
//
// # Basic Usage
//
//	res := lineage.ParseContent("etl/load.sql", src, "PROD")
//	graph := lineage.Aggregate([]*lineage.FileResult{res})
//
//	for _, e := range graph.Lineage {
//	    fmt.Printf("%s -> %s (%s)\n", e.Source, e.Target, e.Op)
//	}
//
// # Limitations
//
// Semicolons inside string literals split statements. Only the first
// WITH ... SELECT header is scanned for CTE names. Only one main FROM source is
// recognized per statement, and only the first equality of an ON clause
// becomes the join key.
package lineage
