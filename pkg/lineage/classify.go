package lineage

import "regexp"

// identClass matches the characters of a raw dotted identifier, quotes included.
const identClass = `[A-Z0-9_.$"-]`

// Statement patterns, tried in order by Classify.
var (
	// CREATE OR REPLACE TEMPORARY TABLE stage.tmp_orders
	createTablePattern = regexp.MustCompile(`(?i)\bCREATE\s+(?:OR\s+REPLACE\s+)?((?:TEMP|TEMPORARY)\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(` + identClass + `+)`)
	// CREATE VIEW mart.v_orders
	createViewPattern = regexp.MustCompile(`(?i)\bCREATE\s+(?:OR\s+REPLACE\s+)?VIEW\s+(?:IF\s+NOT\s+EXISTS\s+)?(` + identClass + `+)`)
	// INSERT INTO mart.orders
	insertIntoPattern = regexp.MustCompile(`(?i)\bINSERT\s+INTO\s+(` + identClass + `+)`)
)

// Classify determines what a statement creates and returns its raw, not yet
// qualified, target identifier. For SET CATALOG statements the target is the
// catalog name. Statements that match nothing return KindNone and "".
func Classify(stmt string) (StatementKind, string) {
	if m := createTablePattern.FindStringSubmatch(stmt); m != nil {
		if m[1] != "" {
			return KindCreateTempTable, m[2]
		}
		return KindCreateTable, m[2]
	}
	if m := createViewPattern.FindStringSubmatch(stmt); m != nil {
		return KindCreateView, m[1]
	}
	if m := insertIntoPattern.FindStringSubmatch(stmt); m != nil {
		return KindInsert, m[1]
	}
	if m := setCatalogPattern.FindStringSubmatch(stmt); m != nil {
		return KindSetCatalog, m[1]
	}
	return KindNone, ""
}
