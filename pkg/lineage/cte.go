package lineage

import (
	"regexp"
	"strings"
)

var (
	// WITH a AS (SELECT ...   -- non-greedy, ends at the first SELECT
	withHeaderPattern = regexp.MustCompile(`(?is)\bWITH\b(.*?)\bSELECT\b`)
	// a AS (
	cteNamePattern = regexp.MustCompile(`(?i)\b(` + identClass + `+)\s+AS\s*\(`)
)

// reservedWords can precede "AS (" inside a WITH header without naming a CTE.
var reservedWords = map[string]struct{}{
	"AS": {}, "WITH": {}, "RECURSIVE": {}, "SELECT": {}, "NOT": {}, "MATERIALIZED": {},
	"FROM": {}, "WHERE": {}, "JOIN": {}, "ON": {}, "AND": {}, "OR": {}, "IN": {},
	"CAST": {}, "TRY_CAST": {}, "CASE": {}, "WHEN": {}, "THEN": {}, "ELSE": {}, "END": {},
	"TABLE": {}, "VIEW": {}, "INSERT": {}, "INTO": {}, "CREATE": {}, "REPLACE": {},
}

// IsReservedWord reports whether s is a SQL keyword that cannot name a CTE.
func IsReservedWord(s string) bool {
	_, ok := reservedWords[strings.ToUpper(s)]
	return ok
}

// CTENames returns the upper-cased names declared in the first WITH header of
// a statement. Only the span up to the first SELECT after WITH is scanned, so
// CTEs declared after the first body are not recognized.
func CTENames(stmt string) map[string]struct{} {
	names := make(map[string]struct{})

	header := withHeaderPattern.FindStringSubmatch(stmt)
	if header == nil {
		return names
	}

	for _, m := range cteNamePattern.FindAllStringSubmatch(header[1], -1) {
		name := strings.ToUpper(strings.Trim(m[1], `"`))
		if name == "" || IsReservedWord(name) {
			continue
		}
		names[name] = struct{}{}
	}
	return names
}
