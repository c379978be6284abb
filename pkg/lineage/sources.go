package lineage

import (
	"regexp"
	"strings"
)

// Source patterns used by ExtractSources. The identifier class has no '(' so
// a parenthesized subquery never matches as a source.
var (
	// FROM raw.orders
	fromPattern = regexp.MustCompile(`(?i)\bFROM\s+(` + identClass + `+)`)
	// LEFT OUTER JOIN raw.customers
	joinPattern = regexp.MustCompile(`(?i)\b(?:(LEFT|RIGHT|FULL|INNER|CROSS)\s+(?:OUTER\s+)?)?JOIN\s+(` + identClass + `+)`)
	// [AS c] ON   -- anchored right after the joined identifier
	joinTailPattern = regexp.MustCompile(`(?i)^(?:\s+(?:AS\s+)?` + identClass + `+)?\s+ON\s+`)
	// keywords that end an ON clause
	onTerminatorPattern = regexp.MustCompile(`(?i)\b(?:(?:LEFT|RIGHT|FULL|INNER|CROSS)\s+(?:OUTER\s+)?JOIN|JOIN|WHERE|GROUP|ORDER|HAVING|UNION|EXCEPT|INTERSECT|LIMIT|QUALIFY)\b`)
	// o.customer_id = c.id
	joinKeyPattern = regexp.MustCompile(`(?i)(` + identClass + `+)\s*=\s*(` + identClass + `+)`)
)

// ExtractSources finds the main FROM source of a statement and the JOIN
// sources that follow it.
//
// The main source is the first FROM identifier that is not a CTE name. Joins are only collected after the main source; a
// statement without one has no joins at all.
func ExtractSources(stmt string, ctes map[string]struct{}, catalog string) (QualifiedName, []JoinInfo) {
	var (
		mainFrom QualifiedName
		fromEnd  int
	)

	for _, m := range fromPattern.FindAllStringSubmatchIndex(stmt, -1) {
		raw := stmt[m[2]:m[3]]
		if isCTE(raw, ctes) {
			continue
		}
		mainFrom = Qualify(raw, catalog)
		fromEnd = m[1]
		break
	}

	if mainFrom == "" {
		return "", nil
	}

	rest := stmt[fromEnd:]
	var joins []JoinInfo
	for _, m := range joinPattern.FindAllStringSubmatchIndex(rest, -1) {
		raw := rest[m[4]:m[5]]
		if isCTE(raw, ctes) {
			continue
		}

		joinType := JoinInner
		if m[2] >= 0 {
			joinType = ParseJoinType(rest[m[2]:m[3]])
		}

		joins = append(joins, JoinInfo{
			Table:    Qualify(raw, catalog),
			JoinType: joinType,
			JoinKey:  JoinKey(onClause(rest[m[1]:])),
		})
	}

	return mainFrom, joins
}

// onClause returns the ON predicate that starts right after a joined
// identifier, cut before the next clause keyword. It returns "" when the join
// has no ON clause.
func onClause(after string) string {
	loc := joinTailPattern.FindStringIndex(after)
	if loc == nil {
		return ""
	}
	body := after[loc[1]:]
	if t := onTerminatorPattern.FindStringIndex(body); t != nil {
		body = body[:t[0]]
	}
	return strings.TrimSpace(body)
}

// JoinKey reduces an ON predicate to a join key using its first equality.
// Both sides lose their table qualifier; equal column names collapse to one
// name, different ones render as LEFT=RIGHT. No equality yields "".
func JoinKey(on string) string {
	if on == "" {
		return ""
	}
	m := joinKeyPattern.FindStringSubmatch(on)
	if m == nil {
		return ""
	}
	left, right := columnName(m[1]), columnName(m[2])
	if left == right {
		return left
	}
	return left + "=" + right
}

// columnName keeps the last dotted segment of an identifier, unquoted and
// upper-cased.
func columnName(ident string) string {
	if i := strings.LastIndexByte(ident, '.'); i >= 0 {
		ident = ident[i+1:]
	}
	return strings.ToUpper(strings.Trim(ident, `"`))
}

func isCTE(raw string, ctes map[string]struct{}) bool {
	_, ok := ctes[strings.ToUpper(strings.Trim(raw, `"`))]
	return ok
}
