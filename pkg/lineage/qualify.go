package lineage

import (
	"strings"
	"unicode"
)

// DefaultSchema is assumed for identifiers without a schema segment.
const DefaultSchema = "DBO"

// unknownTable is the table segment used when an identifier has no usable
// segment at all.
const unknownTable = "?"

// Qualify normalizes a raw dotted identifier into CATALOG.SCHEMA.TABLE.
//
// Segments are stripped of quotes and whitespace and upper-cased. With three
// or more segments the last three are used; two segments get the current
// catalog; one segment gets the current catalog and DBO. An identifier with no
// usable segment becomes <catalog>.DBO.? instead of failing.
func Qualify(raw, currentCatalog string) QualifiedName {
	catalog := strings.ToUpper(strings.TrimSpace(currentCatalog))

	var parts []string
	for _, piece := range strings.Split(raw, ".") {
		if p := normalizeSegment(piece); p != "" {
			parts = append(parts, p)
		}
	}

	schema, table := DefaultSchema, unknownTable
	switch n := len(parts); {
	case n >= 3:
		catalog, schema, table = parts[n-3], parts[n-2], parts[n-1]
	case n == 2:
		schema, table = parts[0], parts[1]
	case n == 1:
		table = parts[0]
	}

	return QualifiedName(catalog + "." + schema + "." + table)
}

// normalizeSegment trims whitespace and identifier quotes and upper-cases.
func normalizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"`[]")
	return strings.ToUpper(strings.TrimSpace(s))
}

// SplitQualified splits a qualified name into its three segments.
// Names with fewer segments are padded the way Qualify would have done it,
// with an empty catalog.
func SplitQualified(q QualifiedName) (catalog, schema, table string) {
	parts := strings.Split(string(q), ".")
	switch n := len(parts); {
	case n >= 3:
		return parts[n-3], parts[n-2], parts[n-1]
	case n == 2:
		return "", parts[0], parts[1]
	default:
		return "", DefaultSchema, parts[0]
	}
}

// IsTemporaryName reports whether a table segment names a scratch table:
// TEMP or TMP appears in it as a whole word, where words are runs of letters
// and digits. TMP_STAGE and STG_TEMP match; TEMPERATURE does not.
func IsTemporaryName(table string) bool {
	words := strings.FieldsFunc(strings.ToUpper(table), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if w == "TEMP" || w == "TMP" {
			return true
		}
	}
	return false
}
