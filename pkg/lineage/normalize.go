package lineage

import (
	"regexp"
	"strings"
)

// CatalogHit is a SET CATALOG directive found by Normalize.
type CatalogHit struct {
	Line    int    // 1-based line number in the original text
	Catalog string // upper-cased catalog name
}

// SET CATALOG sales_dw
var setCatalogPattern = regexp.MustCompile(`(?i)\bSET\s+CATALOG\s+([A-Z0-9_]+)\b`)

// Normalize strips block and line comments from raw file text, records the
// SET CATALOG directives that survive comment removal, and collapses every
// whitespace run (newlines included) to a single space.
//
// The block-comment state carries across lines; an unterminated block comment
// swallows the rest of the text. Statement separators are preserved.
func Normalize(text string) (string, []CatalogHit) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		hits    []CatalogHit
		out     strings.Builder
		cleaned strings.Builder
		inBlock bool
	)

	for lineNo, line := range strings.Split(text, "\n") {
		cleaned.Reset()

		for i := 0; i < len(line); {
			if inBlock {
				end := strings.Index(line[i:], "*/")
				if end < 0 {
					i = len(line)
					continue
				}
				inBlock = false
				i += end + 2
				continue
			}
			if strings.HasPrefix(line[i:], "/*") {
				inBlock = true
				i += 2
				continue
			}
			if strings.HasPrefix(line[i:], "--") {
				break
			}
			cleaned.WriteByte(line[i])
			i++
		}

		// Directives before a block comment opening on the same line still count.
		c := cleaned.String()
		for _, m := range setCatalogPattern.FindAllStringSubmatch(c, -1) {
			hits = append(hits, CatalogHit{Line: lineNo + 1, Catalog: strings.ToUpper(m[1])})
		}

		out.WriteString(c)
		out.WriteByte('\n')
	}

	return strings.Join(strings.Fields(out.String()), " "), hits
}

// SplitStatements splits normalized text on ';' and drops empty pieces.
// Semicolons inside string literals are not special.
func SplitStatements(sql string) []string {
	var stmts []string
	for _, piece := range strings.Split(sql, ";") {
		if s := strings.TrimSpace(piece); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
