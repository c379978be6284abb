package lineage

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DecodeText turns raw file bytes into text on a best-effort basis: invalid
// UTF-8 sequences and byte order marks are dropped instead of failing.
func DecodeText(b []byte) string {
	t := transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return r == '\uFEFF' || r == '\uFFFD'
		})),
	)
	out, _, err := transform.Bytes(t, b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
