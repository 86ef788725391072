package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Áp phích" -> "Ap phich").
// The Vietnamese "đ" is a distinct letter rather than a combining mark and is mapped explicitly.
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return strings.NewReplacer("đ", "d", "Đ", "D").Replace(result)
}

// FoldName normalizes a marker name for comparison (lowercase, no diacritics, single spaces).
func FoldName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}
