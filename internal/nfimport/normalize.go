package nfimport

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName produces the canonical form of an ingredient or item name used
// for matching and fingerprints: diacritics stripped, whitespace collapsed,
// upper-cased, trimmed.
func NormalizeName(value string) string {
	s, _, _ := transform.String(stripMarks, strings.TrimSpace(value))
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToUpper(s)
}

// NormalizeUnit upper-cases and trims a unit code, returning nil for blank.
func NormalizeUnit(value *string) *string {
	if value == nil {
		return nil
	}
	u := strings.ToUpper(strings.TrimSpace(*value))
	if u == "" {
		return nil
	}
	return &u
}
