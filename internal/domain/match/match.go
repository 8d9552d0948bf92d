// Package match holds the text normalization shared by synthetic campaign
// identifiers and the read-time join of funnel event keys to campaign names.
//
// Matching is a heuristic. Campaign names are edited by hand and carry
// prefixes, suffixes and punctuation that the local event keys do not, so two
// strings match when either normalized form contains the other. Short keys
// can produce false positives; there is deliberately no edit-distance step.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SyntheticPrefix marks campaign identifiers derived from a normalized name.
const SyntheticPrefix = "name:"

// Normalize strips diacritics, lowercases and removes every character that
// is not a letter or digit. Letters outside Latin scripts are kept, so
// "Скидки 2025" and "Акция 2025" stay distinct.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Matches reports whether the normalized event key and campaign name contain
// one another. Empty normalized inputs never match.
func Matches(eventKey, campaignName string) bool {
	a, b := Normalize(eventKey), Normalize(campaignName)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// SyntheticID derives the deterministic fallback identifier for a campaign
// the provider reported without one.
func SyntheticID(name string) string {
	return SyntheticPrefix + Normalize(name)
}

// IsSynthetic reports whether id was produced by SyntheticID.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, SyntheticPrefix)
}
