// Package textutils provides text normalization helpers for merchant names.
package textutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CollapseSpaces trims s and replaces every run of Unicode white space with a
// single ASCII space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MerchantKey folds a merchant or description string into the key used for
// review grouping, the merchant cache and duplicate fingerprints: white space
// collapsed, diacritics removed, Unicode case-folded.
// "  Café  AROMA " and "cafe aroma" share the key "cafe aroma".
func MerchantKey(name string) string {
	collapsed := CollapseSpaces(name)
	if collapsed == "" {
		return ""
	}

	// Transformers carry state; build a fresh chain per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	folded, _, err := transform.String(t, collapsed)
	if err != nil {
		return strings.ToLower(collapsed)
	}
	return folded
}

// DisplayName trims a merchant name for presentation without changing case.
func DisplayName(name string) string {
	return CollapseSpaces(name)
}
