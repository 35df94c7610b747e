// Package textmatch provides name normalization and a pluggable string
// similarity used by the candidate prefilter and the scoring engine. The
// comparison strategy is a pure function so it can be swapped without
// touching scoring logic.
package textmatch

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SimilarityFunc maps two strings to a ratio in [0,1].
type SimilarityFunc func(a, b string) float64

// foldDiacritics strips combining marks after NFD decomposition, so that
// "Škofja Loka" and "Skofja Loka" normalize identically.
var foldDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases, folds diacritics and collapses whitespace. Listing
// settlements often carry district suffixes ("Ljubljana - Center"); the part
// before the first dash is the settlement proper.
func Normalize(s string) string {
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// MainSettlement trims district qualifiers from a listing settlement name.
func MainSettlement(s string) string {
	if i := strings.Index(s, "-"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Similarity is the default SimilarityFunc: normalized Levenshtein ratio
// over normalized input, with containment treated as a full match.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb || strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 1
	}
	return levenshtein.Similarity(na, nb, nil)
}
