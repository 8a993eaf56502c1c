// Package matching implements the reconciliation pipeline: payer identity
// extraction, the customer directory, weighted multi-factor scoring,
// confidence classification, and the greedy assignment pass. Everything in
// this package is pure; all I/O lives in the service and infra layers so
// the synchronous query path and the precompute worker share one
// implementation.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinDocumentLen is the shortest document accepted for identity matching
// (CPF has 11 digits; CNPJ has 14).
const MinDocumentLen = 11

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeDocument keeps only the digit characters of a document.
// Idempotent.
func NormalizeDocument(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeName uppercases, strips diacritics, drops everything that is
// not a letter or a space, and collapses runs of whitespace. Idempotent
// and case/diacritic-insensitive.
func NormalizeName(s string) string {
	folded, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToUpper(folded)

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range folded {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// collapseWhitespace squashes runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
