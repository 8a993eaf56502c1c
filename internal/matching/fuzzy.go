package matching

import "strings"

// Banking jargon and connective particles that carry no identity signal.
// Single-letter tokens are dropped by rule, so "E" never reaches the set.
var noiseTokens = map[string]struct{}{
	"PIX": {}, "TED": {}, "DOC": {}, "TEV": {},
	"TRANSF": {}, "TRANSFERENCIA": {}, "DEPOSITO": {},
	"PAGAMENTO": {}, "PGTO": {}, "PAG": {},
	"RECEBIDO": {}, "RECEBIDA": {}, "ENVIADO": {}, "ENVIADA": {},
	"CREDITO": {}, "DEBITO": {},
	"DE": {}, "DA": {}, "DO": {}, "DAS": {}, "DOS": {},
}

// FuzzyNameMatch scores the similarity of two names in [0, 1]. Both sides
// are normalized first, so the function is symmetric and insensitive to
// case, diacritics, and punctuation.
//
//	1.0   identical normalized strings
//	0.85  one contains the other
//	0.45  one side reduces to a single token found on the other side
//	else  tokens of the smaller set found in the larger, over the larger
//	      set's size
func FuzzyNameMatch(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.85
	}

	ta, tb := nameTokens(na), nameTokens(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	if len(ta) == 1 || len(tb) == 1 {
		single, other := ta, tb
		if len(tb) == 1 {
			single, other = tb, ta
		}
		for tok := range single {
			if _, ok := other[tok]; ok {
				return 0.45
			}
		}
		return 0
	}

	smaller, larger := ta, tb
	if len(tb) < len(ta) {
		smaller, larger = tb, ta
	}
	matched := 0
	for tok := range smaller {
		if _, ok := larger[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(larger))
}

// nameTokens splits a normalized name into its meaningful words.
func nameTokens(normalized string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		if len(w) < 2 {
			continue
		}
		if _, noise := noiseTokens[w]; noise {
			continue
		}
		tokens[w] = struct{}{}
	}
	return tokens
}
