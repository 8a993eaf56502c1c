package matching

import (
	"regexp"
	"strings"

	"github.com/concilia-app/concilia-api/internal/domain"
)

// descriptionPatterns cover the transfer-description conventions Brazilian
// banks emit. Tried in order; the first match wins. The capture group is
// the candidate payer name.
var descriptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^PIX RECEBIDO (?:DE )?(.+)$`),
	regexp.MustCompile(`^RECEBIMENTO PIX (?:DE )?(.+)$`),
	regexp.MustCompile(`^PIX (?:DE|TRANSF(?:ERENCIA)? RECEBIDA) (.+)$`),
	regexp.MustCompile(`^TED RECEBIDA (?:DE )?(.+)$`),
	regexp.MustCompile(`^(?:CREDITO )?TED (?:DE )?(.+)$`),
	regexp.MustCompile(`^TRANSF(?:ERENCIA)? RECEBIDA (?:DE )?(.+)$`),
	regexp.MustCompile(`^DOC (?:DE )?(.+)$`),
	regexp.MustCompile(`^DEPOSITO (?:DE )?(.+)$`),
}

var (
	trailingDate  = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}(?:/\d{2,4})?$`)
	trailingTime  = regexp.MustCompile(`\s+\d{1,2}:\d{2}(?::\d{2})?$`)
	trailingPunct = regexp.MustCompile(`[\s\-.,;:*]+$`)
	allDigits     = regexp.MustCompile(`^[\d\s./-]+$`)
	alphaToken    = regexp.MustCompile(`[A-ZÀ-Ü]{2,}`)
)

// ExtractPayerInfo derives the payer identity from a transaction's
// structured payment metadata and its free-text description. Pure; the
// result is recomputed on every pipeline run.
func ExtractPayerInfo(meta *domain.PaymentMetadata, description string) domain.PayerInfo {
	var p domain.PayerInfo

	if meta != nil {
		if doc := NormalizeDocument(meta.PayerDocument); len(doc) >= MinDocumentLen {
			p.Document = doc
		}
		if name := strings.TrimSpace(meta.PayerName); name != "" && !strings.EqualFold(name, "null") && len(name) >= 2 {
			p.Name = name
		}
		if meta.Email != "" {
			p.Email = strings.ToLower(strings.TrimSpace(meta.Email))
		}
		if key := strings.TrimSpace(meta.PixKey); key != "" {
			p.PaymentKey = key
			// A pix key doubles as a document (CPF/CNPJ keys) or an email.
			if p.Document == "" {
				if digits := NormalizeDocument(key); len(digits) == 11 || len(digits) == 14 {
					p.Document = digits
				}
			}
			if p.Email == "" && strings.Contains(key, "@") {
				p.Email = strings.ToLower(key)
			}
		}
	}

	p.NameFromDescription = nameFromDescription(description)
	return p
}

// nameFromDescription applies the prefix heuristics to a raw description.
// Lowest-trust signal: only consulted when no metadata name exists.
func nameFromDescription(description string) string {
	text := strings.ToUpper(collapseWhitespace(description))
	if text == "" {
		return ""
	}

	for _, pat := range descriptionPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := m[1]
		for {
			trimmed := trailingDate.ReplaceAllString(candidate, "")
			trimmed = trailingTime.ReplaceAllString(trimmed, "")
			trimmed = trailingPunct.ReplaceAllString(trimmed, "")
			if trimmed == candidate {
				break
			}
			candidate = trimmed
		}
		if len(candidate) < 4 || allDigits.MatchString(candidate) || !alphaToken.MatchString(candidate) {
			return ""
		}
		return candidate
	}
	return ""
}
