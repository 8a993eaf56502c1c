package matching

import (
	"fmt"
	"math"

	"github.com/concilia-app/concilia-api/internal/domain"
)

// Factor similarity cutoffs.
const (
	identityFuzzyThreshold = 0.7
	nameFuzzyThreshold     = 0.4
	amountTolerance        = 0.02
)

// Weights are the per-tenant factor weights. Callers keep the sum at 100;
// the scorer does not renormalize, so a different sum shifts every match
// outcome.
type Weights struct {
	Identity int
	Name     int
	Contact  int
	Amount   int
}

// DefaultWeights returns the stock 40/25/15/20 split.
func DefaultWeights() Weights {
	return Weights{Identity: 40, Name: 25, Contact: 15, Amount: 20}
}

// Sum returns the maximum attainable score under these weights.
func (w Weights) Sum() int { return w.Identity + w.Name + w.Contact + w.Amount }

// Score rates how well one payer/transaction pairs with one ledger entry.
// customer is the directory hit for the payer (may be nil); mapping is the
// manual link for the payer's document (may be nil). The reasons list
// always holds exactly four entries, one per factor, matched or not.
func Score(payer domain.PayerInfo, txAmount float64, entry domain.LedgerEntry, customer *domain.Customer, mapping *domain.CustomerMapping, w Weights) domain.MatchResult {
	reasons := make([]domain.MatchReason, 0, 4)
	total := 0

	identity := scoreIdentity(payer, entry, customer, mapping, w.Identity)
	total += awarded(identity, w.Identity)
	reasons = append(reasons, identity)

	name, nameScore := scoreName(payer, entry, w.Name)
	total += nameScore
	reasons = append(reasons, name)

	contact, contactScore := scoreContact(payer, w.Contact)
	total += contactScore
	reasons = append(reasons, contact)

	amount := scoreAmount(txAmount, entry.Amount, w.Amount)
	total += awarded(amount, w.Amount)
	reasons = append(reasons, amount)

	return domain.MatchResult{Entry: entry, Score: total, Reasons: reasons}
}

func awarded(r domain.MatchReason, weight int) int {
	if r.Matched {
		return weight
	}
	return 0
}

// scoreIdentity walks the fallback chain: direct document equality, then
// the directory customer, then the manual mapping. First success wins.
func scoreIdentity(payer domain.PayerInfo, entry domain.LedgerEntry, customer *domain.Customer, mapping *domain.CustomerMapping, weight int) domain.MatchReason {
	r := domain.MatchReason{Field: "identity", Weight: weight}
	entryDoc := NormalizeDocument(entry.CustomerDocument)
	entryName := NormalizeName(entry.CustomerName)

	if len(payer.Document) >= MinDocumentLen && len(entryDoc) >= MinDocumentLen && payer.Document == entryDoc {
		r.Matched = true
		r.Details = fmt.Sprintf("documento do pagador confere (...%s)", lastDigits(payer.Document, 4))
		return r
	}

	if customer != nil {
		if len(customer.Document) >= MinDocumentLen && customer.Document == entryDoc {
			r.Matched = true
			r.Details = fmt.Sprintf("cliente %s identificado pelo documento", customer.Name)
			return r
		}
		custName := NormalizeName(customer.Name)
		if custName != "" && (custName == entryName || FuzzyNameMatch(customer.Name, entry.CustomerName) >= identityFuzzyThreshold) {
			r.Matched = true
			r.Details = fmt.Sprintf("cliente %s identificado pelo nome", customer.Name)
			return r
		}
	}

	if mapping != nil {
		mapDoc := NormalizeDocument(mapping.CustomerDocument)
		if len(mapDoc) >= MinDocumentLen && len(entryDoc) >= MinDocumentLen && mapDoc == entryDoc {
			r.Matched = true
			r.Details = fmt.Sprintf("vínculo manual com %s (documento)", mapping.CustomerName)
			return r
		}
		if NormalizeName(mapping.CustomerName) == entryName && entryName != "" {
			r.Matched = true
			r.Details = fmt.Sprintf("vínculo manual com %s (nome)", mapping.CustomerName)
			return r
		}
	}

	if payer.Document != "" {
		r.Details = fmt.Sprintf("documento ...%s não confere com o lançamento", lastDigits(payer.Document, 4))
	} else {
		r.Details = "identidade do pagador indisponível"
	}
	return r
}

// scoreName gives partial credit proportional to the fuzzy similarity of
// the best payer name against the entry's customer name.
func scoreName(payer domain.PayerInfo, entry domain.LedgerEntry, weight int) (domain.MatchReason, int) {
	r := domain.MatchReason{Field: "name", Weight: weight}
	payerName := payer.BestName()
	if payerName == "" || entry.CustomerName == "" {
		r.Details = "nome do pagador indisponível"
		return r, 0
	}

	sim := FuzzyNameMatch(payerName, entry.CustomerName)
	if sim < nameFuzzyThreshold {
		r.Details = fmt.Sprintf("similaridade %.0f%% abaixo do mínimo", sim*100)
		return r, 0
	}
	r.Matched = true
	r.Details = fmt.Sprintf("similaridade %.0f%% entre %q e %q", sim*100, payerName, entry.CustomerName)
	return r, int(math.Round(sim * float64(weight)))
}

// scoreContact awards two independent sub-signals: having an email and
// having a payment key. Either, both, or neither may contribute.
func scoreContact(payer domain.PayerInfo, weight int) (domain.MatchReason, int) {
	r := domain.MatchReason{Field: "contact", Weight: weight}
	emailPart := int(math.Ceil(float64(weight) * 0.53))
	keyPart := weight - emailPart

	score := 0
	if payer.Email != "" {
		score += emailPart
	}
	if payer.PaymentKey != "" {
		score += keyPart
	}

	switch {
	case score == 0:
		r.Details = "sem email ou chave de pagamento"
	case payer.Email != "" && payer.PaymentKey != "":
		r.Matched = true
		r.Details = "email e chave de pagamento presentes"
	case payer.Email != "":
		r.Matched = true
		r.Details = "email presente"
	default:
		r.Matched = true
		r.Details = "chave de pagamento presente"
	}
	return r, score
}

// scoreAmount is all-or-nothing: the absolute difference must be within
// 2% of the larger absolute amount.
func scoreAmount(txAmount, entryAmount float64, weight int) domain.MatchReason {
	r := domain.MatchReason{Field: "amount", Weight: weight}
	a, b := math.Abs(txAmount), math.Abs(entryAmount)
	larger := math.Max(a, b)
	if larger == 0 {
		r.Details = "valores zerados"
		return r
	}

	diff := math.Abs(a - b)
	if diff <= amountTolerance*larger {
		r.Matched = true
		r.Details = fmt.Sprintf("valores compatíveis (diferença %.2f%%)", diff/larger*100)
	} else {
		r.Details = fmt.Sprintf("diferença de %.2f%% acima da tolerância", diff/larger*100)
	}
	return r
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
