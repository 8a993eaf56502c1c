package matching

import (
	"testing"

	"github.com/concilia-app/concilia-api/internal/domain"
)

func entryFor(doc, name string, amount float64) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:               "entry-1",
		Type:             "income",
		Amount:           amount,
		CustomerName:     name,
		CustomerDocument: doc,
	}
}

func TestScore_AlwaysFourReasons(t *testing.T) {
	result := Score(domain.PayerInfo{}, 100, entryFor("", "", 100), nil, nil, DefaultWeights())
	if len(result.Reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d", len(result.Reasons))
	}
	fields := []string{"identity", "name", "contact", "amount"}
	for i, want := range fields {
		if result.Reasons[i].Field != want {
			t.Errorf("reason %d field = %q, want %q", i, result.Reasons[i].Field, want)
		}
	}
}

func TestScoreIdentity_DirectDocumentMatch(t *testing.T) {
	payer := domain.PayerInfo{Document: "12345678900"}
	entry := entryFor("123.456.789-00", "Maria", 100)

	result := Score(payer, 100, entry, nil, nil, DefaultWeights())
	if !result.Reasons[0].Matched {
		t.Error("identity should match on equal documents")
	}
	if result.Score < 40 {
		t.Errorf("score = %d, want at least the identity weight", result.Score)
	}
}

func TestScoreIdentity_DirectoryFallback(t *testing.T) {
	payer := domain.PayerInfo{Name: "Maria da Silva"}
	entry := entryFor("", "Maria da Silva", 100)
	customer := &domain.Customer{ID: "c1", Name: "Maria da Silva", Document: ""}

	result := Score(payer, 100, entry, customer, nil, DefaultWeights())
	if !result.Reasons[0].Matched {
		t.Error("identity should fall back to the directory customer name")
	}
}

func TestScoreIdentity_MappingFallback(t *testing.T) {
	payer := domain.PayerInfo{Document: "11122233344"}
	entry := entryFor("999.888.777-66", "Empresa XPTO", 100)
	mapping := &domain.CustomerMapping{
		PayerDocument:    "11122233344",
		CustomerName:     "Empresa XPTO",
		CustomerDocument: "99988877766",
	}

	result := Score(payer, 100, entry, nil, mapping, DefaultWeights())
	if !result.Reasons[0].Matched {
		t.Error("identity should fall back to the manual mapping document")
	}
}

func TestScoreIdentity_NoSignal(t *testing.T) {
	result := Score(domain.PayerInfo{Document: "11122233344"}, 100, entryFor("999.888.777-66", "Outro", 100), nil, nil, DefaultWeights())
	if result.Reasons[0].Matched {
		t.Error("identity should not match on different documents")
	}
	if result.Reasons[0].Details == "" {
		t.Error("unmatched identity should still explain itself")
	}
}

func TestScoreName_PartialCredit(t *testing.T) {
	payer := domain.PayerInfo{Name: "Maria da Silva"}
	entry := entryFor("", "MARIA DA SILVA", 100)

	result := Score(payer, 100, entry, nil, nil, DefaultWeights())
	if !result.Reasons[1].Matched {
		t.Error("identical names should match the name factor")
	}
	// Full similarity awards the whole name weight.
	if result.Score < 25 {
		t.Errorf("score = %d, want at least the name weight", result.Score)
	}
}

func TestScoreName_BelowThreshold(t *testing.T) {
	payer := domain.PayerInfo{Name: "Carlos Pereira"}
	entry := entryFor("", "Maria da Silva", 100)

	result := Score(payer, 100, entry, nil, nil, DefaultWeights())
	if result.Reasons[1].Matched {
		t.Error("unrelated names should not match")
	}
}

func TestScoreContact_Split(t *testing.T) {
	w := DefaultWeights()

	both := Score(domain.PayerInfo{Email: "a@b.com", PaymentKey: "k"}, 100, entryFor("", "", 999999), nil, nil, w)
	emailOnly := Score(domain.PayerInfo{Email: "a@b.com"}, 100, entryFor("", "", 999999), nil, nil, w)
	keyOnly := Score(domain.PayerInfo{PaymentKey: "k"}, 100, entryFor("", "", 999999), nil, nil, w)
	neither := Score(domain.PayerInfo{}, 100, entryFor("", "", 999999), nil, nil, w)

	if both.Score != w.Contact {
		t.Errorf("email+key score = %d, want full contact weight %d", both.Score, w.Contact)
	}
	if emailOnly.Score != 8 { // ceil(15 * 0.53)
		t.Errorf("email-only score = %d, want 8", emailOnly.Score)
	}
	if keyOnly.Score != 7 {
		t.Errorf("key-only score = %d, want 7", keyOnly.Score)
	}
	if neither.Score != 0 {
		t.Errorf("no-contact score = %d, want 0", neither.Score)
	}
}

func TestScoreAmount_Tolerance(t *testing.T) {
	w := DefaultWeights()

	within := Score(domain.PayerInfo{}, 1000, entryFor("", "", 1015), nil, nil, w)
	if !within.Reasons[3].Matched {
		t.Error("1.5% difference should be within the 2% tolerance")
	}

	outside := Score(domain.PayerInfo{}, 1000, entryFor("", "", 1025), nil, nil, w)
	if outside.Reasons[3].Matched {
		t.Error("2.5% difference should exceed the tolerance")
	}
}

func TestScoreAmount_SignInsensitive(t *testing.T) {
	result := Score(domain.PayerInfo{}, -500, entryFor("", "", 500), nil, nil, DefaultWeights())
	if !result.Reasons[3].Matched {
		t.Error("debit transactions should compare by absolute amount")
	}
}

func TestScore_EndToEndAuto(t *testing.T) {
	payer := domain.PayerInfo{Document: "12345678900", Name: "Maria da Silva"}
	entry := entryFor("123.456.789-00", "Maria da Silva", 500)

	result := Score(payer, 500, entry, nil, nil, DefaultWeights())
	// identity 40 + name 25 + amount 20 = 85, enough for auto.
	if result.Score < DefaultThresholds().High {
		t.Errorf("score = %d, want >= %d", result.Score, DefaultThresholds().High)
	}
	if tier := Classify(result.Score, false, DefaultThresholds()); tier != domain.TierAuto {
		t.Errorf("tier = %q, want auto", tier)
	}
}
