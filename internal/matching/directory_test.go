package matching

import (
	"testing"

	"github.com/concilia-app/concilia-api/internal/domain"
)

func testRegistry() []domain.Customer {
	return []domain.Customer{
		{ID: "c1", Name: "Maria da Silva", Document: "123.456.789-00"},
		{ID: "c2", Name: "José Santos", Document: "111.222.333-44"},
		{ID: "c3", Name: "Empresa XPTO Ltda", Document: "12.345.678/0001-90"},
		{ID: "c1", Name: "Maria da Silva (dup)", Document: "123.456.789-00"},
		{ID: "c4", Name: "Ana", Document: "99"},
	}
}

func TestNewDirectory_DedupAndNormalize(t *testing.T) {
	d := NewDirectory(testRegistry())
	if d.Len() != 4 {
		t.Errorf("Len() = %d, want 4 after dedup", d.Len())
	}
	if c := d.ByDocument("12345678900"); c == nil || c.ID != "c1" {
		t.Error("document index should hold the first occurrence of c1")
	}
	// A 2-digit document never reaches the document index.
	if c := d.ByDocument("99"); c != nil {
		t.Error("short documents should not be indexed")
	}
}

func TestFindCustomerForPayer_DocumentFirst(t *testing.T) {
	d := NewDirectory(testRegistry())
	// The document wins even when the name points elsewhere.
	c := d.FindCustomerForPayer(domain.PayerInfo{Document: "11122233344", Name: "Maria da Silva"})
	if c == nil || c.ID != "c2" {
		t.Fatalf("expected c2 via document, got %+v", c)
	}
}

func TestFindCustomerForPayer_ExactName(t *testing.T) {
	d := NewDirectory(testRegistry())
	c := d.FindCustomerForPayer(domain.PayerInfo{Name: "josé santos"})
	if c == nil || c.ID != "c2" {
		t.Fatalf("expected c2 via exact normalized name, got %+v", c)
	}
}

func TestFindCustomerForPayer_FuzzyScan(t *testing.T) {
	d := NewDirectory(testRegistry())
	c := d.FindCustomerForPayer(domain.PayerInfo{NameFromDescription: "EMPRESA XPTO"})
	if c == nil || c.ID != "c3" {
		t.Fatalf("expected c3 via fuzzy scan, got %+v", c)
	}
}

func TestFindCustomerForPayer_NoMatch(t *testing.T) {
	d := NewDirectory(testRegistry())
	if c := d.FindCustomerForPayer(domain.PayerInfo{Name: "Desconhecido Total"}); c != nil {
		t.Errorf("expected nil for an unknown payer, got %+v", c)
	}
	if c := d.FindCustomerForPayer(domain.PayerInfo{}); c != nil {
		t.Errorf("expected nil for an empty payer, got %+v", c)
	}
}
