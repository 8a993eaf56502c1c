package matching

import (
	"testing"

	"github.com/concilia-app/concilia-api/internal/domain"
)

func TestExtractPayerInfo_FromMetadata(t *testing.T) {
	meta := &domain.PaymentMetadata{
		PayerDocument: "123.456.789-00",
		PayerName:     "Maria da Silva",
		Email:         "Maria@Example.com",
		PixKey:        "maria-key-uuid",
	}

	p := ExtractPayerInfo(meta, "PIX RECEBIDO MARIA DA SILVA")

	if p.Document != "12345678900" {
		t.Errorf("Document = %q, want normalized digits", p.Document)
	}
	if p.Name != "Maria da Silva" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Email != "maria@example.com" {
		t.Errorf("Email = %q, want lowercased", p.Email)
	}
	if p.PaymentKey != "maria-key-uuid" {
		t.Errorf("PaymentKey = %q", p.PaymentKey)
	}
}

func TestExtractPayerInfo_RejectsJunkName(t *testing.T) {
	for _, name := range []string{"", "null", "NULL", "x"} {
		p := ExtractPayerInfo(&domain.PaymentMetadata{PayerName: name}, "")
		if p.Name != "" {
			t.Errorf("PayerName %q should be rejected, got %q", name, p.Name)
		}
	}
}

func TestExtractPayerInfo_ShortDocumentRejected(t *testing.T) {
	p := ExtractPayerInfo(&domain.PaymentMetadata{PayerDocument: "12345"}, "")
	if p.Document != "" {
		t.Errorf("short document should be rejected, got %q", p.Document)
	}
}

func TestExtractPayerInfo_PixKeyAsDocument(t *testing.T) {
	p := ExtractPayerInfo(&domain.PaymentMetadata{PixKey: "123.456.789-00"}, "")
	if p.Document != "12345678900" {
		t.Errorf("CPF pix key should populate Document, got %q", p.Document)
	}

	p = ExtractPayerInfo(&domain.PaymentMetadata{PixKey: "12.345.678/0001-90"}, "")
	if p.Document != "12345678000190" {
		t.Errorf("CNPJ pix key should populate Document, got %q", p.Document)
	}
}

func TestExtractPayerInfo_PixKeyAsEmail(t *testing.T) {
	p := ExtractPayerInfo(&domain.PaymentMetadata{PixKey: "Maria@Example.com"}, "")
	if p.Email != "maria@example.com" {
		t.Errorf("email pix key should populate Email lowercased, got %q", p.Email)
	}
}

func TestExtractPayerInfo_MetadataWins(t *testing.T) {
	meta := &domain.PaymentMetadata{
		PayerDocument: "11122233344",
		Email:         "set@example.com",
		PixKey:        "999.888.777-66",
	}
	p := ExtractPayerInfo(meta, "")
	if p.Document != "11122233344" {
		t.Errorf("pix key must not override the metadata document, got %q", p.Document)
	}
	if p.Email != "set@example.com" {
		t.Errorf("pix key must not override the metadata email, got %q", p.Email)
	}
}

func TestNameFromDescription(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"PIX RECEBIDO MARIA DA SILVA 12/01", "MARIA DA SILVA"},
		{"PIX RECEBIDO DE JOAO PEREIRA", "JOAO PEREIRA"},
		{"TED RECEBIDA DE EMPRESA XPTO LTDA 01/02/2026", "EMPRESA XPTO LTDA"},
		{"CREDITO TED ACME CONSULTORIA 14:32", "ACME CONSULTORIA"},
		{"TRANSFERENCIA RECEBIDA CARLOS SOUZA - ", "CARLOS SOUZA"},
		{"DEPOSITO DE ANA LIMA 5/3 10:00", "ANA LIMA"},
		{"recebimento pix de pedro alves", "PEDRO ALVES"},
		{"PIX RECEBIDO 123.456.789-00", ""},
		{"PIX RECEBIDO AB", ""},
		{"COMPRA NO DEBITO SUPERMERCADO", ""},
		{"", ""},
	}
	for _, tt := range tests {
		p := ExtractPayerInfo(nil, tt.description)
		if p.NameFromDescription != tt.want {
			t.Errorf("nameFromDescription(%q) = %q, want %q", tt.description, p.NameFromDescription, tt.want)
		}
	}
}

func TestBestName_PrefersMetadata(t *testing.T) {
	p := ExtractPayerInfo(
		&domain.PaymentMetadata{PayerName: "Maria da Silva"},
		"PIX RECEBIDO OUTRO NOME QUALQUER",
	)
	if p.BestName() != "Maria da Silva" {
		t.Errorf("BestName() = %q, want the metadata name", p.BestName())
	}
}
