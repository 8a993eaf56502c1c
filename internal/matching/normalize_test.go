package matching

import "testing"

func TestNormalizeDocument(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123.456.789-00", "12345678900"},
		{"12.345.678/0001-90", "12345678000190"},
		{"12345678900", "12345678900"},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDocument(tt.in); got != tt.want {
			t.Errorf("NormalizeDocument(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDocument_Idempotent(t *testing.T) {
	once := NormalizeDocument("123.456.789-00")
	if twice := NormalizeDocument(once); twice != once {
		t.Errorf("second pass changed the result: %q -> %q", once, twice)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"José da Silva", "JOSE DA SILVA"},
		{"  maria   SANTOS  ", "MARIA SANTOS"},
		{"João D'Ávila & Cia.", "JOAO DAVILA CIA"},
		{"CONCEIÇÃO", "CONCEICAO"},
		{"123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeName_AccentAndCaseInsensitive(t *testing.T) {
	if NormalizeName("José da Silva") != NormalizeName("JOSE DA SILVA") {
		t.Error("accented and plain spellings should normalize identically")
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	once := NormalizeName("José   da  Silva")
	if twice := NormalizeName(once); twice != once {
		t.Errorf("second pass changed the result: %q -> %q", once, twice)
	}
}
