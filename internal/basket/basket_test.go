package basket

import (
	"bytes"
	"strings"
	"testing"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123", "0000123"},
		{"123.0", "0000123"},
		{"0000123", "0000123"},
		{" 45 ", "0000045"},
		{"0111001", "0111001"},
	}
	for _, tt := range tests {
		if got := NormalizeCode(tt.in); got != tt.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	// Differently formatted representations of the same code must compare
	// equal after normalization.
	if NormalizeCode("123") != NormalizeCode("123.0") || NormalizeCode("123") != NormalizeCode("0000123") {
		t.Error("equivalent codes did not normalize to the same value")
	}
}

func TestCategoryFor(t *testing.T) {
	if got := CategoryFor("0111001"); got != "Gıda" {
		t.Errorf("expected Gıda for 01 prefix, got %q", got)
	}
	if got := CategoryFor("0711002"); got != "Ulaşım" {
		t.Errorf("expected Ulaşım for 07 prefix, got %q", got)
	}
	if got := CategoryFor("9911001"); got != "Diğer" {
		t.Errorf("expected Diğer for unmapped prefix, got %q", got)
	}
}

func TestLoadSniffsDriftedColumns(t *testing.T) {
	sheet := strings.Join([]string{
		"KOD,Madde Adı,AGIRLIK_2025,url,Manuel Fiyat",
		"111001,Süt,\"2,5\",https://www.migros.com.tr/sut,",
		"123.0,Ekmek,,https://market.example/ekmek,\"45,50\"",
		",Eksik,1,https://market.example/yok,",
	}, "\n")

	items, err := Load(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("failed to load basket: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items (row without code skipped), got %d", len(items))
	}

	sut := items[0]
	if sut.Code != "0111001" {
		t.Errorf("expected normalized code 0111001, got %q", sut.Code)
	}
	if sut.Name != "Süt" {
		t.Errorf("expected name Süt, got %q", sut.Name)
	}
	if sut.Weight != 2.5 {
		t.Errorf("expected weight 2.5, got %v", sut.Weight)
	}
	if sut.Category != "Gıda" {
		t.Errorf("expected category Gıda, got %q", sut.Category)
	}

	ekmek := items[1]
	if ekmek.Code != "0000123" {
		t.Errorf("expected normalized code 0000123, got %q", ekmek.Code)
	}
	if ekmek.Weight != 1 {
		t.Errorf("expected default weight 1, got %v", ekmek.Weight)
	}
	if ekmek.ManualPrice != 45.50 {
		t.Errorf("expected manual price 45.50, got %v", ekmek.ManualPrice)
	}
}

func TestLoadMissingRequiredColumns(t *testing.T) {
	sheet := "Madde Adı,Agirlik\nSüt,1\n"
	if _, err := Load(strings.NewReader(sheet)); err == nil {
		t.Fatal("expected error for sheet without Kod/URL columns")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	items := []Item{
		{Code: "0111001", Name: "Süt", Category: "Gıda", Weight: 2.5, URL: "https://x.example/sut", ManualPrice: 10},
		{Code: "0411003", Name: "Kira", Category: "Konut", Weight: 1, URL: "https://x.example/kira"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, items); err != nil {
		t.Fatalf("failed to write basket: %v", err)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("failed to reload basket: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loaded))
	}
	if loaded[0].Code != "0111001" || loaded[0].Weight != 2.5 || loaded[0].ManualPrice != 10 {
		t.Errorf("first item did not round-trip: %+v", loaded[0])
	}
}

func TestByURL(t *testing.T) {
	items := []Item{
		{Code: "0111001", URL: "https://x.example/sut"},
		{Code: "0111002", URL: "https://x.example/ekmek"},
	}
	m := ByURL(items)
	if got, ok := m["https://x.example/ekmek"]; !ok || got.Code != "0111002" {
		t.Errorf("URL lookup failed: %+v", got)
	}
}
