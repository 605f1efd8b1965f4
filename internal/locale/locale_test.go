package locale

import (
	"errors"
	"testing"
)

func TestResolveCaseAndOrderInsensitive(t *testing.T) {
	want := Token{Language: "en", Region: "US"}
	for _, input := range []string{"en_US", "EN_us", "US_EN", "en-us", "en us"} {
		got, err := Resolve(input)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", input, err)
		}
		if got != want {
			t.Errorf("Resolve(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestResolveSwappedOrder(t *testing.T) {
	got, err := Resolve("DE_de")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Language != "de" || got.Region != "DE" {
		t.Errorf("unexpected token: %v", got)
	}
}

func TestResolveCountryAlias(t *testing.T) {
	cases := map[string]Token{
		"us":  {Language: "en", Region: "US"},
		"USA": {Language: "en", Region: "US"},
		"uk":  {Language: "en", Region: "GB"},
		"jp":  {Language: "ja", Region: "JP"},
	}
	for input, want := range cases {
		got, err := Resolve(input)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", input, err)
		}
		if got != want {
			t.Errorf("Resolve(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestResolveBareLanguageDefaultsRegion(t *testing.T) {
	got, err := Resolve("fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "fr_FR" {
		t.Errorf("Resolve(fr) = %s, want fr_FR", got)
	}
}

func TestResolveUnknownInputFails(t *testing.T) {
	_, err := Resolve("klingon")
	if err == nil {
		t.Fatalf("expected error for unknown locale")
	}
	if !errors.Is(err, ErrInvalidLocale) {
		t.Errorf("error does not match ErrInvalidLocale: %v", err)
	}
}

func TestResolveUnknownPairCarriesSuggestions(t *testing.T) {
	_, err := Resolve("enn_US")
	if err == nil {
		t.Fatalf("expected error")
	}
	var locErr *InvalidLocaleError
	if !errors.As(err, &locErr) {
		t.Fatalf("expected *InvalidLocaleError, got %T", err)
	}
	if locErr.Input != "enn_US" {
		t.Errorf("unexpected input: %q", locErr.Input)
	}
	found := false
	for _, s := range locErr.Suggestions {
		if s == "en" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected suggestion \"en\", got %v", locErr.Suggestions)
	}
}

func TestResolveEmptyInputFails(t *testing.T) {
	if _, err := Resolve(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := Resolve("___"); err == nil {
		t.Fatalf("expected error for separator-only input")
	}
}

func TestTokenRendering(t *testing.T) {
	tok := Token{Language: "pt", Region: "BR"}
	if tok.String() != "pt_BR" {
		t.Errorf("String() = %q", tok.String())
	}
	if tok.BCP47() != "pt-BR" {
		t.Errorf("BCP47() = %q", tok.BCP47())
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"en", "en", 0},
		{"en", "es", 1},
		{"en", "fr", 2},
		{"enn", "en", 1},
	}
	for _, c := range cases {
		if got := editDistance(c.a, c.b); got != c.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
