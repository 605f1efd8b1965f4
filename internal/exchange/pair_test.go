package exchange

import (
	"errors"
	"testing"
)

func TestParseCode(t *testing.T) {
	for input, want := range map[string]Code{
		"USD": "USD",
		"usd": "USD",
		"eUr": "EUR",
	} {
		got, err := ParseCode(input)
		if err != nil {
			t.Fatalf("ParseCode(%q) failed: %v", input, err)
		}
		if got != want {
			t.Errorf("ParseCode(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestParseCodeRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "US", "DOLLARS", "123", "XXX1"} {
		if _, err := ParseCode(input); !errors.Is(err, ErrInvalidCurrencyCode) {
			t.Errorf("ParseCode(%q): expected ErrInvalidCurrencyCode, got %v", input, err)
		}
	}
}

func TestNewPair(t *testing.T) {
	pair, err := NewPair("usd", "eur")
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}
	if pair.String() != "USD/EUR" {
		t.Errorf("unexpected pair rendering: %s", pair)
	}
	if pair.Identity() {
		t.Errorf("USD/EUR is not an identity pair")
	}

	identity, err := NewPair("EUR", "eur")
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}
	if !identity.Identity() {
		t.Errorf("EUR/EUR must be an identity pair")
	}
}

func TestParseStrategy(t *testing.T) {
	for input, want := range map[string]Strategy{
		"":      StrategyAuto,
		"auto":  StrategyAuto,
		"live":  StrategyLive,
		"cache": StrategyCache,
	} {
		got, err := ParseStrategy(input)
		if err != nil {
			t.Fatalf("ParseStrategy(%q) failed: %v", input, err)
		}
		if got != want {
			t.Errorf("ParseStrategy(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseStrategy("eager"); err == nil {
		t.Errorf("expected error for unknown strategy")
	}
}
