package exchange

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// Code is a validated, uppercase ISO 4217 currency code. Construct through
// ParseCode so that invalid strings never reach the data model.
type Code string

// ParseCode validates s against the ISO 4217 table and returns the canonical
// uppercase code.
func ParseCode(s string) (Code, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrencyCode, s)
	}
	return Code(unit.String()), nil
}

// MustCode is ParseCode for codes known at compile time; it panics on
// invalid input and is intended for tests and table literals.
func MustCode(s string) Code {
	c, err := ParseCode(s)
	if err != nil {
		panic(err)
	}
	return c
}

// CurrencyPair is an ordered (base, quote) pair of currency codes.
type CurrencyPair struct {
	Base  Code `json:"base"`
	Quote Code `json:"quote"`
}

// NewPair validates both codes and returns the pair.
func NewPair(base, quote string) (CurrencyPair, error) {
	b, err := ParseCode(base)
	if err != nil {
		return CurrencyPair{}, err
	}
	q, err := ParseCode(quote)
	if err != nil {
		return CurrencyPair{}, err
	}
	return CurrencyPair{Base: b, Quote: q}, nil
}

// Identity reports whether base and quote are the same currency. Identity
// pairs resolve to rate 1 without touching the provider or the cache.
func (p CurrencyPair) Identity() bool {
	return p.Base == p.Quote
}

func (p CurrencyPair) String() string {
	return string(p.Base) + "/" + string(p.Quote)
}
