package money

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gopenny/gopenny/internal/locale"
)

// Format renders the amount with the currency symbol conventions of the
// given canonical locale token.
func Format(m Money, tok locale.Token) (string, error) {
	tag, err := language.Parse(tok.BCP47())
	if err != nil {
		return "", fmt.Errorf("unformattable locale %s: %w", tok, err)
	}
	unit, err := currency.ParseISO(string(m.Code()))
	if err != nil {
		return "", err
	}

	// The display layer works in float; exactness lives in the decimal
	// amount, not in its rendering.
	f, _ := m.Amount().Float64()
	p := message.NewPrinter(tag)
	return p.Sprintf("%v", currency.Symbol(unit.Amount(f))), nil
}
