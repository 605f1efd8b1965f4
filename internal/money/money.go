// Package money provides a currency-safe monetary value. Arithmetic across
// differing currencies fails instead of silently mixing units; decimal
// correctness is delegated to shopspring/decimal.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gopenny/gopenny/internal/exchange"
)

// ErrCurrencyMismatch indicates arithmetic or comparison across differing
// currencies.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrDivisionByZero indicates division of money by zero.
var ErrDivisionByZero = errors.New("cannot divide money by zero")

// Money is an amount in a single validated currency. The zero value is not
// usable; construct through New, NewFromString or Zero.
type Money struct {
	amount decimal.Decimal
	code   exchange.Code
}

// New builds Money from an amount and a validated code.
func New(amount decimal.Decimal, code exchange.Code) Money {
	return Money{amount: amount, code: code}
}

// NewFromString parses both the amount and the currency code.
func NewFromString(amount, code string) (Money, error) {
	c, err := exchange.ParseCode(code)
	if err != nil {
		return Money{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return Money{amount: d, code: c}, nil
}

// Zero returns zero money in the given currency.
func Zero(code exchange.Code) Money {
	return Money{amount: decimal.Zero, code: code}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Code() exchange.Code    { return m.code }

func (m Money) String() string {
	return string(m.code) + " " + m.amount.String()
}

// Add returns m + other; both must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency("addition", other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), code: m.code}, nil
}

// Sub returns m - other; both must share a currency.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency("subtraction", other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(other.amount), code: m.code}, nil
}

// Mul scales m by a decimal factor.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), code: m.code}
}

// Div divides m by a decimal divisor.
func (m Money) Div(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	return Money{amount: m.amount.Div(divisor), code: m.code}, nil
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), code: m.code}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), code: m.code}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// Cmp compares two amounts in the same currency: -1, 0 or 1.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency("comparison", other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports value equality: same currency and same amount.
func (m Money) Equal(other Money) bool {
	return m.code == other.code && m.amount.Equal(other.amount)
}

func (m Money) sameCurrency(op string, other Money) error {
	if m.code != other.code {
		return fmt.Errorf("%w: %s of %s and %s", ErrCurrencyMismatch, op, m.code, other.code)
	}
	return nil
}
