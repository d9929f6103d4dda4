// Package money provides an exact minor-unit money type for refund math.
//
// Amounts are carried in minor units (cents/rappen) so arithmetic is exact;
// the currencies in scope all use two decimal places.
package money

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrNegativeAmount   = errors.New("money: amount must not be negative")
	ErrInvalidCurrency  = errors.New("money: currency must be a 3-letter ISO code")
)

// Money is an amount in minor units paired with an ISO 4217 currency code.
type Money struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
}

// New creates a Money value. Currency is uppercased.
func New(cents int64, currency string) Money {
	return Money{Cents: cents, Currency: strings.ToUpper(currency)}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return New(0, currency)
}

// Validate checks the amount is non-negative and the currency well-formed.
func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	if len(m.Currency) != 3 {
		return ErrInvalidCurrency
	}
	for _, c := range m.Currency {
		if c < 'A' || c > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Cents == 0 }

// Add returns m + other. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Cents: m.Cents + other.Cents, Currency: m.Currency}, nil
}

// Sub returns m - other. Currencies must match.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Cents: m.Cents - other.Cents, Currency: m.Currency}, nil
}

// Percentage returns pct% of m, rounded half-up to the nearest minor unit.
// pct must be in [0, 100].
func (m Money) Percentage(pct int) Money {
	if pct <= 0 {
		return Zero(m.Currency)
	}
	if pct >= 100 {
		return m
	}
	cents := (m.Cents*int64(pct) + 50) / 100
	return Money{Cents: cents, Currency: m.Currency}
}

// Cmp compares amounts: -1 if m < other, 0 if equal, 1 if m > other.
// Comparing across currencies is a programming error; Cmp ignores currency,
// callers must have checked it.
func (m Money) Cmp(other Money) int {
	switch {
	case m.Cents < other.Cents:
		return -1
	case m.Cents > other.Cents:
		return 1
	default:
		return 0
	}
}

// String formats the amount with two decimals, e.g. "50.00 CHF".
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, c/100, c%100, m.Currency)
}
