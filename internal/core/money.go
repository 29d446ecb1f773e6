package core

import (
	"errors"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the ISO code used for every amount in the application.
const Currency = money.EUR

// euro overrides the go-money EUR entry with Italian separators.
var euro = money.AddCurrency(Currency, "\u20ac", "$1", ",", ".", 2)

var ErrInvalidAmount = errors.New("invalid amount")

// Money is an amount in euro cents.
type Money struct {
	Cents int64 `json:"cents"`
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Euros returns the amount as a float for the simulation math.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount for display, e.g. "€1.234,50".
func (m Money) String() string {
	return money.New(m.Cents, euro.Code).Display()
}

// FromEuros rounds a euro amount half away from zero to the cent.
func FromEuros(v float64) Money {
	return Money{Cents: decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()}
}

// FormatEuros formats a float euro amount rounded to the cent.
func FormatEuros(v float64) string {
	return FromEuros(v).String()
}

// ParseDecimalToCents converts a decimal string to cents.
//
// Both dot and comma separators are accepted and the third decimal is rounded
// half-up. Zero and negative values are rejected.
//
//	ParseDecimalToCents("12,34")  -> 1234
//	ParseDecimalToCents("12.346") -> 1235
func ParseDecimalToCents(s string) (int64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() || !cents.LessThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseEuros parses a non-negative euro amount, e.g. a starting wealth of "0".
func ParseEuros(s string) (float64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	return d.Round(2).InexactFloat64(), nil
}

// ParsePercent parses a signed percentage such as "7,5" or "-2".
func ParsePercent(s string) (float64, error) {
	d, err := decimal.NewFromString(normalizeDecimal(s))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return d.InexactFloat64(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = normalizeDecimal(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func normalizeDecimal(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
}
