// Package money provides the single-currency amount type used by the cart and checkout.
//
// Amounts are held in minor units (cents) so that totals recomputed from line items
// never drift the way repeated float additions do.
package money

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor units (1/100 of the currency unit).
type Amount int64

// Zero is the empty amount.
const Zero Amount = 0

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// FromFloat converts a decimal amount (e.g. 9.99) to minor units, rounding half away from
// zero on the shortest decimal form of v. NaN and infinities convert to zero.
func FromFloat(v float64) Amount {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Zero
	}
	a, err := fromDecimal(decimal.NewFromFloat(v))
	if err != nil {
		return Zero
	}
	return a
}

// Parse reads a decimal string such as "9.99", "10" or "0.5". Fractions of a cent round
// half away from zero.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a, err := fromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return a, nil
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxAmount) || cents.LessThan(minAmount) {
		return 0, fmt.Errorf("amount out of range")
	}
	return Amount(cents.IntPart()), nil
}

// Cents returns the amount in minor units.
func (a Amount) Cents() int64 { return int64(a) }

// Float64 returns the amount in currency units.
func (a Amount) Float64() float64 { return float64(a) / 100 }

// Times multiplies the amount by a quantity.
func (a Amount) Times(qty int) Amount { return a * Amount(qty) }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// String formats the amount with exactly two decimals, e.g. "9.99".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Dollars formats the amount for display, e.g. "$9.99".
func (a Amount) Dollars() string {
	if a < 0 {
		return "-$" + (-a).String()
	}
	return "$" + a.String()
}
