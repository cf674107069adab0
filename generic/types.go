/*
Package generic provides the domain-agnostic building blocks of the cash-flow engine.

PURPOSE:
  Everything the projection pipeline computes is money on a calendar. This
  package holds the exact-arithmetic money type, calendar dates and months,
  date spans, and the shared error taxonomy. It knows nothing about contracts,
  schedules or retention.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary quantity in a single base currency
  - Currency: ISO-style currency code (display only, never converted)
  - Percent helpers: Apply a percentage to an amount without float drift

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so sums over many activities never drift
  2. Single currency: Amounts of different currencies are never mixed
  3. Value semantics: Every operation returns a new Amount

USAGE:
  gross := generic.NewAmount(100000, generic.CurrencyMYR)
  retained := gross.Percent(decimal.NewFromInt(10)) // 10,000
  net := gross.Sub(retained)                         // 90,000

SEE ALSO:
  - time.go: Date and YearMonth
  - period.go: Date spans
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money in the contract's base currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyMYR Currency = "MYR"
	CurrencyUSD Currency = "USD"
	CurrencySGD Currency = "SGD"

	// DefaultCurrency is used when a project does not name one.
	DefaultCurrency = CurrencyMYR
)

var hundred = decimal.NewFromInt(100)

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

func NewAmountFromDecimal(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

// ParseAmount parses a decimal string such as "125000.50".
func ParseAmount(s string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d, Currency: currency}, nil
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampZero returns the amount, or zero if it is negative.
func (a Amount) ClampZero() Amount {
	if a.IsNegative() {
		return a.Zero()
	}
	return a
}

// Percent returns pct percent of the amount. Division by 100 is exact in decimal.
func (a Amount) Percent(pct decimal.Decimal) Amount {
	return Amount{Value: a.Value.Mul(pct).Div(hundred), Currency: a.Currency}
}

// StringFixed formats the value with two decimal places, the usual minor unit.
func (a Amount) StringFixed() string {
	return a.Value.StringFixed(2)
}

func (a Amount) String() string {
	if a.Currency == "" {
		return a.StringFixed()
	}
	return string(a.Currency) + " " + a.StringFixed()
}

// Sum adds amounts, returning zero in the given currency for an empty slice.
func Sum(currency Currency, amounts ...Amount) Amount {
	total := Amount{Value: decimal.Zero, Currency: currency}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// ValidPercent reports whether p lies in [0, 100].
func ValidPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
