package generic_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashflow-engine/generic"
)

func TestAmount_PercentIsExact(t *testing.T) {
	a := generic.NewAmountFromDecimal(decimal.RequireFromString("333.33"), generic.CurrencyMYR)

	got := a.Percent(decimal.NewFromInt(10))

	assert.Equal(t, "33.333", got.Value.String())
	assert.Equal(t, "33.33", got.StringFixed())
	assert.Equal(t, "MYR 333.33", a.String())
}

func TestAmount_ClampZero(t *testing.T) {
	neg := generic.NewAmountFromInt(-5, generic.CurrencyMYR)

	assert.True(t, neg.ClampZero().IsZero())
	assert.Equal(t, generic.CurrencyMYR, neg.ClampZero().Currency)
	assert.True(t, generic.Sum(generic.CurrencyUSD).IsZero())
}

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2025-06-30")
	require.NoError(t, err)
	assert.Equal(t, "2025-08-13", d.AddDays(44).String())

	_, err = generic.ParseDate("30/06/2025")
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestYearMonth_RangeCrossesYearEnd(t *testing.T) {
	nov := generic.NewDate(2025, time.November, 20).YearMonth()
	feb := generic.NewDate(2026, time.February, 1).YearMonth()

	months := generic.MonthRange(nov, feb)

	require.Len(t, months, 4)
	assert.Equal(t, "2025-12", months[1].String())
	assert.Equal(t, "2026-02", months[3].String())
	assert.Nil(t, generic.MonthRange(feb, nov))
	assert.Equal(t, "2026-02-28", feb.LastDay().String())
}

func TestPeriod_Validate(t *testing.T) {
	day := generic.NewDate(2025, time.June, 30)

	// Zero-length span is valid
	single := generic.Period{Start: day, End: day}
	assert.NoError(t, single.Validate())
	assert.Equal(t, 1, single.Days())

	// Inverted span is a client error
	err := generic.Period{Start: day, End: day.AddDays(-1)}.Validate()
	assert.ErrorIs(t, err, generic.ErrInvalidSpan)
	assert.True(t, generic.IsClientError(err))
	var spanErr *generic.SpanError
	require.ErrorAs(t, err, &spanErr)
	assert.Equal(t, day, spanErr.Start)
}

func TestValidationErrors_UnwrapsEach(t *testing.T) {
	errs := generic.ValidationErrors{
		&generic.TermError{Field: "retention_percent", Value: "140", Reason: "must be between 0 and 100"},
		fmt.Errorf("%w: -1", generic.ErrNegativeValue),
	}

	assert.ErrorIs(t, errs, generic.ErrInvalidTerms)
	assert.ErrorIs(t, errs, generic.ErrNegativeValue)
	assert.False(t, generic.IsNotFound(errs))
	assert.Contains(t, errs.Error(), "retention_percent")
}
