package cashflow_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashflow-engine/cashflow"
	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

func advisoryCodes(f cashflow.Forecast) []cashflow.AdvisoryCode {
	var codes []cashflow.AdvisoryCode
	for _, a := range f.Advisories {
		codes = append(codes, a.Code)
	}
	return codes
}

func TestRun_EmptySchedule(t *testing.T) {
	// GIVEN: No activities
	// WHEN: Forecasting
	f := cashflow.Run(nil, terms.Defaults(), cashflow.Options{})

	// THEN: Zero buckets and an opening-gap advisory, not an error
	assert.Empty(t, f.Buckets)
	assert.Empty(t, f.Rows)
	assert.Equal(t, []cashflow.AdvisoryCode{cashflow.AdvisoryOpeningGap}, advisoryCodes(f))
	assert.True(t, f.Totals.Net.IsZero())
	assert.Equal(t, cashflow.ModeCompact, f.Mode)
}

func TestRun_SingleActivity(t *testing.T) {
	acts := []schedule.Activity{act("a", date(2025, time.May, 1), date(2025, time.June, 30), "100000")}

	f := cashflow.Run(acts, terms.Defaults(), cashflow.Options{})

	require.Len(t, f.Rows, 1)
	assert.Equal(t, "2025-08", f.Rows[0].Month)
	assertAmount(t, "90000", f.Rows[0].NetInflow)
	assertAmount(t, "90000", f.Rows[0].CumulativeCash)
	assertAmount(t, "100000", f.Totals.Gross)
	assertAmount(t, "10000", f.Totals.Retained)
	assertAmount(t, "90000", f.Totals.Net)
	assert.Empty(t, f.Advisories)
	assert.Empty(t, f.Issues)
}

func TestRun_BadRowsDoNotAbortRun(t *testing.T) {
	// GIVEN: One inverted span, one negative value, one good row
	acts := []schedule.Activity{
		act("inverted", date(2025, time.June, 30), date(2025, time.June, 1), "5000"),
		act("negative", date(2025, time.May, 1), date(2025, time.May, 31), "-100"),
		act("good", date(2025, time.May, 1), date(2025, time.June, 30), "100000"),
	}

	// WHEN: Forecasting
	f := cashflow.Run(acts, terms.Defaults(), cashflow.Options{})

	// THEN: The inverted row is skipped, the negative row clamped, both reported
	require.Len(t, f.Issues, 2)
	assert.Equal(t, 0, f.Issues[0].Index)
	assert.Equal(t, cashflow.IssueInvertedSpan, f.Issues[0].Code)
	assert.True(t, f.Issues[0].Skipped)
	assert.Equal(t, 1, f.Issues[1].Index)
	assert.Equal(t, cashflow.IssueClampedNegativeValue, f.Issues[1].Code)
	assert.False(t, f.Issues[1].Skipped)

	require.Len(t, f.Events, 2)
	assert.True(t, f.Events[0].Net.IsZero())
	assertAmount(t, "90000", f.Totals.Net)

	// The clamped row's zero-inflow month (July) opens the forecast
	require.Len(t, f.Rows, 2)
	assert.Equal(t, "2025-07", f.Rows[0].Month)
	assert.Contains(t, advisoryCodes(f), cashflow.AdvisoryOpeningGap)
	assert.Contains(t, advisoryCodes(f), cashflow.AdvisoryRowsExcluded)
}

func TestRun_RejectedRowsKeepCallerNumbering(t *testing.T) {
	// GIVEN: Caller rows 0 and 2 were unreadable; rows 1 and 3 became activities
	acts := []schedule.Activity{
		act("inverted", date(2025, time.June, 30), date(2025, time.June, 1), "5000"),
		act("good", date(2025, time.May, 1), date(2025, time.June, 30), "100000"),
	}
	opts := cashflow.Options{Rejected: []cashflow.RowIssue{
		{Index: 2, Name: "Frame", Message: `end_date "30/06/2025": want YYYY-MM-DD`},
		{Index: 0, Message: "name is required"},
	}}

	// WHEN: Forecasting
	f := cashflow.Run(acts, terms.Defaults(), opts)

	// THEN: Issues appear in caller order, all three counted as excluded
	require.Len(t, f.Issues, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{f.Issues[0].Index, f.Issues[1].Index, f.Issues[2].Index})
	assert.Equal(t, cashflow.IssueUnparseableRow, f.Issues[0].Code)
	assert.Equal(t, cashflow.IssueInvertedSpan, f.Issues[1].Code)
	assert.Equal(t, "Frame", f.Issues[2].Name)
	for _, is := range f.Issues {
		assert.True(t, is.Skipped)
	}
	assert.Contains(t, advisoryCodes(f), cashflow.AdvisoryRowsExcluded)
	for _, a := range f.Advisories {
		if a.Code == cashflow.AdvisoryRowsExcluded {
			assert.Contains(t, a.Message, "3 schedule row(s)")
		}
	}

	// The readable good row is still forecast
	assertAmount(t, "90000", f.Totals.Net)
}

func TestRun_SubstitutesOutOfRangeTerms(t *testing.T) {
	bad := terms.CommercialTerms{
		PaymentPeriodDays:     21,
		HonouringPeriodDays:   -3,
		RetentionPercent:      decimal.NewFromInt(140),
		RetentionLimitPercent: decimal.NewFromInt(5),
	}
	acts := []schedule.Activity{act("a", date(2025, time.May, 1), date(2025, time.June, 30), "1000")}

	f := cashflow.Run(acts, bad, cashflow.Options{})

	assert.Equal(t, 21, f.Terms.PaymentPeriodDays)
	assert.Equal(t, 14, f.Terms.HonouringPeriodDays)
	assert.True(t, f.Terms.RetentionPercent.Equal(decimal.NewFromInt(10)))
	assertAmount(t, "900", f.Totals.Net)
	assert.Contains(t, advisoryCodes(f), cashflow.AdvisoryTermsSubstituted)
}

func TestRun_LongLagAdvisoryThreshold(t *testing.T) {
	acts := []schedule.Activity{act("a", date(2025, time.May, 1), date(2025, time.June, 30), "1000")}
	slow, err := terms.New(60, 28, 10, 5)
	require.NoError(t, err)

	assert.Contains(t, advisoryCodes(cashflow.Run(acts, slow, cashflow.Options{})), cashflow.AdvisoryLongPaymentLag)
	assert.NotContains(t, advisoryCodes(cashflow.Run(acts, slow, cashflow.Options{LongLagDays: 120})), cashflow.AdvisoryLongPaymentLag)
	assert.NotContains(t, advisoryCodes(cashflow.Run(acts, slow, cashflow.Options{LongLagDays: -1})), cashflow.AdvisoryLongPaymentLag)
}

func TestRun_DenseMode(t *testing.T) {
	acts := []schedule.Activity{
		act("a", date(2025, time.January, 1), date(2025, time.January, 15), "1000"),
		act("b", date(2025, time.April, 1), date(2025, time.April, 15), "1000"),
	}
	assert.Len(t, cashflow.Run(acts, terms.Defaults(), cashflow.Options{}).Rows, 2)
	assert.Len(t, cashflow.Run(acts, terms.Defaults(), cashflow.Options{Mode: cashflow.ModeDense}).Rows, 4)
	assert.Len(t, cashflow.Run(acts, terms.Defaults(), cashflow.Options{Mode: "bogus"}).Rows, 2)
}

func TestRun_Idempotent(t *testing.T) {
	acts := []schedule.Activity{
		act("a", date(2025, time.January, 1), date(2025, time.March, 15), "12345.67"),
		act("b", date(2025, time.February, 1), date(2025, time.May, 15), "7654.32"),
	}
	opts := cashflow.Options{Mode: cashflow.ModeDense}
	assert.Equal(t, cashflow.Run(acts, terms.Defaults(), opts), cashflow.Run(acts, terms.Defaults(), opts))
}

// =============================================================================
// RETENTION LIMIT (optional)
// =============================================================================

func TestRun_RetentionLimitCapsCumulativeRetention(t *testing.T) {
	// GIVEN: Contract value 100,000, 10% retention, 5% limit (cap 5,000)
	acts := []schedule.Activity{
		act("second", date(2025, time.March, 1), date(2025, time.March, 31), "40000"),
		act("first", date(2025, time.January, 1), date(2025, time.January, 31), "40000"),
		act("third", date(2025, time.May, 1), date(2025, time.May, 31), "20000"),
	}

	// WHEN: Enforcing the limit
	f := cashflow.Run(acts, terms.Defaults(), cashflow.Options{
		Retention: cashflow.RetentionPolicy{EnforceLimit: true},
	})

	// THEN: The earliest cash-in retains 4,000, the next only the remaining 1,000, the last nothing
	require.Len(t, f.Events, 3)
	assertAmount(t, "1000", f.Events[0].Retained)
	assertAmount(t, "4000", f.Events[1].Retained)
	assertAmount(t, "0", f.Events[2].Retained)
	assertAmount(t, "20000", f.Events[2].Net)
	assertAmount(t, "5000", f.Totals.Retained)
	assertAmount(t, "95000", f.Totals.Net)
}

func TestRun_RetentionLimitOffByDefault(t *testing.T) {
	acts := []schedule.Activity{
		act("a", date(2025, time.January, 1), date(2025, time.January, 31), "40000"),
		act("b", date(2025, time.March, 1), date(2025, time.March, 31), "60000"),
	}
	f := cashflow.Run(acts, terms.Defaults(), cashflow.Options{})
	assertAmount(t, "10000", f.Totals.Retained)
}

func TestRun_RetentionRelease(t *testing.T) {
	acts := []schedule.Activity{
		act("a", date(2025, time.January, 1), date(2025, time.January, 31), "40000"),
		act("b", date(2025, time.March, 1), date(2025, time.March, 31), "60000"),
	}
	release := date(2026, time.June, 30)

	f := cashflow.Run(acts, terms.Defaults(), cashflow.Options{
		Retention: cashflow.RetentionPolicy{EnforceLimit: true, ReleaseAt: &release},
	})

	require.Len(t, f.Events, 3)
	last := f.Events[2]
	assert.Equal(t, cashflow.EventRetentionRelease, last.Kind)
	assert.Empty(t, last.ActivityID)
	assertAmount(t, "5000", last.Net)

	lastRow := f.Rows[len(f.Rows)-1]
	assert.Equal(t, "2026-06", lastRow.Month)
	assertAmount(t, "100000", lastRow.CumulativeCash)
	assertAmount(t, "0", f.Totals.Retained)
	assertAmount(t, "100000", f.Totals.Net)
}

func TestCapRetention_KeepsInputOrderAndTies(t *testing.T) {
	sameDay := date(2025, time.June, 30)
	acts := []schedule.Activity{
		act("x", sameDay, sameDay, "1000"),
		act("y", sameDay, sameDay, "1000"),
	}
	events := cashflow.ProjectAll(acts, terms.Defaults())

	capped := cashflow.CapRetention(events, generic.NewAmountFromInt(150, generic.CurrencyMYR))

	assertAmount(t, "100", capped[0].Retained)
	assertAmount(t, "50", capped[1].Retained)
	assertAmount(t, "100", events[1].Retained) // input untouched
}
