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

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

func rm(s string) generic.Amount {
	a, err := generic.ParseAmount(s, generic.CurrencyMYR)
	if err != nil {
		panic(err)
	}
	return a
}

func act(id string, start, end generic.Date, value string) schedule.Activity {
	return schedule.NewActivity(schedule.ActivityID(id), "Activity "+id, start, end, rm(value))
}

func standardTerms(t *testing.T) terms.CommercialTerms {
	t.Helper()
	ct, err := terms.New(30, 14, 10, 5)
	require.NoError(t, err)
	return ct
}

func month(t *testing.T, s string) generic.YearMonth {
	t.Helper()
	ym, err := generic.ParseYearMonth(s)
	require.NoError(t, err)
	return ym
}

func assertAmount(t *testing.T, want string, got generic.Amount) {
	t.Helper()
	assert.True(t, got.Value.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got.Value)
}

// =============================================================================
// PROJECTOR
// =============================================================================

func TestProject_SingleActivityScenario(t *testing.T) {
	// GIVEN: 100,000 of work finishing 2025-06-30, terms 30/14/10%
	a := act("a", date(2025, time.May, 1), date(2025, time.June, 30), "100000")

	// WHEN: Projecting
	e := cashflow.Project(a, standardTerms(t))

	// THEN: Cash arrives 44 days later, less 10% retention
	assert.Equal(t, "2025-08-13", e.CashIn.String())
	assertAmount(t, "100000", e.Gross)
	assertAmount(t, "10000", e.Retained)
	assertAmount(t, "90000", e.Net)
	assert.Equal(t, schedule.ActivityID("a"), e.ActivityID)
	assert.Equal(t, cashflow.EventProgress, e.Kind)
}

func TestProject_Formulas(t *testing.T) {
	cases := []struct {
		name      string
		value     string
		payment   int
		honouring int
		retention float64
	}{
		{"zero retention", "1234.56", 0, 0, 0},
		{"full retention", "1000", 30, 14, 100},
		{"fractional retention", "333.33", 45, 21, 7.5},
		{"long lag", "250000", 90, 56, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ct, err := terms.New(tc.payment, tc.honouring, tc.retention, 5)
			require.NoError(t, err)
			end := date(2025, time.January, 31)
			e := cashflow.Project(act("x", end, end, tc.value), ct)

			wantNet := decimal.RequireFromString(tc.value).
				Mul(decimal.NewFromInt(1).Sub(ct.RetentionPercent.Div(decimal.NewFromInt(100))))
			assert.True(t, e.Net.Value.Equal(wantNet), "net %s != %s", e.Net.Value, wantNet)
			assert.True(t, e.Gross.Equal(e.Net.Add(e.Retained)))
			assert.Equal(t, end.AddDays(tc.payment+tc.honouring), e.CashIn)
			assert.False(t, e.Net.IsNegative())
			assert.False(t, e.Retained.IsNegative())
		})
	}
}

func TestProject_ZeroValueStillAnchorsDate(t *testing.T) {
	e := cashflow.Project(act("z", date(2025, time.March, 1), date(2025, time.March, 1), "0"), standardTerms(t))
	assert.True(t, e.Net.IsZero())
	assert.Equal(t, "2025-04-14", e.CashIn.String())
}

func TestProject_ClampsNegativeValue(t *testing.T) {
	e := cashflow.Project(act("n", date(2025, time.March, 1), date(2025, time.March, 31), "-500"), standardTerms(t))
	assert.True(t, e.Gross.IsZero())
	assert.True(t, e.Net.IsZero())
	assert.False(t, e.Retained.IsNegative())
}

func TestProject_Idempotent(t *testing.T) {
	a := act("a", date(2025, time.May, 1), date(2025, time.June, 30), "98765.43")
	ct := standardTerms(t)
	assert.Equal(t, cashflow.Project(a, ct), cashflow.Project(a, ct))
}

// =============================================================================
// AGGREGATOR
// =============================================================================

func TestAggregate_SameMonthScenario(t *testing.T) {
	// GIVEN: Terms with 20% retention so grosses of 62,500 and 25,000 net 50,000 and 20,000
	ct, err := terms.New(30, 14, 20, 5)
	require.NoError(t, err)
	events := cashflow.ProjectAll([]schedule.Activity{
		act("A", date(2025, time.July, 1), date(2025, time.July, 28), "62500"),
		act("B", date(2025, time.August, 1), date(2025, time.August, 12), "25000"),
	}, ct)
	require.Equal(t, "2025-09-10", events[0].CashIn.String())
	require.Equal(t, "2025-09-25", events[1].CashIn.String())

	// WHEN: Aggregating
	buckets := cashflow.Aggregate(events, cashflow.ModeCompact)

	// THEN: One September bucket of 70,000
	require.Len(t, buckets, 1)
	assert.Equal(t, "2025-09", buckets[0].Month.String())
	assertAmount(t, "70000", buckets[0].NetInflow)
	assertAmount(t, "70000", buckets[0].Cumulative)
	assert.Equal(t, 2, buckets[0].Events)
}

func TestAggregate_CompactSkipsEmptyMonths(t *testing.T) {
	ct := standardTerms(t)
	events := cashflow.ProjectAll([]schedule.Activity{
		act("late", date(2025, time.October, 1), date(2025, time.October, 31), "1000"),
		act("early", date(2025, time.January, 1), date(2025, time.January, 31), "2000"),
		act("mid", date(2025, time.January, 5), date(2025, time.January, 20), "500"),
	}, ct)

	buckets := cashflow.Aggregate(events, cashflow.ModeCompact)

	// Jan 20 and Jan 31 completions both land in March; Oct 31 lands in December.
	require.Len(t, buckets, 2)
	assert.Equal(t, month(t, "2025-03"), buckets[0].Month)
	assertAmount(t, "2250", buckets[0].NetInflow)
	assert.Equal(t, 2, buckets[0].Events)
	assert.Equal(t, month(t, "2025-12"), buckets[1].Month)
	assertAmount(t, "900", buckets[1].NetInflow)
	assertAmount(t, "3150", buckets[1].Cumulative)
}

func TestAggregate_DenseFillsGaps(t *testing.T) {
	ct := standardTerms(t)
	events := cashflow.ProjectAll([]schedule.Activity{
		act("a", date(2025, time.January, 1), date(2025, time.January, 15), "1000"),
		act("b", date(2025, time.April, 1), date(2025, time.April, 15), "1000"),
	}, ct)

	compact := cashflow.Aggregate(events, cashflow.ModeCompact)
	dense := cashflow.Aggregate(events, cashflow.ModeDense)

	require.Len(t, compact, 2)
	require.Len(t, dense, 4) // Feb..May
	assert.Equal(t, "2025-02", dense[0].Month.String())
	assert.True(t, dense[1].NetInflow.IsZero())
	assert.True(t, dense[2].NetInflow.IsZero())
	assertAmount(t, "900", dense[2].Cumulative)
	assertAmount(t, "1800", dense[3].Cumulative)
	assert.True(t, compact[1].Cumulative.Equal(dense[3].Cumulative))
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, cashflow.Aggregate(nil, cashflow.ModeCompact))
	assert.Empty(t, cashflow.Aggregate(nil, cashflow.ModeDense))
}

func TestAggregate_Properties(t *testing.T) {
	// GIVEN: A varied schedule across two years
	ct := standardTerms(t)
	var acts []schedule.Activity
	start := date(2024, time.November, 3)
	for i := 0; i < 40; i++ {
		s := start.AddDays(i * 17)
		acts = append(acts, act("p", s, s.AddDays(i%23), decimal.NewFromInt(int64(1000+i*731)).Div(decimal.NewFromInt(7)).StringFixed(2)))
	}
	events := cashflow.ProjectAll(acts, ct)

	for _, mode := range []cashflow.Mode{cashflow.ModeCompact, cashflow.ModeDense} {
		buckets := cashflow.Aggregate(events, mode)

		// Conservation
		eventNet := generic.Sum(generic.CurrencyMYR)
		for _, e := range events {
			eventNet = eventNet.Add(e.Net)
		}
		bucketNet := generic.Sum(generic.CurrencyMYR)
		for _, b := range buckets {
			bucketNet = bucketNet.Add(b.NetInflow)
		}
		assert.True(t, eventNet.Equal(bucketNet), "%s: conservation", mode)

		// Ordering, prefix sums, monotonicity
		prefix := generic.Sum(generic.CurrencyMYR)
		for i, b := range buckets {
			prefix = prefix.Add(b.NetInflow)
			assert.True(t, b.Cumulative.Equal(prefix), "%s: prefix sum at %s", mode, b.Month)
			if i > 0 {
				assert.True(t, buckets[i-1].Month.Before(b.Month), "%s: strictly ascending", mode)
				assert.False(t, b.Cumulative.LessThan(buckets[i-1].Cumulative), "%s: non-decreasing", mode)
			}
		}

		// Idempotence
		assert.Equal(t, buckets, cashflow.Aggregate(cashflow.ProjectAll(acts, ct), mode))
	}
}

// =============================================================================
// REPORTER
// =============================================================================

func TestSummarize_EmptyScheduleAdvisory(t *testing.T) {
	rows, advisories := cashflow.Summarize(nil)
	assert.Empty(t, rows)
	require.Len(t, advisories, 1)
	assert.Equal(t, cashflow.AdvisoryOpeningGap, advisories[0].Code)
	assert.Contains(t, advisories[0].Message, "bridging finance")
}

func TestSummarize_ZeroFirstMonthAdvisory(t *testing.T) {
	ct := standardTerms(t)
	events := cashflow.ProjectAll([]schedule.Activity{
		act("mobilisation", date(2025, time.January, 1), date(2025, time.January, 10), "0"),
		act("works", date(2025, time.January, 1), date(2025, time.March, 31), "5000"),
	}, ct)

	rows, advisories := cashflow.Summarize(cashflow.Aggregate(events, cashflow.ModeCompact))

	require.Len(t, rows, 2)
	assert.Equal(t, "2025-02", rows[0].Month)
	require.Len(t, advisories, 1)
	assert.Equal(t, cashflow.AdvisoryOpeningGap, advisories[0].Code)
	assert.Contains(t, advisories[0].Message, "2025-02")
}

func TestSummarize_NoAdvisoryWhenOpeningMonthPays(t *testing.T) {
	ct := standardTerms(t)
	events := cashflow.ProjectAll([]schedule.Activity{
		act("a", date(2025, time.May, 1), date(2025, time.June, 30), "100000"),
	}, ct)
	rows, advisories := cashflow.Summarize(cashflow.Aggregate(events, cashflow.ModeCompact))

	require.Len(t, rows, 1)
	assert.Equal(t, "2025-08", rows[0].Month)
	assertAmount(t, "90000", rows[0].NetInflow)
	assertAmount(t, "90000", rows[0].CumulativeCash)
	assert.Empty(t, advisories)
}

func TestLongLagAdvisory(t *testing.T) {
	ct, err := terms.New(60, 28, 5, 5)
	require.NoError(t, err)

	a := cashflow.LongLagAdvisory(ct, 60)
	require.NotNil(t, a)
	assert.Equal(t, cashflow.AdvisoryLongPaymentLag, a.Code)
	assert.Contains(t, a.Message, "88 days")

	assert.Nil(t, cashflow.LongLagAdvisory(ct, 90))
	assert.Nil(t, cashflow.LongLagAdvisory(ct, 0))
	assert.Nil(t, cashflow.LongLagAdvisory(standardTerms(t), 60))
}
