package scenarios_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashflow-engine/cashflow"
	"github.com/warp/cashflow-engine/scenarios"
)

func codes(f cashflow.Forecast) []cashflow.AdvisoryCode {
	var out []cashflow.AdvisoryCode
	for _, a := range f.Advisories {
		out = append(out, a.Code)
	}
	return out
}

func run(t *testing.T, id string) cashflow.Forecast {
	t.Helper()
	s, ok := scenarios.Get(id)
	require.True(t, ok, id)
	return cashflow.Run(s.Activities, s.Terms, cashflow.Options{})
}

func TestScenarios_ValidAndUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range scenarios.All() {
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
		assert.NoError(t, s.Terms.Validate(), s.ID)
		for _, a := range s.Activities {
			assert.NoError(t, a.Validate(), "%s/%s", s.ID, a.ID)
		}
	}
	_, ok := scenarios.Get("nope")
	assert.False(t, ok)
}

func TestScenario_SingleActivity(t *testing.T) {
	f := run(t, "single-activity")
	require.Len(t, f.Rows, 1)
	assert.Equal(t, "2025-08", f.Rows[0].Month)
	assert.Equal(t, "90000.00", f.Rows[0].NetInflow.StringFixed())
	assert.Empty(t, f.Advisories)
}

func TestScenario_EmptySchedule(t *testing.T) {
	f := run(t, "empty-schedule")
	assert.Empty(t, f.Rows)
	assert.Equal(t, []cashflow.AdvisoryCode{cashflow.AdvisoryOpeningGap}, codes(f))
}

func TestScenario_SameMonthPair(t *testing.T) {
	f := run(t, "same-month-pair")
	require.Len(t, f.Rows, 1)
	assert.Equal(t, "2025-09", f.Rows[0].Month)
	assert.Equal(t, "70000.00", f.Rows[0].NetInflow.StringFixed())
}

func TestScenario_OpeningGap(t *testing.T) {
	f := run(t, "opening-gap")
	require.NotEmpty(t, f.Rows)
	assert.Equal(t, "2025-03", f.Rows[0].Month)
	assert.True(t, f.Rows[0].NetInflow.IsZero())
	assert.Contains(t, codes(f), cashflow.AdvisoryOpeningGap)
}

func TestScenario_SlowPayer(t *testing.T) {
	f := run(t, "slow-payer")
	assert.Contains(t, codes(f), cashflow.AdvisoryLongPaymentLag)
}
