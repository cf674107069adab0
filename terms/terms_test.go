package terms_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/terms"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractTerms(ctx context.Context, document string) (string, error) {
	args := m.Called(ctx, document)
	return args.String(0), args.Error(1)
}

func pct(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func manual(t *testing.T) terms.CommercialTerms {
	t.Helper()
	ct, err := terms.New(21, 7, 5, 2.5)
	require.NoError(t, err)
	return ct
}

// =============================================================================
// COMMERCIAL TERMS
// =============================================================================

func TestDefaults(t *testing.T) {
	d := terms.Defaults()
	assert.Equal(t, 30, d.PaymentPeriodDays)
	assert.Equal(t, 14, d.HonouringPeriodDays)
	assert.True(t, d.RetentionPercent.Equal(pct(10)))
	assert.True(t, d.RetentionLimitPercent.Equal(pct(5)))
	assert.Equal(t, 44, d.LagDays())
	assert.NoError(t, d.Validate())
}

func TestValidate_ReportsEveryField(t *testing.T) {
	ct := terms.CommercialTerms{
		PaymentPeriodDays:     -1,
		HonouringPeriodDays:   -2,
		RetentionPercent:      pct(101),
		RetentionLimitPercent: pct(-1),
	}
	err := ct.Validate()
	require.Error(t, err)

	var verrs generic.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 4)
	assert.True(t, generic.IsClientError(err))
}

func TestMerge_OverwritesOnlyPresentFields(t *testing.T) {
	days := 60
	limit := pct(3)
	merged := terms.Defaults().Merge(terms.Partial{
		PaymentPeriodDays:     &days,
		RetentionLimitPercent: &limit,
	})

	assert.Equal(t, 60, merged.PaymentPeriodDays)
	assert.Equal(t, 14, merged.HonouringPeriodDays)
	assert.True(t, merged.RetentionPercent.Equal(pct(10)))
	assert.True(t, merged.RetentionLimitPercent.Equal(pct(3)))
}

// =============================================================================
// EXTRACTION PARSING
// =============================================================================

func TestParseExtraction_CleanRecord(t *testing.T) {
	r := terms.ParseExtraction(`{"payment_period": 21, "honor_cert_period": 7, "retention_percent": 5, "retention_limit": 2.5}`)
	require.True(t, r.OK())
	assert.True(t, r.Partial.Complete())

	out := terms.Apply(terms.Defaults(), r)
	assert.True(t, out.Applied)
	assert.Empty(t, out.Warnings)
	assert.True(t, out.Terms.Equal(manual(t)))
}

func TestParseExtraction_EmbeddedInProse(t *testing.T) {
	// GIVEN: A chatty reply with the record inside a markdown fence
	raw := "Based on Clause 30 of the contract, here are the terms:\n" +
		"```json\n{\n  \"payment_period\": \"30 days\",\n  \"honor_cert_period\": 21,\n" +
		"  \"retention_percent\": \"10%\",\n  \"retention_limit\": 5\n}\n```\nLet me know if you need more."

	// WHEN: Parsing
	r := terms.ParseExtraction(raw)

	// THEN: Only the structured payload is used
	require.True(t, r.OK())
	require.NotNil(t, r.Partial.HonouringPeriodDays)
	assert.Equal(t, 21, *r.Partial.HonouringPeriodDays)
	assert.Equal(t, 30, *r.Partial.PaymentPeriodDays)
	assert.True(t, r.Partial.RetentionPercent.Equal(pct(10)))
}

func TestParseExtraction_RepairsSloppyJSON(t *testing.T) {
	r := terms.ParseExtraction(`{'payment_period': 45, 'honor_cert_period': 14, 'retention_percent': 5, 'retention_limit': 5,}`)
	require.True(t, r.OK(), "dropped: %v", r.Dropped)
	assert.Equal(t, 45, *r.Partial.PaymentPeriodDays)
}

func TestParseExtraction_BracelessHjson(t *testing.T) {
	r := terms.ParseExtraction("payment_period: 28\nretention_percent: 3")
	require.True(t, r.OK())
	assert.Equal(t, 28, *r.Partial.PaymentPeriodDays)
	assert.True(t, r.Partial.RetentionPercent.Equal(pct(3)))
	assert.Nil(t, r.Partial.HonouringPeriodDays)
}

func TestParseExtraction_FreeTextIsParseFailure(t *testing.T) {
	raw := "I could not locate any payment provisions in the uploaded document"
	r := terms.ParseExtraction(raw)

	assert.Equal(t, terms.ResultParseFailure, r.Kind)
	assert.ErrorIs(t, r.Err, generic.ErrParseFailure)
	assert.Equal(t, raw, r.Raw)
}

func TestParseExtraction_UnknownKeysOnly(t *testing.T) {
	r := terms.ParseExtraction(`{"contract": "PAM 2018", "clause": 30}`)
	assert.Equal(t, terms.ResultParseFailure, r.Kind)
}

func TestParseExtraction_DropsOutOfRangeFields(t *testing.T) {
	// GIVEN: A record with one impossible retention and a fractional day count
	r := terms.ParseExtraction(`{"payment_period": 30, "honor_cert_period": 14.5, "retention_percent": 150}`)

	require.True(t, r.OK())
	assert.Equal(t, []string{terms.FieldPaymentPeriod}, r.Partial.Fields())
	assert.Len(t, r.Dropped, 2)

	out := terms.Apply(manual(t), r)
	assert.Equal(t, 30, out.Terms.PaymentPeriodDays)
	assert.Equal(t, 7, out.Terms.HonouringPeriodDays, "invalid field keeps prior value")
	assert.True(t, out.Terms.RetentionPercent.Equal(pct(5)))
	assert.NotEmpty(t, out.Warnings)
}

func TestParseExtraction_AllKnownFieldsInvalid(t *testing.T) {
	r := terms.ParseExtraction(`{"payment_period": -30, "retention_percent": "lots"}`)
	assert.Equal(t, terms.ResultParseFailure, r.Kind)
	assert.Len(t, r.Dropped, 2)
}

func TestParseExtraction_HugeDayCountDropped(t *testing.T) {
	// GIVEN: A day count far beyond any int
	r := terms.ParseExtraction(`{"payment_period": 18446744073709551586, "honor_cert_period": 14}`)

	// THEN: Only the sane field survives and the prior payment period stands
	require.True(t, r.OK())
	assert.Equal(t, []string{terms.FieldHonourPeriod}, r.Partial.Fields())
	require.Len(t, r.Dropped, 1)
	assert.Contains(t, r.Dropped[0], "exceeds")

	out := terms.Apply(manual(t), r)
	assert.Equal(t, 21, out.Terms.PaymentPeriodDays)
	assert.Equal(t, 14, out.Terms.HonouringPeriodDays)
	assert.NoError(t, out.Terms.Validate())

	// Every field out of range is a parse failure
	r = terms.ParseExtraction(`{"payment_period": 99999999999}`)
	assert.Equal(t, terms.ResultParseFailure, r.Kind)
}

func TestValidate_RejectsDayCountAboveCap(t *testing.T) {
	ct := terms.Defaults()
	ct.PaymentPeriodDays = terms.MaxPeriodDays + 1
	assert.Error(t, ct.Validate())

	ct.PaymentPeriodDays = terms.MaxPeriodDays
	assert.NoError(t, ct.Validate())
}

func TestParseExtraction_WireNameBeatsAlias(t *testing.T) {
	// Map order must not decide which spelling wins
	for i := 0; i < 50; i++ {
		r := terms.ParseExtraction(`{"retention": 15, "retention_percent": 20, "Payment Period Days": 60, "payment_period_days": 45}`)
		require.True(t, r.OK())
		assert.True(t, r.Partial.RetentionPercent.Equal(pct(20)))
		assert.Equal(t, 45, *r.Partial.PaymentPeriodDays, "aliases apply in sorted key order")
	}
}

// =============================================================================
// APPLY
// =============================================================================

func TestApply_PartialRecordMergesAndWarns(t *testing.T) {
	r := terms.ParseExtraction(`{"retention_percent": 3}`)
	out := terms.Apply(terms.Defaults(), r)

	assert.True(t, out.Applied)
	assert.Equal(t, []string{terms.FieldRetention}, out.Fields)
	assert.Equal(t, 30, out.Terms.PaymentPeriodDays)
	assert.True(t, out.Terms.RetentionPercent.Equal(pct(3)))
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], terms.FieldPaymentPeriod)
}

func TestApply_ParseFailureKeepsPriorTerms(t *testing.T) {
	prior := manual(t)
	out := terms.Apply(prior, terms.ParseExtraction("no record here"))

	assert.False(t, out.Applied)
	assert.True(t, out.Terms.Equal(prior))
	assert.Equal(t, "no record here", out.Raw)
	assert.NotEmpty(t, out.Warnings)
}

func TestExtract_CallFailureKeepsPriorTerms(t *testing.T) {
	ex := &mockExtractor{}
	ex.On("ExtractTerms", mock.Anything, "contract text").Return("", errors.New("quota exceeded"))

	r := terms.Extract(context.Background(), ex, "contract text")
	assert.Equal(t, terms.ResultCallFailure, r.Kind)
	assert.ErrorIs(t, r.Err, generic.ErrExtractionFailed)

	out := terms.Apply(terms.Defaults(), r)
	assert.False(t, out.Applied)
	assert.True(t, out.Terms.Equal(terms.Defaults()))
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "quota exceeded")
	ex.AssertExpectations(t)
}

func TestExtract_NilExtractor(t *testing.T) {
	r := terms.Extract(context.Background(), nil, "doc")
	assert.Equal(t, terms.ResultCallFailure, r.Kind)
	assert.ErrorIs(t, r.Err, generic.ErrExtractorUnavailable)
}

func TestExtract_Success(t *testing.T) {
	ex := &mockExtractor{}
	ex.On("ExtractTerms", mock.Anything, "doc").
		Return(`{"payment_period": 21, "honor_cert_period": 7, "retention_percent": 5, "retention_limit": 2.5}`, nil)

	out := terms.Apply(terms.Defaults(), terms.Extract(context.Background(), ex, "doc"))
	assert.True(t, out.Applied)
	assert.True(t, out.Terms.Equal(manual(t)))
}
