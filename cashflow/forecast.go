package cashflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

// =============================================================================
// FORECAST RUN - Project -> Aggregate -> Summarize
// =============================================================================

// Options tune one forecast run. The zero value gives the default behavior:
// compact months, default long-lag threshold, no retention cap.
type Options struct {
	Mode     Mode
	Currency generic.Currency

	// LongLagDays overrides DefaultLongLagDays. Negative disables the advisory.
	LongLagDays int

	Retention RetentionPolicy

	// Rejected lists rows the caller could not read at all. Their Index is
	// in the caller's numbering, which counts them alongside the activities
	// passed to Run; they are reported as skipped.
	Rejected []RowIssue
}

// IssueCode names why a schedule row was skipped or altered.
type IssueCode string

const (
	IssueClampedNegativeValue IssueCode = "clamped_negative_value"
	IssueInvertedSpan         IssueCode = "inverted_span"
	IssueUnparseableRow       IssueCode = "unparseable_row"
)

// RowIssue reports one schedule row the run skipped or clamped.
type RowIssue struct {
	Index      int // position in the input schedule
	ActivityID schedule.ActivityID
	Name       string
	Code       IssueCode
	Skipped    bool
	Message    string
}

// Totals are whole-forecast sums across all events.
type Totals struct {
	Gross    generic.Amount
	Retained generic.Amount
	Net      generic.Amount
}

// Forecast is the full result of one run. Nothing in it is persisted or
// patched later; the next run builds a new one.
type Forecast struct {
	Terms      terms.CommercialTerms
	Mode       Mode
	Events     []CashEvent
	Buckets    []MonthlyBucket
	Rows       []Row
	Advisories []Advisory
	Issues     []RowIssue
	Totals     Totals
}

// Run forecasts the given schedule snapshot under the given terms. It never
// fails: bad rows are skipped or clamped and reported in Issues, and
// out-of-range terms are replaced field by field with defaults and reported
// as an advisory.
func Run(activities []schedule.Activity, t terms.CommercialTerms, opts Options) Forecast {
	mode, ok := ParseMode(string(opts.Mode))
	if !ok {
		mode = ModeCompact
	}
	currency := opts.Currency
	if currency == "" {
		currency = currencyOf(activities)
	}

	effective, substituted := sanitizeTerms(t)

	valid, issues := screenRows(activities)
	issues = mergeRejected(issues, opts.Rejected, len(activities))
	events := ProjectAll(valid, effective)

	if opts.Retention.EnforceLimit {
		contractValue := schedule.TotalValue(currency, valid)
		events = CapRetention(events, contractValue.Percent(effective.RetentionLimitPercent))
	}
	if opts.Retention.ReleaseAt != nil && len(events) > 0 {
		events = append(events, ReleaseEvent(events, *opts.Retention.ReleaseAt, currency))
	}

	buckets := Aggregate(events, mode)
	rows, advisories := Summarize(buckets)

	threshold := opts.LongLagDays
	if threshold == 0 {
		threshold = DefaultLongLagDays
	}
	if a := LongLagAdvisory(effective, threshold); a != nil {
		advisories = append(advisories, *a)
	}
	if len(substituted) > 0 {
		advisories = append(advisories, Advisory{
			Code:    AdvisoryTermsSubstituted,
			Message: "Out-of-range terms replaced with defaults: " + strings.Join(substituted, ", ") + ".",
		})
	}
	if n := skippedCount(issues); n > 0 {
		advisories = append(advisories, Advisory{
			Code:    AdvisoryRowsExcluded,
			Message: fmt.Sprintf("%d schedule row(s) were excluded from the forecast; see row issues.", n),
		})
	}

	return Forecast{
		Terms:      effective,
		Mode:       mode,
		Events:     events,
		Buckets:    buckets,
		Rows:       rows,
		Advisories: advisories,
		Issues:     issues,
		Totals:     totals(events, currency),
	}
}

// screenRows keeps every row that can be projected. Inverted spans are
// skipped; negative values are kept and clamped to zero by Project.
func screenRows(activities []schedule.Activity) ([]schedule.Activity, []RowIssue) {
	valid := make([]schedule.Activity, 0, len(activities))
	var issues []RowIssue
	for i, a := range activities {
		if err := a.Span.Validate(); err != nil {
			issues = append(issues, RowIssue{
				Index:      i,
				ActivityID: a.ID,
				Name:       a.Name,
				Code:       IssueInvertedSpan,
				Skipped:    true,
				Message:    err.Error(),
			})
			continue
		}
		if a.Value.IsNegative() {
			issues = append(issues, RowIssue{
				Index:      i,
				ActivityID: a.ID,
				Name:       a.Name,
				Code:       IssueClampedNegativeValue,
				Message:    fmt.Sprintf("value %s is negative; treated as 0", a.Value.StringFixed()),
			})
		}
		valid = append(valid, a)
	}
	return valid, issues
}

// mergeRejected renumbers screened issues into the caller's numbering, where
// rejected rows hold their own positions, and merges both in row order.
func mergeRejected(issues, rejected []RowIssue, n int) []RowIssue {
	if len(rejected) == 0 {
		return issues
	}
	taken := make(map[int]bool, len(rejected))
	for _, r := range rejected {
		taken[r.Index] = true
	}
	// position[i] is the caller's row number of activities[i].
	position := make([]int, 0, n)
	for row := 0; len(position) < n; row++ {
		if !taken[row] {
			position = append(position, row)
		}
	}
	merged := make([]RowIssue, 0, len(issues)+len(rejected))
	for _, is := range issues {
		is.Index = position[is.Index]
		merged = append(merged, is)
	}
	for _, r := range rejected {
		r.Skipped = true
		if r.Code == "" {
			r.Code = IssueUnparseableRow
		}
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Index < merged[j].Index })
	return merged
}

// sanitizeTerms replaces each out-of-range field with its default.
func sanitizeTerms(t terms.CommercialTerms) (terms.CommercialTerms, []string) {
	err := t.Validate()
	if err == nil {
		return t, nil
	}
	defaults := terms.Defaults()
	var fields []string
	var verrs generic.ValidationErrors
	if !errors.As(err, &verrs) {
		return defaults, terms.AllFields
	}
	for _, e := range verrs {
		var te *generic.TermError
		if !errors.As(e, &te) {
			continue
		}
		fields = append(fields, te.Field)
		switch te.Field {
		case terms.FieldPaymentPeriod:
			t.PaymentPeriodDays = defaults.PaymentPeriodDays
		case terms.FieldHonourPeriod:
			t.HonouringPeriodDays = defaults.HonouringPeriodDays
		case terms.FieldRetention:
			t.RetentionPercent = defaults.RetentionPercent
		case terms.FieldRetentionLimit:
			t.RetentionLimitPercent = defaults.RetentionLimitPercent
		}
	}
	return t, fields
}

func skippedCount(issues []RowIssue) int {
	n := 0
	for _, is := range issues {
		if is.Skipped {
			n++
		}
	}
	return n
}

func totals(events []CashEvent, currency generic.Currency) Totals {
	tot := Totals{
		Gross:    generic.Sum(currency),
		Retained: generic.Sum(currency),
		Net:      generic.Sum(currency),
	}
	for _, e := range events {
		if e.Kind == EventRetentionRelease {
			// Released sums were already counted as retained.
			tot.Retained = tot.Retained.Sub(e.Net)
			tot.Net = tot.Net.Add(e.Net)
			continue
		}
		tot.Gross = tot.Gross.Add(e.Gross)
		tot.Retained = tot.Retained.Add(e.Retained)
		tot.Net = tot.Net.Add(e.Net)
	}
	return tot
}

func currencyOf(activities []schedule.Activity) generic.Currency {
	for _, a := range activities {
		if a.Value.Currency != "" {
			return a.Value.Currency
		}
	}
	return generic.DefaultCurrency
}
