/*
Package cashflow is the contract-driven cash-flow projection engine.

PURPOSE:
  Turns a schedule of valued activities and a set of commercial terms into a
  monthly forecast of net cash inflows. Every stage is a pure function over
  in-memory values: no I/O, no logging, no shared state. A forecast is
  recomputed from scratch on every run.

PIPELINE:
  Schedule + Terms
      -> Project    (one CashEvent per activity)        projector.go
      -> Aggregate  (monthly buckets, running total)     aggregate.go
      -> Summarize  (table rows + advisories)            report.go
  Run (forecast.go) composes the stages, validates rows, and reports what
  it skipped or clamped.

KEY FORMULAS:
  retained  = gross * retention_percent / 100
  net       = gross - retained
  cash-in   = activity end + payment period + honouring period (calendar days)

KNOWN LIMITATION:
  Cash-in dates use naive calendar-day addition. Weekends and public holidays
  are not skipped.

SEE ALSO:
  - schedule/schedule.go: Activity
  - terms/terms.go: CommercialTerms
  - retention.go: Optional retention limit and release
*/
package cashflow

import (
	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

// =============================================================================
// CASH EVENT - One projected payment
// =============================================================================

type EventKind string

const (
	EventProgress         EventKind = "progress"          // Interim payment for an activity
	EventRetentionRelease EventKind = "retention_release" // Release of retained sums (optional)
)

// CashEvent is the payment an activity is expected to release. ActivityID and
// ActivityName point back at the source row for lookup only.
type CashEvent struct {
	Kind         EventKind
	ActivityID   schedule.ActivityID
	ActivityName string
	Gross        generic.Amount
	Retained     generic.Amount
	Net          generic.Amount
	CashIn       generic.Date
}

// =============================================================================
// PROJECTOR
// =============================================================================

// Project maps one activity to its cash event. Negative values are clamped to
// zero; a zero-value activity still yields an event at its cash-in date.
func Project(a schedule.Activity, t terms.CommercialTerms) CashEvent {
	gross := a.Value.ClampZero()
	retained := gross.Percent(t.RetentionPercent)
	return CashEvent{
		Kind:         EventProgress,
		ActivityID:   a.ID,
		ActivityName: a.Name,
		Gross:        gross,
		Retained:     retained,
		Net:          gross.Sub(retained),
		CashIn:       CashInDate(a.End(), t),
	}
}

// ProjectAll projects every activity, preserving schedule order.
func ProjectAll(activities []schedule.Activity, t terms.CommercialTerms) []CashEvent {
	events := make([]CashEvent, len(activities))
	for i, a := range activities {
		events[i] = Project(a, t)
	}
	return events
}

// CashInDate is the completion date plus honouring and payment periods.
func CashInDate(end generic.Date, t terms.CommercialTerms) generic.Date {
	return end.AddDays(t.LagDays())
}
