package cashflow

import (
	"sort"

	"github.com/warp/cashflow-engine/generic"
)

// =============================================================================
// RETENTION LIMIT & RELEASE - Optional, off by default
// =============================================================================

// RetentionPolicy enables the retention cap and, optionally, a release date.
// The zero value leaves events untouched.
type RetentionPolicy struct {
	// EnforceLimit caps cumulative retention at RetentionLimitPercent of the
	// contract value.
	EnforceLimit bool

	// ReleaseAt, if set, adds one release event paying back everything
	// retained.
	ReleaseAt *generic.Date
}

func (p RetentionPolicy) Enabled() bool { return p.EnforceLimit || p.ReleaseAt != nil }

// CapRetention walks events in cash-in order (schedule order on ties) and
// stops retaining once the cap is reached. The event that crosses the cap
// retains only the remainder. Returned events keep the input order.
func CapRetention(events []CashEvent, limit generic.Amount) []CashEvent {
	out := make([]CashEvent, len(events))
	copy(out, events)

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return out[order[a]].CashIn.Before(out[order[b]].CashIn)
	})

	remaining := limit.ClampZero()
	for _, i := range order {
		e := out[i]
		retained := e.Retained.Min(remaining)
		remaining = remaining.Sub(retained)
		e.Retained = retained
		e.Net = e.Gross.Sub(retained)
		out[i] = e
	}
	return out
}

// ReleaseEvent pays back the total retained across events at the given date.
// It has no source activity.
func ReleaseEvent(events []CashEvent, at generic.Date, currency generic.Currency) CashEvent {
	total := generic.Sum(currency)
	for _, e := range events {
		total = total.Add(e.Retained)
	}
	return CashEvent{
		Kind:         EventRetentionRelease,
		ActivityName: "Retention release",
		Gross:        total,
		Retained:     total.Zero(),
		Net:          total,
		CashIn:       at,
	}
}
