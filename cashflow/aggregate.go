package cashflow

import (
	"sort"

	"github.com/warp/cashflow-engine/generic"
)

// =============================================================================
// MONTHLY AGGREGATOR
// =============================================================================

// Mode controls whether months without cash events appear in the output.
type Mode string

const (
	// ModeCompact emits only months that receive at least one event.
	ModeCompact Mode = "compact"

	// ModeDense fills the gaps between the first and last month with zero buckets.
	ModeDense Mode = "dense"
)

// ParseMode accepts "compact", "dense" or empty (compact).
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeCompact:
		return ModeCompact, true
	case ModeDense:
		return ModeDense, true
	default:
		return ModeCompact, false
	}
}

// MonthlyBucket collects every event whose cash-in date falls in Month.
type MonthlyBucket struct {
	Month      generic.YearMonth
	NetInflow  generic.Amount
	Cumulative generic.Amount
	Events     int
}

// Aggregate groups events by the month of their cash-in date. Buckets are in
// ascending month order with no duplicates, and Cumulative is the exact
// prefix sum of NetInflow.
func Aggregate(events []CashEvent, mode Mode) []MonthlyBucket {
	if len(events) == 0 {
		return nil
	}
	currency := events[0].Net.Currency

	byMonth := make(map[generic.YearMonth]*MonthlyBucket)
	for _, e := range events {
		m := e.CashIn.YearMonth()
		b, ok := byMonth[m]
		if !ok {
			b = &MonthlyBucket{Month: m, NetInflow: generic.Sum(currency)}
			byMonth[m] = b
		}
		b.NetInflow = b.NetInflow.Add(e.Net)
		b.Events++
	}

	months := make([]generic.YearMonth, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	if mode == ModeDense {
		months = generic.MonthRange(months[0], months[len(months)-1])
	}

	buckets := make([]MonthlyBucket, 0, len(months))
	running := generic.Sum(currency)
	for _, m := range months {
		b := MonthlyBucket{Month: m, NetInflow: generic.Sum(currency)}
		if found, ok := byMonth[m]; ok {
			b = *found
		}
		running = running.Add(b.NetInflow)
		b.Cumulative = running
		buckets = append(buckets, b)
	}
	return buckets
}
