package generic

// =============================================================================
// PERIOD - Inclusive date span of a schedule activity
// =============================================================================

// Period is an inclusive span [Start, End]. A zero-length span (Start == End)
// is valid.
type Period struct {
	Start Date
	End   Date
}

// Valid reports whether Start <= End.
func (p Period) Valid() bool {
	return p.Start.BeforeOrEqual(p.End)
}

// Validate returns a *SpanError wrapping ErrInvalidSpan if the span is inverted.
func (p Period) Validate() error {
	if !p.Valid() {
		return &SpanError{Start: p.Start, End: p.End}
	}
	return nil
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days is the inclusive length in calendar days (1 for a zero-length span).
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthRange returns every calendar month from first to last inclusive, in
// ascending order. It returns nil if last is before first.
func MonthRange(first, last YearMonth) []YearMonth {
	if last.Before(first) {
		return nil
	}
	months := make([]YearMonth, 0, first.MonthsUntil(last)+1)
	for m := first; !m.After(last); m = m.Next() {
		months = append(months, m)
	}
	return months
}
