/*
Package export moves forecasts and schedules in and out of the engine as
plain files: forecast CSV, a terminal table report, and schedule CSV import.

FORMATS:
  Forecast CSV:  month,net_inflow,cumulative_cash   (amounts at 2 dp)
  Schedule CSV:  Activity,Start Date,End Date,Value (dates YYYY-MM-DD)

Schedule import never fails on a bad row. Unreadable rows are skipped and
reported; rows that parse but are semantically bad (inverted span, negative
value) pass through so the forecast run can report them.
*/
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/warp/cashflow-engine/cashflow"
	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/schedule"
)

// =============================================================================
// FORECAST CSV
// =============================================================================

var forecastHeader = []string{"month", "net_inflow", "cumulative_cash"}

// WriteCSV writes forecast rows in month order.
func WriteCSV(w io.Writer, rows []cashflow.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(forecastHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Month, r.NetInflow.StringFixed(), r.CumulativeCash.StringFixed()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// =============================================================================
// SCHEDULE CSV
// =============================================================================

var scheduleColumns = []string{"activity", "start date", "end date", "value"}

// RowError reports a schedule CSV line that could not be read.
type RowError struct {
	Line    int
	Message string
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

// ReadScheduleCSV reads a schedule table. Columns are matched by header name,
// case-insensitively, in any order; extra columns are ignored. Activity IDs
// are assigned from the line number ("row-2", "row-3", ...).
func ReadScheduleCSV(r io.Reader, currency generic.Currency) ([]schedule.Activity, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("schedule csv: empty input")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("schedule csv: read header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		activities []schedule.Activity
		rowErrs    []RowError
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return activities, rowErrs, fmt.Errorf("schedule csv: %w", err)
			}
			rowErrs = append(rowErrs, RowError{Line: pe.Line, Message: pe.Err.Error()})
			continue
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}
		a, err := parseScheduleRow(record, idx, line, currency)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Message: err.Error()})
			continue
		}
		activities = append(activities, a)
	}
	return activities, rowErrs, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(scheduleColumns))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, c := range scheduleColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("schedule csv: missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseScheduleRow(record []string, idx map[string]int, line int, currency generic.Currency) (schedule.Activity, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	name := field("activity")
	if name == "" {
		return schedule.Activity{}, fmt.Errorf("activity name is empty")
	}
	start, err := generic.ParseDate(field("start date"))
	if err != nil {
		return schedule.Activity{}, fmt.Errorf("start date: %w", err)
	}
	end, err := generic.ParseDate(field("end date"))
	if err != nil {
		return schedule.Activity{}, fmt.Errorf("end date: %w", err)
	}
	value, err := generic.ParseAmount(strings.ReplaceAll(field("value"), ",", ""), currency)
	if err != nil {
		return schedule.Activity{}, fmt.Errorf("value: %w", err)
	}
	id := schedule.ActivityID(fmt.Sprintf("row-%d", line))
	return schedule.NewActivity(id, name, start, end, value), nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
