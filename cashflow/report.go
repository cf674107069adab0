package cashflow

import (
	"fmt"

	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/terms"
)

// =============================================================================
// FORECAST REPORTER - Table rows and advisories, no I/O
// =============================================================================

// Row is one line of the forecast table.
type Row struct {
	Month          string // YYYY-MM
	NetInflow      generic.Amount
	CumulativeCash generic.Amount
}

type AdvisoryCode string

const (
	AdvisoryOpeningGap       AdvisoryCode = "opening_cash_gap"
	AdvisoryLongPaymentLag   AdvisoryCode = "long_payment_lag"
	AdvisoryTermsSubstituted AdvisoryCode = "terms_substituted"
	AdvisoryRowsExcluded     AdvisoryCode = "rows_excluded"
)

// Advisory is a human-readable signal derived from the forecast.
type Advisory struct {
	Code    AdvisoryCode
	Message string
}

func (a Advisory) String() string { return a.Message }

// DefaultLongLagDays is the certification plus payment lag above which a
// long-lag advisory is raised.
const DefaultLongLagDays = 60

// Summarize renders buckets as table rows and derives the opening-gap
// advisory: raised when there are no buckets at all or the first month
// brings in nothing.
func Summarize(buckets []MonthlyBucket) ([]Row, []Advisory) {
	rows := make([]Row, len(buckets))
	for i, b := range buckets {
		rows[i] = Row{
			Month:          b.Month.String(),
			NetInflow:      b.NetInflow,
			CumulativeCash: b.Cumulative,
		}
	}

	var advisories []Advisory
	if a := openingGap(buckets); a != nil {
		advisories = append(advisories, *a)
	}
	return rows, advisories
}

func openingGap(buckets []MonthlyBucket) *Advisory {
	if len(buckets) == 0 {
		return &Advisory{
			Code:    AdvisoryOpeningGap,
			Message: "No cash inflow is forecast: the project faces a cash-flow gap in its opening period and may require bridging finance.",
		}
	}
	first := buckets[0]
	if first.NetInflow.IsZero() {
		return &Advisory{
			Code: AdvisoryOpeningGap,
			Message: fmt.Sprintf("Net inflow in the opening month %s is zero: the project faces a cash-flow gap "+
				"in its opening period and may require bridging finance.", first.Month),
		}
	}
	return nil
}

// LongLagAdvisory flags terms whose combined certification and payment lag
// exceeds thresholdDays. A non-positive threshold disables the check.
func LongLagAdvisory(t terms.CommercialTerms, thresholdDays int) *Advisory {
	if thresholdDays <= 0 || t.LagDays() <= thresholdDays {
		return nil
	}
	return &Advisory{
		Code: AdvisoryLongPaymentLag,
		Message: fmt.Sprintf("Cash arrives %d days after each activity completes (%d days honouring + %d days payment), "+
			"above the %d-day threshold; working capital must cover the lag.",
			t.LagDays(), t.HonouringPeriodDays, t.PaymentPeriodDays, thresholdDays),
	}
}
