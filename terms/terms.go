/*
Package terms models the commercial payment terms of a construction contract.

PURPOSE:
  Four numbers decide when and how much cash a valued activity releases:
  how long the administrator may take to certify a claim, how long the payer
  may take to honour the certificate, how much of each claim is retained, and
  the cap on cumulative retention.

KEY CONCEPTS:
  - CommercialTerms: The complete, validated record threaded through every
    forecast call. There is no package-level "current terms".
  - Partial: A record with any subset of the four fields, as produced by the
    term extraction service.
  - Merge: Overwrites only the fields a Partial carries.

DEFAULTS:
  30 days payment, 14 days honouring, 10% retention, 5% retention limit.
  These reflect a common private-sector standard form and are used whenever
  extraction fails or returns an incomplete record.

SEE ALSO:
  - extraction.go: Tagged extraction results and lenient payload parsing
  - cashflow/projector.go: Consumes CommercialTerms
*/
package terms

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/warp/cashflow-engine/generic"
)

// =============================================================================
// COMMERCIAL TERMS
// =============================================================================

// Field names as they appear on the extraction wire record.
const (
	FieldPaymentPeriod  = "payment_period"
	FieldHonourPeriod   = "honor_cert_period"
	FieldRetention      = "retention_percent"
	FieldRetentionLimit = "retention_limit"
)

// MaxPeriodDays bounds both day counts (ten years).
const MaxPeriodDays = 3650

// AllFields lists the wire field names in a stable order.
var AllFields = []string{FieldPaymentPeriod, FieldHonourPeriod, FieldRetention, FieldRetentionLimit}

// CommercialTerms are the contractual parameters that govern cash release.
type CommercialTerms struct {
	PaymentPeriodDays     int             `json:"payment_period"`
	HonouringPeriodDays   int             `json:"honor_cert_period"`
	RetentionPercent      decimal.Decimal `json:"retention_percent"`
	RetentionLimitPercent decimal.Decimal `json:"retention_limit"`
}

// Source records which producer set the current terms.
type Source string

const (
	SourceDefault    Source = "default"
	SourceManual     Source = "manual"
	SourceExtraction Source = "extraction"
)

// Defaults returns the standard-form fallback terms.
func Defaults() CommercialTerms {
	return CommercialTerms{
		PaymentPeriodDays:     30,
		HonouringPeriodDays:   14,
		RetentionPercent:      decimal.NewFromInt(10),
		RetentionLimitPercent: decimal.NewFromInt(5),
	}
}

// New builds terms from plain numbers and validates them.
func New(paymentDays, honouringDays int, retentionPct, limitPct float64) (CommercialTerms, error) {
	t := CommercialTerms{
		PaymentPeriodDays:     paymentDays,
		HonouringPeriodDays:   honouringDays,
		RetentionPercent:      decimal.NewFromFloat(retentionPct),
		RetentionLimitPercent: decimal.NewFromFloat(limitPct),
	}
	if err := t.Validate(); err != nil {
		return CommercialTerms{}, err
	}
	return t, nil
}

// LagDays is the total delay from activity completion to cash receipt.
func (t CommercialTerms) LagDays() int {
	return t.PaymentPeriodDays + t.HonouringPeriodDays
}

// Validate checks every field range and reports all violations.
func (t CommercialTerms) Validate() error {
	var errs generic.ValidationErrors
	if !validDays(t.PaymentPeriodDays) {
		errs = append(errs, &generic.TermError{Field: FieldPaymentPeriod, Value: strconv.Itoa(t.PaymentPeriodDays), Reason: dayRange})
	}
	if !validDays(t.HonouringPeriodDays) {
		errs = append(errs, &generic.TermError{Field: FieldHonourPeriod, Value: strconv.Itoa(t.HonouringPeriodDays), Reason: dayRange})
	}
	if !generic.ValidPercent(t.RetentionPercent) {
		errs = append(errs, &generic.TermError{Field: FieldRetention, Value: t.RetentionPercent.String(), Reason: "must be between 0 and 100"})
	}
	if !generic.ValidPercent(t.RetentionLimitPercent) {
		errs = append(errs, &generic.TermError{Field: FieldRetentionLimit, Value: t.RetentionLimitPercent.String(), Reason: "must be between 0 and 100"})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

var dayRange = "must be between 0 and " + strconv.Itoa(MaxPeriodDays)

func validDays(n int) bool { return n >= 0 && n <= MaxPeriodDays }

func (t CommercialTerms) Equal(o CommercialTerms) bool {
	return t.PaymentPeriodDays == o.PaymentPeriodDays &&
		t.HonouringPeriodDays == o.HonouringPeriodDays &&
		t.RetentionPercent.Equal(o.RetentionPercent) &&
		t.RetentionLimitPercent.Equal(o.RetentionLimitPercent)
}

// =============================================================================
// PARTIAL TERMS - Any subset of the four fields
// =============================================================================

// Partial carries the fields an extraction actually produced. Nil means absent.
type Partial struct {
	PaymentPeriodDays     *int
	HonouringPeriodDays   *int
	RetentionPercent      *decimal.Decimal
	RetentionLimitPercent *decimal.Decimal
}

// Fields returns the wire names of the fields present, in stable order.
func (p Partial) Fields() []string {
	var out []string
	if p.PaymentPeriodDays != nil {
		out = append(out, FieldPaymentPeriod)
	}
	if p.HonouringPeriodDays != nil {
		out = append(out, FieldHonourPeriod)
	}
	if p.RetentionPercent != nil {
		out = append(out, FieldRetention)
	}
	if p.RetentionLimitPercent != nil {
		out = append(out, FieldRetentionLimit)
	}
	return out
}

func (p Partial) IsEmpty() bool { return len(p.Fields()) == 0 }

// Complete reports whether all four fields are present.
func (p Partial) Complete() bool { return len(p.Fields()) == len(AllFields) }

// Merge overwrites only the fields present in p.
func (t CommercialTerms) Merge(p Partial) CommercialTerms {
	out := t
	if p.PaymentPeriodDays != nil {
		out.PaymentPeriodDays = *p.PaymentPeriodDays
	}
	if p.HonouringPeriodDays != nil {
		out.HonouringPeriodDays = *p.HonouringPeriodDays
	}
	if p.RetentionPercent != nil {
		out.RetentionPercent = *p.RetentionPercent
	}
	if p.RetentionLimitPercent != nil {
		out.RetentionLimitPercent = *p.RetentionLimitPercent
	}
	return out
}
