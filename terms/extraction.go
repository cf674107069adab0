/*
extraction.go - Tagged results from the term extraction service

PURPOSE:
  The extraction service is an untrusted producer. It may fail outright, reply
  with prose, wrap the record in markdown fences, use single quotes, or omit
  fields. This file turns whatever came back into one of three outcomes and
  merges only what is usable.

RESULT KINDS:
  ResultOK:           A record with at least one valid known field
  ResultParseFailure: Text came back but holds no usable record (Raw is kept
                      for manual inspection)
  ResultCallFailure:  The call itself failed (Err is set)

PARSING STRATEGY (first success wins, per candidate object):
  1. Standard JSON
  2. JSON repair (github.com/RealAlexandreAI/json-repair)
  3. Hjson, the most lenient (github.com/hjson/hjson-go/v4)
  Candidates are every balanced {...} block in the text. Text with no braces
  is read once as a braceless Hjson object ("key: value" lines).

MERGE RULES:
  - Call failure or parse failure: prior terms unchanged, warning surfaced
  - Partial record: only present, valid fields overwrite prior terms
  - Out-of-range field: dropped with a warning, the rest still merge

SEE ALSO:
  - terms.go: CommercialTerms, Partial, Merge
  - extraction/gemini.go: Gemini-backed Extractor
*/
package terms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/shopspring/decimal"

	"github.com/warp/cashflow-engine/generic"
)

// =============================================================================
// EXTRACTOR - External collaborator
// =============================================================================

// Extractor asks an external service to read contract text and reply with the
// four commercial terms. The reply is raw text; parsing happens here.
type Extractor interface {
	ExtractTerms(ctx context.Context, document string) (string, error)
}

// =============================================================================
// RESULT - Tagged outcome of one extraction attempt
// =============================================================================

type ResultKind string

const (
	ResultOK           ResultKind = "ok"
	ResultParseFailure ResultKind = "parse_failure"
	ResultCallFailure  ResultKind = "call_failure"
)

type Result struct {
	Kind    ResultKind
	Partial Partial  // set when Kind == ResultOK
	Raw     string   // the response text, when there was one
	Err     error    // set for failures
	Dropped []string // field-level rejects, e.g. "retention_percent: must be between 0 and 100"
}

func (r Result) OK() bool { return r.Kind == ResultOK }

// Extract runs the extractor and classifies its reply. It never panics and
// never returns an error: failures are encoded in the Result.
func Extract(ctx context.Context, ex Extractor, document string) Result {
	if ex == nil {
		return Result{Kind: ResultCallFailure, Err: generic.ErrExtractorUnavailable}
	}
	raw, err := ex.ExtractTerms(ctx, document)
	if err != nil {
		return Result{Kind: ResultCallFailure, Raw: raw, Err: fmt.Errorf("%w: %w", generic.ErrExtractionFailed, err)}
	}
	return ParseExtraction(raw)
}

// ParseExtraction extracts the structured record from a free-text reply.
func ParseExtraction(raw string) Result {
	var dropped []string
	for _, candidate := range candidates(raw) {
		var fields map[string]any
		var ok bool
		if strings.HasPrefix(candidate, "{") {
			fields, ok = decodeLenient(candidate)
		} else {
			fields, ok = decodeBraceless(candidate)
		}
		if !ok {
			continue
		}
		partial, rejects, known := partialFromFields(fields)
		dropped = append(dropped, rejects...)
		if !known {
			continue
		}
		if partial.IsEmpty() {
			// Known keys, all invalid: nothing to merge.
			break
		}
		return Result{Kind: ResultOK, Partial: partial, Raw: raw, Dropped: rejects}
	}
	return Result{
		Kind:    ResultParseFailure,
		Raw:     raw,
		Err:     generic.ErrParseFailure,
		Dropped: dropped,
	}
}

// =============================================================================
// APPLY - Merge a result into the current terms
// =============================================================================

// Outcome explains what an extraction did to the terms.
type Outcome struct {
	Terms    CommercialTerms
	Applied  bool
	Fields   []string // fields overwritten
	Warnings []string
	Raw      string // kept on failure for manual inspection
}

// Apply merges r into current. Prior terms stay authoritative on any failure.
func Apply(current CommercialTerms, r Result) Outcome {
	switch r.Kind {
	case ResultOK:
		out := Outcome{
			Terms:   current.Merge(r.Partial),
			Applied: true,
			Fields:  r.Partial.Fields(),
		}
		for _, d := range r.Dropped {
			out.Warnings = append(out.Warnings, "ignored extracted value "+d)
		}
		if missing := missingFields(out.Fields); len(missing) > 0 {
			out.Warnings = append(out.Warnings,
				"extraction did not return "+strings.Join(missing, ", ")+"; prior values kept")
		}
		return out

	case ResultCallFailure:
		msg := "term extraction failed; previous terms kept"
		if r.Err != nil {
			msg += ": " + r.Err.Error()
		}
		return Outcome{Terms: current, Warnings: []string{msg}, Raw: r.Raw}

	default:
		warnings := []string{"term extraction reply could not be parsed; previous terms kept (see raw response)"}
		for _, d := range r.Dropped {
			warnings = append(warnings, "ignored extracted value "+d)
		}
		return Outcome{Terms: current, Warnings: warnings, Raw: r.Raw}
	}
}

func missingFields(present []string) []string {
	have := make(map[string]bool, len(present))
	for _, f := range present {
		have[f] = true
	}
	var missing []string
	for _, f := range AllFields {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// =============================================================================
// LENIENT DECODING
// =============================================================================

// candidates returns every balanced {...} block, outermost first. If the text
// holds no brace at all, the whole text is the only candidate.
func candidates(raw string) []string {
	var out []string
	depth, start := 0, -1
	inString := false
	var quote rune
	escaped := false
	for i, r := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				inString = false
			}
			continue
		}
		switch r {
		case '"', '\'':
			if depth > 0 {
				inString, quote = true, r
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, raw[start:i+1])
					start = -1
				}
			}
		}
	}
	if depth > 0 && start >= 0 {
		// Unclosed object, e.g. a truncated reply. Repair may close it.
		out = append(out, raw[start:])
	}
	if trimmed := strings.TrimSpace(raw); len(out) == 0 && trimmed != "" {
		out = append(out, trimmed)
	}
	return out
}

func decodeLenient(candidate string) (m map[string]any, ok bool) {
	defer func() {
		// Third-party repair code must not take the forecast path down.
		if recover() != nil {
			m, ok = nil, false
		}
	}()
	if m, err := decodeJSON(candidate); err == nil {
		return m, true
	}
	if repaired, err := jsonrepair.RepairJSON(candidate); err == nil {
		if m, err := decodeJSON(repaired); err == nil {
			return m, true
		}
	}
	var hm map[string]any
	if err := hjson.Unmarshal([]byte(candidate), &hm); err == nil && hm != nil {
		return hm, true
	}
	return nil, false
}

// decodeBraceless reads "key: value" lines as an Hjson root object. Prose
// without that shape fails to decode.
func decodeBraceless(text string) (m map[string]any, ok bool) {
	defer func() {
		if recover() != nil {
			m, ok = nil, false
		}
	}()
	if err := hjson.Unmarshal([]byte(text), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func decodeJSON(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("not an object")
	}
	return m, nil
}

// aliases maps normalized keys to wire field names. Extraction models drift
// between spellings.
var aliases = map[string]string{
	"payment_period":          FieldPaymentPeriod,
	"payment_period_days":     FieldPaymentPeriod,
	"honor_cert_period":       FieldHonourPeriod,
	"honour_cert_period":      FieldHonourPeriod,
	"honouring_period_days":   FieldHonourPeriod,
	"honoring_period_days":    FieldHonourPeriod,
	"retention_percent":       FieldRetention,
	"retention":               FieldRetention,
	"retention_limit":         FieldRetentionLimit,
	"retention_limit_percent": FieldRetentionLimit,
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	return k
}

// partialFromFields picks the known fields out of a decoded object. known is
// false if the object carries none of the four keys at all. When several
// spellings of one field appear, the wire name wins over an alias and aliases
// are taken in sorted key order.
func partialFromFields(fields map[string]any) (p Partial, rejects []string, known bool) {
	for _, k := range fieldOrder(fields) {
		v := fields[k]
		field := aliases[normalizeKey(k)]
		known = true
		d, err := toDecimal(v)
		if err != nil {
			rejects = append(rejects, fmt.Sprintf("%s: %v", field, err))
			continue
		}
		switch field {
		case FieldPaymentPeriod, FieldHonourPeriod:
			days, err := toDays(d)
			if err != nil {
				rejects = append(rejects, fmt.Sprintf("%s: %v", field, err))
				continue
			}
			if field == FieldPaymentPeriod {
				p.PaymentPeriodDays = &days
			} else {
				p.HonouringPeriodDays = &days
			}
		case FieldRetention, FieldRetentionLimit:
			if !generic.ValidPercent(d) {
				rejects = append(rejects, fmt.Sprintf("%s: %s must be between 0 and 100", field, d))
				continue
			}
			pct := d
			if field == FieldRetention {
				p.RetentionPercent = &pct
			} else {
				p.RetentionLimitPercent = &pct
			}
		}
	}
	return p, rejects, known
}

// fieldOrder returns the recognized keys of fields so that later keys
// override earlier ones: aliases first, then wire names, each sorted.
func fieldOrder(fields map[string]any) []string {
	var alias, wire []string
	for k := range fields {
		field, ok := aliases[normalizeKey(k)]
		switch {
		case !ok:
		case normalizeKey(k) == field:
			wire = append(wire, k)
		default:
			alias = append(alias, k)
		}
	}
	sort.Strings(alias)
	sort.Strings(wire)
	return append(alias, wire...)
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case string:
		// "30 days", "10%", "5.0 percent"
		m := numberPattern.FindString(x)
		if m == "" {
			return decimal.Zero, fmt.Errorf("no number in %q", x)
		}
		return decimal.NewFromString(m)
	case nil:
		return decimal.Zero, errors.New("null value")
	default:
		return decimal.Zero, fmt.Errorf("unsupported value %v", v)
	}
}

func toDays(d decimal.Decimal) (int, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%s must be non-negative", d)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%s is not a whole number of days", d)
	}
	if d.GreaterThan(decimal.NewFromInt(MaxPeriodDays)) {
		return 0, fmt.Errorf("%s exceeds %d days", d, MaxPeriodDays)
	}
	return int(d.IntPart()), nil
}
