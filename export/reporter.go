package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/warp/cashflow-engine/cashflow"
)

type TableConfig struct {
	MonthWidth  int
	AmountWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		MonthWidth:  9,
		AmountWidth: 18,
	}
}

// Report is what the terminal reporter renders.
type Report struct {
	Title    string
	Forecast cashflow.Forecast
}

type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

const reportTemplate = `{{.Title}}

Terms: payment {{.Forecast.Terms.PaymentPeriodDays}} days, honouring {{.Forecast.Terms.HonouringPeriodDays}} days, retention {{.Forecast.Terms.RetentionPercent}}% (limit {{.Forecast.Terms.RetentionLimitPercent}}%)
Mode:  {{.Forecast.Mode}}

{{separator}}
{{formatRow "Month" "Net inflow" "Cumulative cash"}}
{{separator}}
{{range .Forecast.Rows}}{{formatRow .Month .NetInflow.StringFixed .CumulativeCash.StringFixed}}
{{else}}{{formatRow "(none)" "" ""}}
{{end}}{{separator}}

Gross certified: {{.Forecast.Totals.Gross.StringFixed}}
Retained:        {{.Forecast.Totals.Retained.StringFixed}}
Net received:    {{.Forecast.Totals.Net.StringFixed}}
{{if .Forecast.Advisories}}
Advisories:
{{range .Forecast.Advisories}}  ! {{.Message}}
{{end}}{{end}}{{if .Forecast.Issues}}
Schedule issues:
{{range .Forecast.Issues}}  - row {{inc .Index}} ({{.Name}}): {{.Message}}{{if .Skipped}} [skipped]{{end}}
{{end}}{{end}}`

// Handle renders the report as a fixed-width text table followed by totals,
// advisories and row issues.
func (c *Reporter) Handle(report *Report) error {
	funcMap := template.FuncMap{
		"formatRow": func(month, net, cumulative string) string {
			return fmt.Sprintf("| %-*s | %*s | %*s |",
				c.config.MonthWidth, month,
				c.config.AmountWidth, net,
				c.config.AmountWidth, cumulative)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+",
				strings.Repeat("-", c.config.MonthWidth+2),
				strings.Repeat("-", c.config.AmountWidth+2),
				strings.Repeat("-", c.config.AmountWidth+2))
		},
		"inc": func(i int) int { return i + 1 },
	}

	t, err := template.New("report").Funcs(funcMap).Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, report)
}
