/*
main.go - Command-line forecaster

Runs the forecast engine on a schedule CSV (or a demo scenario) without a
server or database.

COMMANDS:
  forecast run --schedule works.csv [--terms terms.json] [--dense]
               [--format table|csv|json] [--retention-limit] [--release-at 2026-06-30]
  forecast run --scenario same-month-pair
  forecast scenarios

SCHEDULE CSV:
  Activity,Start Date,End Date,Value
  Substructure,2025-05-01,2025-06-30,100000

  Rows that cannot be parsed are listed on stderr and left out. Rows that
  parse but are unusable (inverted span, negative value) show up as schedule
  issues in the report.

TERMS FILE:
  Read with the same lenient parser as extraction replies, so a pasted
  model answer or a hand-written file with comments both work. Missing
  fields keep their defaults; a file with no usable terms at all falls back
  to the defaults with a warning on stderr.
*/
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/cashflow-engine/api"
	"github.com/warp/cashflow-engine/cashflow"
	"github.com/warp/cashflow-engine/export"
	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/scenarios"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

type runFlags struct {
	schedulePath   string
	termsPath      string
	scenarioID     string
	currency       string
	dense          bool
	format         string
	retentionLimit bool
	releaseAt      string
	longLagDays    int
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "forecast",
		Short:        "Project contract cash inflows from a programme of works",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newRunCmd(), newScenariosCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Forecast a schedule CSV or a demo scenario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), cmd.ErrOrStderr(), f)
		},
	}

	cmd.Flags().StringVarP(&f.schedulePath, "schedule", "s", "", "Schedule CSV (Activity,Start Date,End Date,Value)")
	cmd.Flags().StringVarP(&f.termsPath, "terms", "t", "", "Terms file; defaults to 30/14/10%/5%")
	cmd.Flags().StringVar(&f.scenarioID, "scenario", "", "Run a demo scenario instead of a schedule file")
	cmd.Flags().StringVar(&f.currency, "currency", string(generic.DefaultCurrency), "Currency of schedule values")
	cmd.Flags().BoolVar(&f.dense, "dense", false, "Emit every month in range, including empty ones")
	cmd.Flags().StringVarP(&f.format, "format", "f", "table", "Output format: table, csv or json")
	cmd.Flags().BoolVar(&f.retentionLimit, "retention-limit", false, "Cap cumulative retention at the limit percentage")
	cmd.Flags().StringVar(&f.releaseAt, "release-at", "", "Release retained sums on this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.longLagDays, "long-lag-days", cashflow.DefaultLongLagDays, "Lag that raises an advisory; negative disables")
	cmd.MarkFlagsMutuallyExclusive("schedule", "scenario")
	cmd.MarkFlagsOneRequired("schedule", "scenario")

	return cmd
}

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List demo scenarios",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, s := range scenarios.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", s.ID, s.Description)
			}
		},
	}
}

func run(stdout, stderr io.Writer, f runFlags) error {
	title, activities, t, err := load(stderr, f)
	if err != nil {
		return err
	}

	opts := cashflow.Options{
		Currency:    generic.Currency(strings.ToUpper(f.currency)),
		LongLagDays: f.longLagDays,
		Retention:   cashflow.RetentionPolicy{EnforceLimit: f.retentionLimit},
	}
	if f.dense {
		opts.Mode = cashflow.ModeDense
	}
	if f.releaseAt != "" {
		d, err := generic.ParseDate(f.releaseAt)
		if err != nil {
			return fmt.Errorf("--release-at: %w", err)
		}
		opts.Retention.ReleaseAt = &d
	}

	forecast := cashflow.Run(activities, t, opts)

	switch f.format {
	case "table":
		return export.NewReporter(stdout).Handle(&export.Report{Title: title, Forecast: forecast})
	case "csv":
		return export.WriteCSV(stdout, forecast.Rows)
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewForecastDTO(forecast))
	default:
		return fmt.Errorf("--format %q: want table, csv or json", f.format)
	}
}

func load(stderr io.Writer, f runFlags) (string, []schedule.Activity, terms.CommercialTerms, error) {
	if f.scenarioID != "" {
		s, ok := scenarios.Get(f.scenarioID)
		if !ok {
			return "", nil, terms.CommercialTerms{}, fmt.Errorf("unknown scenario %q", f.scenarioID)
		}
		return s.Name, s.Activities, s.Terms, nil
	}

	file, err := os.Open(f.schedulePath)
	if err != nil {
		return "", nil, terms.CommercialTerms{}, err
	}
	defer file.Close()

	activities, rowErrs, err := export.ReadScheduleCSV(file, generic.Currency(strings.ToUpper(f.currency)))
	if err != nil {
		return "", nil, terms.CommercialTerms{}, fmt.Errorf("%s: %w", f.schedulePath, err)
	}
	for _, re := range rowErrs {
		fmt.Fprintf(stderr, "%s: %v (row left out)\n", f.schedulePath, re)
	}

	t := terms.Defaults()
	if f.termsPath != "" {
		if t, err = readTerms(stderr, f.termsPath); err != nil {
			return "", nil, terms.CommercialTerms{}, err
		}
	}
	return f.schedulePath, activities, t, nil
}

func readTerms(stderr io.Writer, path string) (terms.CommercialTerms, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return terms.CommercialTerms{}, err
	}
	result := terms.ParseExtraction(string(raw))
	if !result.OK() {
		fmt.Fprintf(stderr, "%s: no commercial terms found; using defaults\n", path)
		return terms.Defaults(), nil
	}
	for _, d := range result.Dropped {
		fmt.Fprintf(stderr, "%s: ignored %s\n", path, d)
	}
	return terms.Defaults().Merge(result.Partial), nil
}
