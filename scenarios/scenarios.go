/*
Package scenarios holds demo projects with known forecasts.

AVAILABLE SCENARIOS:
  single-activity: One 100,000 activity, standard terms; one August bucket
  empty-schedule:  No activities; zero buckets and the opening-gap advisory
  same-month-pair: Two activities whose cash lands in the same month
  opening-gap:     Mobilisation at zero value opens the forecast with nothing
  slow-payer:      Public-sector style terms above the long-lag threshold

They are loadable through the API and double as fixtures in tests.
*/
package scenarios

import (
	"time"

	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

type Scenario struct {
	ID          string
	Name        string
	Description string
	Currency    generic.Currency
	Terms       terms.CommercialTerms
	Activities  []schedule.Activity
}

func All() []Scenario {
	return []Scenario{
		singleActivity(),
		emptySchedule(),
		sameMonthPair(),
		openingGap(),
		slowPayer(),
	}
}

// Get returns the scenario with the given ID.
func Get(id string) (Scenario, bool) {
	for _, s := range All() {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

func d(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

func rm(v int64) generic.Amount {
	return generic.NewAmountFromInt(v, generic.CurrencyMYR)
}

func mustTerms(payment, honouring int, retention, limit float64) terms.CommercialTerms {
	t, err := terms.New(payment, honouring, retention, limit)
	if err != nil {
		panic(err)
	}
	return t
}

func singleActivity() Scenario {
	return Scenario{
		ID:          "single-activity",
		Name:        "Single Activity",
		Description: "100,000 of works finishing 30 Jun 2025 under 30/14/10% terms; 90,000 arrives in Aug 2025",
		Currency:    generic.CurrencyMYR,
		Terms:       terms.Defaults(),
		Activities: []schedule.Activity{
			schedule.NewActivity("substructure", "Substructure", d(2025, time.May, 1), d(2025, time.June, 30), rm(100000)),
		},
	}
}

func emptySchedule() Scenario {
	return Scenario{
		ID:          "empty-schedule",
		Name:        "Empty Schedule",
		Description: "No activities yet; the forecast is empty and warns of an opening cash gap",
		Currency:    generic.CurrencyMYR,
		Terms:       terms.Defaults(),
	}
}

func sameMonthPair() Scenario {
	return Scenario{
		ID:          "same-month-pair",
		Name:        "Same-Month Pair",
		Description: "Two activities with 20% retention whose cash both lands in Sep 2025 (50,000 + 20,000)",
		Currency:    generic.CurrencyMYR,
		Terms:       mustTerms(30, 14, 20, 5),
		Activities: []schedule.Activity{
			schedule.NewActivity("frame", "Frame", d(2025, time.July, 1), d(2025, time.July, 28), rm(62500)),
			schedule.NewActivity("services", "Services", d(2025, time.August, 1), d(2025, time.August, 12), rm(25000)),
		},
	}
}

func openingGap() Scenario {
	return Scenario{
		ID:          "opening-gap",
		Name:        "Mixed Project With Opening Gap",
		Description: "Unvalued mobilisation followed by valued works; the first month brings in nothing",
		Currency:    generic.CurrencyMYR,
		Terms:       terms.Defaults(),
		Activities: []schedule.Activity{
			schedule.NewActivity("mobilisation", "Mobilisation", d(2025, time.January, 6), d(2025, time.January, 17), rm(0)),
			schedule.NewActivity("piling", "Piling", d(2025, time.January, 20), d(2025, time.March, 28), rm(180000)),
			schedule.NewActivity("substructure", "Substructure", d(2025, time.March, 31), d(2025, time.June, 27), rm(420000)),
			schedule.NewActivity("frame", "Superstructure Frame", d(2025, time.June, 30), d(2025, time.October, 31), rm(760000)),
		},
	}
}

func slowPayer() Scenario {
	return Scenario{
		ID:          "slow-payer",
		Name:        "Slow Payer",
		Description: "60-day payment and 28-day certification; raises the long payment lag advisory",
		Currency:    generic.CurrencyMYR,
		Terms:       mustTerms(60, 28, 5, 5),
		Activities: []schedule.Activity{
			schedule.NewActivity("earthworks", "Earthworks", d(2025, time.February, 3), d(2025, time.April, 30), rm(250000)),
			schedule.NewActivity("drainage", "Drainage", d(2025, time.May, 5), d(2025, time.July, 31), rm(150000)),
		},
	}
}
