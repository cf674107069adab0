/*
Package project holds the persisted side of a forecast: a named project with
its schedule, its current commercial terms, and the documents produced for it.

KEY CONCEPTS:
  - Project: One contract. Owns its activities (in schedule order) and one
    current CommercialTerms record, replaced wholesale.
  - Document: An artifact kept under the project, such as an exported
    forecast CSV or a raw extraction reply kept for manual inspection.
  - Store: Persistence boundary. The forecast engine never depends on it;
    hosts load a snapshot, run the engine, and optionally save artifacts.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for tests and dev

SEE ALSO:
  - schedule: Activity validation and ordering
  - terms: CommercialTerms
*/
package project

import (
	"context"
	"time"

	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

type ID string

// Project is one contract under forecast.
type Project struct {
	ID          ID
	Name        string
	Currency    generic.Currency
	Activities  []schedule.Activity // schedule order
	Terms       terms.CommercialTerms
	TermsSource terms.Source
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New returns a project with default terms and no activities.
func New(id ID, name string, currency generic.Currency, now time.Time) Project {
	if currency == "" {
		currency = generic.DefaultCurrency
	}
	return Project{
		ID:          id,
		Name:        name,
		Currency:    currency,
		Terms:       terms.Defaults(),
		TermsSource: terms.SourceDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Schedule returns an editable schedule seeded from the project's activities.
func (p Project) Schedule() *schedule.Schedule {
	return schedule.New(p.Activities...)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type DocumentKind string

const (
	DocumentForecastCSV   DocumentKind = "forecast_csv"
	DocumentExtractionRaw DocumentKind = "extraction_raw"
	DocumentContract      DocumentKind = "contract"
)

type Document struct {
	ID        string
	ProjectID ID
	Kind      DocumentKind
	Name      string
	Content   string
	CreatedAt time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store persists projects, their schedules, terms and documents.
// Implementations must be safe for concurrent use.
type Store interface {
	CreateProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id ID) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	DeleteProject(ctx context.Context, id ID) error

	// AddActivity appends to the end of the schedule.
	AddActivity(ctx context.Context, id ID, a schedule.Activity) error
	// UpdateActivity edits in place, keeping schedule position.
	UpdateActivity(ctx context.Context, id ID, a schedule.Activity) error
	DeleteActivity(ctx context.Context, id ID, activityID schedule.ActivityID) error

	// SetTerms replaces the current terms wholesale.
	SetTerms(ctx context.Context, id ID, t terms.CommercialTerms, source terms.Source) error

	SaveDocument(ctx context.Context, d Document) error
	ListDocuments(ctx context.Context, id ID) ([]Document, error)
}
