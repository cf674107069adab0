/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  domain types in project, schedule, terms and cashflow.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts go out as strings fixed at 2 dp ("90000.00"). Activity values are
  accepted as either JSON numbers or strings and parsed as decimals, so no
  float rounding happens on the way in.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/cashflow-engine/cashflow"
	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/project"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ProjectDTO represents a project with its schedule and current terms.
type ProjectDTO struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Currency    string                `json:"currency"`
	Terms       terms.CommercialTerms `json:"terms"`
	TermsSource string                `json:"terms_source"`
	Activities  []ActivityDTO         `json:"activities"`
	CreatedAt   string                `json:"created_at"`
	UpdatedAt   string                `json:"updated_at"`
}

type CreateProjectRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

// ActivityDTO represents one schedule row.
type ActivityDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Value     string `json:"value"`
}

// ActivityRequest is the body for adding or editing an activity. ID is only
// read by the stateless forecast endpoint.
type ActivityRequest struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Value     decimal.Decimal `json:"value"`
}

type ExtractTermsRequest struct {
	Document string `json:"document"`
}

// ExtractTermsResponse reports one extraction attempt and the terms now in
// force.
type ExtractTermsResponse struct {
	Result   string                `json:"result"` // ok, parse_failure, call_failure
	Applied  bool                  `json:"applied"`
	Fields   []string              `json:"fields"`
	Warnings []string              `json:"warnings"`
	Terms    terms.CommercialTerms `json:"terms"`
	Raw      string                `json:"raw,omitempty"`
}

type ForecastDTO struct {
	Terms      terms.CommercialTerms `json:"terms"`
	Mode       string                `json:"mode"`
	Rows       []RowDTO              `json:"rows"`
	Advisories []AdvisoryDTO         `json:"advisories"`
	Issues     []IssueDTO            `json:"issues"`
	Events     []EventDTO            `json:"events"`
	Totals     TotalsDTO             `json:"totals"`
}

type RowDTO struct {
	Month          string `json:"month"`
	NetInflow      string `json:"net_inflow"`
	CumulativeCash string `json:"cumulative_cash"`
}

type AdvisoryDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type IssueDTO struct {
	Row        int    `json:"row"` // 0-based position in the submitted schedule
	ActivityID string `json:"activity_id,omitempty"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	Skipped    bool   `json:"skipped"`
	Message    string `json:"message"`
}

type EventDTO struct {
	Kind       string `json:"kind"`
	ActivityID string `json:"activity_id,omitempty"`
	Name       string `json:"name"`
	CashIn     string `json:"cash_in"`
	Gross      string `json:"gross"`
	Retained   string `json:"retained"`
	Net        string `json:"net"`
}

type TotalsDTO struct {
	Gross    string `json:"gross"`
	Retained string `json:"retained"`
	Net      string `json:"net"`
}

// ForecastRequest is the body of the stateless forecast endpoint. Missing
// terms mean defaults.
type ForecastRequest struct {
	Activities     []ActivityRequest      `json:"activities"`
	Terms          *terms.CommercialTerms `json:"terms,omitempty"`
	Currency       string                 `json:"currency,omitempty"`
	Mode           string                 `json:"mode,omitempty"`
	RetentionLimit bool                   `json:"retention_limit,omitempty"`
	ReleaseAt      string                 `json:"release_at,omitempty"`
}

// DocumentDTO omits content; documents can be large.
type DocumentDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Size      int    `json:"size"`
	CreatedAt string `json:"created_at"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Activities  int    `json:"activities"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toProjectDTO(p project.Project) ProjectDTO {
	return ProjectDTO{
		ID:          string(p.ID),
		Name:        p.Name,
		Currency:    string(p.Currency),
		Terms:       p.Terms,
		TermsSource: string(p.TermsSource),
		Activities:  toActivityDTOs(p.Activities),
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toActivityDTOs(activities []schedule.Activity) []ActivityDTO {
	dtos := make([]ActivityDTO, len(activities))
	for i, a := range activities {
		dtos[i] = ActivityDTO{
			ID:        string(a.ID),
			Name:      a.Name,
			StartDate: a.Start().String(),
			EndDate:   a.End().String(),
			Value:     a.Value.Value.String(),
		}
	}
	return dtos
}

// toActivity parses dates only. Span and value checks are left to the caller:
// stores reject bad rows, the forecast endpoint reports them.
func (r ActivityRequest) toActivity(id schedule.ActivityID, currency generic.Currency) (schedule.Activity, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return schedule.Activity{}, fmt.Errorf("name is required")
	}
	start, err := generic.ParseDate(r.StartDate)
	if err != nil {
		return schedule.Activity{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := generic.ParseDate(r.EndDate)
	if err != nil {
		return schedule.Activity{}, fmt.Errorf("end_date: %w", err)
	}
	return schedule.NewActivity(id, name, start, end, generic.NewAmountFromDecimal(r.Value, currency)), nil
}

// NewForecastDTO renders a forecast for JSON output.
func NewForecastDTO(f cashflow.Forecast) ForecastDTO {
	dto := ForecastDTO{
		Terms:      f.Terms,
		Mode:       string(f.Mode),
		Rows:       make([]RowDTO, len(f.Rows)),
		Advisories: make([]AdvisoryDTO, len(f.Advisories)),
		Issues:     make([]IssueDTO, len(f.Issues)),
		Events:     make([]EventDTO, len(f.Events)),
		Totals: TotalsDTO{
			Gross:    f.Totals.Gross.StringFixed(),
			Retained: f.Totals.Retained.StringFixed(),
			Net:      f.Totals.Net.StringFixed(),
		},
	}
	for i, r := range f.Rows {
		dto.Rows[i] = RowDTO{
			Month:          r.Month,
			NetInflow:      r.NetInflow.StringFixed(),
			CumulativeCash: r.CumulativeCash.StringFixed(),
		}
	}
	for i, a := range f.Advisories {
		dto.Advisories[i] = AdvisoryDTO{Code: string(a.Code), Message: a.Message}
	}
	for i, is := range f.Issues {
		dto.Issues[i] = IssueDTO{
			Row:        is.Index,
			ActivityID: string(is.ActivityID),
			Name:       is.Name,
			Code:       string(is.Code),
			Skipped:    is.Skipped,
			Message:    is.Message,
		}
	}
	for i, e := range f.Events {
		dto.Events[i] = EventDTO{
			Kind:       string(e.Kind),
			ActivityID: string(e.ActivityID),
			Name:       e.ActivityName,
			CashIn:     e.CashIn.String(),
			Gross:      e.Gross.StringFixed(),
			Retained:   e.Retained.StringFixed(),
			Net:        e.Net.StringFixed(),
		}
	}
	return dto
}

func toDocumentDTOs(docs []project.Document) []DocumentDTO {
	dtos := make([]DocumentDTO, len(docs))
	for i, d := range docs {
		dtos[i] = DocumentDTO{
			ID:        d.ID,
			Kind:      string(d.Kind),
			Name:      d.Name,
			Size:      len(d.Content),
			CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return dtos
}
