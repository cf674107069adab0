/*
handlers.go - HTTP API handlers for the cash-flow forecasting service

PURPOSE:
  Exposes projects, their schedules and terms, and forecasts via REST API.
  Handles HTTP request/response and JSON serialization; the forecast itself
  is a pure cashflow.Run over a snapshot loaded from the store.

ENDPOINTS:
  Projects:
    GET    /api/projects                         List projects
    POST   /api/projects                         Create project (default terms)
    GET    /api/projects/{id}                    Project with schedule and terms
    DELETE /api/projects/{id}                    Delete project and its documents

  Schedule:
    POST   /api/projects/{id}/activities         Append activity
    PUT    /api/projects/{id}/activities/{aid}   Edit activity in place
    DELETE /api/projects/{id}/activities/{aid}   Remove activity

  Terms:
    PUT    /api/projects/{id}/terms              Manual terms (validated)
    POST   /api/projects/{id}/terms/extract      Extract terms from contract text

  Forecast:
    GET    /api/projects/{id}/forecast           ?mode=dense&retention_limit=true&release_at=YYYY-MM-DD
    GET    /api/projects/{id}/forecast.csv       CSV export, also kept as a document
    GET    /api/projects/{id}/documents          Stored documents (metadata only)
    POST   /api/forecast                         Stateless forecast

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Project or activity not found
  - 409: Duplicate ID
  - 500: Internal errors
  Extraction failures are not HTTP errors: the response says what happened
  and the prior terms stay in force.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/cashflow-engine/cashflow"
	"github.com/warp/cashflow-engine/export"
	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/project"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     project.Store
	Extractor terms.Extractor // nil disables extraction

	// Defaults apply when a request does not override them.
	Defaults       cashflow.Options
	ExtractTimeout time.Duration

	now   func() time.Time
	newID func() string
}

// NewHandler creates a new handler with the given store and extractor.
func NewHandler(store project.Store, extractor terms.Extractor, defaults cashflow.Options) *Handler {
	return &Handler{
		Store:          store,
		Extractor:      extractor,
		Defaults:       defaults,
		ExtractTimeout: 60 * time.Second,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"extraction": h.Extractor != nil,
	})
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to list projects", err)
		return
	}

	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	p := project.New(project.ID(h.newID()), strings.TrimSpace(req.Name), generic.Currency(strings.ToUpper(req.Currency)), h.now())
	if err := h.Store.CreateProject(r.Context(), p); err != nil {
		writeStoreError(w, "Failed to create project", err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("project_id", string(p.ID)).Msg("project created")
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), projectID(r))
	if err != nil {
		writeStoreError(w, "Failed to get project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(p))
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteProject(r.Context(), projectID(r)); err != nil {
		writeStoreError(w, "Failed to delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

func (h *Handler) AddActivity(w http.ResponseWriter, r *http.Request) {
	h.saveActivity(w, r, schedule.ActivityID(h.newID()), h.Store.AddActivity, http.StatusCreated)
}

func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	h.saveActivity(w, r, schedule.ActivityID(chi.URLParam(r, "aid")), h.Store.UpdateActivity, http.StatusOK)
}

type activityWriter func(ctx context.Context, id project.ID, a schedule.Activity) error

func (h *Handler) saveActivity(w http.ResponseWriter, r *http.Request, activityID schedule.ActivityID, save activityWriter, status int) {
	ctx := r.Context()
	id := projectID(r)

	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Store.GetProject(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to get project", err)
		return
	}

	a, err := req.toActivity(activityID, p.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid activity", err)
		return
	}
	if err := save(ctx, id, a); err != nil {
		writeStoreError(w, "Failed to save activity", err)
		return
	}

	writeJSON(w, status, toActivityDTOs([]schedule.Activity{a})[0])
}

func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	err := h.Store.DeleteActivity(r.Context(), projectID(r), schedule.ActivityID(chi.URLParam(r, "aid")))
	if err != nil {
		writeStoreError(w, "Failed to delete activity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TERMS HANDLERS
// =============================================================================

// SetTerms replaces the project's terms with a manually entered record.
func (h *Handler) SetTerms(w http.ResponseWriter, r *http.Request) {
	var t terms.CommercialTerms
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Store.SetTerms(r.Context(), projectID(r), t, terms.SourceManual); err != nil {
		writeStoreError(w, "Failed to set terms", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ExtractTerms sends contract text to the extraction service and merges
// whatever usable fields come back into the project's terms.
func (h *Handler) ExtractTerms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	id := projectID(r)

	var req ExtractTermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Document) == "" {
		writeError(w, http.StatusBadRequest, "document is required", nil)
		return
	}

	p, err := h.Store.GetProject(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to get project", err)
		return
	}
	stamp := h.now().UTC().Format("20060102T150405Z")
	h.saveDocument(ctx, project.Document{
		ProjectID: id,
		Kind:      project.DocumentContract,
		Name:      "contract-" + stamp + ".txt",
		Content:   req.Document,
	})

	callCtx := ctx
	if h.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, h.ExtractTimeout)
		defer cancel()
	}
	result := terms.Extract(callCtx, h.Extractor, req.Document)
	outcome := terms.Apply(p.Terms, result)

	for _, warning := range outcome.Warnings {
		logger.Warn().Str("project_id", string(id)).Str("result", string(result.Kind)).Msg(warning)
	}

	if outcome.Applied {
		if err := h.Store.SetTerms(ctx, id, outcome.Terms, terms.SourceExtraction); err != nil {
			writeStoreError(w, "Failed to save extracted terms", err)
			return
		}
		logger.Info().Str("project_id", string(id)).Strs("fields", outcome.Fields).Msg("extracted terms applied")
	}
	if outcome.Raw != "" && !outcome.Applied {
		h.saveDocument(ctx, project.Document{
			ProjectID: id,
			Kind:      project.DocumentExtractionRaw,
			Name:      "extraction-" + stamp + ".txt",
			Content:   outcome.Raw,
		})
	}

	fields := outcome.Fields
	if fields == nil {
		fields = []string{}
	}
	warnings := outcome.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, ExtractTermsResponse{
		Result:   string(result.Kind),
		Applied:  outcome.Applied,
		Fields:   fields,
		Warnings: warnings,
		Terms:    outcome.Terms,
		Raw:      outcome.Raw,
	})
}

// =============================================================================
// FORECAST HANDLERS
// =============================================================================

func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	p, f, ok := h.projectForecast(w, r)
	if !ok {
		return
	}
	zerolog.Ctx(r.Context()).Debug().
		Str("project_id", string(p.ID)).
		Int("rows", len(f.Rows)).
		Int("issues", len(f.Issues)).
		Msg("forecast computed")
	writeJSON(w, http.StatusOK, NewForecastDTO(f))
}

// ExportForecastCSV streams the forecast as CSV and keeps a copy as a project
// document. A failed save is logged; the download still succeeds.
func (h *Handler) ExportForecastCSV(w http.ResponseWriter, r *http.Request) {
	p, f, ok := h.projectForecast(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, f.Rows); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render CSV", err)
		return
	}

	name := fmt.Sprintf("forecast-%s.csv", h.now().UTC().Format("20060102T150405Z"))
	h.saveDocument(r.Context(), project.Document{
		ProjectID: p.ID,
		Kind:      project.DocumentForecastCSV,
		Name:      name,
		Content:   buf.String(),
	})

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Store.ListDocuments(r.Context(), projectID(r))
	if err != nil {
		writeStoreError(w, "Failed to list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTOs(docs))
}

// Forecast runs the engine on a schedule and terms supplied in the request.
// Nothing is persisted. Terms fields left out of the request keep their
// defaults; rows that cannot be read are reported as skipped issues.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	defaults := terms.Defaults()
	req := ForecastRequest{Terms: &defaults}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	currency := generic.Currency(strings.ToUpper(req.Currency))
	if currency == "" {
		currency = generic.DefaultCurrency
	}

	var rejected []cashflow.RowIssue
	activities := make([]schedule.Activity, 0, len(req.Activities))
	for i, ar := range req.Activities {
		id := schedule.ActivityID(ar.ID)
		if id == "" {
			id = schedule.ActivityID(fmt.Sprintf("row-%d", i+1))
		}
		a, err := ar.toActivity(id, currency)
		if err != nil {
			rejected = append(rejected, cashflow.RowIssue{
				Index:      i,
				ActivityID: id,
				Name:       ar.Name,
				Message:    err.Error(),
			})
			continue
		}
		activities = append(activities, a)
	}

	t := defaults
	if req.Terms != nil {
		t = *req.Terms
	}

	opts, err := h.options(req.Mode, req.RetentionLimit, req.ReleaseAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid forecast options", err)
		return
	}
	opts.Currency = currency
	opts.Rejected = rejected

	writeJSON(w, http.StatusOK, NewForecastDTO(cashflow.Run(activities, t, opts)))
}

// projectForecast loads a project snapshot and forecasts it with options from
// the query string. On failure it has already written the response.
func (h *Handler) projectForecast(w http.ResponseWriter, r *http.Request) (project.Project, cashflow.Forecast, bool) {
	q := r.URL.Query()
	retentionLimit := false
	if v := q.Get("retention_limit"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid retention_limit", err)
			return project.Project{}, cashflow.Forecast{}, false
		}
		retentionLimit = b
	}
	opts, err := h.options(q.Get("mode"), retentionLimit, q.Get("release_at"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid forecast options", err)
		return project.Project{}, cashflow.Forecast{}, false
	}

	p, err := h.Store.GetProject(r.Context(), projectID(r))
	if err != nil {
		writeStoreError(w, "Failed to get project", err)
		return project.Project{}, cashflow.Forecast{}, false
	}
	opts.Currency = p.Currency

	return p, cashflow.Run(p.Activities, p.Terms, opts), true
}

func (h *Handler) options(mode string, retentionLimit bool, releaseAt string) (cashflow.Options, error) {
	opts := h.Defaults
	if mode != "" {
		m, ok := cashflow.ParseMode(mode)
		if !ok {
			return cashflow.Options{}, fmt.Errorf("mode %q: want compact or dense", mode)
		}
		opts.Mode = m
	}
	if retentionLimit {
		opts.Retention.EnforceLimit = true
	}
	if releaseAt != "" {
		d, err := generic.ParseDate(releaseAt)
		if err != nil {
			return cashflow.Options{}, fmt.Errorf("release_at: %w", err)
		}
		opts.Retention.ReleaseAt = &d
	}
	return opts, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// saveDocument stores an artifact. Failure never fails the request.
func (h *Handler) saveDocument(ctx context.Context, d project.Document) {
	if d.ID == "" {
		d.ID = h.newID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = h.now()
	}
	if err := h.Store.SaveDocument(ctx, d); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("project_id", string(d.ProjectID)).
			Str("kind", string(d.Kind)).
			Msg("failed to save document")
	}
}

func projectID(r *http.Request) project.ID {
	return project.ID(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error, details ...string) {
	resp := ErrorResponse{Error: message}
	switch {
	case len(details) > 0:
		resp.Details = details
	case err != nil:
		resp.Details = errorDetails(err)
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps domain errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, generic.ErrDuplicateID):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// errorDetails flattens validation errors into one message per problem.
func errorDetails(err error) any {
	var verrs generic.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]string, len(verrs))
		for i, e := range verrs {
			out[i] = e.Error()
		}
		return out
	}
	return err.Error()
}
