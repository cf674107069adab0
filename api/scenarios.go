/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Turns a canned scenario from the scenarios package into a new project,
	so a demo can go straight to GET /api/projects/{id}/forecast.

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "same-month-pair"}

Loading never resets existing data: every load creates a fresh project.

SEE ALSO:
  - scenarios/scenarios.go: Scenario definitions
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/warp/cashflow-engine/project"
	"github.com/warp/cashflow-engine/scenarios"
	"github.com/warp/cashflow-engine/terms"
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	all := scenarios.All()
	dtos := make([]ScenarioDTO, len(all))
	for i, s := range all {
		dtos[i] = ScenarioDTO{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Activities:  len(s.Activities),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario creates a project from a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := scenarios.Get(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil, req.ScenarioID)
		return
	}

	p := project.New(project.ID(h.newID()), s.Name, s.Currency, h.now())
	p.Terms = s.Terms
	p.TermsSource = terms.SourceManual
	p.Activities = s.Activities

	if err := h.Store.CreateProject(r.Context(), p); err != nil {
		writeStoreError(w, "Failed to load scenario", err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("scenario", s.ID).
		Str("project_id", string(p.ID)).
		Msg("scenario loaded")
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}
