/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fleetcastlabs/fleetcast/internal/dashboard"
	"github.com/fleetcastlabs/fleetcast/internal/scheduler"
)

// Simulator advances the constellation one tick and persists the results.
type Simulator interface {
	RunCycle(ctx context.Context) error
}

// JobReporter exposes scheduler job health.
type JobReporter interface {
	Status() []scheduler.JobStatus
}

// API exposes HTTP handlers.
type API struct {
	dashboard *dashboard.Service
	simulator Simulator
	jobs      JobReporter
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(dash *dashboard.Service, sim Simulator, jobs JobReporter, logger zerolog.Logger) *API {
	return &API{
		dashboard: dash,
		simulator: sim,
		jobs:      jobs,
		logger:    logger,
	}
}

// Routes mounts all API endpoints.
func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/simulate", a.handleSimulate)
		r.Get("/dashboard", a.handleDashboard)
		r.Get("/station/{stationID}", a.handleStation)
		r.Get("/jobs", a.handleJobs)
	})
}

// handleHealth is a pure liveness signal; it never touches the store.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSimulate runs one simulation cycle on demand. It shares the cycle
// implementation with the scheduled job but not its timer: an on-demand run
// neither resets nor skips the next scheduled tick.
func (a *API) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if err := a.simulator.RunCycle(r.Context()); err != nil {
		a.logger.Error().Err(err).Msg("on-demand simulation failed")
		writeError(w, http.StatusBadGateway, "simulation_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Simulation completed and telemetry logged"})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := a.dashboard.Summary(r.Context(), time.Now().UTC())
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleStation(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	snapshot, err := a.dashboard.Station(r.Context(), stationID, time.Now().UTC())
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleJobs reports per-job scheduler health.
func (a *API) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": a.jobs.Status()})
}

// writeStoreError maps query layer failures onto HTTP statuses. No partial
// responses: a summary or snapshot is fully computed or the request fails.
func (a *API) writeStoreError(w http.ResponseWriter, err error) {
	var queryErr *dashboard.QueryError
	switch {
	case errors.Is(err, dashboard.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "telemetry store is unreachable")
	case errors.As(err, &queryErr):
		writeError(w, http.StatusInternalServerError, "query_failed", queryErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
