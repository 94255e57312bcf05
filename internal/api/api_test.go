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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fleetcastlabs/fleetcast/internal/dashboard"
	"github.com/fleetcastlabs/fleetcast/internal/models"
	"github.com/fleetcastlabs/fleetcast/internal/scheduler"
)

type fakeSimulator struct {
	err   error
	calls int
}

func (f *fakeSimulator) RunCycle(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeJobs struct {
	status []scheduler.JobStatus
}

func (f *fakeJobs) Status() []scheduler.JobStatus { return f.status }

func newTestRouter(t *testing.T, sim Simulator) (chi.Router, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.TelemetryRecord{}, &models.ContactWindow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	dash := dashboard.NewService(db, 5*time.Second, zerolog.Nop())
	jobs := &fakeJobs{status: []scheduler.JobStatus{
		{Name: "simulation", State: scheduler.StateIdle, Interval: "10s", Runs: 3},
	}}

	a := New(dash, sim, jobs, zerolog.Nop())
	r := chi.NewRouter()
	a.Routes(r)
	return r, db
}

func doGet(t *testing.T, r chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSimulator{})

	rec := doGet(t, r, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", body["status"])
	}
}

func TestDashboardEndpoint(t *testing.T) {
	r, db := newTestRouter(t, &fakeSimulator{})
	now := time.Now().UTC()

	rows := []models.TelemetryRecord{
		{SatelliteID: "SAT-1", BatteryLevel: 10, Status: models.StatusError, Timestamp: now.Add(-time.Minute)},
		{SatelliteID: "SAT-2", BatteryLevel: 90, Status: models.StatusNominal, Timestamp: now.Add(-time.Minute)},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed telemetry: %v", err)
		}
	}
	window := models.ContactWindow{
		ID: uuid.NewString(), SatelliteID: "SAT-2", GroundStationID: "GS-1",
		Assigned: true, StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour),
	}
	if err := db.Create(&window).Error; err != nil {
		t.Fatalf("seed window: %v", err)
	}

	rec := doGet(t, r, "/api/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]int64{
		"totalSatellites": 2,
		"activeContacts":  1,
		"lowBattery":      1,
		"errorState":      1,
		"totalTelemetry":  2,
	}
	for key, val := range want {
		if body[key] != val {
			t.Errorf("%s = %d, want %d", key, body[key], val)
		}
	}
}

func TestStationEndpointUnknownStation(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSimulator{})

	rec := doGet(t, r, "/api/station/GS-404")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		StationID  string `json:"station_id"`
		Satellites []any  `json:"satellites"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.StationID != "GS-404" {
		t.Fatalf("station_id = %q, want GS-404", body.StationID)
	}
	if body.Satellites == nil {
		t.Fatal("satellites must be an empty array, not null")
	}
	if len(body.Satellites) != 0 {
		t.Fatalf("got %d satellites, want 0", len(body.Satellites))
	}
}

func TestSimulateEndpoint(t *testing.T) {
	sim := &fakeSimulator{}
	r, _ := newTestRouter(t, sim)

	rec := doGet(t, r, "/api/simulate")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if sim.calls != 1 {
		t.Fatalf("simulator called %d times, want 1", sim.calls)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] == "" {
		t.Fatal("expected confirmation message")
	}
}

func TestSimulateEndpointFailure(t *testing.T) {
	sim := &fakeSimulator{err: errors.New("store closed")}
	r, _ := newTestRouter(t, sim)

	rec := doGet(t, r, "/api/simulate")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "simulation_failed" {
		t.Fatalf("error code = %q, want simulation_failed", body["error"])
	}
}

func TestJobsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSimulator{})

	rec := doGet(t, r, "/api/jobs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Jobs) != 1 || body.Jobs[0].Name != "simulation" {
		t.Fatalf("unexpected jobs payload: %+v", body.Jobs)
	}
}

func TestStoreErrorMapping(t *testing.T) {
	a := New(nil, nil, nil, zerolog.Nop())

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantTag  string
	}{
		{
			name:     "store unavailable",
			err:      errors.Join(dashboard.ErrStoreUnavailable),
			wantCode: http.StatusServiceUnavailable,
			wantTag:  "store_unavailable",
		},
		{
			name:     "rejected query",
			err:      &dashboard.QueryError{Op: "total_telemetry", Err: errors.New("syntax error")},
			wantCode: http.StatusInternalServerError,
			wantTag:  "query_failed",
		},
		{
			name:     "unclassified",
			err:      errors.New("surprise"),
			wantCode: http.StatusInternalServerError,
			wantTag:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.writeStoreError(rec, tt.err)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tt.wantTag {
				t.Fatalf("error code = %q, want %q", body["error"], tt.wantTag)
			}
		})
	}
}
