/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	DBTLSCA     string // PEM bundle for the TiDB/MySQL connection, empty disables TLS
	CORSOrigins []string

	// Fleet shape
	FleetSize      int
	GroundStations []string
	StationsFile   string // optional YAML roster, overrides GroundStations

	// Scheduler intervals
	SimulationInterval time.Duration
	DashboardInterval  time.Duration
	StationInterval    time.Duration

	// Query budget; a hung store must not pin a job's running slot
	QueryTimeout time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("FLEETCAST_ENV", "development"),
		HTTPBind:    getEnv("FLEETCAST_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("FLEETCAST_HTTP_PORT", 8080),
		DBBackend:   DatabaseBackend(getEnv("FLEETCAST_DB_BACKEND", string(DatabaseMySQL))),
		DBDSN:       getEnv("FLEETCAST_DB_DSN", ""),
		DBTLSCA:     getEnv("FLEETCAST_DB_TLS_CA", ""),
		CORSOrigins: getEnvList("FLEETCAST_CORS_ORIGINS", []string{"http://localhost:3000"}),

		FleetSize:      getEnvInt("FLEETCAST_FLEET_SIZE", 100),
		GroundStations: getEnvList("FLEETCAST_GROUND_STATIONS", []string{"GS-1", "GS-2", "GS-3"}),
		StationsFile:   getEnv("FLEETCAST_STATIONS_FILE", ""),

		SimulationInterval: getEnvDuration("FLEETCAST_SIMULATION_INTERVAL", 10*time.Second),
		DashboardInterval:  getEnvDuration("FLEETCAST_DASHBOARD_INTERVAL", 15*time.Second),
		StationInterval:    getEnvDuration("FLEETCAST_STATION_INTERVAL", 20*time.Second),

		QueryTimeout: getEnvDuration("FLEETCAST_QUERY_TIMEOUT", 10*time.Second),

		TracingEnabled:    getEnvBool("FLEETCAST_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("FLEETCAST_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("FLEETCAST_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("FLEETCAST_DB_DSN must be provided")
	}

	if cfg.StationsFile != "" {
		stations, err := LoadStations(cfg.StationsFile)
		if err != nil {
			return nil, fmt.Errorf("load stations file: %w", err)
		}
		ids := make([]string, len(stations))
		for i, st := range stations {
			ids[i] = st.ID
		}
		cfg.GroundStations = ids
	}

	if len(cfg.GroundStations) == 0 {
		return nil, fmt.Errorf("at least one ground station must be configured")
	}

	if cfg.FleetSize <= 0 {
		return nil, fmt.Errorf("FLEETCAST_FLEET_SIZE must be positive")
	}

	for _, iv := range []time.Duration{cfg.SimulationInterval, cfg.DashboardInterval, cfg.StationInterval} {
		if iv < time.Second {
			return nil, fmt.Errorf("scheduler intervals must be at least 1s")
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, def []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
