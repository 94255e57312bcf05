/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleetcastlabs/fleetcast/internal/models"
	"github.com/fleetcastlabs/fleetcast/internal/observability"
)

// LowBatteryThreshold is the battery percentage below which a satellite's
// latest reading counts as low battery.
const LowBatteryThreshold = 30.0

// Summary is the point-in-time fleet health projection served to the
// dashboard. It is recomputed on every call and never stored.
type Summary struct {
	TotalSatellites int64 `json:"totalSatellites"`
	ActiveContacts  int64 `json:"activeContacts"`
	LowBattery      int64 `json:"lowBattery"`
	ErrorState      int64 `json:"errorState"`
	TotalTelemetry  int64 `json:"totalTelemetry"`
}

// StationSatellite is the latest reading for one satellite in contact with a
// station.
type StationSatellite struct {
	SatelliteID  string                 `json:"satellite_id"`
	BatteryLevel float64                `json:"battery_level"`
	Temperature  float64                `json:"temperature"`
	Status       models.SatelliteStatus `json:"status"`
	Timestamp    time.Time              `json:"timestamp"`
}

// StationSnapshot lists the satellites currently in an active, assigned
// contact window with one ground station. The satellite list is unordered.
type StationSnapshot struct {
	StationID  string             `json:"station_id"`
	Satellites []StationSatellite `json:"satellites"`
}

// Service answers the fleet aggregation and station view queries. It holds no
// state beyond the connection pool; concurrent calls are independent reads.
type Service struct {
	db      *gorm.DB
	timeout time.Duration
	logger  zerolog.Logger
}

// NewService constructs the query service. timeout bounds every store call so
// an unreachable store cannot hang a caller indefinitely.
func NewService(database *gorm.DB, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{db: database, timeout: timeout, logger: logger}
}

// latestPerSatelliteCount counts distinct satellites whose most recent
// telemetry row matches the predicate. COUNT(DISTINCT) makes duplicate
// max-timestamp rows count a satellite once rather than twice.
const latestPerSatelliteCount = `
SELECT COUNT(DISTINCT t.satellite_id)
FROM telemetry t
INNER JOIN (
    SELECT satellite_id, MAX(timestamp) AS latest_time
    FROM telemetry
    GROUP BY satellite_id
) latest ON t.satellite_id = latest.satellite_id AND t.timestamp = latest.latest_time
`

// Summary computes the fleet health summary as of now. All sub-queries run in
// one transaction so they observe a single read snapshot where the backend
// supports it. The summary is all-or-nothing: any sub-query failure fails the
// whole computation.
func (s *Service) Summary(ctx context.Context, now time.Time) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "dashboard", "fetch_dashboard_data")
	defer span.End()

	var summary Summary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.count(ctx, tx, "total_telemetry",
			`SELECT COUNT(*) FROM telemetry`, nil, &summary.TotalTelemetry); err != nil {
			return err
		}

		if err := s.count(ctx, tx, "total_satellites",
			`SELECT COUNT(DISTINCT satellite_id) FROM telemetry`, nil, &summary.TotalSatellites); err != nil {
			return err
		}

		if err := s.count(ctx, tx, "low_battery_latest",
			latestPerSatelliteCount+`WHERE t.battery_level < ?`,
			[]any{LowBatteryThreshold}, &summary.LowBattery); err != nil {
			return err
		}

		if err := s.count(ctx, tx, "error_latest",
			latestPerSatelliteCount+`WHERE t.status = ?`,
			[]any{models.StatusError}, &summary.ErrorState); err != nil {
			return err
		}

		return s.count(ctx, tx, "active_contacts_now",
			`SELECT COUNT(DISTINCT satellite_id) FROM contact_windows WHERE assigned = ? AND end_time > ?`,
			[]any{true, now}, &summary.ActiveContacts)
	})
	if err != nil {
		observability.RecordError(span, err)
		return Summary{}, err
	}

	observability.AddSpanAttributes(span, map[string]any{
		"telemetry.low_battery_count": summary.LowBattery,
		"telemetry.error_count":       summary.ErrorState,
		"contacts.active_count":       summary.ActiveContacts,
	})
	return summary, nil
}

// stationLatestQuery ranks telemetry per satellite within the station's
// active assigned windows and keeps only the most recent row per satellite.
const stationLatestQuery = `
SELECT
    sub.satellite_id,
    sub.battery_level,
    sub.temperature,
    sub.status,
    sub.timestamp
FROM (
    SELECT
        cw.satellite_id,
        t.battery_level,
        t.temperature,
        t.status,
        t.timestamp,
        ROW_NUMBER() OVER (
            PARTITION BY cw.satellite_id
            ORDER BY t.timestamp DESC
        ) AS rn
    FROM contact_windows cw
    JOIN telemetry t ON cw.satellite_id = t.satellite_id
                     AND cw.ground_station_id = t.ground_station_id
    WHERE cw.assigned = ?
      AND cw.end_time > ?
      AND cw.ground_station_id = ?
) sub
WHERE sub.rn = 1
`

// Station returns the latest telemetry for every satellite currently in an
// active, assigned contact window with stationID. An unknown station is not
// an error; it yields an empty satellite list.
func (s *Service) Station(ctx context.Context, stationID string, now time.Time) (StationSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "dashboard", "query_station_latest")
	defer span.End()
	observability.AddSpanAttributes(span, map[string]any{
		"db.operation": "station_latest_telemetry",
		"station.id":   stationID,
	})

	satellites := make([]StationSatellite, 0)
	err := s.db.WithContext(ctx).
		Raw(stationLatestQuery, true, now, stationID).
		Scan(&satellites).Error
	if err != nil {
		wrapped := wrap("station_latest_telemetry", err)
		observability.RecordError(span, wrapped)
		s.logger.Error().Err(wrapped).Str("station_id", stationID).Msg("station query failed")
		return StationSnapshot{}, wrapped
	}

	observability.AddSpanAttributes(span, map[string]any{
		"station.satellite_count": len(satellites),
	})
	return StationSnapshot{StationID: stationID, Satellites: satellites}, nil
}

func (s *Service) count(ctx context.Context, tx *gorm.DB, op, query string, args []any, dest *int64) error {
	_, span := observability.StartSpan(ctx, "dashboard", "query_"+op)
	defer span.End()
	observability.AddSpanAttributes(span, map[string]any{"db.operation": op})

	if err := tx.Raw(query, args...).Scan(dest).Error; err != nil {
		wrapped := wrap(op, err)
		observability.RecordError(span, wrapped)
		s.logger.Error().Err(wrapped).Str("operation", op).Msg("aggregate query failed")
		return wrapped
	}
	return nil
}
