/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleetcastlabs/fleetcast/internal/models"
	"github.com/fleetcastlabs/fleetcast/internal/observability"
)

const (
	minWindowDuration = 60 * time.Second
	maxWindowDuration = 300 * time.Second

	// Probability that a satellite without an active window gets a new one
	// this cycle, and that a new window comes pre-assigned.
	windowChance   = 0.5
	assignedChance = 0.7
)

// Service advances the constellation one tick and persists the results:
// one telemetry row per satellite plus any newly opened contact windows.
type Service struct {
	db       *gorm.DB
	fleet    int
	stations []string
	timeout  time.Duration
	logger   zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New constructs the simulator for a fleet of fleetSize satellites talking to
// the given ground stations. timeout bounds every store call in a cycle so a
// hung store cannot pin the job's running slot.
func New(database *gorm.DB, fleetSize int, stations []string, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		db:       database,
		fleet:    fleetSize,
		stations: stations,
		timeout:  timeout,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type satelliteState struct {
	SatelliteID  string
	BatteryLevel float64
}

// RunCycle advances the simulation one tick. Safe to call from the scheduler
// and from an HTTP request at the same time; each cycle is a self-contained
// write transaction.
func (s *Service) RunCycle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "simulator", "simulation_cycle")
	defer span.End()

	now := time.Now().UTC()

	prev, err := s.latestBatteryLevels(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("load latest telemetry: %w", err)
	}

	active, err := s.activeWindows(ctx, now)
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("load active windows: %w", err)
	}

	records := make([]models.TelemetryRecord, 0, s.fleet)
	windows := make([]models.ContactWindow, 0)

	s.mu.Lock()
	for i := 0; i < s.fleet; i++ {
		satID := fmt.Sprintf("SAT-%d", i+1)

		window, inContact := active[satID]
		if !inContact && s.rng.Float64() < windowChance {
			window = models.ContactWindow{
				ID:              uuid.NewString(),
				SatelliteID:     satID,
				GroundStationID: s.stations[s.rng.Intn(len(s.stations))],
				Assigned:        s.rng.Float64() < assignedChance,
				StartTime:       now,
				EndTime:         now.Add(minWindowDuration + time.Duration(s.rng.Int63n(int64(maxWindowDuration-minWindowDuration)))),
			}
			windows = append(windows, window)
			inContact = true
		}

		battery, ok := prev[satID]
		if !ok {
			battery = 60 + s.rng.Float64()*40
		}
		battery = s.nextBattery(battery)

		rec := models.TelemetryRecord{
			SatelliteID:  satID,
			BatteryLevel: battery,
			Temperature:  -20 + s.rng.Float64()*65,
			Status:       s.nextStatus(battery),
			Timestamp:    now,
		}
		if inContact && window.Assigned {
			station := window.GroundStationID
			rec.GroundStationID = &station
		}
		records = append(records, rec)
	}
	s.mu.Unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(windows) > 0 {
			if err := tx.CreateInBatches(&windows, 100).Error; err != nil {
				return fmt.Errorf("create contact windows: %w", err)
			}
		}
		return tx.CreateInBatches(&records, 200).Error
	})
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("persist cycle: %w", err)
	}

	observability.AddSpanAttributes(span, map[string]any{
		"simulation.telemetry_rows": len(records),
		"simulation.new_windows":    len(windows),
	})
	s.logger.Debug().
		Int("telemetry_rows", len(records)).
		Int("new_windows", len(windows)).
		Msg("simulation cycle persisted")
	return nil
}

// nextBattery drifts a battery level: a slow discharge in normal operation,
// a recharge burst once the satellite enters power-safe territory.
func (s *Service) nextBattery(prev float64) float64 {
	var next float64
	if prev < 25 {
		next = prev + 8 + s.rng.Float64()*10
	} else {
		next = prev - s.rng.Float64()*6
	}
	switch {
	case next < 0:
		return 0
	case next > 100:
		return 100
	default:
		return next
	}
}

func (s *Service) nextStatus(battery float64) models.SatelliteStatus {
	roll := s.rng.Float64()
	switch {
	case battery < 5 || roll < 0.04:
		return models.StatusError
	case battery < 15 || roll < 0.12:
		return models.StatusDegraded
	default:
		return models.StatusNominal
	}
}

// latestBatteryLevels reads the most recent battery level per satellite so
// cycles evolve state instead of resampling it.
func (s *Service) latestBatteryLevels(ctx context.Context) (map[string]float64, error) {
	var rows []satelliteState
	err := s.db.WithContext(ctx).Raw(`
SELECT t.satellite_id, t.battery_level
FROM telemetry t
INNER JOIN (
    SELECT satellite_id, MAX(timestamp) AS latest_time
    FROM telemetry
    GROUP BY satellite_id
) latest ON t.satellite_id = latest.satellite_id AND t.timestamp = latest.latest_time
`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.SatelliteID] = row.BatteryLevel
	}
	return out, nil
}

func (s *Service) activeWindows(ctx context.Context, now time.Time) (map[string]models.ContactWindow, error) {
	var windows []models.ContactWindow
	err := s.db.WithContext(ctx).
		Where("end_time > ?", now).
		Find(&windows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.ContactWindow, len(windows))
	for _, w := range windows {
		// Prefer an assigned window when a satellite has several open.
		if existing, ok := out[w.SatelliteID]; ok && existing.Assigned {
			continue
		}
		out[w.SatelliteID] = w
	}
	return out, nil
}
