/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// SatelliteStatus enumerates the health states a satellite reports.
type SatelliteStatus string

const (
	StatusNominal  SatelliteStatus = "NOMINAL"
	StatusDegraded SatelliteStatus = "DEGRADED"
	StatusError    SatelliteStatus = "ERROR"
)

// TelemetryRecord is one health reading from a satellite. Rows are append-only;
// the current state of a satellite is the row with its maximum timestamp.
type TelemetryRecord struct {
	ID              uint    `gorm:"primaryKey;autoIncrement"`
	SatelliteID     string  `gorm:"type:varchar(32);index:idx_telemetry_sat_ts,priority:1"`
	GroundStationID *string `gorm:"type:varchar(32);index"`
	BatteryLevel    float64
	Temperature     float64
	Status          SatelliteStatus `gorm:"type:varchar(16)"`
	Timestamp       time.Time       `gorm:"index:idx_telemetry_sat_ts,priority:2"`
}

// TableName keeps the table shared with the simulator's original schema.
func (TelemetryRecord) TableName() string { return "telemetry" }

// ContactWindow is a time interval during which a satellite may talk to a
// ground station. A window is active iff assigned and end_time is in the
// future. Windows are only read here; their lifecycle belongs to the
// contact scheduling process.
type ContactWindow struct {
	ID              string `gorm:"type:varchar(36);primaryKey"`
	SatelliteID     string `gorm:"type:varchar(32);index"`
	GroundStationID string `gorm:"type:varchar(32);index"`
	Assigned        bool
	StartTime       time.Time
	EndTime         time.Time `gorm:"index"`
}

// TableName matches the shared schema.
func (ContactWindow) TableName() string { return "contact_windows" }
