/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GroundStation describes one entry in the station roster file.
type GroundStation struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type stationsFile struct {
	Stations []GroundStation `yaml:"stations"`
}

// LoadStations parses a YAML ground station roster.
func LoadStations(path string) ([]GroundStation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed stationsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if len(parsed.Stations) == 0 {
		return nil, fmt.Errorf("%s contains no stations", path)
	}
	for i, st := range parsed.Stations {
		if st.ID == "" {
			return nil, fmt.Errorf("%s: station at index %d has no id", path, i)
		}
	}
	return parsed.Stations, nil
}
