/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetcastlabs/fleetcast/internal/db"
	"github.com/fleetcastlabs/fleetcast/internal/simulator"
)

var simulateCycles int

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulation cycles and exit",
	Long:  "Advance the constellation simulation and persist telemetry and contact windows, without starting the server.",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simulateCycles, "cycles", 1, "Number of simulation cycles to run")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	sim := simulator.New(database, cfg.FleetSize, cfg.GroundStations, cfg.QueryTimeout, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for i := 0; i < simulateCycles; i++ {
		if err := sim.RunCycle(ctx); err != nil {
			return fmt.Errorf("cycle %d: %w", i+1, err)
		}
	}

	logger.Info().Int("cycles", simulateCycles).Msg("simulation complete")
	return nil
}
