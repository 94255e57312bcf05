/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetcastlabs/fleetcast/internal/dashboard"
	"github.com/fleetcastlabs/fleetcast/internal/db"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the current fleet health summary as JSON",
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	svc := dashboard.NewService(database, cfg.QueryTimeout, logger)
	summary, err := svc.Summary(context.Background(), time.Now().UTC())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
