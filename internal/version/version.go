/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build identification for logs, traces, and the CLI.
package version

import (
	"fmt"
	"runtime"
)

// Version is the semantic version of this build. Set at build time via
// ldflags:
//
//	-X github.com/fleetcastlabs/fleetcast/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// Commit is the git commit the binary was built from, set via ldflags.
var Commit = "unknown"

// BuildDate is the UTC build timestamp, set via ldflags.
var BuildDate = "unknown"

// Short returns the bare version string.
func Short() string { return Version }

// Full returns a human readable build description for --version output.
func Full() string {
	return fmt.Sprintf("fleetcast %s (commit %s, built %s, %s)",
		Version, Commit, BuildDate, runtime.Version())
}
