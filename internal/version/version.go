// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package version

var (
	// Version is the current application version, set via ldflags.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String formats the build information for humans.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
