// Build information is injected through -ldflags at link time. The variables
// stay "unknown" in ad-hoc builds, and TestMode flips invariant violations
// into panics under the test targets.

package utils

import (
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/mod/semver"
)

var (
	TestMode   string // Set to "true" by the test build flags.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// If build info is not set, make that clear.
	if Version == "" {
		Version = "unknown"
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if Version != "unknown" && !semver.IsValid(Version) {
		slog.Warn("Injected version is not a valid semantic version.", "version", Version)
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false.", "error", err)
		}
	}
}

// Uptime reports how long this process has been running.
func Uptime() time.Duration {
	return time.Since(StartTime)
}
