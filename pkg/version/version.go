// Package version exposes build metadata stamped in via -ldflags.
package version

import (
	"runtime"
	"time"
)

// Populated by the build: -ldflags "-X .../pkg/version.Version=v1.2.3 ...".
// Unstamped builds report "dev"/"unknown" so local binaries stay identifiable.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo is the metadata snapshot served by the version endpoint and
// printed by the CLI version command.
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"gitCommit"`
	BuildDate string    `json:"buildDate"`
	GoVersion string    `json:"goVersion"`
	Platform  string    `json:"platform"`
	BuildTime time.Time `json:"buildTime,omitempty"`
}

// GetBuildInfo returns the stamped build metadata plus the runtime's compiler
// version and platform. BuildTime is set only when BuildDate parses as
// RFC3339; an unstamped date leaves it zero rather than failing.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if t, err := time.Parse(time.RFC3339, BuildDate); err == nil {
		info.BuildTime = t
	}
	return info
}
