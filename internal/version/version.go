// Package version carries the build metadata injected with -ldflags.
package version

// Name is the product name used in user agents and version output.
const Name = "pixkit"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the version for humans, e.g. "pixkit 1.2.0 (abc123, 2025-01-02)".
func String() string {
	return Name + " " + Version + " (" + GitCommit + ", " + BuildDate + ")"
}
