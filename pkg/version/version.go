// Package version holds build-time version metadata, injected via
// -ldflags at build time, the common pattern for cobra-based CLIs.
package version

// Version, Commit and Date are overridden at build time via:
//
//	go build -ldflags "-X github.com/styledmap/smp/pkg/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns a single-line human-readable version string.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
