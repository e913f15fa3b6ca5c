// Package version holds build metadata set via ldflags:
// go build -ldflags "-X git.home.luguber.info/inful/dmbuild/internal/version.Version=v0.3.0".
package version

import "fmt"

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version for --version output.
func String() string {
	if GitCommit == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, GitCommit, BuildTime)
}
