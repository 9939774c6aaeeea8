// Package version holds build-time version information.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns a single-line version summary for the CLI.
func String() string {
	return fmt.Sprintf("drivindata %s (%s, built %s)", Version, GitSHA, BuildTime)
}
