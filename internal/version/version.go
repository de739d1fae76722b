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

// String returns a single-line description suitable for startup logs
// and the -version flag.
func String() string {
	return fmt.Sprintf("camerad %s (%s, built %s)", Version, GitSHA, BuildTime)
}
