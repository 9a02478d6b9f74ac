package version

import "fmt"

// Version information - these can be overridden at build time using ldflags
var (
	// Version is the semantic version of the crossing analyzer
	Version = "v0.9.0"

	// GitCommit is the git commit hash (set at build time)
	GitCommit = "unknown"
)

// GetVersion returns the semantic version string
func GetVersion() string {
	return Version
}

// GetVersionWithCommit returns version with git commit info
func GetVersionWithCommit() string {
	if GitCommit != "unknown" && len(GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", Version, GitCommit[:7])
	}
	return Version
}
