package cli

import "fmt"

var (
	VersionName = "n/a"
	GitCommit   = "n/a"
	BuildDate   = "n/a"
)

// ShowVersion prints build provenance, set via -ldflags at build time.
func ShowVersion() {
	fmt.Printf("Version: %s\nCommit: %s\nDate: %s\n", VersionName, GitCommit, BuildDate)
}
