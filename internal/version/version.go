// Package version exposes build metadata injected with -ldflags.
package version

import "runtime/debug"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version, commit and build date. Binaries built without
// ldflags fall back to the module version and VCS stamp recorded by the Go
// toolchain.
func Info() (string, string, string) {
	v, commit, date := Version, GitCommit, BuildDate
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return v, commit, date
	}
	if v == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		v = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "unknown":
			commit = s.Value
		case s.Key == "vcs.time" && date == "unknown":
			date = s.Value
		}
	}
	return v, commit, date
}
