// Package version reports the build identity of the tails binary.
package version

import (
	"runtime/debug"
)

// Version is set via ldflags:
// go build -ldflags "-X git.home.luguber.info/inful/tails/internal/version.Version=v0.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Commit returns GitCommit, falling back to the VCS revision the Go toolchain embedded.
func Commit() string {
	if GitCommit != "unknown" && GitCommit != "" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return GitCommit
}

// String is the one-line version shown by --version.
func String() string {
	c := Commit()
	if len(c) > 12 {
		c = c[:12]
	}
	return Version + " (" + c + ", built " + BuildTime + ")"
}
