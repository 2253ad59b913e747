// Package version exposes the build metadata reported by the liveness
// endpoint. Values are stamped in at release time via -ldflags; a plain
// `go build` yields the dev placeholders.
package version

import "runtime"

var (
	// Version is the git tag or semantic version of this build
	Version = "dev"
	// Commit is the git commit SHA the build was cut from
	Commit = "unknown"
	// BuildTime is the ISO 8601 build timestamp
	BuildTime = "unknown"
)

// Info is the build metadata in the shape /health/live reports it.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the metadata for the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}
