// SPDX-License-Identifier: MIT
//
// Package build exposes build metadata injected at compile time via -ldflags.
// Default values of "unknown" are used during development builds.
package build

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Populated by -ldflags during compilation, e.g.
//
//	-X auviz/internal/build.buildVersion=v0.3.0
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "auviz",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize copies any ldflags-provided values into the flags struct.
// Missing values keep their development defaults; unlike a release pipeline,
// a local `go run` has no flags to offer.
func Initialize() {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
