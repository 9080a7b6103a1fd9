// Package version describes the pkgtrace build.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/fatih/color"
)

// These variables can be overridden at build time via -ldflags.
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)
)

// Info is the resolved build description.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// readBuildInfo is a test seam for debug.ReadBuildInfo.
var readBuildInfo = debug.ReadBuildInfo

// Current returns the build description, filling the commit and date from
// VCS stamps when ldflags did not set them.
func Current() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := readBuildInfo()
	if !ok || bi == nil {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

// Colored renders the version with each semver component in its own color.
// Versions that are not dotted triples come back unchanged.
func Colored(v string) string {
	core, suffix, _ := strings.Cut(v, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return v
	}
	out := versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}
