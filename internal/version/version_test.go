package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestCurrentUsesVCSStamps(t *testing.T) {
	orig := readBuildInfo
	t.Cleanup(func() { readBuildInfo = orig })
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2024-01-15T10:30:00Z"},
		}}, true
	}

	info := Current()
	if info.GitCommit != "abc123" || info.BuildDate != "2024-01-15T10:30:00Z" {
		t.Errorf("info = %+v", info)
	}
	if info.Version != Version || !strings.Contains(info.Platform, "/") {
		t.Errorf("info = %+v", info)
	}
}

func TestLdflagsWin(t *testing.T) {
	origCommit, origRead := GitCommit, readBuildInfo
	t.Cleanup(func() { GitCommit, readBuildInfo = origCommit, origRead })

	GitCommit = "fromldflags"
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "stamp"}}}, true
	}
	if got := Current().GitCommit; got != "fromldflags" {
		t.Errorf("GitCommit = %q", got)
	}

	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	if got := Current().GitCommit; got != "fromldflags" {
		t.Errorf("without build info GitCommit = %q", got)
	}
}

func TestColored(t *testing.T) {
	orig := color.NoColor
	t.Cleanup(func() { color.NoColor = orig })

	color.NoColor = true
	if got := Colored("1.2.3-dev"); got != "1.2.3-dev" {
		t.Errorf("plain = %q", got)
	}
	color.NoColor = false
	got := Colored("1.2.3")
	if !strings.Contains(got, "\x1b[") || !strings.Contains(got, "1") || !strings.Contains(got, "3") {
		t.Errorf("colored = %q", got)
	}
	if got := Colored("devel"); got != "devel" {
		t.Errorf("non-semver = %q", got)
	}
}
