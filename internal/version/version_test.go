package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func withBuildInfo(t *testing.T, settings ...debug.BuildSetting) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
	t.Cleanup(func() { readBuildInfo = orig })
}

// --- Get Tests ---

func TestGet_FallsBackToVCS(t *testing.T) {
	withBuildInfo(t,
		debug.BuildSetting{Key: "vcs.revision", Value: "abc123"},
		debug.BuildSetting{Key: "vcs.time", Value: "2026-01-01T00:00:00Z"},
		debug.BuildSetting{Key: "vcs.modified", Value: "true"},
	)

	info := Get()
	if info.Commit != "abc123" {
		t.Errorf("Commit = %q, want abc123", info.Commit)
	}
	if info.BuildDate != "2026-01-01T00:00:00Z" {
		t.Errorf("BuildDate = %q", info.BuildDate)
	}
	if !info.Dirty {
		t.Error("expected Dirty from vcs.modified")
	}
	if info.String() != "dev-dirty" {
		t.Errorf("String() = %q, want dev-dirty", info.String())
	}
}

func TestGet_LdflagsWin(t *testing.T) {
	withBuildInfo(t, debug.BuildSetting{Key: "vcs.revision", Value: "abc123"})
	orig := Commit
	Commit = "deadbeef"
	t.Cleanup(func() { Commit = orig })

	if got := Get().Commit; got != "deadbeef" {
		t.Errorf("Commit = %q, want deadbeef", got)
	}
}

// --- Full Tests ---

func TestFull(t *testing.T) {
	info := Info{
		Version:   "1.2.3",
		Commit:    "abc123",
		BuildDate: "2026-01-01T00:00:00Z",
		GoVersion: "go1.25.5",
		Platform:  "linux/amd64",
	}
	now := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	got := info.Full(now)
	for _, want := range []string{"screenharvest 1.2.3", "abc123", "2 days ago", "linux/amd64"} {
		if !strings.Contains(got, want) {
			t.Errorf("Full() missing %q:\n%s", want, got)
		}
	}
}

func TestFull_UnknownDate(t *testing.T) {
	info := Info{Version: "dev", BuildDate: "unknown"}
	if got := info.Full(time.Now()); !strings.Contains(got, "Built:      unknown\n") {
		t.Errorf("Full() = %q", got)
	}
}
