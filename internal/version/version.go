// Package version exposes screenharvest build metadata.
//
// Variables are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/screenharvest/internal/version.Version=1.0.0 ..."
//
// When they are left at their defaults, Get falls back to the VCS settings
// the Go toolchain embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown" // RFC3339
)

// Info is the structured build metadata.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Dirty     bool   `json:"dirty" yaml:"dirty"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

var readBuildInfo = debug.ReadBuildInfo

// Get returns the current build metadata.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := readBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "unknown" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			case "vcs.modified":
				if Dirty == "false" && s.Value == "true" {
					info.Dirty = true
				}
			}
		}
	}
	return info
}

// String returns a single-line version string.
func (i Info) String() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}

// Full returns a multi-line description, including the build age when the
// build date is known.
func (i Info) Full(now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "screenharvest %s\n", i)
	fmt.Fprintf(&sb, "  Commit:     %s\n", i.Commit)
	built := i.BuildDate
	if t, err := time.Parse(time.RFC3339, i.BuildDate); err == nil {
		built = fmt.Sprintf("%s (%s)", i.BuildDate, humanize.RelTime(t, now, "ago", "from now"))
	}
	fmt.Fprintf(&sb, "  Built:      %s\n", built)
	fmt.Fprintf(&sb, "  Go version: %s\n", i.GoVersion)
	fmt.Fprintf(&sb, "  OS/Arch:    %s", i.Platform)
	return sb.String()
}
