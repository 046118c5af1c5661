// Package version reports build and version information for the panelkit
// tabular data engine.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const shortCommitLength = 7

// Version is overridden at build time via
// -ldflags "-X .../internal/version.Version=v1.2.3".
var Version = "dev"

// BuildInfo is a snapshot of what went into the running binary.
type BuildInfo struct {
	Version    string `json:"version"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	Modified   bool   `json:"modified"`
	GoVersion  string `json:"go_version"`
	ModulePath string `json:"module_path,omitempty"`
}

// Info assembles build information from the ldflags version and the VCS
// settings the Go toolchain stamps into the binary.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.ModulePath = bi.Main.Path
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = setting.Value
		case "vcs.time":
			info.CommitTime = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}
	return info
}

// ShortCommit returns the abbreviated commit hash, or "" when the binary
// carries no VCS information.
func (b BuildInfo) ShortCommit() string {
	if len(b.Commit) > shortCommitLength {
		return b.Commit[:shortCommitLength]
	}
	return b.Commit
}

// String formats the build information for the CLI's --version output.
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("panelkit tabular data engine\n")
	sb.WriteString("Version: " + b.Version)
	if b.Modified {
		sb.WriteString(" (modified)")
	}
	sb.WriteString("\n")
	if c := b.ShortCommit(); c != "" {
		fmt.Fprintf(&sb, "Commit: %s\n", c)
		if b.CommitTime != "" {
			fmt.Fprintf(&sb, "Commit Date: %s\n", b.CommitTime)
		}
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	if b.ModulePath != "" {
		fmt.Fprintf(&sb, "Module: %s\n", b.ModulePath)
	}
	return sb.String()
}
