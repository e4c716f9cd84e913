// Package version reports the symindex build.
package version

import (
	"crypto/sha256"
	"fmt"
	"runtime/debug"
	"sync"
)

// Overridable with -ldflags "-X".
var (
	Version   = "0.1.0"
	BuildDate = "development"
	GitCommit = "unknown"
)

// Info returns the version string
func Info() string {
	return Version
}

// FullInfo returns the version with commit and build date
func FullInfo() string {
	return "symindex " + Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
}

var (
	buildID     string
	buildIDOnce sync.Once
)

// BuildID returns a fingerprint of the running binary: Go version, module
// path and version, and VCS settings. It is stable for one build.
func BuildID() string {
	buildIDOnce.Do(func() {
		buildID = computeBuildID()
	})
	return buildID
}

func computeBuildID() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version + "-" + GitCommit
	}

	h := sha256.New()
	h.Write([]byte(info.GoVersion))
	h.Write([]byte(info.Main.Path))
	h.Write([]byte(info.Main.Version))
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.modified", "vcs.time":
			h.Write([]byte(s.Key))
			h.Write([]byte(s.Value))
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
