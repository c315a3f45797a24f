// Package version holds build metadata for the machinebind CLI.
//
// The variables default to development values and are overridden at build
// time with -ldflags:
//
//	go build -ldflags "\
//	  -X 'github.com/slashdevops/machinebind/internal/version.Version=1.0.0' \
//	  -X 'github.com/slashdevops/machinebind/internal/version.GitCommit=$(git rev-parse --short HEAD)' \
//	  -X 'github.com/slashdevops/machinebind/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)'" \
//	  ./cmd/machinebind
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// devVersion is the placeholder used when no version was injected.
const devVersion = "0.0.0"

var (
	// Version is the release version.
	Version = devVersion

	// BuildDate is the UTC build timestamp.
	BuildDate = "1970-01-01T00:00:00Z"

	// GitCommit is the commit the binary was built from.
	GitCommit = ""

	// GitBranch is the branch the binary was built from.
	GitBranch = ""

	// BuildUser is the user that built the binary.
	BuildUser = ""

	// GoVersion is the Go toolchain version.
	GoVersion = runtime.Version()

	// GoVersionArch is the target architecture.
	GoVersionArch = runtime.GOARCH

	// GoVersionOS is the target operating system.
	GoVersionOS = runtime.GOOS
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// String returns the version line shown by --version. Binaries installed
// with `go install` carry no ldflags, so their module version is used.
func String() string {
	if Version == devVersion {
		if info, ok := readBuildInfo(); ok && info.Main.Version != "" {
			return fmt.Sprintf("%s (%s)", info.Main.Version, info.GoVersion)
		}

		return fmt.Sprintf("%s-dev (%s %s/%s)", devVersion, GoVersion, GoVersionOS, GoVersionArch)
	}

	s := Version
	if GitCommit != "" {
		s += " (commit " + GitCommit
		if GitBranch != "" {
			s += " on " + GitBranch
		}
		s += ")"
	}
	s += ", built " + BuildDate
	if BuildUser != "" {
		s += " by " + BuildUser
	}

	return s + fmt.Sprintf(", %s %s/%s", GoVersion, GoVersionOS, GoVersionArch)
}
