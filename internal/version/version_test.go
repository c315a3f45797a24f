package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func setVars(t *testing.T, version, commit, branch, user string) {
	t.Helper()

	orig := []string{Version, GitCommit, GitBranch, BuildUser}
	Version, GitCommit, GitBranch, BuildUser = version, commit, branch, user
	t.Cleanup(func() {
		Version, GitCommit, GitBranch, BuildUser = orig[0], orig[1], orig[2], orig[3]
	})
}

func TestStringRelease(t *testing.T) {
	setVars(t, "1.2.3", "abc1234", "main", "ci")

	got := String()
	for _, want := range []string{"1.2.3", "commit abc1234 on main", "by ci", BuildDate, GoVersionOS} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestStringReleaseWithoutGitInfo(t *testing.T) {
	setVars(t, "1.2.3", "", "", "")

	got := String()
	if strings.Contains(got, "commit") || strings.Contains(got, " by ") {
		t.Errorf("String() = %q, want no commit or user", got)
	}
}

func TestStringDevelopment(t *testing.T) {
	setVars(t, devVersion, "", "", "")

	orig := readBuildInfo
	t.Cleanup(func() { readBuildInfo = orig })

	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{GoVersion: "go1.25.0", Main: debug.Module{Version: "v0.4.0"}}, true
	}
	if got := String(); got != "v0.4.0 (go1.25.0)" {
		t.Errorf("String() = %q", got)
	}

	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	if got := String(); !strings.HasPrefix(got, "0.0.0-dev") {
		t.Errorf("String() = %q", got)
	}
}
