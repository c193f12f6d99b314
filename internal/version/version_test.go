package version

import (
	"strings"
	"testing"
)

// setVars overrides the build variables for the duration of the test.
func setVars(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	})
	Version, Commit, BuildTime = version, commit, buildTime
}

func TestString(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		setVars(t, "dev", "unknown", "unknown")

		result := String()
		if result != "dev (unknown) built unknown" {
			t.Errorf("String() = %q", result)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		setVars(t, "1.2.3", "abc1234", "2024-01-15T10:00:00Z")

		expected := "1.2.3 (abc1234) built 2024-01-15T10:00:00Z"
		if result := String(); result != expected {
			t.Errorf("String() = %q, want %q", result, expected)
		}
	})
}

func TestUserAgent(t *testing.T) {
	setVars(t, "0.4.0", "abc1234", "unknown")

	if got := UserAgent(); got != "databench-client/0.4.0" {
		t.Errorf("UserAgent() = %q", got)
	}
	if strings.Contains(UserAgent(), " ") {
		t.Errorf("UserAgent() = %q should be a single token", UserAgent())
	}
}

func TestDefaultValues(t *testing.T) {
	// ldflags may override these in release builds
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if Commit == "" {
		t.Error("Commit should not be empty")
	}
	if BuildTime == "" {
		t.Error("BuildTime should not be empty")
	}
}
