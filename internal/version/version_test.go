package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func withPlainColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func withVersion(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	Version, GitCommit, BuildDate = v, commit, date
	t.Cleanup(func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	})
}

func TestColoredKeepsText(t *testing.T) {
	withPlainColor(t)
	tests := []string{
		"0.1.0",
		"1.2.3",
		"0.1.0-dev",
		"1.0.0-beta.1",
		"1.2.3-rc.1+build.123",
		"dev",
	}
	for _, v := range tests {
		withVersion(t, v, "", "")
		if got := Colored(); got != v {
			t.Errorf("Colored() = %q, want %q", got, v)
		}
	}
}

func TestInfo(t *testing.T) {
	withPlainColor(t)
	withVersion(t, "1.2.3", "", "")
	got := Info("1.0.0")
	if got != "symtrace 1.2.3\nprotocol 1.0.0\n" {
		t.Fatalf("Info = %q", got)
	}

	withVersion(t, "1.2.3", "abc123", "2024-01-15T10:30:00Z")
	got = Info("1.0.0")
	for _, want := range []string{"commit   abc123", "built    2024-01-15T10:30:00Z"} {
		if !strings.Contains(got, want) {
			t.Errorf("Info missing %q:\n%s", want, got)
		}
	}
}
