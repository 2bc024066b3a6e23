package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestCurrentDefaults(t *testing.T) {
	info := Current()
	if info.Version == "" || info.Tool != "wasmloader" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestCurrentCanBeOverridden(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	t.Cleanup(func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
	})

	Version = "  1.2.3\n"
	GitCommit = "abc123def456"
	BuildDate = "2024-01-15T10:30:00Z"
	info := Current()
	if info.Version != "1.2.3" || info.GitCommit != "abc123def456" || info.BuildDate != "2024-01-15T10:30:00Z" {
		t.Fatalf("unexpected info %+v", info)
	}

	Version = " "
	if Current().Version != "dev" {
		t.Fatalf("blank version = %q", Current().Version)
	}
}

func TestColoredPlain(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })

	cases := map[string]string{
		"0.1.0-dev": "0.1.0-dev",
		"1.2.3":     "1.2.3",
		"dev":       "dev",
	}
	for in, want := range cases {
		if got := Colored(in); got != want {
			t.Errorf("Colored(%q) = %q, want %q", in, got, want)
		}
	}
}
