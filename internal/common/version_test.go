package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVersionDefaults(t *testing.T) {
	if v := GetVersion(); v != "dev" {
		t.Errorf("expected default version dev, got %s", v)
	}
	if b := GetBuild(); b != "unknown" {
		t.Errorf("expected default build unknown, got %s", b)
	}
	if gc := GetGitCommit(); gc != "unknown" {
		t.Errorf("expected default git commit unknown, got %s", gc)
	}
	if fv := GetFullVersion(); fv != "dev (build: unknown, commit: unknown)" {
		t.Errorf("unexpected full version %q", fv)
	}
	if ua := UserAgent(); ua != "openapi-bridge/dev" {
		t.Errorf("unexpected user agent %q", ua)
	}
}

func TestLoadVersionFile_FillsOnlyDefaults(t *testing.T) {
	origVersion, origBuild, origCommit := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = origVersion, origBuild, origCommit })

	Build = "from-ldflags"
	path := filepath.Join(t.TempDir(), ".version")
	content := "# generated\nversion: 1.2.3\nbuild: 2026-01-01\ncommit: abc1234\nnonsense\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loadVersionFile(path)

	if Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", Version)
	}
	if Build != "from-ldflags" {
		t.Errorf("Build overwritten: %q", Build)
	}
	if GitCommit != "abc1234" {
		t.Errorf("GitCommit = %q, want abc1234", GitCommit)
	}
}

func TestLoadVersionFile_MissingFileIgnored(t *testing.T) {
	loadVersionFile(filepath.Join(t.TempDir(), "absent"))
	if GetVersion() != "dev" {
		t.Errorf("version changed to %q", GetVersion())
	}
}
