package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/haivivi/cookguide/cmd/cookguide/internal/build"
)

func TestVersion(t *testing.T) {
	setupTestEnv(t)

	stdout := mustRun(t, "version")
	if !strings.Contains(stdout, "cookguide") {
		t.Fatalf("expected 'cookguide', got: %s", stdout)
	}
}

func TestVersionJSON(t *testing.T) {
	setupTestEnv(t)

	stdout := mustRun(t, "version", "-o", "json")
	var info build.Info
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("expected JSON, got: %s", stdout)
	}
	if info.Version != build.Version {
		t.Errorf("version = %q, want %q", info.Version, build.Version)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	setupTestEnv(t)

	if _, _, err := runCmd(t, "version", "-o", "xml"); err == nil {
		t.Fatal("expected an error for -o xml")
	}
}
