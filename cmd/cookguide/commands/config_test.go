package commands

import (
	"strings"
	"testing"

	"github.com/haivivi/cookguide/cmd/cookguide/internal/config"
)

func TestConfigContexts(t *testing.T) {
	dir := setupTestEnv(t)

	if out := mustRun(t, "config", "list-contexts"); !strings.Contains(out, "No contexts configured") {
		t.Errorf("list-contexts = %q", out)
	}
	mustRun(t, "config", "add-context", "kitchen")
	mustRun(t, "config", "add-context", "dev")
	if _, _, err := runCmd(t, "config", "add-context", "kitchen"); err == nil {
		t.Error("duplicate add-context should fail")
	}

	mustRun(t, "config", "use-context", "kitchen")
	if out := mustRun(t, "config", "current-context"); strings.TrimSpace(out) != "kitchen" {
		t.Errorf("current-context = %q", out)
	}

	mustRun(t, "config", "set", "kitchen", "session", "queue_size", "32")
	mustRun(t, "config", "set", "kitchen", "session", "idle_timeout", "90s")
	out := mustRun(t, "config", "ls")
	if !strings.Contains(out, "*") || !strings.Contains(out, "session") {
		t.Errorf("list-contexts = %q", out)
	}

	cfg, err := config.LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	s, err := config.LoadSession(cfg.ContextDir("kitchen"))
	if err != nil {
		t.Fatal(err)
	}
	if s.QueueSize != 32 || s.IdleTimeout.String() != "1m30s" {
		t.Errorf("session = queue %d idle %s", s.QueueSize, s.IdleTimeout)
	}

	mustRun(t, "config", "delete-context", "kitchen")
	if out := mustRun(t, "config", "current-context"); !strings.Contains(out, "No current context") {
		t.Errorf("current-context after delete = %q", out)
	}
}

func TestConfigSetGet(t *testing.T) {
	setupTestEnv(t)
	mustRun(t, "config", "add-context", "dev")

	out := mustRun(t, "config", "set", "dev", "openai", "api_key", "sk-1234567890abcdef")
	if strings.Contains(out, "sk-1234567890abcdef") {
		t.Errorf("set should mask the api key: %q", out)
	}
	if out := mustRun(t, "config", "get", "dev", "openai", "api_key"); strings.TrimSpace(out) != "sk-1***********cdef" {
		t.Errorf("get api_key = %q", out)
	}
	if out := mustRun(t, "-v", "config", "get", "dev", "openai", "api_key"); strings.TrimSpace(out) != "sk-1234567890abcdef" {
		t.Errorf("get -v api_key = %q", out)
	}

	mustRun(t, "config", "set", "dev", "storage", "bucket", "recipes")
	if out := mustRun(t, "config", "get", "dev", "storage", "bucket"); strings.TrimSpace(out) != "recipes" {
		t.Errorf("get bucket = %q", out)
	}

	errCases := [][]string{
		{"config", "set", "missing", "openai", "api_key", "x"},
		{"config", "set", "dev", "../x", "api_key", "x"},
		{"config", "get", "dev", "openai", "base_url"},
		{"config", "get", "dev", "gemini", "api_key"},
	}
	for _, args := range errCases {
		if _, _, err := runCmd(t, args...); err == nil {
			t.Errorf("%v should fail", args)
		}
	}
}

func TestConfigInvalidSessionFailsCommands(t *testing.T) {
	setupTestEnv(t)
	mustRun(t, "config", "add-context", "dev")
	mustRun(t, "config", "use-context", "dev")
	mustRun(t, "config", "set", "dev", "session", "timeout_policy", "sometimes")

	_, _, err := runCmd(t, "policy", "check")
	if err == nil || !strings.Contains(err.Error(), "timeout_policy") {
		t.Fatalf("err = %v, want a timeout_policy error", err)
	}
}
