package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haivivi/cookguide/pkg/assist"
	"github.com/haivivi/cookguide/pkg/dialogue"
)

func TestPolicyCheckDefault(t *testing.T) {
	setupTestEnv(t)

	out := mustRun(t, "policy", "check")
	if !strings.HasPrefix(out, "OK:") || !strings.Contains(out, "fixing_problem") {
		t.Errorf("policy check = %q", out)
	}
}

func TestPolicyDumpRoundTrip(t *testing.T) {
	setupTestEnv(t)

	out := mustRun(t, "policy", "dump", "-o", "json")
	var f assist.PolicyFile
	if err := json.Unmarshal([]byte(out), &f); err != nil {
		t.Fatalf("dump is not JSON: %v\n%s", err, out)
	}
	if len(f.Transitions) != len(dialogue.DefaultTransitions()) {
		t.Errorf("dumped %d transitions, want %d", len(f.Transitions), len(dialogue.DefaultTransitions()))
	}
	if _, err := f.Policy(); err != nil {
		t.Errorf("dumped policy does not load: %v", err)
	}
}

func TestPolicyCheckFile(t *testing.T) {
	setupTestEnv(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	os.WriteFile(good, []byte(`
states:
  fixing_problem:
    instruction: Suggest one fix at a time.
    memory_window: 3
events:
  repeat:
    examples: ["say that again"]
scene_window: 2
`), 0644)
	if out := mustRun(t, "policy", "check", good); !strings.HasPrefix(out, "OK:") {
		t.Errorf("policy check = %q", out)
	}

	for name, body := range map[string]string{
		"unknown-state.yaml": "states:\n  baking:\n    instruction: x\n",
		"unknown-field.yaml": "scene_windw: 2\n",
		"negative.yaml":      "scene_window: -1\n",
	} {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte(body), 0644)
		if _, _, err := runCmd(t, "policy", "check", path); err == nil {
			t.Errorf("policy check %s should fail", name)
		}
	}
}

func TestPolicyPrompt(t *testing.T) {
	setupTestEnv(t)
	kn := writeKnowledge(t)

	out := mustRun(t, "policy", "prompt",
		"--state", "fixing_problem",
		"--event", "ask_how_to_fix",
		"--utterance", "the onions are burning",
		"--knowledge", kn)
	if !strings.Contains(out, "the onions are burning") {
		t.Errorf("prompt misses the utterance:\n%s", out)
	}
	if !strings.Contains(out, "Add onions and stir until soft.") {
		t.Errorf("prompt misses the knowledge:\n%s", out)
	}

	if _, _, err := runCmd(t, "policy", "prompt", "--state", "baking"); err == nil {
		t.Error("unknown state should fail")
	}
}

func TestPolicyPromptScene(t *testing.T) {
	setupTestEnv(t)
	img := filepath.Join(t.TempDir(), "frame.jpg")
	os.WriteFile(img, []byte{0xff, 0xd8, 0xff, 0xd9}, 0644)

	out := mustRun(t, "policy", "prompt", "--scene", "--image", img, "--knowledge", writeKnowledge(t))
	if !strings.Contains(out, "[image/jpeg, 4 bytes]") {
		t.Errorf("scene prompt misses the image:\n%s", out)
	}
	if !strings.Contains(out, "scene_tick") {
		t.Errorf("scene prompt misses the event:\n%s", out)
	}
}
