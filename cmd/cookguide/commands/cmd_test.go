package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/cookguide/cmd/cookguide/internal/config"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
	"github.com/haivivi/cookguide/pkg/genx/genxtest"
	"github.com/haivivi/cookguide/pkg/knowledge"
	"github.com/haivivi/cookguide/pkg/kv"
)

// setupTestEnv points the CLI at an empty config directory.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	globalConfig, configLoadErr = nil, nil
	return dir
}

// setupModels installs a shared memory store and a scripted generator
// for every default model pattern.
func setupModels(t *testing.T) (*genxtest.Generator, kv.Store) {
	t.Helper()
	gen := &genxtest.Generator{
		Func: func(tool string, _ genx.ModelContext) genxtest.Reply {
			switch tool {
			case "select_event":
				return genxtest.Reply{Arguments: `{"event":"ask_how_to_fix","reason":"asks for help"}`}
			case "select_interaction":
				return genxtest.Reply{Arguments: `{"index":0}`}
			case "analyze_scene":
				return genxtest.Reply{Arguments: `{"isValidCookingStep":true,"isStepCorrect":true,"isCorrectProcedureOrder":true,"hasProgressedToProcedure":false}`}
			}
			return genxtest.Reply{Arguments: `{"response":"Lower the heat and keep stirring.","video_segment_index":[1]}`}
		},
	}
	mux := generators.NewMux()
	def := config.DefaultSession()
	for _, p := range []string{def.ReasoningModel, def.ClassifierModel, def.VisionModel} {
		if err := mux.Handle(p, gen); err != nil {
			t.Fatal(err)
		}
	}
	store := kv.NewMemory(nil)
	testMux, testStore = mux, store
	t.Cleanup(func() { testMux, testStore = nil, nil })
	return gen, store
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// syncBuffer is written by the session goroutine and the command alike.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runCmdIn(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut syncBuffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err = rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return runCmdIn(t, "", args...)
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, err, stderr)
	}
	return stdout
}

// writeKnowledge writes a two segment document and returns its path.
func writeKnowledge(t *testing.T) string {
	t.Helper()
	segs := []knowledge.Segment{
		{Index: 0, Span: [2]int64{0, 6000}, VideoTranscript: "Heat oil over medium heat.", ProcedureDescription: "heat oil"},
		{Index: 1, Span: [2]int64{6000, 14000}, VideoTranscript: "Add onions and stir until soft.", ProcedureDescription: "saute onions"},
	}
	b, err := json.Marshal(segs)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "onions.json")
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
