package modelloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/haivivi/cookguide/pkg/genx/generators"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_API_KEY", "test-key-123")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"plain value", "plain-api-key", "plain-api-key"},
		{"env var with $", "$TEST_API_KEY", "test-key-123"},
		{"env var with ${}", "${TEST_API_KEY}", "test-key-123"},
		{"unset env var", "$UNSET_VAR", ""},
		{"mixed content", "prefix-$TEST_API_KEY-suffix", "prefix-$TEST_API_KEY-suffix"}, // Only expands if starts with $
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnv(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnv(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseConfig_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	jsonContent := `{
		"schema": "openai/chat/v1",
		"type": "generator",
		"api_key": "test-key",
		"base_url": "https://api.example.com",
		"models": [
			{
				"name": "test/model",
				"model": "gpt-4o-mini",
				"support_json_output": true
			}
		]
	}`
	jsonPath := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(jsonPath, []byte(jsonContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseConfig(jsonPath)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if cfg.Schema != "openai/chat/v1" {
		t.Errorf("Schema = %q, want %q", cfg.Schema, "openai/chat/v1")
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "test-key")
	}
	if len(cfg.Models) != 1 || !cfg.Models[0].SupportJSONOutput {
		t.Errorf("Models = %+v", cfg.Models)
	}
}

func TestParseConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	yamlContent := `
kind: gemini
api_key: test-key
models:
  - name: gemini/flash
    model: gemini-2.5-flash
    invoke_params:
      temperature: 0.2
`
	yamlPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseConfig(yamlPath)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if p, _ := cfg.Provider(); p != "gemini" {
		t.Errorf("Provider() = %q, want gemini", p)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].InvokeParams == nil || cfg.Models[0].InvokeParams.Temperature != 0.2 {
		t.Errorf("Models = %+v", cfg.Models)
	}
}

func TestParseConfig_UnsupportedExtension(t *testing.T) {
	txtPath := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(txtPath, []byte("some content"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := parseConfig(txtPath); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  ConfigFile
	}{
		{"missing api key", ConfigFile{Kind: "openai"}},
		{"unknown type", ConfigFile{Schema: "openai/chat/v1", Type: "tts", APIKey: "k"}},
		{"invalid schema", ConfigFile{Schema: "invalid", APIKey: "k"}},
		{"no schema or kind", ConfigFile{APIKey: "k"}},
		{"unknown provider", ConfigFile{Kind: "mistral", APIKey: "k"}},
		{"entry without model", ConfigFile{Kind: "openai", APIKey: "k", Models: []Entry{{Name: "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Loader{Mux: generators.NewMux()}
			if _, err := l.Register(context.Background(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}

	l := &Loader{Mux: generators.NewMux()}
	_, err := l.Register(context.Background(), ConfigFile{Kind: "openai", APIKey: "$NONEXISTENT_API_KEY"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestRegister_OpenAI(t *testing.T) {
	mux := generators.NewMux()
	l := &Loader{Mux: mux}
	names, err := l.Register(context.Background(), ConfigFile{
		Schema: "openai/chat/v1",
		APIKey: "sk-test",
		Models: []Entry{
			{Name: "openai/gpt-4o", Model: "gpt-4o", SupportJSONOutput: true},
			{Name: "openai/gpt-4o-mini", Model: "gpt-4o-mini", SupportToolCalls: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"openai/gpt-4o", "openai/gpt-4o-mini"}) {
		t.Errorf("names = %v", names)
	}
	if !mux.Has("openai/gpt-4o-mini") {
		t.Error("generator not registered")
	}

	// Registering the same pattern twice fails.
	if _, err := l.Register(context.Background(), ConfigFile{
		Kind: "openai", APIKey: "sk-test",
		Models: []Entry{{Name: "openai/gpt-4o", Model: "gpt-4o"}},
	}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestRegister_Gemini(t *testing.T) {
	mux := generators.NewMux()
	l := &Loader{Mux: mux}
	names, err := l.Register(context.Background(), ConfigFile{
		Kind:   "gemini",
		APIKey: "test-key",
		Models: []Entry{{Name: "gemini/flash", Model: "gemini-2.5-flash"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || !mux.Has("gemini/flash") {
		t.Errorf("names = %v", names)
	}
}

func TestLoadDir(t *testing.T) {
	tmpDir := t.TempDir()
	files := map[string]string{
		"skip.json": `{"kind": "openai", "api_key": "$NONEXISTENT_API_KEY", "models": [{"name": "skip/model", "model": "gpt-4"}]}`,
		"readme.md": "# README",
		"nested/openai.yaml": `
kind: openai
api_key: sk-test
models:
  - name: openai/gpt-4o
    model: gpt-4o
    support_json_output: true
`,
	}
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	mux := generators.NewMux()
	l := &Loader{Mux: mux}
	names, err := l.LoadDir(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if !slices.Equal(names, []string{"openai/gpt-4o"}) {
		t.Errorf("names = %v", names)
	}
	if mux.Has("skip/model") {
		t.Error("config with missing credentials was registered")
	}
}

func TestLoadDir_EmptyDir(t *testing.T) {
	l := &Loader{Mux: generators.NewMux()}
	names, err := l.LoadDir(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected 0 names, got %d", len(names))
	}
}
