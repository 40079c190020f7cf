// Package modelloader registers OpenAI and Gemini generators described by
// YAML or JSON model files.
//
// A model file names a provider and the models to register under it:
//
//	schema: openai/chat/v1
//	api_key: $OPENAI_API_KEY
//	models:
//	  - name: openai/gpt-4o
//	    model: gpt-4o
//	    support_json_output: true
//
// The legacy form uses kind: openai instead of schema.
package modelloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
)

// ErrMissingCredentials is returned for a model file whose api key is
// empty after environment expansion.
var ErrMissingCredentials = errors.New("modelloader: missing credentials")

type ConfigFile struct {
	Schema string `json:"schema,omitzero" yaml:"schema,omitempty"` // e.g. "openai/chat/v1", "gemini/chat/v1"
	Type   string `json:"type,omitzero" yaml:"type,omitempty"`     // "generator" or empty

	// Legacy format.
	Kind string `json:"kind,omitzero" yaml:"kind,omitempty"` // "openai", "gemini"

	APIKey  string `json:"api_key,omitzero" yaml:"api_key,omitempty"` // Can be an env var reference like "$OPENAI_API_KEY"
	BaseURL string `json:"base_url,omitzero" yaml:"base_url,omitempty"`

	Models []Entry `json:"models,omitzero" yaml:"models,omitempty"`
}

type Entry struct {
	Name              string            `json:"name" yaml:"name"`
	Model             string            `json:"model" yaml:"model"`
	InvokeParams      *genx.ModelParams `json:"invoke_params,omitzero" yaml:"invoke_params,omitempty"`
	SupportJSONOutput bool              `json:"support_json_output,omitzero" yaml:"support_json_output,omitempty"`
	SupportToolCalls  bool              `json:"support_tool_calls,omitzero" yaml:"support_tool_calls,omitempty"`
	SupportTextOnly   bool              `json:"support_text_only,omitzero" yaml:"support_text_only,omitempty"`
	UseSystemRole     bool              `json:"use_system_role,omitzero" yaml:"use_system_role,omitempty"`
	ExtraFields       map[string]any    `json:"extra_fields,omitzero" yaml:"extra_fields,omitempty"`
	Desc              string            `json:"desc,omitzero" yaml:"desc,omitempty"`
}

// Provider returns "openai" or "gemini" from Schema, or Kind for legacy
// files.
func (c ConfigFile) Provider() (string, error) {
	if c.Schema != "" {
		if c.Type != "" && c.Type != "generator" {
			return "", fmt.Errorf("modelloader: unsupported type: %s", c.Type)
		}
		parts := strings.Split(c.Schema, "/")
		if len(parts) < 2 || parts[0] == "" {
			return "", fmt.Errorf("modelloader: invalid schema: %s", c.Schema)
		}
		return parts[0], nil
	}
	if c.Kind == "" {
		return "", fmt.Errorf("modelloader: schema or kind is required")
	}
	return strings.ToLower(c.Kind), nil
}

// Loader registers generators to Mux.
type Loader struct {
	// Mux defaults to generators.DefaultMux.
	Mux *generators.Mux

	// Verbose logs request bodies at debug level.
	Verbose bool

	Logger *slog.Logger
}

func (l *Loader) mux() *generators.Mux {
	if l.Mux == nil {
		return generators.DefaultMux
	}
	return l.Mux
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// LoadDir loads model files from dir recursively and returns the
// registered model names. Files with missing credentials are skipped.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			return nil
		}
		fileNames, err := l.LoadFile(ctx, path)
		if errors.Is(err, ErrMissingCredentials) {
			l.logger().Debug("modelloader: skip", "path", path, "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		names = append(names, fileNames...)
		return nil
	})
	return names, err
}

// LoadFile loads one model file.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]string, error) {
	cfg, err := parseConfig(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	names, err := l.Register(ctx, *cfg)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", path, err)
	}
	return names, nil
}

// Register registers every model of cfg.
func (l *Loader) Register(ctx context.Context, cfg ConfigFile) ([]string, error) {
	cfg.APIKey = expandEnv(cfg.APIKey)
	provider, err := cfg.Provider()
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api_key is required for %s", ErrMissingCredentials, provider)
	}
	for _, m := range cfg.Models {
		if m.Name == "" || m.Model == "" {
			return nil, fmt.Errorf("modelloader: model entry missing name or model")
		}
	}
	switch provider {
	case "openai":
		return l.registerOpenAI(cfg)
	case "gemini":
		return l.registerGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("modelloader: unknown generator provider: %s", provider)
	}
}

func (l *Loader) httpClient() *http.Client {
	if !l.Verbose {
		return nil
	}
	return &http.Client{Transport: &verboseTransport{base: http.DefaultTransport, logger: l.logger()}}
}

func (l *Loader) registerOpenAI(cfg ConfigFile) ([]string, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if hc := l.httpClient(); hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	client := openai.NewClient(opts...)

	var names []string
	for _, m := range cfg.Models {
		if err := l.mux().Handle(m.Name, &genx.OpenAIGenerator{
			Client:            &client,
			Model:             m.Model,
			InvokeParams:      m.InvokeParams,
			SupportJSONOutput: m.SupportJSONOutput,
			SupportToolCalls:  m.SupportToolCalls,
			SupportTextOnly:   m.SupportTextOnly,
			UseSystemRole:     m.UseSystemRole,
			ExtraFields:       m.ExtraFields,
		}); err != nil {
			return nil, fmt.Errorf("register generator %q: %w", m.Name, err)
		}
		names = append(names, m.Name)
	}
	return names, nil
}

func (l *Loader) registerGemini(ctx context.Context, cfg ConfigFile) ([]string, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: l.httpClient(),
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range cfg.Models {
		if err := l.mux().Handle(m.Name, &genx.GeminiGenerator{
			Client:       client,
			Model:        m.Model,
			InvokeParams: m.InvokeParams,
		}); err != nil {
			return nil, fmt.Errorf("register generator %q: %w", m.Name, err)
		}
		names = append(names, m.Name)
	}
	return names, nil
}

func parseConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ConfigFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported extension: %s", ext)
	}
	return &cfg, nil
}

// expandEnv expands s when it starts with '$'. An unset variable expands to
// the empty string.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "$") {
		return os.ExpandEnv(s)
	}
	return s
}

type verboseTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *verboseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err == nil {
			body = pretty.Bytes()
		}
		t.logger.Debug("modelloader: request", "url", req.URL.String(), "body", string(body))
	}
	return t.base.RoundTrip(req)
}
