package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// ErrNoService is returned by LoadService for a service without a file.
var ErrNoService = errors.New("config: service not configured")

// ValidateServiceName checks that a service name is safe for use as a
// filename.
func ValidateServiceName(service string) error {
	if service == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.ContainsAny(service, `/\`) {
		return fmt.Errorf("service name %q must not contain path separators", service)
	}
	if strings.HasPrefix(service, ".") {
		return fmt.Errorf("service name %q must not start with '.'", service)
	}
	return nil
}

// ServicePath returns the YAML file of a service in a context directory.
func ServicePath(contextDir, service string) string {
	return filepath.Join(contextDir, service+".yaml")
}

// LoadService loads "{contextDir}/{service}.yaml" into a T.
func LoadService[T any](contextDir, service string) (*T, error) {
	path := ServicePath(contextDir, service)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (expected: %s)", ErrNoService, service, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &v, nil
}

// LoadServiceOr is LoadService returning def when the file is missing.
func LoadServiceOr[T any](contextDir, service string, def *T) (*T, error) {
	v, err := LoadService[T](contextDir, service)
	if errors.Is(err, ErrNoService) {
		return def, nil
	}
	return v, err
}

// SaveService writes a service configuration to a context directory.
func SaveService[T any](contextDir, service string, v *T) error {
	if err := os.MkdirAll(contextDir, 0755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s config: %w", service, err)
	}
	path := ServicePath(contextDir, service)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ListServices returns the service names configured in a context directory.
func ListServices(contextDir string) ([]string, error) {
	entries, err := os.ReadDir(contextDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list services: %w", err)
	}

	var services []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext == ".yaml" || ext == ".yml" {
			services = append(services, name[:len(name)-len(ext)])
		}
	}
	return services, nil
}
