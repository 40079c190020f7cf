package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths locates the local data of an app under the user cache directory:
//
//	<cache>/<app>/
//	├── memory/    badger memory log
//	├── exports/   memory exports
//	└── logs/
type Paths struct {
	// Root is the app directory.
	Root string
}

// NewPaths returns the paths of app under os.UserCacheDir().
func NewPaths(app string) (*Paths, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine cache directory: %w", err)
	}
	return &Paths{Root: filepath.Join(base, app)}, nil
}

// MemoryDir is the default badger directory.
func (p *Paths) MemoryDir() string {
	return filepath.Join(p.Root, "memory")
}

// ExportDir is the default local target of memory exports.
func (p *Paths) ExportDir() string {
	return filepath.Join(p.Root, "exports")
}

func (p *Paths) LogDir() string {
	return filepath.Join(p.Root, "logs")
}

// Ensure creates dir and returns it.
func (p *Paths) Ensure(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
