package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPaths(t *testing.T) {
	paths, err := NewPaths("testapp")
	if err != nil {
		t.Skipf("no cache dir: %v", err)
	}
	if filepath.Base(paths.Root) != "testapp" {
		t.Errorf("Root = %q, want it to end in testapp", paths.Root)
	}
}

func TestPaths_Dirs(t *testing.T) {
	root := t.TempDir()
	paths := &Paths{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"memory", paths.MemoryDir(), filepath.Join(root, "memory")},
		{"exports", paths.ExportDir(), filepath.Join(root, "exports")},
		{"logs", paths.LogDir(), filepath.Join(root, "logs")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s dir = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPaths_Ensure(t *testing.T) {
	paths := &Paths{Root: filepath.Join(t.TempDir(), "app")}

	dir, err := paths.Ensure(paths.MemoryDir())
	if err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if !info.IsDir() {
		t.Error("Ensure should create a directory")
	}

	// Idempotent.
	if _, err := paths.Ensure(dir); err != nil {
		t.Errorf("second Ensure error: %v", err)
	}
}
