package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

var _ FileStore = (*Local)(nil)

// Local keeps files under one directory. Names may not climb out of it.
type Local struct {
	dir string
}

// NewLocal opens dir, creating it when missing.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &Local{dir: abs}, nil
}

// Dir returns the absolute directory of the store.
func (l *Local) Dir() string { return l.dir }

func (l *Local) file(name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("storage: %q is outside %s", name, l.dir)
	}
	return filepath.Join(l.dir, rel), nil
}

func (l *Local) Read(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := l.file(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Write stages the data in a temporary file next to name and renames it
// into place on Close, so a failed export never leaves half a file.
func (l *Local) Write(_ context.Context, name string) (io.WriteCloser, error) {
	p, err := l.file(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*")
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &localWriter{File: tmp, target: p}, nil
}

func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	p, err := l.file(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

type localWriter struct {
	*os.File
	target string
	closed bool
}

func (w *localWriter) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	err := w.File.Sync()
	if cerr := w.File.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(w.Name(), w.target)
	}
	if err != nil {
		os.Remove(w.Name())
		return fmt.Errorf("storage: write %s: %w", w.target, err)
	}
	return nil
}
