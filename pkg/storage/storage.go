// Package storage reads and writes whole files on local disk or in an S3
// compatible bucket. cookguide loads video knowledge documents from it and
// exports session memory to it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrExists is returned by Create when the target is already there.
var ErrExists = errors.New("storage: file exists")

// FileStore holds knowledge documents and memory exports. Names are slash
// separated and relative to the store.
type FileStore interface {
	// Read opens name. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, name string) (io.ReadCloser, error)

	// Write returns a writer for name. Nothing is visible under name until
	// Close returns nil; the old content, if any, is then replaced.
	Write(ctx context.Context, name string) (io.WriteCloser, error)

	// Exists reports whether name holds a file.
	Exists(ctx context.Context, name string) (bool, error)
}

// ReadFile reads all of name.
func ReadFile(ctx context.Context, fs FileStore, name string) ([]byte, error) {
	r, err := fs.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Create is Write that refuses to replace an existing file unless
// overwrite is set.
func Create(ctx context.Context, fs FileStore, name string, overwrite bool) (io.WriteCloser, error) {
	if !overwrite {
		ok, err := fs.Exists(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, fmt.Errorf("%w: %s", ErrExists, name)
		}
	}
	return fs.Write(ctx, name)
}
