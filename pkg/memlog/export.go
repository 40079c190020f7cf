package memlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haivivi/cookguide/pkg/storage"
)

// Export writes the entries as an indented JSON array to path in fs. An
// existing file is replaced only when overwrite is set.
func Export(ctx context.Context, fs storage.FileStore, path string, entries []Entry, overwrite bool) error {
	w, err := storage.Create(ctx, fs, path, overwrite)
	if err != nil {
		return fmt.Errorf("memlog: export %s: %w", path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if entries == nil {
		entries = []Entry{}
	}
	if err := enc.Encode(entries); err != nil {
		w.Close()
		return fmt.Errorf("memlog: export %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("memlog: export %s: %w", path, err)
	}
	return nil
}

// Import reads entries written by Export.
func Import(ctx context.Context, fs storage.FileStore, path string) ([]Entry, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("memlog: import %s: %w", path, err)
	}
	defer r.Close()
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("memlog: import %s: %w", path, err)
	}
	return entries, nil
}
