package kv

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory keeps entries in process memory, ordered by encoded key. A memory
// log restored from it is gone when the process exits.
type Memory struct {
	opts *Options

	mu     sync.RWMutex
	values map[string][]byte
	keys   []string // sorted
}

// NewMemory creates an empty store. opts may be nil.
func NewMemory(opts *Options) *Memory {
	return &Memory{opts: opts, values: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k, err := m.opts.encode(key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[string(k)]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(ctx context.Context, key Key, value []byte) error {
	return m.BatchSet(ctx, []Entry{{Key: key, Value: value}})
}

func (m *Memory) Delete(ctx context.Context, key Key) error {
	return m.BatchDelete(ctx, []Key{key})
}

// List iterates over a copy of the matching entries taken when it is
// called.
func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p, err := m.opts.scan(prefix)
	if err != nil {
		return func(yield func(Entry, error) bool) { yield(Entry{}, err) }
	}
	var out []Entry
	m.mu.RLock()
	i, _ := slices.BinarySearch(m.keys, string(p))
	for _, k := range m.keys[i:] {
		if !strings.HasPrefix(k, string(p)) {
			break
		}
		out = append(out, Entry{Key: m.opts.decode([]byte(k)), Value: slices.Clone(m.values[k])})
	}
	m.mu.RUnlock()
	return func(yield func(Entry, error) bool) {
		for _, e := range out {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// BatchSet stores every entry or, when a key is invalid, none.
func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	encoded := make([]string, len(entries))
	for i, e := range entries {
		k, err := m.opts.encode(e.Key)
		if err != nil {
			return err
		}
		encoded[i] = string(k)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, k := range encoded {
		if _, ok := m.values[k]; !ok {
			at, _ := slices.BinarySearch(m.keys, k)
			m.keys = slices.Insert(m.keys, at, k)
		}
		m.values[k] = slices.Clone(entries[i].Value)
	}
	return nil
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	encoded := make([]string, len(keys))
	for i, key := range keys {
		k, err := m.opts.encode(key)
		if err != nil {
			return err
		}
		encoded[i] = string(k)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range encoded {
		if _, ok := m.values[k]; !ok {
			continue
		}
		delete(m.values, k)
		if at, found := slices.BinarySearch(m.keys, k); found {
			m.keys = slices.Delete(m.keys, at, at+1)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
