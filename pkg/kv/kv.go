// Package kv is the key-value layer behind session memory persistence.
//
// Keys are string segments (kv.Key{"cg", session, "mem", "0000000003"})
// joined with a separator, ':' by default. Three backends share the Store
// interface: Memory for tests and single runs, Badger for an embedded
// on-disk database, and Redis for memory shared between server replicas.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned for a key with a segment that holds the
	// separator.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a hierarchical path. Key{"cg", "s1", "mem"} encodes to "cg:s1:mem"
// with the default separator.
//
// Segments must not contain the separator; stores reject such keys with
// ErrInvalidKey.
type Key []string

// String returns the key as a human-readable string using ':' as separator.
// This is for display only; stores use their Options.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair returned by List and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for a key-value store with path-based keys.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair. Overwrites any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over all entries whose key starts with the given prefix.
	// The iteration order is lexicographic by encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple key-value pairs.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete atomically removes multiple keys.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases any resources held by the store.
	Close() error
}

// DefaultSeparator is the default separator byte used to encode key segments.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator is the byte used to join key segments when encoding to storage.
	// Default is ':' if zero.
	Separator byte
}

// sep returns the effective separator.
func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode joins the segments of k with the separator.
func (o *Options) encode(k Key) ([]byte, error) {
	s := o.sep()
	var buf []byte
	for i, seg := range k {
		if strings.IndexByte(seg, s) >= 0 {
			return nil, fmt.Errorf("%w: segment %q holds %q", ErrInvalidKey, seg, s)
		}
		if i > 0 {
			buf = append(buf, s)
		}
		buf = append(buf, seg...)
	}
	return buf, nil
}

// scan encodes a List prefix. A non-empty prefix ends with the separator
// so that cg:s1 does not match cg:s10.
func (o *Options) scan(prefix Key) ([]byte, error) {
	p, err := o.encode(prefix)
	if err != nil || len(p) == 0 {
		return nil, err
	}
	return append(p, o.sep()), nil
}

func (o *Options) decode(b []byte) Key {
	return strings.Split(string(b), string(o.sep()))
}
