// Package memlog is the per-session memory log of the cooking assistant.
//
// The log is append-only: every conversational exchange and every scene
// analysis becomes an Entry with a strictly increasing index and a
// millisecond timestamp. Handlers read immutable Snapshots; only the session
// controller appends. A Log may mirror its entries to a kv.Store so that a
// session can be restored after a reconnect.
package memlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/haivivi/cookguide/pkg/kv"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalidSession is returned for session ids that cannot scope kv keys.
var ErrInvalidSession = errors.New("memlog: invalid session id")

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateSession reports whether id may name a persisted session: 1 to 128
// letters, digits, '.', '_' or '-'.
func ValidateSession(id string) error {
	if !sessionPattern.MatchString(id) {
		return fmt.Errorf("%w %q", ErrInvalidSession, id)
	}
	return nil
}

// Config configures a Log.
type Config struct {
	// Session scopes persisted keys. Required when Store is set.
	Session string

	// Store, if set, receives a copy of every entry.
	Store kv.Store

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Log is the memory log of one session. It is safe for concurrent use, but
// the intended shape is one writer and many snapshot readers.
type Log struct {
	session string
	store   kv.Store
	now     func() time.Time
	logger  *slog.Logger
	keyErr  error

	mu      sync.RWMutex
	entries []Entry
	next    int
}

// New creates an empty log.
func New(cfg Config) *Log {
	l := &Log{
		session: cfg.Session,
		store:   cfg.Store,
		now:     cfg.Now,
		logger:  cfg.Logger,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.store != nil {
		l.keyErr = ValidateSession(l.session)
	}
	return l
}

// Session returns the session id the log was created for.
func (l *Log) Session() string { return l.session }

// entryKey layout: cg:{session}:mem:{index, zero padded}.
func entryKey(session string, index int) kv.Key {
	return kv.Key{"cg", session, "mem", fmt.Sprintf("%010d", index)}
}

func entryPrefix(session string) kv.Key {
	return kv.Key{"cg", session, "mem"}
}

// Append records p and returns the stored entry. The payload is copied. A
// failure to mirror the entry to the store is logged and returned, but the
// entry stays in the log.
func (l *Log) Append(ctx context.Context, p Payload) (Entry, error) {
	if p == nil {
		return Entry{}, fmt.Errorf("memlog: nil payload")
	}
	l.mu.Lock()
	e := Entry{
		Index:     l.next,
		Content:   p.clone(),
		Timestamp: l.now().Format(TimeLayout),
	}
	l.next++
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	if l.store == nil {
		return e, nil
	}
	err := l.keyErr
	var data []byte
	if err == nil {
		data, err = msgpack.Marshal(toRecord(e))
	}
	if err == nil {
		err = l.store.Set(ctx, entryKey(l.session, e.Index), data)
	}
	if err != nil {
		l.logger.Warn("memlog: persist entry failed", "session", l.session, "index", e.Index, "error", err)
		return e, fmt.Errorf("memlog: persist entry %d: %w", e.Index, err)
	}
	return e, nil
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns a copy of the current entries.
func (l *Log) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(Snapshot, len(l.entries))
	for i, e := range l.entries {
		e.Content = e.Content.clone()
		out[i] = e
	}
	return out
}

// Clear drops every entry, in memory and in the store, and restarts
// indexing at zero.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.entries = nil
	l.next = 0
	l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	if l.keyErr != nil {
		return fmt.Errorf("memlog: clear: %w", l.keyErr)
	}
	var keys []kv.Key
	for e, err := range l.store.List(ctx, entryPrefix(l.session)) {
		if err != nil {
			return fmt.Errorf("memlog: clear: %w", err)
		}
		keys = append(keys, e.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := l.store.BatchDelete(ctx, keys); err != nil {
		return fmt.Errorf("memlog: clear: %w", err)
	}
	return nil
}

// Restore replaces the in-memory entries with those persisted for the
// session and returns how many were loaded. Undecodable records are skipped.
func (l *Log) Restore(ctx context.Context) (int, error) {
	if l.store == nil {
		return 0, nil
	}
	if l.keyErr != nil {
		return 0, fmt.Errorf("memlog: restore: %w", l.keyErr)
	}
	var entries []Entry
	for kve, err := range l.store.List(ctx, entryPrefix(l.session)) {
		if err != nil {
			return 0, fmt.Errorf("memlog: restore: %w", err)
		}
		var r record
		if err := msgpack.Unmarshal(kve.Value, &r); err != nil {
			l.logger.Warn("memlog: skip undecodable entry", "session", l.session, "key", kve.Key.String(), "error", err)
			continue
		}
		e, err := r.entry()
		if err != nil {
			l.logger.Warn("memlog: skip invalid entry", "session", l.session, "key", kve.Key.String(), "error", err)
			continue
		}
		if want := kve.Key[len(kve.Key)-1]; want != fmt.Sprintf("%010d", e.Index) {
			l.logger.Warn("memlog: skip misplaced entry", "session", l.session, "key", kve.Key.String(), "index", e.Index)
			continue
		}
		entries = append(entries, e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = entries
	l.next = 0
	if n := len(entries); n > 0 {
		l.next = entries[n-1].Index + 1
	}
	return len(entries), nil
}
