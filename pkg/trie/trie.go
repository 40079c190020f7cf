// Package trie stores values under slash-separated routes such as
// "openai/gpt-4o". A route segment "+" matches exactly one segment and a
// trailing "#" matches the rest of the path. Exact segments win over "+",
// which wins over "#".
package trie

import (
	"errors"
	"slices"
	"strings"
)

// ErrInvalidPattern is returned when "#" is not the last segment.
var ErrInvalidPattern = errors.New("trie: invalid route, \"#\" must be the last segment")

// Trie is a route tree. The zero value is empty and ready to use. It is not
// safe for concurrent writes.
type Trie[T any] struct {
	children map[string]*Trie[T]
	matchAny *Trie[T]
	matchAll *Trie[T]
	set      bool
	value    T
}

func New[T any]() *Trie[T] {
	return &Trie[T]{}
}

func split(path string) (first, rest string) {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// Set calls fn with the slot for route. existed reports whether the slot
// already held a value; if fn returns an error the slot is left unset.
func (t *Trie[T]) Set(route string, fn func(ptr *T, existed bool) error) error {
	node, err := t.node(route)
	if err != nil {
		return err
	}
	if err := fn(&node.value, node.set); err != nil {
		return err
	}
	node.set = true
	return nil
}

func (t *Trie[T]) node(route string) (*Trie[T], error) {
	if route == "" {
		return t, nil
	}
	first, rest := split(route)
	switch first {
	case "+":
		if t.matchAny == nil {
			t.matchAny = &Trie[T]{}
		}
		return t.matchAny.node(rest)
	case "#":
		if rest != "" {
			return nil, ErrInvalidPattern
		}
		if t.matchAll == nil {
			t.matchAll = &Trie[T]{}
		}
		return t.matchAll, nil
	}
	if t.children == nil {
		t.children = make(map[string]*Trie[T])
	}
	ch, ok := t.children[first]
	if !ok {
		ch = &Trie[T]{}
		t.children[first] = ch
	}
	return ch.node(rest)
}

// SetValue stores value at route, replacing any previous value.
func (t *Trie[T]) SetValue(route string, value T) error {
	return t.Set(route, func(ptr *T, _ bool) error {
		*ptr = value
		return nil
	})
}

// Get returns the slot of the best route matching path.
func (t *Trie[T]) Get(path string) (*T, bool) {
	_, v, ok := t.Match(path)
	return v, ok
}

// GetValue is Get returning the value itself.
func (t *Trie[T]) GetValue(path string) (T, bool) {
	if ptr, ok := t.Get(path); ok {
		return *ptr, true
	}
	var zero T
	return zero, false
}

// Match returns the best route matching path and its slot. The returned route
// starts with "/".
func (t *Trie[T]) Match(path string) (route string, value *T, ok bool) {
	return t.match("", path)
}

func (t *Trie[T]) match(matched, path string) (string, *T, bool) {
	if path == "" {
		return matched, &t.value, t.set
	}
	first, rest := split(path)
	if ch, ok := t.children[first]; ok {
		if route, v, ok := ch.match(matched+"/"+first, rest); ok {
			return route, v, true
		}
	}
	if t.matchAny != nil {
		if route, v, ok := t.matchAny.match(matched+"/+", rest); ok {
			return route, v, true
		}
	}
	if t.matchAll != nil && t.matchAll.set {
		return matched + "/#", &t.matchAll.value, true
	}
	return "", nil, false
}

// Routes returns every route holding a value, sorted.
func (t *Trie[T]) Routes() []string {
	var out []string
	t.walk(nil, func(path []string, n *Trie[T]) {
		if n.set {
			out = append(out, strings.Join(path, "/"))
		}
	})
	slices.Sort(out)
	return out
}

func (t *Trie[T]) walk(path []string, f func([]string, *Trie[T])) {
	for seg, ch := range t.children {
		ch.walk(append(slices.Clip(path), seg), f)
	}
	if t.matchAny != nil {
		t.matchAny.walk(append(slices.Clip(path), "+"), f)
	}
	if t.matchAll != nil {
		t.matchAll.walk(append(slices.Clip(path), "#"), f)
	}
	f(path, t)
}

// Len returns the number of routes holding a value.
func (t *Trie[T]) Len() int {
	return len(t.Routes())
}
