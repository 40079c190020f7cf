// Package generators routes model names to genx.Generator implementations.
//
// Model names are slash-separated ("openai/gpt-4o"); registrations may use
// "+" and "#" wildcards, see package trie.
package generators

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/trie"
)

var _ genx.Generator = (*Mux)(nil)

// ErrNotFound is returned for a model name with no registered generator.
var ErrNotFound = errors.New("generators: generator not found")

// DefaultMux is the default generator multiplexer.
var DefaultMux = NewMux()

// Handle registers a generator for the given pattern to the default mux.
func Handle(pattern string, gen genx.Generator) error {
	return DefaultMux.Handle(pattern, gen)
}

// Invoke invokes a function tool using the default mux.
func Invoke(ctx context.Context, pattern string, mctx genx.ModelContext, fn *genx.FuncTool) (genx.Usage, *genx.FuncCall, error) {
	return DefaultMux.Invoke(ctx, pattern, mctx, fn)
}

// Mux is a generator multiplexer. It is safe for concurrent use.
type Mux struct {
	mu  sync.RWMutex
	mux *trie.Trie[genx.Generator]
}

func NewMux() *Mux {
	return &Mux{
		mux: trie.New[genx.Generator](),
	}
}

// Handle registers a generator for the given pattern. Registering the same
// pattern twice is an error.
func (gm *Mux) Handle(pattern string, gen genx.Generator) error {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return gm.mux.Set(pattern, func(ptr *genx.Generator, existed bool) error {
		if existed {
			return fmt.Errorf("generators: generator already registered for %s", pattern)
		}
		*ptr = gen
		return nil
	})
}

// Invoke invokes a function tool on the generator registered for name.
func (gm *Mux) Invoke(ctx context.Context, name string, mctx genx.ModelContext, tool *genx.FuncTool) (genx.Usage, *genx.FuncCall, error) {
	gen, err := gm.get(name)
	if err != nil {
		return genx.Usage{}, nil, err
	}
	return gen.Invoke(ctx, name, mctx, tool)
}

// Has reports whether a generator is registered for name.
func (gm *Mux) Has(name string) bool {
	_, err := gm.get(name)
	return err == nil
}

// Patterns returns the registered patterns, sorted.
func (gm *Mux) Patterns() []string {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.mux.Routes()
}

func (gm *Mux) get(name string) (genx.Generator, error) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	gen, ok := gm.mux.GetValue(name)
	if !ok || gen == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return gen, nil
}
