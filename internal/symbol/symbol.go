// SPDX-License-Identifier: MPL-2.0

// Package symbol is the runtime symbol table.
package symbol

import (
	"maps"
	"slices"
	"sync"

	"github.com/corvidvm/corvid/internal/object"
)

type (
	// Factory allocates a Symbol object; it is produced by the core library
	// once the Symbol class exists.
	Factory func(name string) *object.Symbol

	// Table maps names to their unique Symbol. Safe for concurrent use.
	Table struct {
		factory Factory
		mu      sync.RWMutex
		symbols map[string]*object.Symbol
	}
)

// New creates a table allocating symbols through factory.
func New(factory Factory) *Table {
	return &Table{factory: factory, symbols: make(map[string]*object.Symbol)}
}

// Symbol returns the unique symbol for name, creating it on first use.
func (t *Table) Symbol(name string) *object.Symbol {
	t.mu.RLock()
	s, ok := t.symbols[name]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.symbols[name]; ok {
		return s
	}
	s = t.factory(name)
	t.symbols[name] = s
	return s
}

// Lookup returns an existing symbol without creating one.
func (t *Table) Lookup(name string) (*object.Symbol, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.symbols[name]
	return s, ok
}

// All returns every symbol ordered by name.
func (t *Table) All() []*object.Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*object.Symbol, 0, len(t.symbols))
	for _, name := range slices.Sorted(maps.Keys(t.symbols)) {
		out = append(out, t.symbols[name])
	}
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.symbols)
}
