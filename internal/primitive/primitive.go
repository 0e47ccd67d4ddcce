// SPDX-License-Identifier: MPL-2.0

// Package primitive is the registry of primitive functions: named Go
// callables the core library binds to guest-visible methods.
package primitive

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrDuplicatePrimitive is returned when a name is registered twice.
var ErrDuplicatePrimitive = errors.New("duplicate primitive")

type (
	// Func is the signature of a primitive. self is the receiver.
	Func func(ctx context.Context, self any, args ...any) (any, error)

	// DuplicatePrimitiveError wraps ErrDuplicatePrimitive.
	DuplicatePrimitiveError struct {
		Name string
	}

	// Manager is safe for concurrent use.
	Manager struct {
		mu    sync.RWMutex
		funcs map[string]Func
	}
)

func (e *DuplicatePrimitiveError) Error() string {
	return fmt.Sprintf("primitive %q already registered", e.Name)
}

func (e *DuplicatePrimitiveError) Unwrap() error { return ErrDuplicatePrimitive }

func NewManager() *Manager {
	return &Manager{funcs: make(map[string]Func)}
}

// Add registers fn under name.
func (m *Manager) Add(name string, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("primitive: name and function are required (name %q)", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.funcs[name]; exists {
		return &DuplicatePrimitiveError{Name: name}
	}
	m.funcs[name] = fn
	return nil
}

func (m *Manager) Lookup(name string) (Func, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.funcs[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.funcs))
	for name := range m.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.funcs)
}
