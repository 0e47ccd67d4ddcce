// SPDX-License-Identifier: MPL-2.0

// Package atexit keeps the exit hooks registered by guest code.
package atexit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/panics"
)

type (
	// Hook is an exit callback.
	Hook func(ctx context.Context) error

	// Manager runs hooks in reverse registration order. Each hook runs at
	// most once.
	Manager struct {
		logger *log.Logger
		stderr io.Writer

		mu    sync.Mutex
		hooks []entry
	}

	entry struct {
		hook   Hook
		always bool
	}

	// PanicError wraps a value recovered from a panicking hook.
	PanicError struct {
		Value any
		Stack []byte
	}
)

// ErrHookPanicked is the sentinel behind PanicError.
var ErrHookPanicked = errors.New("exit hook panicked")

func New(logger *log.Logger, stderr io.Writer) *Manager {
	return &Manager{logger: logger, stderr: stderr}
}

func (e *PanicError) Error() string { return fmt.Sprintf("exit hook panicked: %v", e.Value) }

func (e *PanicError) Unwrap() error { return ErrHookPanicked }

// Add registers hook. Hooks with always set also run on system exit paths
// that skip ordinary hooks.
func (m *Manager) Add(hook Hook, always bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, entry{hook: hook, always: always})
}

// Len returns the number of hooks not yet run.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hooks)
}

// RunExitHooks runs the ordinary hooks, leaving the always-run ones pending.
func (m *Manager) RunExitHooks(ctx context.Context) []error {
	return m.run(ctx, func(e entry) bool { return !e.always })
}

// RunSystemExitHooks runs every pending hook. Failures are reported to the
// diagnostic writer and never stop later hooks.
func (m *Manager) RunSystemExitHooks(ctx context.Context) []error {
	return m.run(ctx, func(entry) bool { return true })
}

func (m *Manager) run(ctx context.Context, selected func(entry) bool) []error {
	var errs []error
	for {
		hook, ok := m.pop(selected)
		if !ok {
			return errs
		}
		if err := m.invoke(ctx, hook); err != nil {
			errs = append(errs, err)
			m.logger.Warn("exit hook failed", "error", err)
			fmt.Fprintf(m.stderr, "corvid: exit hook failed: %v\n", err)
		}
	}
}

// pop removes and returns the most recently added selected hook. Hooks added
// by a running hook are therefore run next.
func (m *Manager) pop(selected func(entry) bool) (Hook, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.hooks) - 1; i >= 0; i-- {
		if selected(m.hooks[i]) {
			h := m.hooks[i].hook
			m.hooks = append(m.hooks[:i], m.hooks[i+1:]...)
			return h, true
		}
	}
	return nil, false
}

func (m *Manager) invoke(ctx context.Context, hook Hook) (err error) {
	var pc panics.Catcher
	pc.Try(func() { err = hook(ctx) })
	if r := pc.Recovered(); r != nil {
		return &PanicError{Value: r.Value, Stack: r.Stack}
	}
	return err
}
