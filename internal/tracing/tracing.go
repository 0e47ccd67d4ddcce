// SPDX-License-Identifier: MPL-2.0

// Package tracing manages the guest-visible trace function, bridging it to
// the host instrumentation hook.
package tracing

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/corvidvm/corvid/pkg/embed"
)

// Func receives every traced event.
type Func func(embed.Event)

// Manager is inert when the host provides no instrumenter.
type Manager struct {
	logger *log.Logger
	inst   embed.Instrumenter

	mu      sync.Mutex
	fn      Func
	binding embed.Binding
}

func New(logger *log.Logger, inst embed.Instrumenter) *Manager {
	return &Manager{logger: logger, inst: inst}
}

// Available reports whether an instrumenter is attached.
func (m *Manager) Available() bool { return m.inst != nil }

// SetTraceFunc installs fn, replacing any previous trace function. A nil fn
// removes tracing.
func (m *Manager) SetTraceFunc(fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.binding != nil {
		m.binding.Dispose()
		m.binding = nil
	}
	m.fn = fn
	if fn == nil {
		return
	}
	if m.inst == nil {
		m.logger.Debug("trace function set without an instrumenter; no events will fire")
		return
	}
	m.binding = m.inst.Attach(embed.EventFilter{}, func(ev embed.Event) {
		fn(ev)
	})
}

// Enabled reports whether a trace function is installed.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}

// Close detaches from the instrumenter.
func (m *Manager) Close() { m.SetTraceFunc(nil) }
