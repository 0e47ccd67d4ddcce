// SPDX-License-Identifier: MPL-2.0

// Package coverage collects per-line execution counts from the host
// instrumentation hook.
package coverage

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/corvidvm/corvid/pkg/embed"
)

// ErrNoInstrumenter is returned by Enable when the host offers no hook.
var ErrNoInstrumenter = fmt.Errorf("coverage requires a host instrumenter")

type Manager struct {
	logger *log.Logger
	inst   embed.Instrumenter

	mu      sync.Mutex
	binding embed.Binding
	counts  map[string]map[int]uint64
}

func New(logger *log.Logger, inst embed.Instrumenter) *Manager {
	return &Manager{logger: logger, inst: inst, counts: make(map[string]map[int]uint64)}
}

// Enable starts counting line events. Calling it twice is a no-op.
func (m *Manager) Enable() error {
	if m.inst == nil {
		return ErrNoInstrumenter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binding != nil {
		return nil
	}
	m.binding = m.inst.Attach(embed.EventFilter{Kinds: []embed.EventKind{embed.EventLine}}, m.record)
	m.logger.Debug("coverage enabled")
	return nil
}

// Enabled reports whether line events are being counted.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binding != nil
}

// Disable stops counting. Collected counts are retained.
func (m *Manager) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binding != nil {
		m.binding.Dispose()
		m.binding = nil
	}
}

func (m *Manager) record(ev embed.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines, ok := m.counts[ev.Source]
	if !ok {
		lines = make(map[int]uint64)
		m.counts[ev.Source] = lines
	}
	lines[ev.Line]++
}

// Counts returns a copy of the per-source line counts.
func (m *Manager) Counts() map[string]map[int]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]map[int]uint64, len(m.counts))
	for src, lines := range m.counts {
		cp := make(map[int]uint64, len(lines))
		for l, n := range lines {
			cp[l] = n
		}
		out[src] = cp
	}
	return out
}

// Print writes one block per source, sorted by name, with one
// "<line>: <count>" entry per executed line.
func (m *Manager) Print(w io.Writer) error {
	counts := m.Counts()
	sources := make([]string, 0, len(counts))
	for src := range counts {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		lines := counts[src]
		nums := make([]int, 0, len(lines))
		for l := range lines {
			nums = append(nums, l)
		}
		sort.Ints(nums)
		if _, err := fmt.Fprintf(w, "%s (%d lines covered)\n", src, len(nums)); err != nil {
			return err
		}
		for _, l := range nums {
			if _, err := fmt.Fprintf(w, "  %d: %d\n", l, lines[l]); err != nil {
				return err
			}
		}
	}
	return nil
}
