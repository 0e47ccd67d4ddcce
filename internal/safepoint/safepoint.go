// SPDX-License-Identifier: MPL-2.0

// Package safepoint coordinates pause points across guest threads.
//
// Participating threads call Poll at safe points. When another goroutine
// requests a safepoint, every participant parks in Poll until the requested
// action has run for all of them.
package safepoint

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Manager is safe for concurrent use.
type Manager struct {
	// serial admits one safepoint at a time.
	serial sync.Mutex

	mu           sync.Mutex
	participants map[int64]struct{}
	arrived      map[int64]struct{}
	release      chan struct{}
	changed      chan struct{}
	requested    atomic.Bool
}

func NewManager() *Manager {
	return &Manager{
		participants: make(map[int64]struct{}),
		arrived:      make(map[int64]struct{}),
		changed:      make(chan struct{}, 1),
	}
}

// Enter registers id as a participant.
func (m *Manager) Enter(id int64) {
	m.mu.Lock()
	m.participants[id] = struct{}{}
	m.mu.Unlock()
}

// Leave removes id; a pending safepoint stops waiting for it.
func (m *Manager) Leave(id int64) {
	m.mu.Lock()
	delete(m.participants, id)
	m.mu.Unlock()
	m.notify()
}

// Participants returns the registered ids in ascending order.
func (m *Manager) Participants() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participantsLocked()
}

// Poll parks the calling thread while a safepoint is in progress. It is
// cheap when none is requested.
func (m *Manager) Poll(id int64) {
	if !m.requested.Load() {
		return
	}

	m.mu.Lock()
	release := m.release
	if release == nil {
		m.mu.Unlock()
		return
	}
	m.arrived[id] = struct{}{}
	m.mu.Unlock()
	m.notify()

	<-release
}

// PauseAllThreadsAndExecute waits until every participant other than caller
// is parked, runs action once per participant, then releases them. It gives
// up with ctx's error if the participants do not arrive in time.
func (m *Manager) PauseAllThreadsAndExecute(ctx context.Context, caller int64, action func(id int64)) error {
	m.serial.Lock()
	defer m.serial.Unlock()

	m.mu.Lock()
	m.arrived = make(map[int64]struct{})
	m.release = make(chan struct{})
	m.requested.Store(true)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.requested.Store(false)
		close(m.release)
		m.release = nil
		m.mu.Unlock()
	}()

	for m.pending(caller) > 0 {
		select {
		case <-m.changed:
		case <-ctx.Done():
			return fmt.Errorf("safepoint: waiting for %d thread(s): %w", m.pending(caller), ctx.Err())
		}
	}

	for _, id := range m.Participants() {
		action(id)
	}
	return nil
}

func (m *Manager) pending(caller int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id := range m.participants {
		if id == caller {
			continue
		}
		if _, ok := m.arrived[id]; !ok {
			n++
		}
	}
	return n
}

func (m *Manager) participantsLocked() []int64 {
	ids := make([]int64, 0, len(m.participants))
	for id := range m.participants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Manager) notify() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}
