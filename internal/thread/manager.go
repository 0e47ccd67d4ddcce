// SPDX-License-Identifier: MPL-2.0

package thread

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/corvidvm/corvid/internal/encoding"
	"github.com/corvidvm/corvid/internal/safepoint"
)

const rootThreadID = 1

var (
	// ErrNotInitialized is returned before Initialize registered the root thread.
	ErrNotInitialized = errors.New("thread manager not initialized")
	// ErrShuttingDown is returned by Spawn once Shutdown has begun.
	ErrShuttingDown = errors.New("thread manager is shutting down")
)

// Manager is safe for concurrent use.
type Manager struct {
	logger     *log.Logger
	safepoints *safepoint.Manager
	encodings  *encoding.Manager

	wg       conc.WaitGroup
	base     context.Context
	stopAll  context.CancelFunc
	nextID   atomic.Int64
	stopping bool
	stopOnce sync.Once
	rootOnce sync.Once

	mu      sync.RWMutex
	threads map[int64]*Thread
	root    *Thread
}

// NewManager creates a manager. The encoding registry must already be
// initialized; threads record its default external encoding.
func NewManager(logger *log.Logger, safepoints *safepoint.Manager, encodings *encoding.Manager) *Manager {
	base, stop := context.WithCancel(context.Background())
	m := &Manager{
		logger:     logger,
		safepoints: safepoints,
		encodings:  encodings,
		base:       base,
		stopAll:    stop,
		threads:    make(map[int64]*Thread),
	}
	m.nextID.Store(rootThreadID)
	return m
}

// Initialize registers the calling thread as the root thread.
func (m *Manager) Initialize() error {
	if m.encodings == nil || m.encodings.DefaultExternal() == nil {
		return fmt.Errorf("thread manager: encodings are not initialized")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root != nil {
		return fmt.Errorf("thread manager: already initialized")
	}
	m.root = m.newThread(rootThreadID, "main", nil)
	m.root.root = true
	m.threads[rootThreadID] = m.root
	m.safepoints.Enter(rootThreadID)
	m.logger.Debug("root thread registered", "encoding", m.root.encoding)
	return nil
}

func (m *Manager) newThread(id int64, name string, cancel context.CancelFunc) *Thread {
	return &Thread{
		id:       id,
		name:     name,
		encoding: m.encodings.DefaultExternal().Name,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// RootThread returns the root thread, nil before Initialize.
func (m *Manager) RootThread() *Thread {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// Spawn starts fn on a new guest thread. fn must return when its context is
// canceled and should call Checkpoint regularly. A panic in fn ends the
// thread with an error instead of crashing the runtime.
func (m *Manager) Spawn(name string, fn func(ctx context.Context) error) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root == nil {
		return nil, ErrNotInitialized
	}
	if m.stopping {
		return nil, ErrShuttingDown
	}

	ctx, cancel := context.WithCancel(m.base)
	t := m.newThread(m.nextID.Add(1), name, cancel)
	ctx = WithThread(ctx, t)
	m.threads[t.id] = t
	m.safepoints.Enter(t.id)

	m.wg.Go(func() {
		defer m.remove(t)
		defer cancel()

		var err error
		var pc panics.Catcher
		pc.Try(func() { err = fn(ctx) })
		if r := pc.Recovered(); r != nil {
			err = r.AsError()
			m.logger.Error("guest thread panicked", "thread", t.id, "name", t.name, "panic", r.Value)
		} else if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("guest thread failed", "thread", t.id, "name", t.name, "error", err)
		}
		t.finish(err)
	})
	return t, nil
}

func (m *Manager) remove(t *Thread) {
	m.safepoints.Leave(t.id)
	m.mu.Lock()
	delete(m.threads, t.id)
	m.mu.Unlock()
}

// List returns the live threads ordered by ID, root first.
func (m *Manager) List() []*Thread {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Thread, 0, len(m.threads))
	for _, id := range slices.Sorted(maps.Keys(m.threads)) {
		out = append(out, m.threads[id])
	}
	return out
}

func (m *Manager) Lookup(id int64) (*Thread, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[id]
	return t, ok
}

// Current returns the thread carried by ctx, or the root thread.
func (m *Manager) Current(ctx context.Context) *Thread {
	if t, ok := FromContext(ctx); ok {
		return t
	}
	return m.RootThread()
}

// Checkpoint is a safe point: it parks while a safepoint is in progress and
// reports cancellation of the calling thread.
func (m *Manager) Checkpoint(ctx context.Context) error {
	if t := m.Current(ctx); t != nil {
		m.safepoints.Poll(t.id)
	}
	return ctx.Err()
}

// Backtraces pauses every thread and collects their backtraces.
func (m *Manager) Backtraces(ctx context.Context) (map[int64][]string, error) {
	caller := int64(0)
	if t := m.Current(ctx); t != nil {
		caller = t.id
	}

	out := make(map[int64][]string)
	err := m.safepoints.PauseAllThreadsAndExecute(ctx, caller, func(id int64) {
		if t, ok := m.Lookup(id); ok {
			out[id] = t.Backtrace()
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Shutdown interrupts every non-root thread and waits for all of them to
// finish. It returns ctx's error if threads are still running when ctx ends.
// Calling it again only waits.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopping = true
		m.mu.Unlock()
		m.stopAll()
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.mu.RLock()
		remaining := len(m.threads) - 1
		m.mu.RUnlock()
		return fmt.Errorf("thread manager: %d thread(s) still running: %w", remaining, ctx.Err())
	}

	m.rootOnce.Do(func() {
		root := m.RootThread()
		if root == nil {
			return
		}
		m.remove(root)
		root.finish(nil)
		m.logger.Debug("thread manager stopped")
	})
	return nil
}
