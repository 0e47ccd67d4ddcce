// SPDX-License-Identifier: MPL-2.0

package instrument

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// StateCreated means Start has not been called.
	StateCreated State = iota
	// StateStarting means the listener is being set up.
	StateStarting
	// StateRunning means the server accepts sessions.
	StateRunning
	// StateStopping means Stop is draining sessions.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: the server failed to start or to serve.
	StateFailed
)

type (
	// State is the lifecycle state of a server.
	State int32

	// lifecycle is the server state machine. State reads are lock-free;
	// transitions use compare-and-swap so concurrent Stop calls are safe.
	lifecycle struct {
		state     atomic.Int32
		errMu     sync.Mutex
		lastErr   error
		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error
	}
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool { return s == StateStopped || s == StateFailed }

func (l *lifecycle) initLifecycle() {
	l.startedCh = make(chan struct{})
	l.errCh = make(chan error, 1)
	l.state.Store(int32(StateCreated))
}

func (l *lifecycle) State() State { return State(l.state.Load()) }

func (l *lifecycle) IsRunning() bool { return l.State() == StateRunning }

// LastError returns the error that moved the server to StateFailed.
func (l *lifecycle) LastError() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.lastErr
}

// toStarting checks ctx before any setup so that a canceled start never
// reaches StateRunning.
func (l *lifecycle) toStarting(ctx context.Context) error {
	select {
	case <-ctx.Done():
		l.toFailed(fmt.Errorf("context canceled before start: %w", ctx.Err()))
		return l.LastError()
	default:
	}
	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", l.State())
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return nil
}

func (l *lifecycle) toRunning() {
	if l.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(l.startedCh)
	}
}

func (l *lifecycle) toFailed(err error) {
	l.errMu.Lock()
	l.lastErr = err
	l.errMu.Unlock()
	l.state.Store(int32(StateFailed))
	if l.cancel != nil {
		l.cancel()
	}
	l.sendError(err)
}

// toStopping reports whether the caller owns the shutdown. A server that
// never started goes straight to StateStopped.
func (l *lifecycle) toStopping() bool {
	for {
		current := l.State()
		switch current {
		case StateCreated:
			if l.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if l.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				if l.cancel != nil {
					l.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

func (l *lifecycle) toStopped() { l.state.Store(int32(StateStopped)) }

// sendError never blocks; errors beyond the buffer are dropped.
func (l *lifecycle) sendError(err error) {
	select {
	case l.errCh <- err:
	default:
	}
}
