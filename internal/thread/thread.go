// SPDX-License-Identifier: MPL-2.0

// Package thread is the single authority over guest-visible threads: it
// spawns and supervises them, enumerates the live ones, coordinates
// safepoints across them and converges them at shutdown.
package thread

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

const (
	StatusRunnable Status = iota
	StatusDead
)

type (
	// Status is the lifecycle state of a thread.
	Status int32

	// Thread is one guest-visible thread.
	Thread struct {
		id       int64
		name     string
		encoding string
		root     bool

		cancel context.CancelFunc
		done   chan struct{}
		status atomic.Int32

		mu     sync.Mutex
		frames []string
		err    error
	}

	threadKey struct{}
)

func (s Status) String() string {
	if s == StatusDead {
		return "dead"
	}
	return "run"
}

func (t *Thread) ID() int64 { return t.id }

func (t *Thread) Name() string { return t.name }

// Encoding is the default external encoding captured when the thread started.
func (t *Thread) Encoding() string { return t.encoding }

func (t *Thread) IsRoot() bool { return t.root }

func (t *Thread) Status() Status { return Status(t.status.Load()) }

func (t *Thread) Alive() bool { return t.Status() != StatusDead }

// Done is closed when the thread has finished.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Err returns the error or recovered panic that ended the thread.
func (t *Thread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// PushFrame records entry into a guest frame.
func (t *Thread) PushFrame(name string) {
	t.mu.Lock()
	t.frames = append(t.frames, name)
	t.mu.Unlock()
}

// PopFrame records exit from the innermost guest frame.
func (t *Thread) PopFrame() {
	t.mu.Lock()
	if n := len(t.frames); n > 0 {
		t.frames = t.frames[:n-1]
	}
	t.mu.Unlock()
}

// Backtrace returns the frames innermost first.
func (t *Thread) Backtrace() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	bt := slices.Clone(t.frames)
	slices.Reverse(bt)
	return bt
}

func (t *Thread) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.status.Store(int32(StatusDead))
	close(t.done)
}

// WithThread returns ctx carrying t as the current thread.
func WithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// FromContext returns the thread carried by ctx, if any.
func FromContext(ctx context.Context) (*Thread, bool) {
	t, ok := ctx.Value(threadKey{}).(*Thread)
	return t, ok
}
