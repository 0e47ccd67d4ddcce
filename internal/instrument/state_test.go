// SPDX-License-Identifier: MPL-2.0

package instrument

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestLifecycle() *lifecycle {
	l := &lifecycle{}
	l.initLifecycle()
	return l
}

func TestLifecycle_Transitions(t *testing.T) {
	t.Parallel()

	t.Run("created to stopped", func(t *testing.T) {
		t.Parallel()
		l := newTestLifecycle()
		if err := l.toStarting(context.Background()); err != nil {
			t.Fatal(err)
		}
		l.toRunning()
		if !l.IsRunning() {
			t.Fatalf("state = %s, want running", l.State())
		}
		select {
		case <-l.startedCh:
		default:
			t.Error("started channel not closed")
		}
		if !l.toStopping() {
			t.Fatal("toStopping() = false from running")
		}
		if l.toStopping() {
			t.Error("second toStopping() = true")
		}
		l.toStopped()
		if l.State() != StateStopped || !l.State().IsTerminal() {
			t.Errorf("state = %s", l.State())
		}
	})

	t.Run("double start", func(t *testing.T) {
		t.Parallel()
		l := newTestLifecycle()
		if err := l.toStarting(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := l.toStarting(context.Background()); err == nil {
			t.Error("second toStarting succeeded")
		}
	})

	t.Run("stop without start", func(t *testing.T) {
		t.Parallel()
		l := newTestLifecycle()
		if l.toStopping() {
			t.Error("toStopping() = true from created")
		}
		if l.State() != StateStopped {
			t.Errorf("state = %s, want stopped", l.State())
		}
	})

	t.Run("canceled start fails", func(t *testing.T) {
		t.Parallel()
		l := newTestLifecycle()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := l.toStarting(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("toStarting error = %v", err)
		}
		if l.State() != StateFailed || l.toStopping() {
			t.Errorf("state = %s after canceled start", l.State())
		}
		select {
		case err := <-l.errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("error channel carried %v", err)
			}
		default:
			t.Error("failure not reported on the error channel")
		}
	})
}

func TestLifecycle_ConcurrentStop(t *testing.T) {
	t.Parallel()

	l := newTestLifecycle()
	if err := l.toStarting(context.Background()); err != nil {
		t.Fatal(err)
	}
	l.toRunning()

	var owners sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for range 10 {
		owners.Go(func() {
			if l.toStopping() {
				mu.Lock()
				won++
				mu.Unlock()
			}
		})
	}
	owners.Wait()
	if won != 1 {
		t.Errorf("%d callers own the shutdown, want 1", won)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateCreated:  "created",
		StateStarting: "starting",
		StateRunning:  "running",
		StateStopping: "stopping",
		StateStopped:  "stopped",
		StateFailed:   "failed",
		State(42):     "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(state), got, want)
		}
	}
}
