// SPDX-License-Identifier: MPL-2.0

package safepoint

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_PauseWithoutParticipants(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Enter(1)

	var visited []int64
	err := m.PauseAllThreadsAndExecute(context.Background(), 1, func(id int64) {
		visited = append(visited, id)
	})
	if err != nil {
		t.Fatalf("PauseAllThreadsAndExecute() error: %v", err)
	}
	if !slices.Equal(visited, []int64{1}) {
		t.Errorf("visited = %v, want [1]", visited)
	}
}

func TestManager_PausesPollingThreads(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Enter(1)

	var stop atomic.Bool
	var inAction atomic.Bool
	var ranDuringAction atomic.Bool
	var wg sync.WaitGroup

	for id := int64(2); id <= 4; id++ {
		m.Enter(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer m.Leave(id)
			for !stop.Load() {
				if inAction.Load() {
					ranDuringAction.Store(true)
				}
				m.Poll(id)
				time.Sleep(time.Millisecond)
			}
		}()
	}

	var visited []int64
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.PauseAllThreadsAndExecute(ctx, 1, func(id int64) {
		inAction.Store(true)
		visited = append(visited, id)
		time.Sleep(2 * time.Millisecond)
		inAction.Store(false)
	})
	stop.Store(true)
	wg.Wait()

	if err != nil {
		t.Fatalf("PauseAllThreadsAndExecute() error: %v", err)
	}
	if !slices.Equal(visited, []int64{1, 2, 3, 4}) {
		t.Errorf("visited = %v", visited)
	}
	if ranDuringAction.Load() {
		t.Error("a participant kept running while the action executed")
	}
}

func TestManager_TimesOutOnNonPollingThread(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Enter(7)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.PauseAllThreadsAndExecute(ctx, 1, func(int64) {
		t.Error("action must not run when participants never arrive")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}

	// The manager is usable again and Poll does not block afterwards.
	m.Poll(7)
}

func TestManager_LeaveUnblocksSafepoint(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Enter(9)

	go func() {
		time.Sleep(5 * time.Millisecond)
		m.Leave(9)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.PauseAllThreadsAndExecute(ctx, 1, func(int64) {}); err != nil {
		t.Fatalf("PauseAllThreadsAndExecute() error: %v", err)
	}
	if len(m.Participants()) != 0 {
		t.Errorf("Participants() = %v", m.Participants())
	}
}
