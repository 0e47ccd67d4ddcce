// SPDX-License-Identifier: MPL-2.0

// Package shared tracks the transition of the object graph into shared mode.
// Once sharing starts, every object reachable from the roots is marked
// shared and newly published values are shared by Share before they become
// reachable.
package shared

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/corvidvm/corvid/internal/object"
)

// ErrDisabled is returned by StartSharing when shared objects are disabled.
var ErrDisabled = errors.New("shared objects are disabled")

type Objects struct {
	logger  *log.Logger
	enabled bool

	startMu sync.Mutex
	sharing atomic.Bool
}

func New(logger *log.Logger, enabled bool) *Objects {
	return &Objects{logger: logger, enabled: enabled}
}

func (s *Objects) Enabled() bool { return s.enabled }

// IsSharing reports whether the transition has completed.
func (s *Objects) IsSharing() bool { return s.sharing.Load() }

// StartSharing marks everything reachable from roots as shared and returns
// the number of objects newly marked. The flag is published only after the
// walk completes so that IsSharing implies a fully shared graph.
func (s *Objects) StartSharing(roots []object.Value) (int, error) {
	if !s.enabled {
		return 0, ErrDisabled
	}
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.sharing.Load() {
		return 0, nil
	}

	marked := 0
	object.Walk(roots, func(v object.Value) bool {
		if v.Base().MarkShared() {
			marked++
		}
		return true
	})
	s.sharing.Store(true)
	s.logger.Debug("object sharing started", "objects", marked)
	return marked, nil
}

// Share is the write barrier applied when v is stored somewhere reachable
// by other threads.
func (s *Objects) Share(v any) {
	if s.sharing.Load() {
		object.ShareValue(v)
	}
}
