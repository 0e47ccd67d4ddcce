// SPDX-License-Identifier: MPL-2.0

package embed

const (
	// EventLine fires when execution reaches a new source line.
	EventLine EventKind = iota + 1
	// EventCall fires on method entry.
	EventCall
	// EventReturn fires on method exit.
	EventReturn
	// EventClass fires when a class or module body is opened.
	EventClass
)

type (
	// EventKind classifies instrumentation events.
	EventKind int

	// Event is a single instrumentation notification delivered by the host.
	Event struct {
		Kind   EventKind
		Source string
		Line   int
		Method string
	}

	// EventFilter selects the events a listener receives. An empty Kinds set
	// selects every kind; an empty Source selects every source.
	EventFilter struct {
		Kinds  []EventKind
		Source string
	}

	// Listener receives filtered events.
	Listener func(Event)

	// Binding is the handle returned by Attach; Dispose detaches the listener.
	Binding interface {
		Dispose()
	}

	// Instrumenter is the host-provided instrumentation hook.
	Instrumenter interface {
		Attach(filter EventFilter, listener Listener) Binding
	}
)

// String returns the trace-event name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventCall:
		return "call"
	case EventReturn:
		return "return"
	case EventClass:
		return "class"
	default:
		return "unknown"
	}
}

// Matches reports whether ev passes the filter.
func (f EventFilter) Matches(ev Event) bool {
	if f.Source != "" && f.Source != ev.Source {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == ev.Kind {
			return true
		}
	}
	return false
}
