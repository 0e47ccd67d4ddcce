// SPDX-License-Identifier: MPL-2.0

package object

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

type (
	// Value is a heap value participating in the object graph.
	Value interface {
		Base() *Object
		references(visit func(Value))
	}

	// Object is a plain guest object.
	Object struct {
		class  *Class
		mu     sync.RWMutex
		ivars  map[string]any
		shared atomic.Bool
	}
)

// NewObject allocates an instance of class.
func NewObject(class *Class) *Object {
	return &Object{class: class}
}

func (o *Object) Base() *Object { return o }

// Class returns the object's class; nil only for objects created before the
// class graph was complete.
func (o *Object) Class() *Class { return o.class }

// setClass patches the class of bootstrap objects whose class did not exist
// when they were allocated.
func (o *Object) setClass(c *Class) { o.class = c }

func (o *Object) InstanceVariable(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.ivars[name]
	return v, ok
}

// SetInstanceVariable stores v. When the object is shared, v is shared
// before it becomes reachable through o.
func (o *Object) SetInstanceVariable(name string, v any) {
	if o.IsShared() {
		ShareValue(v)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ivars == nil {
		o.ivars = make(map[string]any)
	}
	o.ivars[name] = v
}

// InstanceVariableNames returns the names in sorted order.
func (o *Object) InstanceVariableNames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Sorted(maps.Keys(o.ivars))
}

// IsShared reports whether the object was published to multiple threads.
func (o *Object) IsShared() bool { return o.shared.Load() }

// MarkShared sets the one-way shared flag and reports whether this call set it.
func (o *Object) MarkShared() bool { return o.shared.CompareAndSwap(false, true) }

func (o *Object) references(visit func(Value)) {
	if o.class != nil {
		visit(o.class)
	}
	o.mu.RLock()
	vals := slices.Collect(maps.Values(o.ivars))
	o.mu.RUnlock()
	for _, v := range vals {
		if ref, ok := v.(Value); ok {
			visit(ref)
		}
	}
}
