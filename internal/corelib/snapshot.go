// SPDX-License-Identifier: MPL-2.0

package corelib

import (
	"github.com/corvidvm/corvid/internal/object"
)

type (
	// CoreMethods is a read-only snapshot of the built-in methods taken
	// right after they were installed.
	CoreMethods struct {
		instance  map[*object.Module]map[string]*object.Method
		singleton map[*object.Module]map[string]*object.Method
		count     int
	}
)

// CaptureCoreMethods snapshots every built-in method currently defined on
// the core classes and modules.
func (l *Library) CaptureCoreMethods() (*CoreMethods, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reached < stepBuiltins {
		return nil, &StageOrderError{Step: "CaptureCoreMethods", Requires: stepNames[stepBuiltins]}
	}

	cm := &CoreMethods{
		instance:  make(map[*object.Module]map[string]*object.Method),
		singleton: make(map[*object.Module]map[string]*object.Method),
	}
	owners := make([]*object.Module, 0, len(l.classes)+len(l.modules))
	for _, c := range l.classes {
		owners = append(owners, c.AsModule())
	}
	for _, m := range l.modules {
		owners = append(owners, m)
	}
	for _, owner := range owners {
		cm.capture(cm.instance, owner, owner.MethodNames(), owner.Method)
		cm.capture(cm.singleton, owner, owner.SingletonMethodNames(), owner.SingletonMethod)
	}
	return cm, nil
}

func (cm *CoreMethods) capture(into map[*object.Module]map[string]*object.Method, owner *object.Module,
	names []string, get func(string) (*object.Method, bool),
) {
	for _, name := range names {
		m, ok := get(name)
		if !ok || !m.Builtin {
			continue
		}
		table, ok := into[owner]
		if !ok {
			table = make(map[string]*object.Method)
			into[owner] = table
		}
		table[name] = m
		cm.count++
	}
}

// IsBuiltin reports whether method is the built-in captured for owner and
// name, i.e. it has not been redefined since the snapshot.
func (cm *CoreMethods) IsBuiltin(owner *object.Module, name string, method *object.Method) bool {
	if cm == nil || method == nil {
		return false
	}
	if m, ok := cm.instance[owner][name]; ok && m == method {
		return true
	}
	m, ok := cm.singleton[owner][name]
	return ok && m == method
}

// Lookup returns the captured instance method.
func (cm *CoreMethods) Lookup(owner *object.Module, name string) (*object.Method, bool) {
	m, ok := cm.instance[owner][name]
	return m, ok
}

// Len returns the number of captured methods.
func (cm *CoreMethods) Len() int { return cm.count }
