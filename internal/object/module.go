// SPDX-License-Identifier: MPL-2.0

package object

import (
	"maps"
	"slices"
	"sync"
)

// Module is a namespace holding methods, constants and class variables.
type Module struct {
	Object

	name      string
	lexical   *Module
	tableMu   sync.RWMutex
	methods   map[string]*Method
	statics   map[string]*Method
	constants map[string]any
	classVars map[string]any
	includes  []*Module
}

// NewModule creates a module whose class is moduleClass (may be nil during
// bootstrap). lexical is the enclosing namespace, nil for top level.
func NewModule(moduleClass *Class, name string, lexical *Module) *Module {
	m := &Module{}
	m.initModule(moduleClass, name, lexical)
	return m
}

func (m *Module) initModule(class *Class, name string, lexical *Module) {
	m.class = class
	m.name = name
	m.lexical = lexical
	m.methods = make(map[string]*Method)
	m.statics = make(map[string]*Method)
	m.constants = make(map[string]any)
	m.classVars = make(map[string]any)
}

// Name returns the fully qualified name, e.g. "Process::Native".
func (m *Module) Name() string {
	if m.lexical != nil {
		return m.lexical.Name() + "::" + m.name
	}
	return m.name
}

// LexicalParent returns the enclosing namespace.
func (m *Module) LexicalParent() *Module { return m.lexical }

// DefineMethod installs method under its name, taking ownership of it.
func (m *Module) DefineMethod(method *Method) {
	method.Owner = m
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	m.methods[method.Name] = method
}

// Method looks up a method defined directly on m.
func (m *Module) Method(name string) (*Method, bool) {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	method, ok := m.methods[name]
	return method, ok
}

// DefineSingletonMethod installs a method on the module object itself
// (Process.pid rather than Process#pid).
func (m *Module) DefineSingletonMethod(method *Method) {
	method.Owner = m
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	m.statics[method.Name] = method
}

func (m *Module) SingletonMethod(name string) (*Method, bool) {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	method, ok := m.statics[name]
	return method, ok
}

// SingletonMethodNames returns the singleton method names, sorted.
func (m *Module) SingletonMethodNames() []string {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	return slices.Sorted(maps.Keys(m.statics))
}

// MethodNames returns the directly defined method names, sorted.
func (m *Module) MethodNames() []string {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	return slices.Sorted(maps.Keys(m.methods))
}

func (m *Module) SetConstant(name string, v any) {
	if m.IsShared() {
		ShareValue(v)
	}
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	m.constants[name] = v
}

func (m *Module) Constant(name string) (any, bool) {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	v, ok := m.constants[name]
	return v, ok
}

func (m *Module) ConstantNames() []string {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	return slices.Sorted(maps.Keys(m.constants))
}

// Include appends mod to the modules mixed into m.
func (m *Module) Include(mod *Module) {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	if slices.Contains(m.includes, mod) {
		return
	}
	m.includes = append(m.includes, mod)
}

func (m *Module) Includes() []*Module {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	return slices.Clone(m.includes)
}

// ClassVariable reads a class variable defined directly on m.
func (m *Module) ClassVariable(name string) (any, bool) {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	v, ok := m.classVars[name]
	return v, ok
}

func (m *Module) setClassVariable(name string, v any) {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	m.classVars[name] = v
}

// Ancestors returns the method resolution order starting at m.
func (m *Module) Ancestors() []*Module {
	out := []*Module{m}
	includes := m.Includes()
	for i := len(includes) - 1; i >= 0; i-- {
		out = append(out, includes[i].Ancestors()...)
	}
	return out
}

// DefineClassVariable assigns a class variable with hierarchy semantics: an
// existing definition in any ancestor is updated in place, otherwise the
// variable is created on m. lock is the runtime-wide class-variable lock and
// serializes the lookup-then-define sequence across the whole hierarchy.
func (m *Module) DefineClassVariable(lock sync.Locker, ancestors []*Module, name string, v any) {
	lock.Lock()
	defer lock.Unlock()
	for _, a := range ancestors {
		if _, ok := a.ClassVariable(name); ok {
			a.setClassVariable(name, v)
			return
		}
	}
	m.setClassVariable(name, v)
}

func (m *Module) references(visit func(Value)) {
	m.Object.references(visit)
	if m.lexical != nil {
		visit(m.lexical)
	}

	m.tableMu.RLock()
	consts := slices.Collect(maps.Values(m.constants))
	cvars := slices.Collect(maps.Values(m.classVars))
	methods := slices.Collect(maps.Values(m.methods))
	methods = append(methods, slices.Collect(maps.Values(m.statics))...)
	includes := slices.Clone(m.includes)
	m.tableMu.RUnlock()

	for _, v := range append(consts, cvars...) {
		if ref, ok := v.(Value); ok {
			visit(ref)
		}
	}
	for _, method := range methods {
		if method.Owner != nil {
			visit(method.Owner)
		}
	}
	for _, inc := range includes {
		visit(inc)
	}
}
