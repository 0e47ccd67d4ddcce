// SPDX-License-Identifier: MPL-2.0

package corelib

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/corvidvm/corvid/internal/encoding"
	"github.com/corvidvm/corvid/internal/object"
	"github.com/corvidvm/corvid/internal/symbol"
)

type (
	step int

	// Library owns the core class graph.
	Library struct {
		logger *log.Logger

		mu      sync.RWMutex
		reached step
		classes map[string]*object.Class
		modules map[string]*object.Module

		basicObject *object.Class
		objectClass *object.Class
		moduleClass *object.Class
		classClass  *object.Class
		kernel      *object.Module
		process     *object.Module
		main        *object.Object

		encodings     *encoding.Manager
		encodingObjs  map[*encoding.Encoding]*object.Object
		loadedSources []string
	}

	classDef struct {
		name       string
		superclass string
	}
)

const (
	stepNone step = iota
	stepInitialized
	stepEncodings
	stepBuiltins
	stepCoreLoaded
	stepPostBoot
)

var stepNames = map[step]string{
	stepInitialized: "Initialize",
	stepEncodings:   "InitializeEncodingManager",
	stepBuiltins:    "AddCoreMethods",
	stepCoreLoaded:  "LoadCore",
	stepPostBoot:    "InitializePostBoot",
}

// coreClasses lists the classes created by Initialize after the four
// bootstrap classes, each after its superclass.
var coreClasses = []classDef{
	{"NilClass", "Object"},
	{"TrueClass", "Object"},
	{"FalseClass", "Object"},
	{"Symbol", "Object"},
	{"String", "Object"},
	{"Encoding", "Object"},
	{"Numeric", "Object"},
	{"Integer", "Numeric"},
	{"Float", "Numeric"},
	{"Array", "Object"},
	{"Hash", "Object"},
	{"Proc", "Object"},
	{"Thread", "Object"},
	{"Exception", "Object"},
	{"NoMemoryError", "Exception"},
	{"ScriptError", "Exception"},
	{"LoadError", "ScriptError"},
	{"NotImplementedError", "ScriptError"},
	{"SecurityError", "Exception"},
	{"SignalException", "Exception"},
	{"Interrupt", "SignalException"},
	{"SystemExit", "Exception"},
	{"StandardError", "Exception"},
	{"ArgumentError", "StandardError"},
	{"EncodingError", "StandardError"},
	{"FiberError", "StandardError"},
	{"IOError", "StandardError"},
	{"EOFError", "IOError"},
	{"IndexError", "StandardError"},
	{"KeyError", "IndexError"},
	{"StopIteration", "IndexError"},
	{"LocalJumpError", "StandardError"},
	{"NameError", "StandardError"},
	{"NoMethodError", "NameError"},
	{"RangeError", "StandardError"},
	{"FloatDomainError", "RangeError"},
	{"RegexpError", "StandardError"},
	{"RuntimeError", "StandardError"},
	{"FrozenError", "RuntimeError"},
	{"SystemCallError", "StandardError"},
	{"ThreadError", "StandardError"},
	{"TypeError", "StandardError"},
	{"ZeroDivisionError", "StandardError"},
}

var coreModules = []string{"Kernel", "Comparable", "Enumerable", "Process", "GC", "ObjectSpace"}

func New(logger *log.Logger) *Library {
	return &Library{
		logger:       logger,
		classes:      make(map[string]*object.Class),
		modules:      make(map[string]*object.Module),
		encodingObjs: make(map[*encoding.Encoding]*object.Object),
	}
}

// require must be called with l.mu held.
func (l *Library) require(current, needed step) error {
	if l.reached < needed {
		return &StageOrderError{Step: stepNames[current], Requires: stepNames[needed]}
	}
	return nil
}

// advance must be called with l.mu held.
func (l *Library) advance(to step) {
	if l.reached < to {
		l.reached = to
	}
}

// Initialize creates the class graph and the main object.
func (l *Library) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reached != stepNone {
		return ErrAlreadyInitialized
	}

	// BasicObject, Object, Module and Class refer to each other, so they are
	// allocated classless and patched once Class exists.
	l.basicObject = object.NewClass(nil, "BasicObject", nil, nil)
	l.objectClass = object.NewClass(nil, "Object", nil, l.basicObject)
	l.moduleClass = object.NewClass(nil, "Module", nil, l.objectClass)
	l.classClass = object.NewClass(nil, "Class", nil, l.moduleClass)
	for _, c := range []*object.Class{l.basicObject, l.objectClass, l.moduleClass, l.classClass} {
		object.PatchClass(c, l.classClass)
		l.registerClass(c)
	}

	for _, name := range coreModules {
		m := object.NewModule(l.moduleClass, name, nil)
		l.modules[name] = m
		l.objectClass.SetConstant(name, m)
	}
	l.kernel = l.modules["Kernel"]
	l.process = l.modules["Process"]
	l.objectClass.Include(l.kernel)

	for _, def := range coreClasses {
		c := object.NewClass(l.classClass, def.name, nil, l.classes[def.superclass])
		l.registerClass(c)
	}
	l.classes["String"].Include(l.modules["Comparable"])
	l.classes["Numeric"].Include(l.modules["Comparable"])
	l.classes["Array"].Include(l.modules["Enumerable"])
	l.classes["Hash"].Include(l.modules["Enumerable"])

	l.main = object.NewObject(l.objectClass)
	l.main.SetInstanceVariable("@__name__", "main")

	l.reached = stepInitialized
	l.logger.Debug("core class graph initialized", "classes", len(l.classes), "modules", len(l.modules))
	return nil
}

// registerClass must be called with l.mu held.
func (l *Library) registerClass(c *object.Class) {
	l.classes[c.Name()] = c
	l.objectClass.SetConstant(c.Name(), c)
}

// SymbolFactory returns the allocator the symbol table uses.
func (l *Library) SymbolFactory() (symbol.Factory, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reached < stepInitialized {
		return nil, &StageOrderError{Step: "SymbolFactory", Requires: stepNames[stepInitialized]}
	}
	symbolClass := l.classes["Symbol"]
	return func(name string) *object.Symbol {
		return object.NewSymbol(symbolClass, name)
	}, nil
}

// InitializeEncodingManager exposes every registered encoding as a constant
// on the Encoding class.
func (l *Library) InitializeEncodingManager(encodings *encoding.Manager) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.require(stepEncodings, stepInitialized); err != nil {
		return err
	}

	l.encodings = encodings
	for _, enc := range encodings.List() {
		l.bindEncodingLocked(enc)
	}
	l.advance(stepEncodings)
	return nil
}

func (l *Library) bindEncodingLocked(enc *encoding.Encoding) *object.Object {
	if obj, ok := l.encodingObjs[enc]; ok {
		return obj
	}
	encodingClass := l.classes["Encoding"]
	obj := object.NewObject(encodingClass)
	obj.SetInstanceVariable("@name", enc.Name)
	encodingClass.SetConstant(enc.ConstantName(), obj)
	l.encodingObjs[enc] = obj
	return obj
}

// EncodingObject returns the guest object for enc, binding encodings that
// were registered after InitializeEncodingManager.
func (l *Library) EncodingObject(enc *encoding.Encoding) *object.Object {
	if enc == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bindEncodingLocked(enc)
}

// Class returns a core class by name.
func (l *Library) Class(name string) (*object.Class, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.classes[name]
	return c, ok
}

// Module returns a core module by name.
func (l *Library) Module(name string) (*object.Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[name]
	return m, ok
}

func (l *Library) BasicObjectClass() *object.Class { return l.basicObject }

// ObjectClass is also the root lexical scope.
func (l *Library) ObjectClass() *object.Class { return l.objectClass }

func (l *Library) ModuleClass() *object.Class { return l.moduleClass }

func (l *Library) ClassClass() *object.Class { return l.classClass }

func (l *Library) KernelModule() *object.Module { return l.kernel }

func (l *Library) ProcessModule() *object.Module { return l.process }

// MainObject is the top-level self.
func (l *Library) MainObject() *object.Object { return l.main }

// Roots returns the values from which the whole core object graph is reachable.
func (l *Library) Roots() []object.Value {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reached == stepNone {
		return nil
	}
	return []object.Value{l.objectClass, l.main}
}

// LoadedSources returns the core sources evaluated by LoadCore.
func (l *Library) LoadedSources() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.loadedSources...)
}

// IsBooted reports whether InitializePostBoot completed.
func (l *Library) IsBooted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reached >= stepPostBoot
}
