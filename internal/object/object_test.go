// SPDX-License-Identifier: MPL-2.0

package object

import (
	"context"
	"slices"
	"sync"
	"testing"
)

// graph builds BasicObject <- Object <- Widget with a Kernel include and a
// cyclic instance-variable reference.
func graph() (root *Class, widget *Class, kernel *Module, inst *Object) {
	root = NewClass(nil, "BasicObject", nil, nil)
	objectClass := NewClass(nil, "Object", nil, root)
	kernel = NewModule(nil, "Kernel", nil)
	objectClass.Include(kernel)
	widget = NewClass(nil, "Widget", nil, objectClass)

	inst = NewObject(widget)
	other := NewObject(widget)
	inst.SetInstanceVariable("@peer", other)
	other.SetInstanceVariable("@peer", inst)
	other.SetInstanceVariable("@count", 3)
	widget.SetConstant("DEFAULT", inst)
	kernel.DefineMethod(&Method{Name: "puts", Builtin: true})
	return root, widget, kernel, inst
}

func TestWalk_VisitsEachValueOnce(t *testing.T) {
	t.Parallel()

	_, widget, _, _ := graph()

	counts := make(map[*Object]int)
	Walk([]Value{widget, widget}, func(v Value) bool {
		counts[v.Base()]++
		return true
	})

	// Widget, Object, BasicObject, Kernel and two instances.
	if len(counts) != 6 {
		t.Errorf("visited %d values, want 6", len(counts))
	}
	for obj, n := range counts {
		if n != 1 {
			t.Errorf("value %p visited %d times", obj, n)
		}
	}
}

func TestWalk_Prune(t *testing.T) {
	t.Parallel()

	_, widget, _, _ := graph()
	n := 0
	Walk([]Value{widget}, func(Value) bool {
		n++
		return false
	})
	if n != 1 {
		t.Errorf("visited %d values with pruning, want 1", n)
	}
}

func TestShareValue(t *testing.T) {
	t.Parallel()

	_, widget, kernel, inst := graph()
	ShareValue(inst)

	if !inst.IsShared() || !widget.IsShared() || !kernel.IsShared() {
		t.Error("values reachable from a shared object must be shared")
	}
	if inst.MarkShared() {
		t.Error("MarkShared() on a shared object reported a transition")
	}

	late := NewObject(widget)
	inst.SetInstanceVariable("@late", late)
	if !late.IsShared() {
		t.Error("storing into a shared object must share the stored value")
	}

	ShareValue(42)
	ShareValue(nil)
}

func TestClass_Ancestors(t *testing.T) {
	t.Parallel()

	root, widget, kernel, _ := graph()

	var names []string
	for _, m := range widget.Ancestors() {
		names = append(names, m.Name())
	}
	want := []string{"Widget", "Object", "Kernel", "BasicObject"}
	if !slices.Equal(names, want) {
		t.Errorf("Ancestors() = %v, want %v", names, want)
	}
	if !widget.IsSubclassOf(root) || root.IsSubclassOf(widget) {
		t.Error("IsSubclassOf() disagrees with the superclass chain")
	}
	if _, ok := kernel.Method("puts"); !ok {
		t.Error("Method() did not find a defined method")
	}
}

func TestModule_Name(t *testing.T) {
	t.Parallel()

	process := NewModule(nil, "Process", nil)
	native := NewClass(nil, "Native", process, nil)
	if got := native.Name(); got != "Process::Native" {
		t.Errorf("Name() = %q", got)
	}
}

func TestModule_DefineClassVariable(t *testing.T) {
	t.Parallel()

	_, widget, _, _ := graph()
	parent := widget.Superclass()
	var lock sync.Mutex

	parent.DefineClassVariable(&lock, parent.Ancestors(), "@@count", 1)
	widget.DefineClassVariable(&lock, widget.Ancestors(), "@@count", 2)

	if v, _ := parent.ClassVariable("@@count"); v != 2 {
		t.Errorf("inherited class variable = %v, want 2", v)
	}
	if _, ok := widget.ClassVariable("@@count"); ok {
		t.Error("assignment through a subclass must update the ancestor's variable")
	}

	widget.DefineClassVariable(&lock, widget.Ancestors(), "@@own", true)
	if _, ok := widget.ClassVariable("@@own"); !ok {
		t.Error("new class variable must be defined on the receiver")
	}
}

func TestMethod_Call(t *testing.T) {
	t.Parallel()

	m := &Method{Name: "double", Fn: func(_ context.Context, self any, _ ...any) (any, error) {
		return self.(int) * 2, nil
	}}
	if got, err := m.Call(context.Background(), 21); err != nil || got != 42 {
		t.Errorf("Call() = %v, %v", got, err)
	}
	if _, err := (&Method{Name: "empty"}).Call(context.Background(), nil); err == nil {
		t.Error("Call() without an implementation should fail")
	}
}
