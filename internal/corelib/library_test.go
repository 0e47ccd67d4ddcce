// SPDX-License-Identifier: MPL-2.0

package corelib

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/corvidvm/corvid/internal/encoding"
	"github.com/corvidvm/corvid/internal/issue"
	"github.com/corvidvm/corvid/internal/native"
	"github.com/corvidvm/corvid/internal/object"
	"github.com/corvidvm/corvid/internal/primitive"
	"github.com/corvidvm/corvid/internal/rope"
	"github.com/corvidvm/corvid/internal/safepoint"
	"github.com/corvidvm/corvid/internal/symbol"
	"github.com/corvidvm/corvid/internal/testutil"
	"github.com/corvidvm/corvid/internal/thread"
)

type booted struct {
	lib     *Library
	prims   *primitive.Manager
	threads *thread.Manager
	ropes   *rope.Table
	symbols *symbol.Table
	stdout  *strings.Builder
	stderr  *strings.Builder
}

// boot runs every step up to and including AddCoreMethods.
func boot(t *testing.T) *booted {
	t.Helper()

	logger := log.New(io.Discard)
	lib := New(logger)
	if err := lib.Initialize(); err != nil {
		t.Fatal(err)
	}
	platform, err := native.Create(lib, map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	encodings, err := encoding.NewManager(platform)
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.InitializeEncodingManager(encodings); err != nil {
		t.Fatal(err)
	}
	threads := thread.NewManager(logger, safepoint.NewManager(), encodings)
	if err := threads.Initialize(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = threads.Shutdown(context.Background()) })

	factory, err := lib.SymbolFactory()
	if err != nil {
		t.Fatal(err)
	}

	b := &booted{
		lib:     lib,
		prims:   primitive.NewManager(),
		threads: threads,
		ropes:   rope.NewTable(),
		symbols: symbol.New(factory),
		stdout:  &strings.Builder{},
		stderr:  &strings.Builder{},
	}
	if err := lib.AddCoreMethods(b.prims, Builtins{
		Threads:  threads,
		Ropes:    b.ropes,
		Symbols:  b.symbols,
		Platform: platform,
		Stdout:   b.stdout,
		Stderr:   b.stderr,
	}); err != nil {
		t.Fatal(err)
	}
	return b
}

func call(t *testing.T, lib *Library, receiver any, name string, args ...any) any {
	t.Helper()
	m, err := lib.FindMethod(receiver, name)
	if err != nil {
		t.Fatal(err)
	}
	v, err := m.Call(context.Background(), receiver, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func TestLibrary_Initialize(t *testing.T) {
	t.Parallel()

	lib := New(log.New(io.Discard))
	if err := lib.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := lib.Initialize(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize error = %v", err)
	}

	for _, name := range []string{"BasicObject", "Object", "Module", "Class", "String", "Thread", "Exception", "NoMethodError", "ZeroDivisionError"} {
		c, ok := lib.Class(name)
		if !ok {
			t.Errorf("class %s missing", name)
			continue
		}
		if c.Class() != lib.ClassClass() {
			t.Errorf("%s.class = %v, want Class", name, c.Class())
		}
	}

	noMethod, _ := lib.Class("NoMethodError")
	standard, _ := lib.Class("StandardError")
	if !noMethod.IsSubclassOf(standard) {
		t.Error("NoMethodError is not a StandardError")
	}
	if lib.MainObject().Class() != lib.ObjectClass() {
		t.Error("main is not an Object")
	}
	if v, ok := lib.ObjectClass().Constant("Kernel"); !ok || v != lib.KernelModule() {
		t.Error("Kernel constant not defined on Object")
	}
}

func TestLibrary_StepOrder(t *testing.T) {
	t.Parallel()

	lib := New(log.New(io.Discard))
	if _, err := lib.SymbolFactory(); !errors.Is(err, ErrStageOrder) {
		t.Errorf("SymbolFactory before Initialize error = %v", err)
	}
	if err := lib.Initialize(); err != nil {
		t.Fatal(err)
	}

	err := lib.AddCoreMethods(primitive.NewManager(), Builtins{})
	var orderErr *StageOrderError
	if !errors.As(err, &orderErr) || orderErr.Requires != "InitializeEncodingManager" {
		t.Errorf("AddCoreMethods before encodings error = %v", err)
	}
	if _, err := lib.CaptureCoreMethods(); !errors.Is(err, ErrStageOrder) {
		t.Errorf("CaptureCoreMethods before builtins error = %v", err)
	}
	if _, err := lib.LoadCore(context.Background(), BuiltinLoader(), nil); !errors.Is(err, ErrStageOrder) {
		t.Errorf("LoadCore before builtins error = %v", err)
	}
	if err := lib.InitializePostBoot("", "0.0.0"); !errors.Is(err, ErrStageOrder) {
		t.Errorf("InitializePostBoot before LoadCore error = %v", err)
	}

	encodings, err := encoding.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.InitializeEncodingManager(encodings); err != nil {
		t.Fatal(err)
	}
	if err := lib.AddCoreMethods(primitive.NewManager(), Builtins{}); !errors.Is(err, ErrThreadsRequired) {
		t.Errorf("AddCoreMethods without threads error = %v", err)
	}
	threads := thread.NewManager(log.New(io.Discard), safepoint.NewManager(), encodings)
	err = lib.AddCoreMethods(primitive.NewManager(), Builtins{Threads: threads})
	if !errors.Is(err, ErrStringTablesRequired) {
		t.Errorf("AddCoreMethods without string tables error = %v", err)
	}
}

func TestLibrary_SymbolFactory(t *testing.T) {
	t.Parallel()

	lib := New(log.New(io.Discard))
	if err := lib.Initialize(); err != nil {
		t.Fatal(err)
	}
	factory, err := lib.SymbolFactory()
	if err != nil {
		t.Fatal(err)
	}
	sym := factory("each")
	symbolClass, _ := lib.Class("Symbol")
	if sym.Name() != "each" || sym.Class() != symbolClass {
		t.Errorf("factory produced %v of class %v", sym, sym.Class())
	}
}

func TestLibrary_EncodingConstants(t *testing.T) {
	t.Parallel()

	b := boot(t)
	encodingClass, _ := b.lib.Class("Encoding")
	v, ok := encodingClass.Constant("UTF_8")
	if !ok {
		t.Fatal("Encoding::UTF_8 not defined")
	}
	if name, ok := call(t, b.lib, v, "name").(*rope.Rope); !ok || name.String() != "UTF-8" {
		t.Errorf("Encoding::UTF_8.name = %v", name)
	}
	if got := call(t, b.lib, encodingClass, "default_external"); got != v {
		t.Errorf("Encoding.default_external = %v, want UTF_8", got)
	}
	if got := call(t, b.lib, encodingClass, "default_internal"); got != nil {
		t.Errorf("Encoding.default_internal = %v, want nil", got)
	}

	str := rope.NewTable().InternString("héllo", encoding.UTF8)
	if got := call(t, b.lib, str, "encoding"); got != v {
		t.Errorf("String#encoding = %v, want UTF_8", got)
	}
}

func TestLibrary_StringBuiltins(t *testing.T) {
	t.Parallel()

	b := boot(t)
	external := b.lib.encodings.DefaultExternal().Name

	tests := []struct {
		name     string
		receiver func() any
		method   string
		want     string
	}{
		{"class name", func() any { return b.lib.ObjectClass() }, "name", "Object"},
		{"module name", func() any { return b.lib.KernelModule() }, "name", "Kernel"},
		{"symbol to_s", func() any { return b.symbols.Symbol("each") }, "to_s", "each"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := call(t, b.lib, tt.receiver(), tt.method).(*rope.Rope)
			if !ok {
				t.Fatalf("%s did not return an interned string", tt.method)
			}
			if got.String() != tt.want || got.Encoding() != external {
				t.Errorf("%s = %q (%s), want %q (%s)", tt.method, got, got.Encoding(), tt.want, external)
			}
			if got != b.ropes.InternString(tt.want, external) {
				t.Errorf("%s result is not the table's rope", tt.method)
			}
			if _, err := b.lib.FindMethod(got, "encoding"); err != nil {
				t.Errorf("result has no String#encoding: %v", err)
			}
		})
	}

	name := call(t, b.lib, b.lib.ObjectClass(), "name")
	sym := call(t, b.lib, name, "to_sym")
	if sym != b.symbols.Symbol("Object") {
		t.Errorf("to_sym = %v, want the table's :Object", sym)
	}
	if _, ok := b.symbols.Lookup("Object"); !ok {
		t.Error("to_sym did not register the symbol")
	}
	if got := call(t, b.lib, b.lib.MainObject(), "respond_to?", name); got != false {
		t.Errorf("respond_to?(\"Object\") = %v", got)
	}
}

func TestLibrary_CoreMethods(t *testing.T) {
	t.Parallel()

	b := boot(t)
	if _, ok := b.prims.Lookup("Kernel#puts"); !ok {
		t.Error("Kernel#puts primitive not registered")
	}
	if _, ok := b.prims.Lookup("Thread.new"); !ok {
		t.Error("Thread.new primitive not registered")
	}

	call(t, b.lib, b.lib.MainObject(), "puts", "hello", nil)
	if b.stdout.String() != "hello\n\n" {
		t.Errorf("puts wrote %q", b.stdout.String())
	}
	if pid := call(t, b.lib, b.lib.ProcessModule(), "pid"); pid != os.Getpid() {
		t.Errorf("Process.pid = %v", pid)
	}
	if pid := call(t, b.lib, b.lib.MainObject(), "pid"); pid != os.Getpid() {
		t.Errorf("Kernel#pid = %v", pid)
	}

	threadClass, _ := b.lib.Class("Thread")
	done := make(chan struct{})
	spawned := call(t, b.lib, threadClass, "new", func(ctx context.Context) error {
		<-done
		return nil
	})
	th, ok := spawned.(*thread.Thread)
	if !ok {
		t.Fatalf("Thread.new returned %T", spawned)
	}
	if list := call(t, b.lib, threadClass, "list").([]any); len(list) != 2 {
		t.Errorf("Thread.list has %d threads, want 2", len(list))
	}
	close(done)
	call(t, b.lib, th, "join")
	if alive := call(t, b.lib, th, "alive?"); alive != false {
		t.Error("joined thread still alive")
	}

	if got := call(t, b.lib, b.lib.MainObject(), "respond_to?", "puts"); got != true {
		t.Error("main does not respond to puts")
	}
	if got := call(t, b.lib, b.lib.MainObject(), "respond_to?", "fly"); got != false {
		t.Error("main responds to fly")
	}
	if got := call(t, b.lib, 42, "class"); got.(*object.Class).Name() != "Integer" {
		t.Errorf("42.class = %v", got)
	}

	_, err := b.lib.FindMethod(b.lib.MainObject(), "fly")
	if !errors.Is(err, ErrNoMethod) || !strings.Contains(err.Error(), "Object") {
		t.Errorf("FindMethod(fly) error = %v", err)
	}
}

func TestCoreMethods_IsBuiltin(t *testing.T) {
	t.Parallel()

	b := boot(t)
	snapshot, err := b.lib.CaptureCoreMethods()
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.Len() != len(builtinDefs) {
		t.Errorf("captured %d methods, want %d", snapshot.Len(), len(builtinDefs))
	}

	kernel := b.lib.KernelModule()
	puts, _ := kernel.Method("puts")
	if !snapshot.IsBuiltin(kernel, "puts", puts) {
		t.Error("Kernel#puts not recognized as built-in")
	}

	kernel.DefineMethod(&object.Method{Name: "puts"})
	redefined, _ := kernel.Method("puts")
	if snapshot.IsBuiltin(kernel, "puts", redefined) {
		t.Error("user redefinition recognized as built-in")
	}
	if m, ok := snapshot.Lookup(kernel, "puts"); !ok || m != puts {
		t.Error("snapshot lost the original Kernel#puts")
	}
}

func TestLibrary_LoadCoreAndPostBoot(t *testing.T) {
	t.Parallel()

	b := boot(t)
	ev := &testutil.Evaluator{}
	n, err := b.lib.LoadCore(context.Background(), BuiltinLoader(), ev)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"kernel.cv", "comparable.cv", "enumerable.cv", "thread.cv", "process.cv"}
	if n != len(want) || strings.Join(ev.Evaluated(), ",") != strings.Join(want, ",") {
		t.Errorf("evaluated %v", ev.Evaluated())
	}

	if err := b.lib.InitializePostBoot("/opt/corvid", "1.2.3"); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.lib.ObjectClass().Constant("CORVID_HOME"); v != "/opt/corvid" {
		t.Errorf("CORVID_HOME = %v", v)
	}
	if !b.lib.IsBooted() {
		t.Error("IsBooted() = false after post-boot")
	}
}

func TestLibrary_LoadCoreEvaluatorFailure(t *testing.T) {
	t.Parallel()

	b := boot(t)
	ev := &testutil.Evaluator{FailOn: "enumerable.cv"}
	n, err := b.lib.LoadCore(context.Background(), BuiltinLoader(), ev)
	if !errors.Is(err, testutil.ErrEvaluation) {
		t.Fatalf("LoadCore error = %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d sources before failure, want 2", n)
	}
	if err := b.lib.InitializePostBoot("", "1.0.0"); !errors.Is(err, ErrStageOrder) {
		t.Errorf("post-boot after failed load error = %v", err)
	}
}

func TestSelectLoader(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	testutil.CoreDir(t, filepath.Join(home, "lib", "core"), "a.cv")
	custom := t.TempDir()
	testutil.CoreDir(t, custom, "b.cv", "c.cv")

	tests := []struct {
		name     string
		loadPath string
		home     string
		origin   string
		sources  int
	}{
		{"load path wins", custom, home, custom, 2},
		{"home core", "", home, filepath.Join(home, "lib", "core"), 1},
		{"home without core", "", t.TempDir(), "<builtin>", 5},
		{"no home", "", "", "<builtin>", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loader, err := SelectLoader(tt.loadPath, tt.home)
			if err != nil {
				t.Fatal(err)
			}
			if loader.Origin() != tt.origin {
				t.Errorf("Origin() = %q, want %q", loader.Origin(), tt.origin)
			}
			names, err := loader.Manifest()
			if err != nil {
				t.Fatal(err)
			}
			if len(names) != tt.sources {
				t.Errorf("manifest = %v", names)
			}
		})
	}

	_, err := SelectLoader(t.TempDir(), "")
	if !errors.Is(err, ErrCoreLibraryNotFound) {
		t.Fatalf("SelectLoader(empty dir) error = %v", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.CoreLibraryNotFoundId {
		t.Errorf("error is not an actionable CoreLibraryNotFound: %v", err)
	}
}

func TestDirLoader_LoadSetsPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.CoreDir(t, dir, "kernel.cv")
	src, err := DirLoader(dir).Load("kernel.cv")
	if err != nil {
		t.Fatal(err)
	}
	if src.Path != filepath.Join(dir, "kernel.cv") || !strings.Contains(string(src.Content), "kernel.cv") {
		t.Errorf("Load() = %+v", src)
	}
	if _, err := DirLoader(dir).Load("../escape.cv"); err == nil {
		t.Error("Load accepted a path outside the core directory")
	}
}
