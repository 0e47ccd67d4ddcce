// SPDX-License-Identifier: MPL-2.0

package corelib

import (
	"context"
	"fmt"
	"io"

	"github.com/corvidvm/corvid/internal/atexit"
	"github.com/corvidvm/corvid/internal/native"
	"github.com/corvidvm/corvid/internal/object"
	"github.com/corvidvm/corvid/internal/primitive"
	"github.com/corvidvm/corvid/internal/rope"
	"github.com/corvidvm/corvid/internal/symbol"
	"github.com/corvidvm/corvid/internal/thread"
)

type (
	// ThreadService is the thread manager surface used by thread built-ins.
	ThreadService interface {
		Spawn(name string, fn func(ctx context.Context) error) (*thread.Thread, error)
		List() []*thread.Thread
		Current(ctx context.Context) *thread.Thread
	}

	// ExitHooks registers at_exit blocks.
	ExitHooks interface {
		Add(hook atexit.Hook, always bool)
	}

	// Builtins are the services built-in methods close over. Strings
	// returned by built-ins are interned in Ropes.
	Builtins struct {
		Threads  ThreadService
		Ropes    *rope.Table
		Symbols  *symbol.Table
		Platform native.Platform
		AtExit   ExitHooks
		Stdout   io.Writer
		Stderr   io.Writer
		// Warnings reports whether Kernel#warn prints; nil means always.
		Warnings func() bool
	}

	builtinDef struct {
		owner     string
		name      string
		singleton bool
		impl      func(l *Library, b Builtins) primitive.Func
	}
)

// Primitive names are "<owner>#<name>" for instance methods and
// "<owner>.<name>" for singleton methods.
func (d builtinDef) primitiveName() string {
	if d.singleton {
		return d.owner + "." + d.name
	}
	return d.owner + "#" + d.name
}

var builtinDefs = []builtinDef{
	{"Kernel", "puts", false, kernelPuts},
	{"Kernel", "print", false, kernelPrint},
	{"Kernel", "warn", false, kernelWarn},
	{"Kernel", "pid", false, processPid},
	{"Kernel", "class", false, kernelClass},
	{"Kernel", "respond_to?", false, kernelRespondTo},
	{"Kernel", "at_exit", false, kernelAtExit},
	{"Module", "name", false, moduleName},
	{"Process", "pid", true, processPid},
	{"Process", "ppid", true, processPpid},
	{"Thread", "new", true, threadNew},
	{"Thread", "list", true, threadList},
	{"Thread", "current", true, threadCurrent},
	{"Thread", "name", false, threadName},
	{"Thread", "alive?", false, threadAlive},
	{"Thread", "join", false, threadJoin},
	{"String", "encoding", false, stringEncoding},
	{"String", "to_sym", false, stringToSym},
	{"Symbol", "to_s", false, symbolToS},
	{"Encoding", "name", false, encodingName},
	{"Encoding", "default_external", true, encodingDefaultExternal},
	{"Encoding", "default_internal", true, encodingDefaultInternal},
}

// AddCoreMethods installs the built-in methods and registers each as a
// primitive.
func (l *Library) AddCoreMethods(prims *primitive.Manager, b Builtins) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.require(stepBuiltins, stepEncodings); err != nil {
		return err
	}
	if b.Threads == nil {
		return ErrThreadsRequired
	}
	if b.Ropes == nil || b.Symbols == nil {
		return ErrStringTablesRequired
	}
	if b.Stdout == nil {
		b.Stdout = io.Discard
	}
	if b.Stderr == nil {
		b.Stderr = io.Discard
	}

	for _, def := range builtinDefs {
		owner := l.moduleLocked(def.owner)
		if owner == nil {
			return fmt.Errorf("built-in %s: unknown owner %q", def.primitiveName(), def.owner)
		}
		fn := def.impl(l, b)
		if err := prims.Add(def.primitiveName(), fn); err != nil {
			return err
		}
		method := &object.Method{Name: def.name, Builtin: true, Fn: fn}
		if def.singleton {
			owner.DefineSingletonMethod(method)
		} else {
			owner.DefineMethod(method)
		}
	}
	l.advance(stepBuiltins)
	l.logger.Debug("core methods added", "count", len(builtinDefs))
	return nil
}

// moduleLocked must be called with l.mu held.
func (l *Library) moduleLocked(name string) *object.Module {
	if c, ok := l.classes[name]; ok {
		return c.AsModule()
	}
	return l.modules[name]
}

// str interns s in the default external encoding.
func (l *Library) str(b Builtins, s string) *rope.Rope {
	return b.Ropes.InternString(s, l.encodings.DefaultExternal().Name)
}

func display(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case *rope.Rope:
		return v.String()
	case *object.Symbol:
		return v.Name()
	case *object.Class:
		return v.Name()
	case *object.Module:
		return v.Name()
	default:
		return fmt.Sprint(v)
	}
}

func kernelPuts(_ *Library, b Builtins) primitive.Func {
	return func(_ context.Context, _ any, args ...any) (any, error) {
		if len(args) == 0 {
			_, err := fmt.Fprintln(b.Stdout)
			return nil, err
		}
		for _, a := range args {
			if _, err := fmt.Fprintln(b.Stdout, display(a)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

func kernelPrint(_ *Library, b Builtins) primitive.Func {
	return func(_ context.Context, _ any, args ...any) (any, error) {
		for _, a := range args {
			if _, err := fmt.Fprint(b.Stdout, display(a)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

func kernelWarn(_ *Library, b Builtins) primitive.Func {
	return func(_ context.Context, _ any, args ...any) (any, error) {
		if b.Warnings != nil && !b.Warnings() {
			return nil, nil
		}
		for _, a := range args {
			if _, err := fmt.Fprintln(b.Stderr, display(a)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

func kernelClass(l *Library, _ Builtins) primitive.Func {
	return func(_ context.Context, self any, _ ...any) (any, error) {
		return l.ClassOf(self), nil
	}
}

func kernelRespondTo(l *Library, _ Builtins) primitive.Func {
	return func(_ context.Context, self any, args ...any) (any, error) {
		name, err := nameArg(args)
		if err != nil {
			return nil, err
		}
		_, err = l.FindMethod(self, name)
		return err == nil, nil
	}
}

func kernelAtExit(_ *Library, b Builtins) primitive.Func {
	return func(_ context.Context, _ any, args ...any) (any, error) {
		if b.AtExit == nil {
			return nil, fmt.Errorf("at_exit: %w: no exit hook manager", ErrInvalidArgument)
		}
		hook, err := blockArg("at_exit", args)
		if err != nil {
			return nil, err
		}
		b.AtExit.Add(atexit.Hook(hook), false)
		return nil, nil
	}
}

func moduleName(l *Library, b Builtins) primitive.Func {
	return func(_ context.Context, self any, _ ...any) (any, error) {
		switch m := self.(type) {
		case *object.Class:
			return l.str(b, m.Name()), nil
		case *object.Module:
			return l.str(b, m.Name()), nil
		}
		return nil, fmt.Errorf("Module#name: %w: receiver %T", ErrInvalidArgument, self)
	}
}

func processPid(_ *Library, b Builtins) primitive.Func {
	return func(context.Context, any, ...any) (any, error) {
		if b.Platform == nil {
			return nil, fmt.Errorf("pid: %w: no native platform", ErrInvalidArgument)
		}
		return b.Platform.Pid(), nil
	}
}

func processPpid(_ *Library, b Builtins) primitive.Func {
	return func(context.Context, any, ...any) (any, error) {
		if b.Platform == nil {
			return nil, fmt.Errorf("ppid: %w: no native platform", ErrInvalidArgument)
		}
		return b.Platform.Ppid(), nil
	}
}

func threadNew(_ *Library, b Builtins) primitive.Func {
	return func(_ context.Context, _ any, args ...any) (any, error) {
		fn, err := blockArg("Thread.new", args)
		if err != nil {
			return nil, err
		}
		t, err := b.Threads.Spawn("", fn)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

func threadList(_ *Library, b Builtins) primitive.Func {
	return func(context.Context, any, ...any) (any, error) {
		threads := b.Threads.List()
		out := make([]any, len(threads))
		for i, t := range threads {
			out[i] = t
		}
		return out, nil
	}
}

func threadCurrent(_ *Library, b Builtins) primitive.Func {
	return func(ctx context.Context, _ any, _ ...any) (any, error) {
		return b.Threads.Current(ctx), nil
	}
}

func threadName(l *Library, b Builtins) primitive.Func {
	return func(_ context.Context, self any, _ ...any) (any, error) {
		t, err := threadSelf(self)
		if err != nil {
			return nil, err
		}
		if t.Name() == "" {
			return nil, nil
		}
		return l.str(b, t.Name()), nil
	}
}

func threadAlive(_ *Library, _ Builtins) primitive.Func {
	return func(_ context.Context, self any, _ ...any) (any, error) {
		t, err := threadSelf(self)
		if err != nil {
			return nil, err
		}
		return t.Alive(), nil
	}
}

func threadJoin(_ *Library, _ Builtins) primitive.Func {
	return func(ctx context.Context, self any, _ ...any) (any, error) {
		t, err := threadSelf(self)
		if err != nil {
			return nil, err
		}
		select {
		case <-t.Done():
			return t, t.Err()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func stringEncoding(l *Library, _ Builtins) primitive.Func {
	return func(_ context.Context, self any, _ ...any) (any, error) {
		r, ok := self.(*rope.Rope)
		if !ok {
			return nil, fmt.Errorf("String#encoding: %w: receiver %T", ErrInvalidArgument, self)
		}
		enc, err := l.encodings.Find(r.Encoding())
		if err != nil {
			return nil, err
		}
		return l.EncodingObject(enc), nil
	}
}

func stringToSym(_ *Library, b Builtins) primitive.Func {
	return func(_ context.Context, self any, _ ...any) (any, error) {
		r, ok := self.(*rope.Rope)
		if !ok {
			return nil, fmt.Errorf("String#to_sym: %w: receiver %T", ErrInvalidArgument, self)
		}
		return b.Symbols.Symbol(r.String()), nil
	}
}

func symbolToS(l *Library, b Builtins) primitive.Func {
	return func(_ context.Context, self any, _ ...any) (any, error) {
		s, ok := self.(*object.Symbol)
		if !ok {
			return nil, fmt.Errorf("Symbol#to_s: %w: receiver %T", ErrInvalidArgument, self)
		}
		return l.str(b, s.Name()), nil
	}
}

func encodingName(l *Library, b Builtins) primitive.Func {
	return func(_ context.Context, self any, _ ...any) (any, error) {
		obj, ok := self.(*object.Object)
		if !ok {
			return nil, fmt.Errorf("Encoding#name: %w: receiver %T", ErrInvalidArgument, self)
		}
		name, _ := obj.InstanceVariable("@name")
		return l.str(b, display(name)), nil
	}
}

func encodingDefaultExternal(l *Library, _ Builtins) primitive.Func {
	return func(context.Context, any, ...any) (any, error) {
		return l.EncodingObject(l.encodings.DefaultExternal()), nil
	}
}

func encodingDefaultInternal(l *Library, _ Builtins) primitive.Func {
	return func(context.Context, any, ...any) (any, error) {
		enc := l.encodings.DefaultInternal()
		if enc == nil {
			return nil, nil
		}
		return l.EncodingObject(enc), nil
	}
}

func threadSelf(self any) (*thread.Thread, error) {
	t, ok := self.(*thread.Thread)
	if !ok {
		return nil, fmt.Errorf("Thread: %w: receiver %T", ErrInvalidArgument, self)
	}
	return t, nil
}

func nameArg(args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: expected 1 argument, got %d", ErrInvalidArgument, len(args))
	}
	switch v := args[0].(type) {
	case string:
		return v, nil
	case *rope.Rope:
		return v.String(), nil
	case *object.Symbol:
		return v.Name(), nil
	}
	return "", fmt.Errorf("%w: %T is not a method name", ErrInvalidArgument, args[0])
}

// blockArg extracts a guest block, represented as a Go function.
func blockArg(method string, args []any) (func(ctx context.Context) error, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: %w: expected a block", method, ErrInvalidArgument)
	}
	switch fn := args[0].(type) {
	case func(ctx context.Context) error:
		return fn, nil
	case atexit.Hook:
		return fn, nil
	}
	return nil, fmt.Errorf("%s: %w: %T is not a block", method, ErrInvalidArgument, args[0])
}
