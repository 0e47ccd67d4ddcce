// SPDX-License-Identifier: MPL-2.0

// Package native is the platform abstraction layer: process identity, host
// description and locale, exposed to guest code through a Process::Native
// handle object.
//
// The handle is a guest object, so a platform can only be created once the
// core class graph exists.
package native

import (
	"errors"
	"fmt"
	"os"

	"github.com/corvidvm/corvid/internal/object"
)

const handleClassName = "Native"

// ErrClassGraphNotReady is returned when Create runs before the core classes exist.
var ErrClassGraphNotReady = errors.New("native: core class graph is not initialized")

type (
	// Uname describes the host.
	Uname struct {
		Sysname  string
		Nodename string
		Release  string
		Machine  string
	}

	// Platform is the native binding surface used by the rest of the runtime.
	Platform interface {
		// Kind names the implementation: "posix" or "generic".
		Kind() string
		Pid() int
		Ppid() int
		Uname() (Uname, error)
		Getcwd() (string, error)
		// LocaleCharset returns the charset of the process locale, "" when unknown.
		LocaleCharset() string
		Sandbox() SandboxType
		// Handle is the guest object standing for this platform.
		Handle() *object.Object
	}

	// ClassGraph is the part of the core library the platform needs.
	ClassGraph interface {
		ObjectClass() *object.Class
		ClassClass() *object.Class
		ProcessModule() *object.Module
	}

	base struct {
		environ map[string]string
		sandbox SandboxType
		handle  *object.Object
	}
)

// Create builds the platform for the running OS and registers its handle
// class as Process::Native.
func Create(lib ClassGraph, environ map[string]string) (Platform, error) {
	if lib == nil || lib.ProcessModule() == nil || lib.ObjectClass() == nil {
		return nil, ErrClassGraphNotReady
	}

	b := base{
		environ: environ,
		sandbox: detectSandbox(environ, statFile),
	}
	p := newPlatform(b)
	uname, err := p.Uname()
	if err != nil {
		return nil, fmt.Errorf("native: uname: %w", err)
	}

	process := lib.ProcessModule()
	handleClass, ok := existingHandleClass(process)
	if !ok {
		handleClass = object.NewClass(lib.ClassClass(), handleClassName, process, lib.ObjectClass())
		process.SetConstant(handleClassName, handleClass)
	}

	handle := object.NewObject(handleClass)
	handle.SetInstanceVariable("@kind", p.Kind())
	handle.SetInstanceVariable("@pid", p.Pid())
	handle.SetInstanceVariable("@sandbox", string(p.Sandbox()))
	handle.SetInstanceVariable("@sysname", uname.Sysname)
	handle.SetInstanceVariable("@machine", uname.Machine)
	setHandle(p, handle)
	return p, nil
}

func existingHandleClass(process *object.Module) (*object.Class, bool) {
	v, ok := process.Constant(handleClassName)
	if !ok {
		return nil, false
	}
	c, ok := v.(*object.Class)
	return c, ok
}

func (b *base) LocaleCharset() string { return LocaleCharset(b.environ) }

func (b *base) Sandbox() SandboxType { return b.sandbox }

func (b *base) Handle() *object.Object { return b.handle }

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
