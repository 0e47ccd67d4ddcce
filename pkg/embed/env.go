// SPDX-License-Identifier: MPL-2.0

package embed

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// InstrumenterKey is the service key under which a host publishes its Instrumenter.
const InstrumenterKey = "instrumenter"

type (
	// Env is the opaque environment handle supplied by the host embedding.
	// Zero-valued fields fall back to process state.
	Env struct {
		// Config is the embedding-provided configuration (highest precedence).
		Config map[string]any
		// Environ is a snapshot of the process environment. Nil means os.Environ().
		Environ map[string]string
		// Properties holds process properties (lowest precedence source).
		Properties map[string]string
		// Executable returns the path of the running binary; it anchors the
		// home-directory heuristics. Nil means os.Executable.
		Executable func() (string, error)
		// AOT reports an ahead-of-time compiled execution mode where runtime
		// class loading is unavailable.
		AOT bool

		Stdin  io.Reader
		Stdout io.Writer
		// Stderr receives diagnostics: statistics, reports and failure messages.
		Stderr io.Writer

		// Logger overrides the context's root logger when set.
		Logger *log.Logger
		// Compiler exposes tuning knobs of the underlying execution engine.
		Compiler CompilerOptions
		// Evaluator runs guest-language sources. When nil, core sources are
		// located and registered but not evaluated.
		Evaluator Evaluator
		// StageHook, when set, is called before every construction stage.
		// A non-nil error aborts construction.
		StageHook func(ctx context.Context, stage string) error

		// Services maps service keys to host-provided implementations.
		Services map[string]any
	}

	// CompilerOptions is the capability-query surface of the execution engine.
	CompilerOptions interface {
		SupportsOption(name string) bool
		SetOption(name string, value any) error
	}

	// Source is one unit of guest code handed to an Evaluator.
	Source struct {
		Name    string
		Path    string
		Content []byte
	}

	// Evaluator evaluates guest-language sources. The parser and execution
	// engine live behind this interface.
	Evaluator interface {
		Eval(ctx context.Context, src Source) error
	}
)

// Lookup returns the host service registered under key, or nil.
func (e *Env) Lookup(key string) any {
	if e == nil || e.Services == nil {
		return nil
	}
	return e.Services[key]
}

// Instrumenter returns the host instrumentation hook, or nil when the host
// does not provide one.
func (e *Env) Instrumenter() Instrumenter {
	if inst, ok := e.Lookup(InstrumenterKey).(Instrumenter); ok {
		return inst
	}
	return nil
}

// Getenv reads one variable from the environment snapshot.
func (e *Env) Getenv(key string) (string, bool) {
	if e.Environ == nil {
		return os.LookupEnv(key)
	}
	v, ok := e.Environ[key]
	return v, ok
}

// EnvironMap returns the environment snapshot, reading the process
// environment when none was supplied.
func (e *Env) EnvironMap() map[string]string {
	if e.Environ != nil {
		return e.Environ
	}
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env
}

// Property reads one process property.
func (e *Env) Property(key string) (string, bool) {
	v, ok := e.Properties[key]
	return v, ok
}

// ExecutablePath resolves the anchor path for home heuristics.
func (e *Env) ExecutablePath() (string, error) {
	if e.Executable != nil {
		return e.Executable()
	}
	return os.Executable()
}

// StdinReader returns the configured input or os.Stdin.
func (e *Env) StdinReader() io.Reader {
	if e.Stdin != nil {
		return e.Stdin
	}
	return os.Stdin
}

// StdoutWriter returns the configured output or os.Stdout.
func (e *Env) StdoutWriter() io.Writer {
	if e.Stdout != nil {
		return e.Stdout
	}
	return os.Stdout
}

// StderrWriter returns the configured diagnostic output or os.Stderr.
func (e *Env) StderrWriter() io.Writer {
	if e.Stderr != nil {
		return e.Stderr
	}
	return os.Stderr
}
