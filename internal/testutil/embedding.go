// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/corvidvm/corvid/pkg/embed"
)

type (
	// Instrumenter is an in-memory embed.Instrumenter. Events are delivered
	// synchronously by Emit.
	Instrumenter struct {
		mu       sync.Mutex
		next     int
		bindings map[int]binding
	}

	binding struct {
		filter   embed.EventFilter
		listener embed.Listener
	}

	disposer struct {
		inst *Instrumenter
		id   int
	}

	// Compiler records options applied through embed.CompilerOptions.
	Compiler struct {
		Supported map[string]bool
		mu        sync.Mutex
		applied   map[string]any
	}

	// Evaluator records evaluated sources and can fail on a chosen one.
	Evaluator struct {
		FailOn string
		mu     sync.Mutex
		names  []string
	}

	// SyncBuffer is a bytes.Buffer safe for concurrent writers.
	SyncBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}
)

// ErrEvaluation is returned by Evaluator for its FailOn source.
var ErrEvaluation = errors.New("evaluation failed")

func NewInstrumenter() *Instrumenter {
	return &Instrumenter{bindings: make(map[int]binding)}
}

func (i *Instrumenter) Attach(filter embed.EventFilter, listener embed.Listener) embed.Binding {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.next++
	i.bindings[i.next] = binding{filter: filter, listener: listener}
	return disposer{inst: i, id: i.next}
}

// Emit delivers ev to every matching listener.
func (i *Instrumenter) Emit(ev embed.Event) {
	i.mu.Lock()
	var targets []embed.Listener
	for id := 1; id <= i.next; id++ {
		if b, ok := i.bindings[id]; ok && b.filter.Matches(ev) {
			targets = append(targets, b.listener)
		}
	}
	i.mu.Unlock()
	for _, l := range targets {
		l(ev)
	}
}

// Bindings returns the number of live bindings.
func (i *Instrumenter) Bindings() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.bindings)
}

func (d disposer) Dispose() {
	d.inst.mu.Lock()
	defer d.inst.mu.Unlock()
	delete(d.inst.bindings, d.id)
}

// NewCompiler returns a compiler that supports the named options.
func NewCompiler(supported ...string) *Compiler {
	c := &Compiler{Supported: make(map[string]bool), applied: make(map[string]any)}
	for _, name := range supported {
		c.Supported[name] = true
	}
	return c
}

func (c *Compiler) SupportsOption(name string) bool { return c.Supported[name] }

func (c *Compiler) SetOption(name string, value any) error {
	if !c.Supported[name] {
		return fmt.Errorf("unsupported compiler option %q", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied[name] = value
	return nil
}

// Applied returns the value set for name.
func (c *Compiler) Applied(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.applied[name]
	return v, ok
}

func (e *Evaluator) Eval(ctx context.Context, src embed.Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.names = append(e.names, src.Name)
	e.mu.Unlock()
	if e.FailOn != "" && src.Name == e.FailOn {
		return fmt.Errorf("%s: %w", src.Name, ErrEvaluation)
	}
	return nil
}

// Evaluated returns the source names in evaluation order.
func (e *Evaluator) Evaluated() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Lines returns the buffered output split into lines.
func (b *SyncBuffer) Lines() []string {
	s := strings.TrimRight(b.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// NewEnv returns an isolated embedding environment: empty environment and
// properties, no executable (so no home heuristics), buffered output.
func NewEnv() (*embed.Env, *SyncBuffer, *SyncBuffer) {
	stdout, stderr := &SyncBuffer{}, &SyncBuffer{}
	env := &embed.Env{
		Config:     map[string]any{},
		Environ:    map[string]string{},
		Properties: map[string]string{},
		Executable: func() (string, error) { return "", errors.New("no executable in tests") },
		Stdin:      strings.NewReader(""),
		Stdout:     stdout,
		Stderr:     stderr,
		Logger:     log.New(io.Discard),
		Services:   map[string]any{},
	}
	return env, stdout, stderr
}
