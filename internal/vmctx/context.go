// SPDX-License-Identifier: MPL-2.0

package vmctx

import (
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/corvidvm/corvid/internal/atexit"
	"github.com/corvidvm/corvid/internal/callgraph"
	"github.com/corvidvm/corvid/internal/config"
	"github.com/corvidvm/corvid/internal/console"
	"github.com/corvidvm/corvid/internal/corelib"
	"github.com/corvidvm/corvid/internal/coverage"
	"github.com/corvidvm/corvid/internal/encoding"
	"github.com/corvidvm/corvid/internal/instrument"
	"github.com/corvidvm/corvid/internal/metrics"
	"github.com/corvidvm/corvid/internal/native"
	"github.com/corvidvm/corvid/internal/primitive"
	"github.com/corvidvm/corvid/internal/rope"
	"github.com/corvidvm/corvid/internal/safepoint"
	"github.com/corvidvm/corvid/internal/shared"
	"github.com/corvidvm/corvid/internal/symbol"
	"github.com/corvidvm/corvid/internal/thread"
	"github.com/corvidvm/corvid/internal/tracing"
	"github.com/corvidvm/corvid/pkg/embed"
)

// Version is reported by CORVID_VERSION and the CLI.
var Version = "dev"

// Context is one runtime instance. All subsystem references are set during
// New and never change afterwards; verbosity, the current directory and the
// original input file are the only fields mutated after construction.
type Context struct {
	id     string
	env    *embed.Env
	logger *log.Logger

	options *config.Options
	home    config.Home

	ropes       *rope.Table
	primitives  *primitive.Manager
	safepoints  *safepoint.Manager
	coreLibrary *corelib.Library
	symbols     *symbol.Table
	platform    native.Platform
	encodings   *encoding.Manager
	threads     *thread.Manager
	coreMethods *corelib.CoreMethods
	traces      *tracing.Manager
	coverage    *coverage.Manager
	callGraph   *callgraph.Graph
	server      *instrument.Server
	shared      *shared.Objects
	atExit      *atexit.Manager
	console     *console.Holder
	metrics     *metrics.Collector

	// classVariableLock serializes class-variable definition across every
	// class in the runtime.
	classVariableLock sync.Mutex

	mu                sync.RWMutex
	verbosity         config.Verbosity
	cwd               string
	originalInputFile string

	ready        atomic.Bool
	shutdownOnce sync.Once
}

// ID identifies the instance in logs and on the instrumentation server.
func (c *Context) ID() string { return c.id }

func (c *Context) Env() *embed.Env { return c.env }

func (c *Context) Logger() *log.Logger { return c.logger }

// Options is the immutable option snapshot.
func (c *Context) Options() *config.Options { return c.options }

// Home is the resolved runtime home; it may be undetermined.
func (c *Context) Home() config.Home { return c.home }

func (c *Context) RopeTable() *rope.Table { return c.ropes }

func (c *Context) Primitives() *primitive.Manager { return c.primitives }

func (c *Context) Safepoints() *safepoint.Manager { return c.safepoints }

func (c *Context) CoreLibrary() *corelib.Library { return c.coreLibrary }

func (c *Context) Symbols() *symbol.Table { return c.symbols }

func (c *Context) Platform() native.Platform { return c.platform }

func (c *Context) Encodings() *encoding.Manager { return c.encodings }

func (c *Context) Threads() *thread.Manager { return c.threads }

// CoreMethods is the snapshot of built-in methods taken before the
// guest-language core library loaded.
func (c *Context) CoreMethods() *corelib.CoreMethods { return c.coreMethods }

func (c *Context) TraceManager() *tracing.Manager { return c.traces }

func (c *Context) CoverageManager() *coverage.Manager { return c.coverage }

// CallGraph is nil unless call-graph collection is enabled.
func (c *Context) CallGraph() *callgraph.Graph { return c.callGraph }

// InstrumentationServer is nil unless the server was started.
func (c *Context) InstrumentationServer() *instrument.Server { return c.server }

func (c *Context) SharedObjects() *shared.Objects { return c.shared }

func (c *Context) AtExit() *atexit.Manager { return c.atExit }

func (c *Context) Console() *console.Holder { return c.console }

func (c *Context) Metrics() *metrics.Collector { return c.metrics }

// ClassVariableLock guards class-variable definition runtime-wide.
func (c *Context) ClassVariableLock() sync.Locker { return &c.classVariableLock }

// IsReady reports whether construction finished.
func (c *Context) IsReady() bool { return c.ready.Load() }

// Verbosity returns the current warning level. It starts at the configured
// value and changes only through SetVerbosity.
func (c *Context) Verbosity() config.Verbosity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.verbosity
}

// SetVerbosity changes the warning level at runtime.
func (c *Context) SetVerbosity(v config.Verbosity) error {
	if err := v.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.verbosity = v
	c.mu.Unlock()
	return nil
}

// WarningsEnabled reports whether Kernel#warn prints.
func (c *Context) WarningsEnabled() bool { return c.Verbosity() != config.VerbosityNil }

// Cwd returns the guest-visible current directory.
func (c *Context) Cwd() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cwd
}

// SetCwd changes the guest-visible current directory. The process working
// directory is left alone.
func (c *Context) SetCwd(dir string) {
	c.mu.Lock()
	c.cwd = dir
	c.mu.Unlock()
}

// OriginalInputFile is the main script the host asked the runtime to run.
func (c *Context) OriginalInputFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.originalInputFile
}

func (c *Context) SetOriginalInputFile(path string) {
	c.mu.Lock()
	c.originalInputFile = path
	c.mu.Unlock()
}
