// SPDX-License-Identifier: MPL-2.0

package vmctx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/corvidvm/corvid/internal/atexit"
	"github.com/corvidvm/corvid/internal/boot"
	"github.com/corvidvm/corvid/internal/callgraph"
	"github.com/corvidvm/corvid/internal/config"
	"github.com/corvidvm/corvid/internal/console"
	"github.com/corvidvm/corvid/internal/corelib"
	"github.com/corvidvm/corvid/internal/coverage"
	"github.com/corvidvm/corvid/internal/encoding"
	"github.com/corvidvm/corvid/internal/instrument"
	"github.com/corvidvm/corvid/internal/issue"
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

// Construction stages in the order New runs them.
const (
	StageOptions          = "options"
	StageCompilerTuning   = "compiler-tuning"
	StageRegistries       = "registries"
	StageCoreBootstrap    = "core-bootstrap"
	StageSymbols          = "symbols"
	StagePlatform         = "platform"
	StageEncoding         = "encoding"
	StageThreads          = "threads"
	StageBuiltins         = "builtins"
	StageTracing          = "tracing"
	StageCoreLibrary      = "core-library"
	StageOptionalServices = "optional-services"
	StagePostBoot         = "post-boot"
	StageConsole          = "console"
	StageSharing          = "sharing"
)

// Compiler options applied when the execution engine supports them.
const (
	// OptionMinTimeThreshold delays hot-method promotion until it never happens.
	OptionMinTimeThreshold = "MinTimeThreshold"
	// OptionMinInliningMaxCallerSize raises the inlining caller-size ceiling.
	OptionMinInliningMaxCallerSize = "MinInliningMaxCallerSize"

	minTimeThreshold         = 100_000_000
	minInliningMaxCallerSize = 5000
)

// New constructs a runtime instance from env. It returns either a fully
// initialized Context or the first error; on error no Context is returned.
// ctx is visible to every stage, and Current(ctx) inside a stage resolves
// to the context under construction.
func New(ctx context.Context, env *embed.Env) (*Context, error) {
	if env == nil {
		env = &embed.Env{}
	}
	c := &Context{
		id:  uuid.NewString(),
		env: env,
	}
	c.logger = env.Logger
	if c.logger == nil {
		c.logger = log.NewWithOptions(env.StderrWriter(), log.Options{Prefix: "corvid"})
	}
	c.metrics = metrics.NewCollector(c.id, c.liveThreads)

	ctx, guard := withGuard(ctx, c)
	defer guard.clear()

	if err := c.plan().Run(ctx, c.observe); err != nil {
		c.abort()
		return nil, c.constructionError(err)
	}

	c.ready.Store(true)
	c.logger.Info("runtime context ready", "home", c.home.String(), "threads", c.liveThreads())
	return c, nil
}

func (c *Context) plan() *boot.Plan {
	return boot.NewPlan().MustAdd(
		c.stage(StageOptions, c.resolveOptions),
		c.stage(StageCompilerTuning, c.tuneCompiler, StageOptions),
		c.stage(StageRegistries, c.createRegistries, StageCompilerTuning),
		c.stage(StageCoreBootstrap, c.bootstrapCore, StageRegistries),
		c.stage(StageSymbols, c.createSymbols, StageCoreBootstrap),
		c.stage(StagePlatform, c.createPlatform, StageSymbols),
		c.stage(StageEncoding, c.initializeEncodings, StagePlatform),
		c.stage(StageThreads, c.createThreads, StageEncoding),
		c.stage(StageBuiltins, c.loadBuiltins, StageThreads),
		c.stage(StageTracing, c.createTracing, StageBuiltins),
		c.stage(StageCoreLibrary, c.loadCoreLibrary, StageTracing),
		c.stage(StageOptionalServices, c.startOptionalServices, StageCoreLibrary),
		c.stage(StagePostBoot, c.postBoot, StageOptionalServices),
		c.stage(StageConsole, c.createConsole, StagePostBoot),
		c.stage(StageSharing, c.startSharing, StageConsole),
	)
}

// stage times run and records the outcome.
func (c *Context) stage(name string, run func(ctx context.Context) error, after ...string) boot.Stage {
	return boot.Stage{
		Name:  name,
		After: after,
		Run: func(ctx context.Context) error {
			start := time.Now()
			err := run(ctx)
			c.metrics.ObserveStage(name, time.Since(start), err)
			return err
		},
	}
}

func (c *Context) observe(ctx context.Context, stage string) error {
	c.logger.Debug("construction stage", "stage", stage)
	if c.env.StageHook != nil {
		return c.env.StageHook(ctx, stage)
	}
	return nil
}

// abort releases the OS resources of a failed construction. Subsystems are
// otherwise left as they are; the failed Context is unreachable.
func (c *Context) abort() {
	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			c.logger.Warn("stopping instrumentation server after failed construction", "error", err)
		}
	}
	if c.threads != nil {
		ctx, cancel := context.WithTimeout(context.Background(), threadShutdownTimeout)
		defer cancel()
		if err := c.threads.Shutdown(ctx); err != nil {
			c.logger.Warn("stopping threads after failed construction", "error", err)
		}
	}
}

func (c *Context) constructionError(err error) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, config.ErrInvalidOptions) {
		return issue.NewErrorContext().
			WithOperation("resolve options").
			WithSuggestion("Run 'corvid options' to see where each option came from").
			WithIssue(issue.InvalidOptionId).
			Wrap(err).
			BuildError()
	}
	var se *boot.StageError
	stage := ""
	if errors.As(err, &se) {
		stage = se.Stage
	}
	return issue.NewErrorContext().
		WithOperation("construct runtime context").
		WithResource(stage).
		WithSuggestion("Run with --verbose to see each construction stage").
		WithIssue(issue.ContextConstructionFailedId).
		Wrap(err).
		BuildError()
}

func (c *Context) resolveOptions(context.Context) error {
	opts, home, err := config.Resolve(c.env)
	if err != nil {
		return err
	}
	c.options = opts
	c.home = home
	c.verbosity = opts.Verbosity

	if c.env.Logger == nil {
		level, err := log.ParseLevel(opts.Log.Level.String())
		if err != nil {
			return err
		}
		c.logger.SetLevel(level)
	}
	c.logger = c.logger.With("context", c.id[:8])
	c.logger.Debug("options resolved", "home", home.String(), "home_source", home.Source, "explicit", opts.ExplicitKeys())
	return nil
}

// tuneCompiler applies the engine tuning options the engine supports.
// Unsupported options are skipped and rejected values only logged.
func (c *Context) tuneCompiler(context.Context) error {
	compiler := c.env.Compiler
	if compiler == nil {
		return nil
	}
	for _, opt := range []struct {
		name  string
		value any
	}{
		{OptionMinTimeThreshold, minTimeThreshold},
		{OptionMinInliningMaxCallerSize, minInliningMaxCallerSize},
	} {
		if !compiler.SupportsOption(opt.name) {
			continue
		}
		if err := compiler.SetOption(opt.name, opt.value); err != nil {
			c.logger.Warn("compiler option rejected", "option", opt.name, "error", err)
		}
	}
	return nil
}

func (c *Context) createRegistries(context.Context) error {
	c.ropes = rope.NewTable()
	c.primitives = primitive.NewManager()
	c.safepoints = safepoint.NewManager()
	c.atExit = atexit.New(c.logger.WithPrefix("atexit"), c.env.StderrWriter())
	return nil
}

func (c *Context) bootstrapCore(context.Context) error {
	c.coreLibrary = corelib.New(c.logger.WithPrefix("corelib"))
	return c.coreLibrary.Initialize()
}

func (c *Context) createSymbols(context.Context) error {
	factory, err := c.coreLibrary.SymbolFactory()
	if err != nil {
		return err
	}
	c.symbols = symbol.New(factory)
	return nil
}

func (c *Context) createPlatform(context.Context) error {
	p, err := native.Create(c.coreLibrary, c.env.EnvironMap())
	if err != nil {
		return err
	}
	c.platform = p
	if cwd, err := p.Getcwd(); err == nil {
		c.cwd = cwd
	}
	c.logger.Debug("native platform created", "kind", p.Kind(), "sandbox", p.Sandbox())
	return nil
}

func (c *Context) initializeEncodings(context.Context) error {
	encodings, err := encoding.NewManager(c.platform)
	if err != nil {
		return err
	}
	if err := c.coreLibrary.InitializeEncodingManager(encodings); err != nil {
		return err
	}
	c.encodings = encodings
	return nil
}

func (c *Context) createThreads(context.Context) error {
	threads := thread.NewManager(c.logger.WithPrefix("threads"), c.safepoints, c.encodings)
	if err := threads.Initialize(); err != nil {
		return err
	}
	c.threads = threads
	return nil
}

func (c *Context) loadBuiltins(context.Context) error {
	return c.coreLibrary.AddCoreMethods(c.primitives, corelib.Builtins{
		Threads:  contextThreads{c},
		Ropes:    c.ropes,
		Symbols:  c.symbols,
		Platform: c.platform,
		AtExit:   c.atExit,
		Stdout:   c.env.StdoutWriter(),
		Stderr:   c.env.StderrWriter(),
		Warnings: c.WarningsEnabled,
	})
}

func (c *Context) createTracing(context.Context) error {
	methods, err := c.coreLibrary.CaptureCoreMethods()
	if err != nil {
		return err
	}
	c.coreMethods = methods

	inst := c.env.Instrumenter()
	c.traces = tracing.New(c.logger.WithPrefix("tracing"), inst)
	c.coverage = coverage.New(c.logger.WithPrefix("coverage"), inst)
	if c.options.Coverage.Global {
		if err := c.coverage.Enable(); err != nil {
			c.logger.Warn("global coverage unavailable", "error", err)
		}
	}
	if c.options.CallGraph.Enabled {
		c.callGraph = callgraph.New()
	}
	return nil
}

func (c *Context) loadCoreLibrary(ctx context.Context) error {
	loader, err := corelib.SelectLoader(c.options.Core.LoadPath.String(), c.home.Path.String())
	if err != nil {
		return err
	}
	n, err := c.coreLibrary.LoadCore(ctx, loader, c.env.Evaluator)
	if err != nil {
		return fmt.Errorf("core library from %s: %w", loader.Origin(), err)
	}
	c.logger.Debug("core library ready", "origin", loader.Origin(), "sources", n)
	return nil
}

// startOptionalServices starts the instrumentation server. Ahead-of-time
// builds cannot host it.
func (c *Context) startOptionalServices(ctx context.Context) error {
	port := c.options.InstrumentationServer.Port
	if port.IsDisabled() {
		return nil
	}
	if c.env.AOT {
		c.logger.Warn("instrumentation server is unavailable in ahead-of-time mode", "port", port)
		return nil
	}

	cfg := instrument.DefaultConfig()
	cfg.Port = port
	srv, err := instrument.New(cfg, contextProbe{c}, c.logger.WithPrefix("instrument"))
	if err == nil {
		err = srv.Start(ctx)
	}
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("start instrumentation server").
			WithResource(port.Addr(cfg.Host)).
			WithSuggestion("Choose a free port with instrumentation_server.port").
			WithSuggestion("Set instrumentation_server.port to 0 to disable the server").
			WithIssue(issue.InstrumentationServerFailedId).
			Wrap(err).
			BuildError()
	}
	c.server = srv
	return nil
}

func (c *Context) postBoot(context.Context) error {
	return c.coreLibrary.InitializePostBoot(c.home.Path.String(), Version)
}

func (c *Context) createConsole(context.Context) error {
	c.console = console.New(c.env.StdinReader(), c.env.StdoutWriter())
	return nil
}

// startSharing shares the whole object graph when sharing is forced, so
// that it is visible as shared before any guest thread runs.
func (c *Context) startSharing(context.Context) error {
	c.shared = shared.New(c.logger.WithPrefix("shared"), c.options.SharedObjects.Enabled)
	if !c.options.ShareEagerly() {
		return nil
	}
	_, err := c.shared.StartSharing(c.coreLibrary.Roots())
	return err
}

func (c *Context) liveThreads() int {
	if c.threads == nil {
		return 0
	}
	return len(c.threads.List())
}
