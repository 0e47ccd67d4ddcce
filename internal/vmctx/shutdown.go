// SPDX-License-Identifier: MPL-2.0

package vmctx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/corvidvm/corvid/internal/callgraph"
	"github.com/corvidvm/corvid/internal/issue"
)

// Shutdown steps in the order they run.
const (
	StepInternStats  = "intern-stats"
	StepExitHooks    = "exit-hooks"
	StepInstrument   = "instrumentation-server"
	StepThreads      = "threads"
	StepCoverage     = "coverage"
	StepCallGraph    = "call-graph"
	StepTraceCleanup = "tracing"

	threadShutdownTimeout = 10 * time.Second
)

// Shutdown tears the context down. Only the first call does any work.
// Every step runs even when an earlier one fails. Diagnostic output
// failures are reported on the diagnostic stream; the returned error only
// carries failures to stop the instrumentation server or join threads.
func (c *Context) Shutdown(ctx context.Context) error {
	var err error
	c.shutdownOnce.Do(func() {
		err = c.shutdown(ctx)
	})
	return err
}

func (c *Context) shutdown(ctx context.Context) error {
	c.logger.Debug("shutting down")
	var errs []error
	for _, step := range []struct {
		name string
		run  func(ctx context.Context) error
		// report marks failures returned to the caller.
		report bool
	}{
		{StepInternStats, c.printInternStats, false},
		{StepExitHooks, c.runExitHooks, false},
		{StepInstrument, c.stopInstrumentation, true},
		{StepThreads, c.stopThreads, true},
		{StepCoverage, c.printCoverage, false},
		{StepCallGraph, c.writeCallGraph, false},
		{StepTraceCleanup, c.closeTracing, false},
	} {
		err := c.runStep(ctx, step.name, step.run)
		c.metrics.ShutdownStep(step.name, err)
		if err == nil {
			continue
		}
		c.logger.Warn("shutdown step failed", "step", step.name, "error", err)
		if step.report {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	c.logger.Debug("shutdown complete")
	return errors.Join(errs...)
}

// runStep isolates a step: a panic becomes its error.
func (c *Context) runStep(ctx context.Context, name string, run func(ctx context.Context) error) (err error) {
	var pc panics.Catcher
	pc.Try(func() { err = run(ctx) })
	if r := pc.Recovered(); r != nil {
		c.logger.Error("shutdown step panicked", "step", name, "panic", r.Value)
		return r.AsError()
	}
	return err
}

func (c *Context) printInternStats(context.Context) error {
	if !c.options.Rope.PrintInternStats {
		return nil
	}
	_, err := c.ropes.Stats().WriteTo(c.env.StderrWriter())
	return err
}

// runExitHooks runs every hook; failures are reported by the hook runner.
func (c *Context) runExitHooks(ctx context.Context) error {
	if errs := c.atExit.RunSystemExitHooks(ctx); len(errs) > 0 {
		c.logger.Debug("exit hooks finished with failures", "failed", len(errs))
	}
	return nil
}

func (c *Context) stopInstrumentation(context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Stop()
}

func (c *Context) stopThreads(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, threadShutdownTimeout)
	defer cancel()
	return c.threads.Shutdown(ctx)
}

func (c *Context) printCoverage(context.Context) error {
	if !c.options.Coverage.Global || !c.coverage.Enabled() {
		return nil
	}
	defer c.coverage.Disable()
	return c.coverage.Print(c.env.StderrWriter())
}

// writeCallGraph resolves the graph and writes it when a target is
// configured. Write failures go to the diagnostic stream.
func (c *Context) writeCallGraph(context.Context) error {
	if c.callGraph == nil {
		return nil
	}
	resolved := c.callGraph.Resolve()
	target := c.options.CallGraph.Write
	if !target.IsSet() {
		return nil
	}
	if err := writeGraphFile(target.String(), resolved); err != nil {
		werr := issue.NewErrorContext().
			WithOperation("write call graph").
			WithResource(target.String()).
			WithSuggestion("Check that the directory of call_graph.write exists and is writable").
			WithIssue(issue.CallGraphWriteFailedId).
			Wrap(err).
			BuildError()
		_, _ = fmt.Fprintf(c.env.StderrWriter(), "corvid: %v\n", werr)
		return werr
	}
	c.logger.Debug("call graph written", "path", target, "methods", len(resolved.Methods))
	return nil
}

func writeGraphFile(path string, resolved *callgraph.Resolved) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return callgraph.NewSimpleWriter(f).Write(resolved)
}

func (c *Context) closeTracing(context.Context) error {
	c.traces.Close()
	return nil
}
