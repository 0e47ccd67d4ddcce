// SPDX-License-Identifier: MPL-2.0

package vmctx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corvidvm/corvid/internal/instrument"
	"github.com/corvidvm/corvid/internal/thread"
)

type (
	// contextThreads spawns guest threads whose frames resolve to the
	// owning context through Current.
	contextThreads struct{ c *Context }

	// contextProbe exposes the context to the instrumentation server.
	contextProbe struct{ c *Context }
)

func (t contextThreads) Spawn(name string, fn func(ctx context.Context) error) (*thread.Thread, error) {
	return t.c.threads.Spawn(name, func(ctx context.Context) error {
		return fn(Enter(ctx, t.c))
	})
}

func (t contextThreads) List() []*thread.Thread { return t.c.threads.List() }

func (t contextThreads) Current(ctx context.Context) *thread.Thread { return t.c.threads.Current(ctx) }

func (p contextProbe) ContextID() string { return p.c.id }

func (p contextProbe) Threads() []instrument.ThreadInfo {
	threads := p.c.threads.List()
	out := make([]instrument.ThreadInfo, 0, len(threads))
	for _, t := range threads {
		out = append(out, instrument.ThreadInfo{ID: t.ID(), Name: t.Name(), Status: t.Status().String()})
	}
	return out
}

func (p contextProbe) Stacks(ctx context.Context) (map[int64][]string, error) {
	return p.c.threads.Backtraces(ctx)
}

func (p contextProbe) Gatherer() prometheus.Gatherer { return p.c.metrics.Registry() }
