// SPDX-License-Identifier: MPL-2.0

package vmctx

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrNoContext is returned by Current when the calling frame has neither an
// installed context nor one under construction.
var ErrNoContext = errors.New("no runtime context is installed")

type (
	installedKey struct{}
	guardKey     struct{}

	// constructionGuard exposes a context to the call path that is building
	// it. It is carried by the construction context.Context only, so other
	// goroutines never observe it, and it is cleared when New returns.
	constructionGuard struct {
		active atomic.Bool
		ctx    *Context
	}
)

func withGuard(ctx context.Context, c *Context) (context.Context, *constructionGuard) {
	g := &constructionGuard{ctx: c}
	g.active.Store(true)
	return context.WithValue(ctx, guardKey{}, g), g
}

func (g *constructionGuard) clear() { g.active.Store(false) }

// Enter installs c on the execution frame carried by ctx. Contexts entered
// before construction has finished are not resolved by Current.
func Enter(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, installedKey{}, c)
}

// Current returns the context owning the calling frame. An installed,
// fully constructed context wins; failing that, the context being built on
// this call path is returned. Anything else is ErrNoContext.
func Current(ctx context.Context) (*Context, error) {
	if c, ok := ctx.Value(installedKey{}).(*Context); ok && c != nil && c.IsReady() {
		return c, nil
	}
	if g, ok := ctx.Value(guardKey{}).(*constructionGuard); ok && g.active.Load() {
		return g.ctx, nil
	}
	return nil, ErrNoContext
}
