// SPDX-License-Identifier: MPL-2.0

package vmctx

import (
	"context"

	"github.com/corvidvm/corvid/internal/callgraph"
	"github.com/corvidvm/corvid/internal/object"
)

const topLevelFrame = "<main>"

type siteKey struct{}

// WithCallSite records the source position of the next Send on ctx.
func WithCallSite(ctx context.Context, source string, line int) context.Context {
	return context.WithValue(ctx, siteKey{}, callgraph.Site{Source: source, Line: line})
}

// Send looks up name on receiver and calls it. The call runs in a new frame
// of the current thread and, when call-graph collection is on, is recorded
// as an edge from the innermost frame.
func (c *Context) Send(ctx context.Context, receiver any, name string, args ...any) (any, error) {
	method, err := c.coreLibrary.FindMethod(receiver, name)
	if err != nil {
		return nil, err
	}
	callee := qualifiedName(method)

	t := c.threads.Current(ctx)
	caller := topLevelFrame
	if t != nil {
		if frames := t.Backtrace(); len(frames) > 0 {
			caller = frames[0]
		}
	}
	if c.callGraph != nil {
		site, _ := ctx.Value(siteKey{}).(callgraph.Site)
		if err := c.callGraph.RecordCall(caller, callee, site); err != nil {
			c.logger.Debug("call not recorded", "caller", caller, "callee", callee, "error", err)
		}
	}
	c.metrics.IncSends()

	if t != nil {
		t.PushFrame(callee)
		defer t.PopFrame()
	}
	return method.Call(Enter(ctx, c), receiver, args...)
}

func qualifiedName(m *object.Method) string {
	if m.Owner == nil {
		return m.Name
	}
	return m.Owner.Name() + "#" + m.Name
}
