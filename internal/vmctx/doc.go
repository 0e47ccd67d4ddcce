// SPDX-License-Identifier: MPL-2.0

// Package vmctx owns the lifetime of one corvid runtime instance.
//
// New constructs every subsystem in dependency order and either returns a
// fully initialized Context or the first failure. While New runs, code on
// the constructing call path can reach the partially built Context through
// Current; once New returns, only contexts installed with Enter resolve.
// Shutdown tears the instance down exactly once, isolating failures per
// step so that diagnostics never prevent threads from being joined.
package vmctx
