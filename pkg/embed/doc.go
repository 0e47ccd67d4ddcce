// SPDX-License-Identifier: MPL-2.0

// Package embed defines the boundary between a host embedding and a corvid
// runtime context.
//
// The host hands an Env to vmctx.New. The context reads its configuration
// layers from the Env (embedding config, process environment, process
// properties) and looks up host services from it, most notably the
// Instrumenter used by tracing and coverage. Nothing else is required from
// the host.
package embed
