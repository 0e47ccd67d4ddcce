// SPDX-License-Identifier: MPL-2.0

// Package instrument provides the instrumentation server: an SSH endpoint on
// the loopback interface through which operators inspect a running context.
//
// Clients authenticate with the access token generated when the server
// starts and run one command per session:
//
//	health   context id, server state and live thread count
//	threads  one line per guest thread
//	stacks   backtraces of every thread, taken at a safepoint
//	metrics  the context's metrics in the Prometheus text format
//
// A server instance is single-use: once stopped or failed, create a new one.
package instrument
