// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks over the runtime's hot paths, used to
// generate PGO profiles:
//   - option resolution and CUE options-file validation
//   - full context construction and shutdown
//   - method dispatch through Context.Send
//   - rope interning
//
// To generate a profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
