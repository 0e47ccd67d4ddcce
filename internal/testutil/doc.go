// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test doubles for the host embedding (environment,
// instrumenter, compiler options, evaluator) and builders for on-disk
// distribution layouts.
package testutil
