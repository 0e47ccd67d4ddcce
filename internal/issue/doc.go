// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of markdown help
// pages that the corvid CLI renders when booting or configuring a runtime
// context fails.
package issue
