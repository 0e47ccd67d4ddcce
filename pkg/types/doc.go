// SPDX-License-Identifier: MPL-2.0

// Package types holds small validated value types shared by the runtime
// packages and the corvid CLI: listen ports, filesystem paths and exit codes.
package types
