// SPDX-License-Identifier: MPL-2.0

// Package object is the guest object model: plain objects, modules, classes,
// symbols and methods, plus a reachability walk over the object graph.
//
// Every value that can reference other values implements Value. Go scalars
// (ints, floats, strings, bools, nil) stand in for immediates and are never
// walked.
package object
