// SPDX-License-Identifier: MPL-2.0

// Package corelib bootstraps and finalizes the core library.
//
// Bootstrap happens in steps that must run in order, interleaved with the
// construction of other subsystems:
//
//  1. Initialize builds the class graph and the main object.
//  2. SymbolFactory hands the symbol table its allocator.
//  3. InitializeEncodingManager binds Encoding constants once the native
//     platform reports the locale.
//  4. AddCoreMethods installs the built-in methods; some of them spawn or
//     enumerate threads so the thread manager must exist.
//  5. CaptureCoreMethods snapshots the built-ins.
//  6. LoadCore evaluates the part of the core library written in the guest
//     language.
//  7. InitializePostBoot defines runtime constants.
//
// Each step returns a StageOrderError when its predecessor has not run.
package corelib
