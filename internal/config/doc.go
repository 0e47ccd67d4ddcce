// SPDX-License-Identifier: MPL-2.0

// Package config resolves the runtime options of a corvid context.
//
// Options are layered with Viper from four sources, lowest priority first:
// documented defaults, process properties (corvid.<key>), environment
// variables (CORVID_<KEY>) and the embedding configuration. The package also
// resolves the runtime home directory through a priority chain ending in
// pluggable on-disk layout heuristics.
//
// Options files supplied by embedders are CUE documents validated against
// the embedded #Options schema (options_schema.cue) before they are merged.
package config
