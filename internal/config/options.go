// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/corvidvm/corvid/pkg/types"
)

const (
	KeyHome                 = "home"
	KeyVerbosity            = "verbosity"
	KeySharedObjectsEnabled = "shared_objects.enabled"
	KeySharedObjectsForce   = "shared_objects.force"
	KeyCallGraphEnabled     = "call_graph.enabled"
	KeyCallGraphWrite       = "call_graph.write"
	KeyCoverageGlobal       = "coverage.global"
	KeyRopePrintInternStats = "rope.print_intern_stats"
	KeyInstrumentationPort  = "instrumentation_server.port"
	KeyLogLevel             = "log.level"
	KeyCoreLoadPath         = "core.load_path"

	envPrefix      = "CORVID_"
	propertyPrefix = "corvid."

	// HomeEnvVar designates the runtime home directory.
	HomeEnvVar = envPrefix + "HOME"
	// HomeProperty is the process property equivalent of HomeEnvVar.
	HomeProperty = propertyPrefix + KeyHome

	defaultVerbosity           = VerbosityFalse
	defaultLogLevel            = LogLevelWarn
	defaultSharedObjects       = true
	defaultInstrumentationPort = 0
)

type (
	// Options is the immutable option snapshot of one context. It is built
	// once by Resolve and must be treated as read-only afterwards.
	Options struct {
		Home                  types.FilesystemPath         `mapstructure:"home" json:"home" toml:"home"`
		Verbosity             Verbosity                    `mapstructure:"verbosity" json:"verbosity" toml:"verbosity"`
		SharedObjects         SharedObjectsOptions         `mapstructure:"shared_objects" json:"shared_objects" toml:"shared_objects"`
		CallGraph             CallGraphOptions             `mapstructure:"call_graph" json:"call_graph" toml:"call_graph"`
		Coverage              CoverageOptions              `mapstructure:"coverage" json:"coverage" toml:"coverage"`
		Rope                  RopeOptions                  `mapstructure:"rope" json:"rope" toml:"rope"`
		InstrumentationServer InstrumentationServerOptions `mapstructure:"instrumentation_server" json:"instrumentation_server" toml:"instrumentation_server"`
		Log                   LogOptions                   `mapstructure:"log" json:"log" toml:"log"`
		Core                  CoreOptions                  `mapstructure:"core" json:"core" toml:"core"`

		sources map[string]Source
	}

	// SharedObjectsOptions controls the one-way object-sharing transition.
	SharedObjectsOptions struct {
		Enabled bool `mapstructure:"enabled" json:"enabled" toml:"enabled"`
		// Force shares every reachable object before construction returns.
		Force bool `mapstructure:"force" json:"force" toml:"force"`
	}

	// CallGraphOptions controls call-graph collection.
	CallGraphOptions struct {
		Enabled bool                 `mapstructure:"enabled" json:"enabled" toml:"enabled"`
		Write   types.FilesystemPath `mapstructure:"write" json:"write" toml:"write"`
	}

	CoverageOptions struct {
		Global bool `mapstructure:"global" json:"global" toml:"global"`
	}

	RopeOptions struct {
		PrintInternStats bool `mapstructure:"print_intern_stats" json:"print_intern_stats" toml:"print_intern_stats"`
	}

	// InstrumentationServerOptions configures the diagnostic server; port 0 disables it.
	InstrumentationServerOptions struct {
		Port types.ListenPort `mapstructure:"port" json:"port" toml:"port"`
	}

	LogOptions struct {
		Level LogLevel `mapstructure:"level" json:"level" toml:"level"`
	}

	CoreOptions struct {
		// LoadPath overrides <home>/lib/core as the core library source directory.
		LoadPath types.FilesystemPath `mapstructure:"load_path" json:"load_path" toml:"load_path"`
	}
)

// Keys lists every recognized option key in documentation order.
var Keys = []string{
	KeyHome,
	KeyVerbosity,
	KeySharedObjectsEnabled,
	KeySharedObjectsForce,
	KeyCallGraphEnabled,
	KeyCallGraphWrite,
	KeyCoverageGlobal,
	KeyRopePrintInternStats,
	KeyInstrumentationPort,
	KeyLogLevel,
	KeyCoreLoadPath,
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() *Options {
	return &Options{
		Verbosity:             defaultVerbosity,
		SharedObjects:         SharedObjectsOptions{Enabled: defaultSharedObjects},
		InstrumentationServer: InstrumentationServerOptions{Port: defaultInstrumentationPort},
		Log:                   LogOptions{Level: defaultLogLevel},
	}
}

// defaultValues flattens DefaultOptions into dotted keys for viper.SetDefault.
func defaultValues() map[string]any {
	d := DefaultOptions()
	return map[string]any{
		KeyHome:                 string(d.Home),
		KeyVerbosity:            string(d.Verbosity),
		KeySharedObjectsEnabled: d.SharedObjects.Enabled,
		KeySharedObjectsForce:   d.SharedObjects.Force,
		KeyCallGraphEnabled:     d.CallGraph.Enabled,
		KeyCallGraphWrite:       string(d.CallGraph.Write),
		KeyCoverageGlobal:       d.Coverage.Global,
		KeyRopePrintInternStats: d.Rope.PrintInternStats,
		KeyInstrumentationPort:  int(d.InstrumentationServer.Port),
		KeyLogLevel:             string(d.Log.Level),
		KeyCoreLoadPath:         string(d.Core.LoadPath),
	}
}

// SourceOf reports which layer set key; unset keys report SourceDefault.
func (o *Options) SourceOf(key string) Source {
	if s, ok := o.sources[key]; ok {
		return s
	}
	return SourceDefault
}

// Sources returns a copy of the per-key source attribution.
func (o *Options) Sources() map[string]Source {
	out := make(map[string]Source, len(Keys))
	for _, k := range Keys {
		out[k] = o.SourceOf(k)
	}
	return out
}

// ExplicitKeys returns the keys set by some layer, sorted.
func (o *Options) ExplicitKeys() []string {
	return slices.Sorted(maps.Keys(o.sources))
}

// WarningsEnabled reports whether warnings are printed at all.
func (o *Options) WarningsEnabled() bool { return o.Verbosity != VerbosityNil }

// IsVerbose reports whether verbose warnings are enabled.
func (o *Options) IsVerbose() bool { return o.Verbosity == VerbosityTrue }

// ShareEagerly reports whether construction must finish by sharing every object.
func (o *Options) ShareEagerly() bool {
	return o.SharedObjects.Enabled && o.SharedObjects.Force
}

// Validate checks every field and collects the failures.
func (o *Options) Validate() error {
	var errs []error
	if err := o.Home.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyHome, err))
	}
	if err := o.Verbosity.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyVerbosity, err))
	}
	if err := o.CallGraph.Write.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyCallGraphWrite, err))
	}
	if err := o.InstrumentationServer.Port.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyInstrumentationPort, err))
	}
	if err := o.Log.Level.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyLogLevel, err))
	}
	if err := o.Core.LoadPath.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyCoreLoadPath, err))
	}
	if len(errs) > 0 {
		return &InvalidOptionsError{FieldErrors: errs}
	}
	return nil
}
