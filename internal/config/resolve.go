// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/corvidvm/corvid/pkg/embed"
	"github.com/corvidvm/corvid/pkg/types"
)

// Resolver turns an embedding environment into Options and a Home.
type Resolver struct {
	// Locators are tried in order when no explicit home is configured.
	Locators []HomeLocator
}

// NewResolver returns a resolver using the given home locators.
func NewResolver(locators ...HomeLocator) *Resolver {
	return &Resolver{Locators: locators}
}

// Resolve resolves options and home with the default locators.
func Resolve(env *embed.Env) (*Options, Home, error) {
	return NewResolver(DefaultLocators()...).Resolve(env)
}

// EnvVar returns the environment variable consulted for key.
func EnvVar(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// PropertyName returns the process property consulted for key.
func PropertyName(key string) string {
	return propertyPrefix + key
}

// Resolve merges the layers of env into Options and resolves the home.
// It fails only when a value is malformed; absent keys keep their defaults.
func (r *Resolver) Resolve(env *embed.Env) (*Options, Home, error) {
	opts, err := r.ResolveOptions(env)
	if err != nil {
		return nil, Home{Source: SourceNone}, err
	}
	return opts, r.ResolveHome(opts, env), nil
}

// ResolveOptions layers defaults < properties < environment < embedding config.
func (r *Resolver) ResolveOptions(env *embed.Env) (*Options, error) {
	v := viper.New()
	for key, value := range defaultValues() {
		v.SetDefault(key, value)
	}

	environ := env.EnvironMap()
	embedded := flatten("", env.Config)
	sources := make(map[string]Source)

	for _, key := range Keys {
		if val, ok := env.Property(PropertyName(key)); ok && val != "" {
			v.Set(key, val)
			sources[key] = SourceProperty
		}
		if val, ok := environ[EnvVar(key)]; ok && val != "" {
			v.Set(key, val)
			sources[key] = SourceEnvironment
		}
		if val, ok := embedded[key]; ok && val != nil && val != "" {
			v.Set(key, val)
			sources[key] = SourceOption
		}
	}

	var opts Options
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(verbosityHook, logLevelHook))
	if err := v.Unmarshal(&opts, hook); err != nil {
		return nil, &InvalidOptionsError{FieldErrors: []error{fmt.Errorf("decode: %w", err)}}
	}
	opts.sources = sources

	var errs []error
	for _, p := range []struct {
		key  string
		path *types.FilesystemPath
	}{
		{KeyHome, &opts.Home},
		{KeyCallGraphWrite, &opts.CallGraph.Write},
		{KeyCoreLoadPath, &opts.Core.LoadPath},
	} {
		expanded, err := expandPath(*p.path, environ)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.key, err))
			continue
		}
		*p.path = expanded
	}
	if len(errs) > 0 {
		return nil, &InvalidOptionsError{FieldErrors: errs}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// flatten turns nested maps into dotted keys. Keys that already contain dots
// are kept as given.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

var (
	verbosityType = reflect.TypeFor[Verbosity]()
	logLevelType  = reflect.TypeFor[LogLevel]()
)

// verbosityHook maps booleans to TRUE/FALSE and normalizes token case.
// Unrecognized tokens pass through so Validate can report them.
func verbosityHook(_, to reflect.Type, data any) (any, error) {
	if to != verbosityType {
		return data, nil
	}
	switch val := data.(type) {
	case bool:
		if val {
			return VerbosityTrue, nil
		}
		return VerbosityFalse, nil
	case string:
		parsed, _ := ParseVerbosity(val)
		return parsed, nil
	}
	return data, nil
}

func logLevelHook(_, to reflect.Type, data any) (any, error) {
	if to != logLevelType {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return LogLevel(strings.ToLower(strings.TrimSpace(s))), nil
	}
	return data, nil
}
