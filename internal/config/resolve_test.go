// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"maps"
	"testing"

	"github.com/corvidvm/corvid/pkg/embed"
	"github.com/corvidvm/corvid/pkg/types"
)

func noExecutable() (string, error) { return "", errors.New("no executable") }

func newEnv() *embed.Env {
	return &embed.Env{
		Environ:    map[string]string{},
		Properties: map[string]string{},
		Config:     map[string]any{},
		Executable: noExecutable,
	}
}

func TestResolveOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts, home, err := Resolve(newEnv())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := DefaultOptions()
	if opts.Verbosity != VerbosityFalse {
		t.Errorf("Verbosity = %q, want FALSE", opts.Verbosity)
	}
	if opts.SharedObjects != want.SharedObjects {
		t.Errorf("SharedObjects = %+v, want %+v", opts.SharedObjects, want.SharedObjects)
	}
	if opts.CallGraph.Enabled || opts.CallGraph.Write.IsSet() {
		t.Errorf("CallGraph = %+v, want disabled", opts.CallGraph)
	}
	if !opts.InstrumentationServer.Port.IsDisabled() {
		t.Errorf("port = %d, want 0", opts.InstrumentationServer.Port)
	}
	if opts.Log.Level != LogLevelWarn {
		t.Errorf("Log.Level = %q, want warn", opts.Log.Level)
	}
	for _, key := range Keys {
		if src := opts.SourceOf(key); src != SourceDefault {
			t.Errorf("SourceOf(%s) = %s, want default", key, src)
		}
	}
	if home.IsDetermined() || home.Source != SourceNone {
		t.Errorf("home = %+v, want undetermined", home)
	}
}

func TestResolveOptions_LayerPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		property   string
		env        string
		option     any
		want       Verbosity
		wantSource Source
	}{
		{"property only", "TRUE", "", nil, VerbosityTrue, SourceProperty},
		{"environment beats property", "TRUE", "NIL", nil, VerbosityNil, SourceEnvironment},
		{"option beats environment", "TRUE", "NIL", "FALSE", VerbosityFalse, SourceOption},
		{"option bool", "", "", true, VerbosityTrue, SourceOption},
		{"lower case token", "", "nil", nil, VerbosityNil, SourceEnvironment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newEnv()
			if tt.property != "" {
				env.Properties["corvid.verbosity"] = tt.property
			}
			if tt.env != "" {
				env.Environ["CORVID_VERBOSITY"] = tt.env
			}
			if tt.option != nil {
				env.Config["verbosity"] = tt.option
			}

			opts, err := NewResolver().ResolveOptions(env)
			if err != nil {
				t.Fatalf("ResolveOptions() error: %v", err)
			}
			if opts.Verbosity != tt.want {
				t.Errorf("Verbosity = %q, want %q", opts.Verbosity, tt.want)
			}
			if got := opts.SourceOf(KeyVerbosity); got != tt.wantSource {
				t.Errorf("SourceOf(verbosity) = %s, want %s", got, tt.wantSource)
			}
		})
	}
}

func TestResolveOptions_NestedAndDottedConfig(t *testing.T) {
	t.Parallel()

	env := newEnv()
	env.Config["shared_objects"] = map[string]any{"enabled": true, "force": true}
	env.Config["call_graph.enabled"] = true
	env.Environ["CORVID_INSTRUMENTATION_SERVER_PORT"] = "7022"
	env.Properties["corvid.rope.print_intern_stats"] = "true"

	opts, err := NewResolver().ResolveOptions(env)
	if err != nil {
		t.Fatalf("ResolveOptions() error: %v", err)
	}
	if !opts.ShareEagerly() {
		t.Error("ShareEagerly() = false, want true")
	}
	if !opts.CallGraph.Enabled {
		t.Error("CallGraph.Enabled = false, want true")
	}
	if opts.InstrumentationServer.Port != 7022 {
		t.Errorf("port = %d, want 7022", opts.InstrumentationServer.Port)
	}
	if !opts.Rope.PrintInternStats {
		t.Error("Rope.PrintInternStats = false, want true")
	}
	if got := opts.ExplicitKeys(); len(got) != 5 {
		t.Errorf("ExplicitKeys() = %v, want 5 keys", got)
	}
}

func TestResolveOptions_EmptyValuesAreAbsent(t *testing.T) {
	t.Parallel()

	env := newEnv()
	env.Environ["CORVID_LOG_LEVEL"] = ""
	env.Properties["corvid.log.level"] = "debug"
	env.Config["log"] = map[string]any{"level": nil}

	opts, err := NewResolver().ResolveOptions(env)
	if err != nil {
		t.Fatalf("ResolveOptions() error: %v", err)
	}
	if opts.Log.Level != LogLevelDebug {
		t.Errorf("Log.Level = %q, want debug from the property layer", opts.Log.Level)
	}
}

func TestResolve_EmptyEmbeddedValuesAreAbsent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		config        map[string]any
		environ       map[string]string
		properties    map[string]string
		wantHome      types.FilesystemPath
		wantSource    Source
		wantVerbosity Verbosity
	}{
		{
			name:          "empty home falls through to environment",
			config:        map[string]any{"home": ""},
			environ:       map[string]string{"CORVID_HOME": "/opt/corvid"},
			wantHome:      "/opt/corvid",
			wantSource:    SourceEnvironment,
			wantVerbosity: defaultVerbosity,
		},
		{
			name:          "empty verbosity falls through to property",
			config:        map[string]any{"verbosity": ""},
			properties:    map[string]string{"corvid.verbosity": "TRUE"},
			wantSource:    SourceNone,
			wantVerbosity: VerbosityTrue,
		},
		{
			name:          "empty nested value falls through to default",
			config:        map[string]any{"log": map[string]any{"level": ""}, "verbosity": ""},
			wantSource:    SourceNone,
			wantVerbosity: defaultVerbosity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newEnv()
			env.Config = tt.config
			maps.Copy(env.Environ, tt.environ)
			maps.Copy(env.Properties, tt.properties)

			opts, home, err := Resolve(env)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if home.Path != tt.wantHome || home.Source != tt.wantSource {
				t.Errorf("home = %q (%s), want %q (%s)", home.Path, home.Source, tt.wantHome, tt.wantSource)
			}
			if opts.Verbosity != tt.wantVerbosity {
				t.Errorf("Verbosity = %q, want %q", opts.Verbosity, tt.wantVerbosity)
			}
			if tt.wantHome == "" && opts.SourceOf(KeyHome) == SourceOption {
				t.Error("empty embedded home attributed to the option layer")
			}
		})
	}
}

func TestResolveOptions_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"unknown verbosity token", "CORVID_VERBOSITY", "LOUD", ErrInvalidVerbosity},
		{"unknown log level", "CORVID_LOG_LEVEL", "trace", ErrInvalidLogLevel},
		{"port out of range", "CORVID_INSTRUMENTATION_SERVER_PORT", "70000", types.ErrInvalidListenPort},
		{"bool not decodable", "CORVID_SHARED_OBJECTS_ENABLED", "maybe", ErrInvalidOptions},
		{"whitespace path", "CORVID_CALL_GRAPH_WRITE", "   ", types.ErrInvalidFilesystemPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newEnv()
			env.Environ[tt.key] = tt.value

			_, _, err := Resolve(env)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("Resolve() error = %v, want ErrInvalidOptions", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			var optsErr *InvalidOptionsError
			if !errors.As(err, &optsErr) || len(optsErr.FieldErrors) == 0 {
				t.Errorf("expected InvalidOptionsError with field errors, got %T", err)
			}
		})
	}
}

func TestResolveOptions_ExpandsPaths(t *testing.T) {
	t.Parallel()

	env := newEnv()
	env.Environ["HOME"] = "/home/corvid"
	env.Environ["GRAPH_DIR"] = "/var/tmp"
	env.Config["home"] = "~/runtime"
	env.Config["call_graph"] = map[string]any{"write": "${GRAPH_DIR}/graph.txt"}

	opts, err := NewResolver().ResolveOptions(env)
	if err != nil {
		t.Fatalf("ResolveOptions() error: %v", err)
	}
	if opts.Home != "/home/corvid/runtime" {
		t.Errorf("Home = %q", opts.Home)
	}
	if opts.CallGraph.Write != "/var/tmp/graph.txt" {
		t.Errorf("CallGraph.Write = %q", opts.CallGraph.Write)
	}
}

func TestEnvVarAndPropertyName(t *testing.T) {
	t.Parallel()

	if got := EnvVar(KeySharedObjectsForce); got != "CORVID_SHARED_OBJECTS_FORCE" {
		t.Errorf("EnvVar() = %q", got)
	}
	if got := EnvVar(KeyHome); got != HomeEnvVar {
		t.Errorf("EnvVar(home) = %q, want %q", got, HomeEnvVar)
	}
	if got := PropertyName(KeyHome); got != HomeProperty {
		t.Errorf("PropertyName(home) = %q, want %q", got, HomeProperty)
	}
}
